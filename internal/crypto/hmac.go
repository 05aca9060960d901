// Package crypto provides HMAC request authentication for the venue REST
// APIs.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the API credentials for HMAC-authenticated venue requests.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret (base64-encoded for Coinbase, raw for Binance)
	Passphrase string // API passphrase (Coinbase only)
}

// BinanceSignature returns the hex-encoded HMAC-SHA256 signature over the
// request query string, as required by Binance signed endpoints.
func (h *HMACAuth) BinanceSignature(queryString string) string {
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// CoinbaseHeaders returns the HTTP headers for a Coinbase Exchange API
// request. The signature is HMAC-SHA256(secret, timestamp+method+path+body)
// encoded as base64, with the secret base64-decoded first.
//
// Returned header keys:
//   - CB-ACCESS-KEY
//   - CB-ACCESS-SIGN
//   - CB-ACCESS-TIMESTAMP
//   - CB-ACCESS-PASSPHRASE
func (h *HMACAuth) CoinbaseHeaders(method, path, body string) map[string]string {
	return h.CoinbaseHeadersAt(method, path, body, time.Now().Unix())
}

// CoinbaseHeadersAt is like CoinbaseHeaders but lets the caller supply the
// Unix timestamp (useful for deterministic testing).
func (h *HMACAuth) CoinbaseHeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// If decoding fails, fall back to raw bytes so the caller gets an
		// obviously-wrong signature rather than a panic.
		secretBytes = []byte(h.Secret)
	}

	message := ts + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"CB-ACCESS-KEY":        h.Key,
		"CB-ACCESS-SIGN":       sig,
		"CB-ACCESS-TIMESTAMP":  ts,
		"CB-ACCESS-PASSPHRASE": h.Passphrase,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
