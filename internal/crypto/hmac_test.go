package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceSignatureKnownVector(t *testing.T) {
	// Worked example from the Binance signed-endpoint documentation.
	auth := &HMACAuth{
		Key:    "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A",
		Secret: "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
	}
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	sig := auth.BinanceSignature(query)
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", sig)
}

func TestBinanceSignatureDiffersPerSecret(t *testing.T) {
	a := &HMACAuth{Secret: "secret-a"}
	b := &HMACAuth{Secret: "secret-b"}
	assert.NotEqual(t, a.BinanceSignature("timestamp=1"), b.BinanceSignature("timestamp=1"))
}

func TestCoinbaseHeadersAt(t *testing.T) {
	auth := &HMACAuth{
		Key:        "test-key",
		Secret:     base64.StdEncoding.EncodeToString([]byte("test-secret")),
		Passphrase: "test-pass",
	}

	headers := auth.CoinbaseHeadersAt("POST", "/orders", `{"size":"0.01"}`, 1700000000)

	assert.Equal(t, "test-key", headers["CB-ACCESS-KEY"])
	assert.Equal(t, "1700000000", headers["CB-ACCESS-TIMESTAMP"])
	assert.Equal(t, "test-pass", headers["CB-ACCESS-PASSPHRASE"])
	require.NotEmpty(t, headers["CB-ACCESS-SIGN"])

	// Base64-decodable signature, stable for identical inputs.
	_, err := base64.StdEncoding.DecodeString(headers["CB-ACCESS-SIGN"])
	require.NoError(t, err)
	again := auth.CoinbaseHeadersAt("POST", "/orders", `{"size":"0.01"}`, 1700000000)
	assert.Equal(t, headers["CB-ACCESS-SIGN"], again["CB-ACCESS-SIGN"])
}

func TestCoinbaseSignatureCoversAllParts(t *testing.T) {
	auth := &HMACAuth{Secret: base64.StdEncoding.EncodeToString([]byte("s"))}

	base := auth.CoinbaseHeadersAt("GET", "/accounts", "", 1700000000)["CB-ACCESS-SIGN"]
	assert.NotEqual(t, base, auth.CoinbaseHeadersAt("POST", "/accounts", "", 1700000000)["CB-ACCESS-SIGN"])
	assert.NotEqual(t, base, auth.CoinbaseHeadersAt("GET", "/orders", "", 1700000000)["CB-ACCESS-SIGN"])
	assert.NotEqual(t, base, auth.CoinbaseHeadersAt("GET", "/accounts", "x", 1700000000)["CB-ACCESS-SIGN"])
	assert.NotEqual(t, base, auth.CoinbaseHeadersAt("GET", "/accounts", "", 1700000001)["CB-ACCESS-SIGN"])
}

func TestStringRedactsSecrets(t *testing.T) {
	auth := &HMACAuth{Key: "abcdef123456", Secret: "supersecretvalue"}
	s := auth.String()
	assert.NotContains(t, s, "123456")
	assert.NotContains(t, s, "secretvalue")
	assert.Contains(t, s, "abcd****")
}
