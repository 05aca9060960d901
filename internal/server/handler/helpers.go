package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/arbot/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit/offset from the query string, clamping the
// limit so a dashboard cannot request the whole trade history in one call.
func parseListOpts(r *http.Request) domain.ListOpts {
	opts := domain.ListOpts{Limit: defaultListLimit}
	if n := queryInt(r, "limit"); n > 0 {
		opts.Limit = min(n, maxListLimit)
	}
	if n := queryInt(r, "offset"); n > 0 {
		opts.Offset = n
	}
	return opts
}

// queryInt returns the named query parameter as an int, or 0 when absent
// or unparsable.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
