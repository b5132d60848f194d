// Package shield holds the HTTP middleware in front of the collector API.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	for _, mw := range shield.APIStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// DefaultMaxBody caps request bodies on the API.
const DefaultMaxBody = 64 * 1024

// APIStack returns the standard middleware stack for the JSON API, in order:
// HeadToGet, SecurityHeaders, MaxBody, RequestLog.
func APIStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		MaxBody(DefaultMaxBody),
		RequestLog(logger),
	}
}
