// Package shield provides the HTTP middleware in front of the buildboard API:
// security headers, JSON body limits, request tracing, HEAD handling, CORS
// and SQLite-configured rate limiting.
//
// Usage:
//
//	stack, rl := shield.APIStack(db)
//	rl.StartReloader(done)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxAPIBody caps JSON request bodies.
const MaxAPIBody = 64 * 1024

// APIStack returns the standard middleware stack for the public API.
// Order: HeadToGet → SecurityHeaders → CORS → MaxJSONBody → TraceID → RateLimiter.
// Preflight requests are answered by CORS and never reach the limiter.
// origins restricts cross-origin callers; none means AnyOrigin.
func APIStack(db *sql.DB, origins ...string) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(db)
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		CORS(origins...),
		MaxJSONBody(MaxAPIBody),
		TraceID,
		rl.Middleware,
	}, rl
}
