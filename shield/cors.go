package shield

import (
	"net/http"

	"github.com/go-chi/cors"
)

// AnyOrigin matches every http and https origin.
var AnyOrigin = []string{"https://*", "http://*"}

// CORS answers preflight requests and decorates responses for the given
// origins (wildcard patterns allowed). No origins means AnyOrigin.
// Credentials are allowed, so a matching Origin is echoed rather than "*".
func CORS(origins ...string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = AnyOrigin
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
