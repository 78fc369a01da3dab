package middleware

import (
	"net/http"

	"github.com/nikhilbhutani/eventdesk/internal/audit"
)

// ClientIP records the caller's address for audit entries. It must run
// after chi's RealIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithClientIP(r.Context(), clientKey(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
