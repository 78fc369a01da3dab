package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Authenticator turns the session cookie (or a bearer header) into an
// Identity on the request context.
type Authenticator struct {
	verifier   *Verifier
	cookieName string
	log        zerolog.Logger
}

func NewAuthenticator(v *Verifier, cookieName string, log zerolog.Logger) *Authenticator {
	return &Authenticator{verifier: v, cookieName: cookieName, log: log}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r, a.cookieName)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := a.verifier.Verify(tokenStr)
		if err != nil {
			a.log.Debug().Str("path", r.URL.Path).Msg("rejected session token")
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		ctx := WithIdentity(r.Context(), Resolve(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability gates a route on a global staff capability. Tenant
// scoped capabilities depend on the resource and are checked by services.
func RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !Authorize(id, nil, nil, c).Allow {
				writeError(w, http.StatusForbidden, "not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EdgeGuard is the pre-filter in front of the admin area. It only proves the
// caller holds a staff role; the full Authenticator still runs behind it.
type EdgeGuard struct {
	verifier   *EdgeVerifier
	cookieName string
	secure     bool
	log        zerolog.Logger
}

func NewEdgeGuard(v *EdgeVerifier, cookieName string, secure bool, log zerolog.Logger) *EdgeGuard {
	return &EdgeGuard{verifier: v, cookieName: cookieName, secure: secure, log: log}
}

func (g *EdgeGuard) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r, g.cookieName)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := g.verifier.Verify(tokenStr)
		if err != nil {
			ClearSessionCookie(w, g.cookieName, g.secure)
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		role := StaffRole(claims.Role)
		if role == "" {
			role = RoleUser
		}
		if !role.IsStaff() {
			g.log.Info().Str("user_id", claims.UserID).Str("path", r.URL.Path).Msg("non-staff caller blocked at admin edge")
			writeError(w, http.StatusForbidden, "not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie writes the session token cookie. maxAge is in seconds.
func SetSessionCookie(w http.ResponseWriter, name, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func extractToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
