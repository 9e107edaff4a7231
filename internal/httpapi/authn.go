package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"clearbill.io/internal/scope"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	sessionCookie = "session"
)

var publicPaths = []string{
	"/api/login",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth resolves the session token to a principal and stores it in the
// request context. Unauthenticated requests to protected paths get 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := sessionToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing session token")
			return
		}

		principal, err := a.svc.Whoami(r.Context(), token)
		if err != nil {
			writeFault(w, r, err)
			return
		}

		ctx := scope.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionToken extracts the opaque token from the Authorization header or
// the session cookie. The header wins when both are present.
func sessionToken(r *http.Request) string {
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		return token
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
