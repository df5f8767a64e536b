// Package identity resolves the calling user for each request and hands it to
// handlers explicitly through the request context.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// HeaderUserID is set by the gateway after it has verified the caller.
const HeaderUserID = "X-User-Id"

// TrustGatewayHeaders reads TRUST_GATEWAY_HEADERS. It is off unless set, so a
// service reachable without the gateway ignores X-User-Id.
func TrustGatewayHeaders() bool {
	return config.Bool("TRUST_GATEWAY_HEADERS", false)
}

// User is the caller as seen by this service. IsLoaded reports that identity
// resolution ran for the request; ID is empty for anonymous callers.
type User struct {
	ID       string
	IsLoaded bool
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the caller; ok is false for anonymous requests.
func CurrentUser(ctx context.Context) (User, bool) {
	u, _ := ctx.Value(ctxKey{}).(User)
	return u, u.IsLoaded && u.ID != ""
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// Middleware resolves the caller from a Bearer token or, when trustGateway is set,
// from the gateway's X-User-Id header. Requests without credentials continue
// anonymously; a bad token is rejected with 401.
func Middleware(verifier TokenVerifier, trustGateway bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := User{IsLoaded: true}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			switch {
			case authHeader != "":
				token, ok := strings.CutPrefix(authHeader, "Bearer ")
				token = strings.TrimSpace(token)
				if !ok || token == "" || verifier == nil {
					writeUnauthorized(w, "missing or invalid Authorization header")
					return
				}
				claims, err := verifier.Verify(r.Context(), token)
				if err != nil {
					writeUnauthorized(w, "invalid token")
					return
				}
				u.ID = claims.Subject
			case trustGateway:
				u.ID = strings.TrimSpace(r.Header.Get(HeaderUserID))
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// Require rejects anonymous callers.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			writeUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="scheduling"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
