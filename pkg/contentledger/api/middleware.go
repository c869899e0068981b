package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

type contextKey string

const callerKey contextKey = "caller"

// NewJWTAuth returns an HS256 verifier for caller tokens
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token whose subject is the caller identity. Extra claims
// such as "admin" are copied in as given.
func IssueToken(auth *jwtauth.JWTAuth, caller contentledger.Identity, extra map[string]interface{}) (string, error) {
	claims := map[string]interface{}{"sub": string(caller)}
	for k, v := range extra {
		claims[k] = v
	}
	_, token, err := auth.Encode(claims)
	return token, err
}

// CallerIdentity resolves the verified token subject into a ledger identity.
// It must run after jwtauth.Verifier and jwtauth.Authenticator.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			unauthenticated(w, r, err.Error())
			return
		}
		sub, _ := claims["sub"].(string)
		caller := contentledger.Identity(strings.TrimSpace(sub))
		if caller.IsAnonymous() {
			unauthenticated(w, r, "token has no subject")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin only lets through tokens carrying "admin": true
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			unauthenticated(w, r, err.Error())
			return
		}
		if admin, _ := claims["admin"].(bool); !admin {
			slog.Warn("Admin route refused", "caller", CallerFromContext(r.Context()).String(), "path", r.URL.Path)
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, ErrorResponse{Error: "admin privileges required", Kind: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFromContext returns the identity set by CallerIdentity, or the
// anonymous identity when none was set.
func CallerFromContext(ctx context.Context) contentledger.Identity {
	caller, _ := ctx.Value(callerKey).(contentledger.Identity)
	return caller
}

func unauthenticated(w http.ResponseWriter, r *http.Request, reason string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Error: fmt.Sprintf("unauthenticated: %s", reason), Kind: "unauthenticated"})
}
