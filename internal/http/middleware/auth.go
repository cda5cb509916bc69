package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/campaign"
)

type contextKey string

const (
	userClaimsKey contextKey = "userClaims"
	chainCallKey  contextKey = "chainCall"
)

// UserJWT enforces a simple HMAC-signed JWT for the calling API. The token
// subject is the user ID every CRM lookup is scoped to.
//
// Requests carrying the campaign chain marker skip the bearer check: they
// authenticate with the shared chain secret instead, and the handler reads
// the user ID from the chain body.
func UserJWT(secret, chainSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(campaign.ChainHeader) == "true" {
				if chainSecret == "" || subtle.ConstantTimeCompare(
					[]byte(r.Header.Get(campaign.ChainSecretHeader)),
					[]byte(chainSecret)) != 1 {
					http.Error(w, "invalid chain secret", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithChainCall(r.Context())))
				return
			}

			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func withClaims(ctx context.Context, claims jwt.RegisteredClaims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// WithUser returns a context carrying an authenticated user identity, as if
// a valid bearer token for userID had been presented.
func WithUser(ctx context.Context, userID string) context.Context {
	return withClaims(ctx, jwt.RegisteredClaims{Subject: userID})
}

// WithChainCall marks a context as authenticated via the campaign chain
// secret.
func WithChainCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, chainCallKey, true)
}

// UserIDFromContext returns the authenticated user ID, empty for chain calls.
func UserIDFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(userClaimsKey).(jwt.RegisteredClaims)
	if !ok {
		return ""
	}
	return claims.Subject
}

// IsChainCall reports whether the request authenticated via the campaign
// chain secret.
func IsChainCall(ctx context.Context) bool {
	v, ok := ctx.Value(chainCallKey).(bool)
	return ok && v
}
