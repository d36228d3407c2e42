package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/mathclub/festival-bbs/internal/auth"
)

type ctxKey int

const adminKey ctxKey = iota

// AdminOnly lets a request through only with a valid admin bearer token.
func AdminOnly(verifier *auth.Jwt) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				WriteErrorAndStatusCode(w, &ErrorWithStatusCode{Message: "not authorized", StatusCode: http.StatusUnauthorized})
				return
			}
			admin, err := verifier.Verify(token)
			if err != nil {
				WriteErrorAndStatusCode(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), adminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the verified admin, or nil outside AdminOnly.
func AdminFromContext(ctx context.Context) *auth.Admin {
	admin, _ := ctx.Value(adminKey).(*auth.Admin)
	return admin
}
