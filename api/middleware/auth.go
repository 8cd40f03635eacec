package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/pos-checkout/api/responses"
	pkgAuth "github.com/angelmondragon/pos-checkout/pkg/auth"
	"github.com/angelmondragon/pos-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/pos-checkout/pkg/errors"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
)

// Auth validates the operator bearer token and seeds the request context with the claims.
// The raw token is kept so downstream calls to the store backend act as the same operator.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithOperator(r.Context(), claims.UserID, claims.Role, token)
			if logg != nil {
				ctx = logg.WithOperator(ctx, claims.UserID, claims.Role.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
