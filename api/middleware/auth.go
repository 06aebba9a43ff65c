package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	pkgAuth "github.com/angelmondragon/coffeeshop-backend/pkg/auth"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// Auth verifies the access token on every request and stores the caller
// identity (user, role, staff store) on the context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithCaller(r.Context(), claims.UserID, claims.Role)
			if claims.StoreID != nil {
				ctx = WithStoreID(ctx, *claims.StoreID)
			}
			if logg != nil {
				ctx = logg.WithCaller(ctx, claims.UserID, claims.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <jwt>" or a bare token. Any other scheme is refused,
// and a lone scheme word is not a token.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	scheme, rest, found := strings.Cut(header, " ")
	token := header
	if found {
		if !strings.EqualFold(scheme, "bearer") {
			return "", pkgerrors.Newf(pkgerrors.CodeUnauthorized, "unsupported authorization scheme %q", scheme)
		}
		token = strings.TrimSpace(rest)
	}
	if token == "" || strings.EqualFold(token, "bearer") {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}
