package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/sourcing-backend/api/responses"
	pkgAuth "github.com/angelmondragon/sourcing-backend/pkg/auth"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

// Auth resolves the caller from a bearer token. Only human parties (buyers,
// merchants, admins) may call the API; system tokens are reserved for the
// workers and are refused here.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w, r, logg, err)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				unauthorized(w, r, logg, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := claims.Actor()
			if actor.Role == enums.ActorRoleSystem {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "system credentials cannot call the api"))
				return
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor.UserID.String(), actor.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sourcing"`)
	responses.WriteError(r.Context(), logg, w, err)
}
