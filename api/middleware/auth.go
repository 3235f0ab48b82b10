package middleware

import (
	"net/http"
	"strings"

	"github.com/wishlane/wishlane-backend/api/responses"
	pkgAuth "github.com/wishlane/wishlane-backend/pkg/auth"
	"github.com/wishlane/wishlane-backend/pkg/auth/session"
	"github.com/wishlane/wishlane-backend/pkg/config"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

const guestTokenHeader = "X-Guest-Token"

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithUserName(ctx, claims.Name)

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth seeds the context with claims when a valid bearer token
// is present and otherwise lets the request through anonymously. A
// guest token header is lifted into the context for anonymous actors.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if guest := strings.TrimSpace(r.Header.Get(guestTokenHeader)); guest != "" {
				ctx = WithGuestToken(ctx, guest)
			}

			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil || claims.ID == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			if verifier != nil {
				ok, err := verifier.HasSession(ctx, claims.ID)
				if err != nil || !ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			ctx = WithUserID(ctx, claims.UserID.String())
			ctx = WithUserName(ctx, claims.Name)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
