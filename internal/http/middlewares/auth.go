package middlewares

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

const AccessCookieName = "admin_access_token"

type claimsKey struct{}

// ClaimsFrom devuelve los claims inyectados por RequireAuth, o nil.
func ClaimsFrom(ctx context.Context) *session.Claims {
	c, _ := ctx.Value(claimsKey{}).(*session.Claims)
	return c
}

// RequireAuth exige un access token válido (cookie o Bearer) sobre una sesión
// viva, y deja los claims en el contexto.
func RequireAuth(mgr *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessTokenFrom(r)
			if token == "" {
				helpers.WriteError(w, r, apperrors.Unauthorized)
				return
			}
			claims, err := mgr.Validate(r.Context(), token)
			if err != nil {
				helpers.WriteError(w, r, apperrors.Unauthorized)
				return
			}

			l := logger.From(r.Context()).With(
				logger.AdminID(claims.Subject),
				logger.SessionID(claims.SessionID),
			)
			ctx := logger.ToContext(r.Context(), l)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole corta con 403 si el rol autenticado no está en la lista.
// Se usa después de RequireAuth.
func RequireRole(roles ...core.Role) Middleware {
	allowed := make(map[core.Role]struct{}, len(roles))
	for _, ro := range roles {
		allowed[ro] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil {
				helpers.WriteError(w, r, apperrors.Unauthorized)
				return
			}
			if _, ok := allowed[core.Role(claims.Role)]; !ok {
				helpers.WriteError(w, r, apperrors.Forbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
