package middlewares

import (
	"net/http"
	"runtime/debug"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

// Recover atrapa panics del handler y responde 500 sin volcar el stack al
// cliente.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic en handler",
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					helpers.WriteError(w, r, apperrors.Internal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
