package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID propaga o genera el id de request y deja un logger scoped en el
// contexto.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			l := logger.From(r.Context()).With(logger.RequestID(id))
			next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), l)))
		})
	}
}
