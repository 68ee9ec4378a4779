package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging registra método, path, status y latencia de cada request.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger.From(r.Context()).Info("http request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(sw.status),
				logger.ClientIP(helpers.ClientIP(r)),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
