package middlewares

import (
	"fmt"
	"net/http"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/rate"
)

// RateByIP limita requests por IP de cliente dentro del scope dado.
func RateByIP(limiter rate.Limiter, scope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := helpers.ClientIP(r)
			res, err := limiter.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				// Limiter caído no tiene que tirar el login abajo; se loguea
				// y el request pasa.
				logger.From(r.Context()).Warn("rate limiter no disponible",
					logger.String("scope", scope), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				metrics.RateLimited.WithLabelValues(scope).Inc()
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", res.RetryAfter.Seconds()))
				helpers.WriteError(w, r, apperrors.RateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
