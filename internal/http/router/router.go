// Package router arma el árbol de rutas del servicio.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/adminauth/internal/http/controllers"
	"github.com/dropDatabas3/adminauth/internal/http/helpers"
	"github.com/dropDatabas3/adminauth/internal/http/middlewares"
	"github.com/dropDatabas3/adminauth/internal/rate"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

const healthTimeout = 2 * time.Second

type Deps struct {
	Auth     *controllers.AuthController
	Sessions *controllers.SessionController
	Manager  *session.Manager

	// LoginLimiter limita por IP los endpoints de credenciales; ResetLimiter
	// hace lo propio con forgot-password.
	LoginLimiter rate.Limiter
	ResetLimiter rate.Limiter

	Store core.Repository // para /healthz
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.Recover())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.Logging())

	r.Get("/healthz", healthz(d.Store))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin-auth", func(r chi.Router) {
		r.Use(middlewares.NoStore())

		// Credenciales: rate limit por IP.
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RateByIP(d.LoginLimiter, "login"))
			r.Post("/login", d.Auth.Login)
			r.Post("/verify-2fa", d.Auth.Verify2FA)
		})

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RateByIP(d.ResetLimiter, "reset"))
			r.Post("/forgot-password", d.Auth.ForgotPassword)
		})

		// Enlaces de un solo uso: sin auth, el token es la credencial.
		r.Get("/activate", d.Auth.PreviewActivation)
		r.Post("/activate", d.Auth.Activate)
		r.Get("/reset-password", d.Auth.PreviewReset)
		r.Post("/reset-password", d.Auth.ResetPassword)

		// Logout y refresh funcionan con la cookie de refresh.
		r.Post("/logout", d.Sessions.Logout)
		r.Post("/refresh", d.Sessions.Refresh)

		// Requieren sesión viva.
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAuth(d.Manager))
			r.Get("/sessions", d.Sessions.List)
			r.Delete("/sessions", d.Sessions.KillAll)
			r.Delete("/sessions/{id}", d.Sessions.Kill)

			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireRole(core.RoleSuperAdmin))
				r.Post("/register", d.Auth.Register)
				r.Get("/admins", d.Auth.ListAdmins)
				r.Patch("/admins/{id}", d.Auth.UpdateAdminRole)
				r.Delete("/admins/{id}", d.Auth.DeleteAdmin)
			})
		})
	})

	return r
}

func healthz(store core.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
