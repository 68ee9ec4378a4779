// Package metrics expone los contadores Prometheus del subsistema.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_login_attempts_total",
		Help: "Intentos de login por resultado (success, failed, blocked, requires_2fa).",
	}, []string{"outcome"})

	TwoFactorVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_twofactor_verifications_total",
		Help: "Verificaciones de segundo factor por método y resultado.",
	}, []string{"method", "outcome"})

	Lockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adminauth_lockouts_total",
		Help: "Cuentas bloqueadas por intentos fallidos.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_rate_limited_total",
		Help: "Requests rechazados por rate limit, por scope (login, reset).",
	}, []string{"scope"})

	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_password_resets_total",
		Help: "Flujo de reset de contraseña por etapa (requested, completed).",
	}, []string{"stage"})

	SessionsRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_sessions_revoked_total",
		Help: "Sesiones revocadas por causa (logout, kill, kill_all, password_reset).",
	}, []string{"cause"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminauth_emails_sent_total",
		Help: "Correos transaccionales despachados por tipo.",
	}, []string{"kind"})
)
