package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/adminauth/internal/audit"
	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

// LoginResult es el desenlace de Login/Verify2FA: o bien un par de tokens con
// su sesión, o bien el estado intermedio "2FA pendiente".
type LoginResult struct {
	Requires2FA     bool
	TwoFactorMethod core.TwoFactorMethod
	TempToken       string

	Admin   *core.Admin
	Session *core.Session
	Tokens  *session.TokenPair
}

// Login ejecuta la máquina de estados del ingreso. Las respuestas para "email
// inexistente" y "password incorrecto" son indistinguibles a propósito.
func (s *Service) Login(ctx context.Context, emailAddr, plainPassword string, meta RequestMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("login"))
	emailAddr = normalizeEmail(emailAddr)
	now := s.now().UTC()

	a, err := s.deps.Store.GetAdminByEmail(ctx, emailAddr)
	if err != nil || a.PasswordHash == nil {
		// Quemamos un verify igual para no delatar la inexistencia por timing.
		password.Verify(plainPassword, "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		s.deps.Audit.Record(ctx, auditEvent(nil, core.EventFailedLogin, meta, core.OutcomeFailed, map[string]any{
			"email": emailAddr, "reason": "unknown_or_unactivated",
		}))
		return nil, apperrors.InvalidCredentials
	}

	if lockout.IsLocked(a, now) {
		metrics.LoginAttempts.WithLabelValues("blocked").Inc()
		s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventBlocked, meta, core.OutcomeBlocked, map[string]any{
			"locked_until": a.LockedUntil,
		}))
		return nil, lockedError(*a.LockedUntil, now)
	}

	if !a.IsActive {
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventFailedLogin, meta, core.OutcomeFailed, map[string]any{
			"reason": "not_activated",
		}))
		return nil, apperrors.AccountNotActivated
	}

	if !password.Verify(plainPassword, *a.PasswordHash) {
		return nil, s.handleFailedPassword(ctx, a, meta)
	}

	// Password correcto: el contador de fallos vuelve a cero.
	if err := s.deps.Lockout.Reset(ctx, a.ID); err != nil {
		log.Warn("no se pudo resetear el contador de fallos", logger.Err(err))
	}

	if a.TwoFactorEnabled && a.TwoFactorMethod != core.TwoFactorNone {
		temp := tokens.SignTempToken(s.deps.TempTokenKey, a.ID, now)
		if a.TwoFactorMethod == core.TwoFactorEmail {
			// Si el OTP no sale, el login no puede quedar a mitad de camino.
			if err := s.deps.TwoFactor.SendEmailOTP(ctx, a); err != nil {
				log.Error("envío de otp falló", logger.Err(err))
				return nil, apperrors.Internal.WithErr(err)
			}
			metrics.EmailsSent.WithLabelValues("otp").Inc()
		}
		metrics.LoginAttempts.WithLabelValues("requires_2fa").Inc()
		return &LoginResult{
			Requires2FA:     true,
			TwoFactorMethod: a.TwoFactorMethod,
			TempToken:       temp,
		}, nil
	}

	return s.openSession(ctx, a, meta)
}

// handleFailedPassword registra el fallo, aplica la política de lockout y
// devuelve el error para el cliente.
func (s *Service) handleFailedPassword(ctx context.Context, a *core.Admin, meta RequestMeta) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("login"))

	res, err := s.deps.Lockout.RegisterFailure(ctx, a.ID)
	if err != nil {
		log.Error("registrar fallo de login", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}

	if res.JustLocked {
		metrics.Lockouts.Inc()
		metrics.LoginAttempts.WithLabelValues("blocked").Inc()
		s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventBlocked, meta, core.OutcomeBlocked, map[string]any{
			"attempts": res.Attempts, "locked_until": res.LockedUntil,
		}))
		if a.NotifyFailedLogin {
			if err := s.deps.Mailer.SendLockoutNotice(ctx, a.Email, a.FirstName, res.LockedUntil); err != nil {
				log.Warn("aviso de bloqueo no enviado", logger.Err(err))
			} else {
				metrics.EmailsSent.WithLabelValues("lockout").Inc()
			}
		}
		return lockedError(res.LockedUntil, s.now().UTC())
	}

	metrics.LoginAttempts.WithLabelValues("failed").Inc()
	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventFailedLogin, meta, core.OutcomeFailed, map[string]any{
		"attempts": res.Attempts,
	}))
	if res.Locked {
		return lockedError(res.LockedUntil, s.now().UTC())
	}
	return apperrors.InvalidCredentials
}

// lockedError arma el rechazo LOCKED con los minutos restantes, redondeando
// hacia arriba para no prometer un reintento antes de tiempo.
func lockedError(until, now time.Time) error {
	mins := int((until.Sub(now) + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	unit := "minutos"
	if mins == 1 {
		unit = "minuto"
	}
	return apperrors.AccountLocked.WithMessage(fmt.Sprintf(
		"Cuenta bloqueada temporalmente por intentos fallidos. Probá de nuevo en %d %s.", mins, unit))
}

// openSession emite la sesión y cierra el flujo de login exitoso.
func (s *Service) openSession(ctx context.Context, a *core.Admin, meta RequestMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("open_session"))

	sn, pair, err := s.deps.Sessions.Create(ctx, a, meta.IP, meta.UserAgent)
	if err != nil {
		log.Error("crear sesión", logger.Err(err))
		return nil, apperrors.Internal.WithErr(err)
	}
	if err := s.deps.Store.SetLastLogin(ctx, a.ID, s.now().UTC()); err != nil {
		log.Warn("actualizar last_login", logger.Err(err))
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventLogin, meta, core.OutcomeSuccess, map[string]any{
		"session_id": sn.ID,
	}))
	log.Info("login exitoso", logger.AdminID(a.ID), logger.SessionID(sn.ID))

	return &LoginResult{Admin: a, Session: sn, Tokens: pair}, nil
}

func auditEvent(adminID *string, typ core.EventType, meta RequestMeta, outcome core.Outcome, details map[string]any) audit.Event {
	return audit.Event{
		AdminID:   adminID,
		Type:      typ,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Outcome:   outcome,
		Details:   details,
	}
}
