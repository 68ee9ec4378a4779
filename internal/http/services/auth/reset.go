package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

// ForgotPassword arranca el flujo de reset. La respuesta es la misma exista o
// no la cuenta; sólo el rate limit por email puede diferenciarse (429).
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string, meta RequestMeta) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("forgot_password"))
	emailAddr = normalizeEmail(emailAddr)
	now := s.now().UTC()

	if s.deps.ResetLimiter != nil {
		res, err := s.deps.ResetLimiter.Allow(ctx, "reset-email:"+emailAddr)
		if err != nil {
			log.Warn("reset limiter no disponible", logger.Err(err))
		} else if !res.Allowed {
			metrics.RateLimited.WithLabelValues("reset_email").Inc()
			return apperrors.RateLimited
		}
	}

	a, err := s.deps.Store.GetAdminByEmail(ctx, emailAddr)
	if err != nil || !a.IsActive {
		// Silencio deliberado: mismo desenlace que el caso exitoso.
		return nil
	}

	// Un solo reset usable por admin: los anteriores quedan invalidados.
	if _, err := s.deps.Store.InvalidatePasswordResets(ctx, a.ID, now); err != nil {
		log.Error("invalidar resets previos", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}

	plain, err := tokens.GenerateOpaqueToken(linkTokenBytes)
	if err != nil {
		return apperrors.Internal.WithErr(err)
	}
	reset := &core.PasswordReset{
		ID:        uuid.NewString(),
		AdminID:   a.ID,
		TokenHash: tokens.SHA256Base64URL(plain),
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := s.deps.Store.CreatePasswordReset(ctx, reset); err != nil {
		log.Error("crear password reset", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}

	if err := s.deps.Mailer.SendPasswordReset(ctx, a.Email, a.FirstName, s.resetLink(plain), resetTokenTTL); err != nil {
		log.Error("enviar correo de reset", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}
	metrics.EmailsSent.WithLabelValues("reset").Inc()
	metrics.PasswordResets.WithLabelValues("requested").Inc()

	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventPasswordResetRequest, meta, core.OutcomeSuccess, nil))
	return nil
}

// PreviewReset valida un enlace de reset sin consumirlo.
func (s *Service) PreviewReset(ctx context.Context, token string) (string, error) {
	t, a, err := s.deps.Store.GetPasswordResetByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return "", apperrors.TokenInvalid
	}
	if t.UsedAt != nil || !s.now().UTC().Before(t.ExpiresAt) {
		return "", apperrors.TokenInvalid
	}
	return a.Email, nil
}

// ResetPassword consume el token, cambia el password y revoca todas las
// sesiones del admin.
func (s *Service) ResetPassword(ctx context.Context, token, plainPassword string, meta RequestMeta) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("reset_password"))
	now := s.now().UTC()

	t, a, err := s.deps.Store.GetPasswordResetByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return apperrors.TokenInvalid
	}
	if t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return apperrors.TokenInvalid
	}

	if ok, reasons := s.deps.PasswordPolicy.Validate(plainPassword); !ok {
		return apperrors.InvalidInput.WithDetail("password: " + strings.Join(reasons, ", "))
	}
	hash, err := password.Hash(s.deps.HashParams, plainPassword)
	if err != nil {
		return apperrors.Internal.WithErr(err)
	}

	revoked, err := s.deps.Store.CompletePasswordReset(ctx, t.ID, a.ID, hash, now)
	if err != nil {
		if errors.Is(err, core.ErrTokenConsumed) {
			return apperrors.TokenInvalid
		}
		log.Error("completar reset", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}

	metrics.PasswordResets.WithLabelValues("completed").Inc()
	if revoked > 0 {
		metrics.SessionsRevoked.WithLabelValues("password_reset").Add(float64(revoked))
	}
	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventPasswordResetComplete, meta, core.OutcomeSuccess, map[string]any{
		"sessions_revoked": revoked,
	}))

	if a.NotifyPasswordChange {
		if err := s.deps.Mailer.SendPasswordChangedNotice(ctx, a.Email, a.FirstName); err != nil {
			log.Warn("aviso de cambio de password no enviado", logger.Err(err))
		} else {
			metrics.EmailsSent.WithLabelValues("password_changed").Inc()
		}
	}
	log.Info("password restablecido", logger.AdminID(a.ID), logger.Count(revoked))
	return nil
}
