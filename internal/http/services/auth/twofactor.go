package auth

import (
	"context"
	"errors"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/twofactor"
)

// Verify2FA completa el login pendiente: valida el temp token firmado y el
// código del segundo factor, y recién ahí emite la sesión.
func (s *Service) Verify2FA(ctx context.Context, tempToken, code string, useBackup bool, meta RequestMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("verify_2fa"))
	now := s.now().UTC()

	adminID, err := tokens.VerifyTempToken(s.deps.TempTokenKey, tempToken, now)
	if err != nil {
		// Inválido y expirado responden igual: el cliente sólo necesita
		// saber que tiene que volver a loguearse.
		return nil, apperrors.TwoFactorFailed
	}

	a, err := s.deps.Store.GetAdminByID(ctx, adminID)
	if err != nil {
		return nil, apperrors.TwoFactorFailed
	}
	if !a.IsActive {
		return nil, apperrors.AccountNotActivated
	}
	if lockout.IsLocked(a, now) {
		return nil, apperrors.AccountLocked
	}
	if !a.TwoFactorEnabled {
		// El método se deshabilitó entre el login y la verificación.
		return nil, apperrors.TwoFactorFailed
	}

	method := "backup"
	if !useBackup {
		method = string(a.TwoFactorMethod)
	}

	if err := s.deps.TwoFactor.Verify(ctx, a, code, useBackup); err != nil {
		switch {
		case errors.Is(err, twofactor.ErrCodeInvalid),
			errors.Is(err, twofactor.ErrCodeExpired),
			errors.Is(err, twofactor.ErrTooManyAttempts),
			errors.Is(err, twofactor.ErrNotConfigured):
			metrics.TwoFactorVerifications.WithLabelValues(method, "failed").Inc()
			s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventTwoFactorVerified, meta, core.OutcomeFailed, map[string]any{
				"method": method,
			}))
			return nil, apperrors.TwoFactorFailed
		default:
			log.Error("verificación 2fa", logger.Err(err))
			return nil, apperrors.Internal.WithErr(err)
		}
	}

	metrics.TwoFactorVerifications.WithLabelValues(method, "success").Inc()
	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventTwoFactorVerified, meta, core.OutcomeSuccess, map[string]any{
		"method": method,
	}))

	return s.openSession(ctx, a, meta)
}
