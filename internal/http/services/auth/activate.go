package auth

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

// PreviewActivation valida un enlace de activación sin consumirlo, para que
// el front sepa si mostrar el formulario. Devuelve el email asociado.
func (s *Service) PreviewActivation(ctx context.Context, token string) (string, error) {
	t, a, err := s.deps.Store.GetActivationTokenByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return "", apperrors.TokenInvalid
	}
	if t.UsedAt != nil || !s.now().UTC().Before(t.ExpiresAt) {
		return "", apperrors.TokenInvalid
	}
	return a.Email, nil
}

// Activate consume el token de activación y deja la cuenta operativa con su
// primer password.
func (s *Service) Activate(ctx context.Context, token, plainPassword string, meta RequestMeta) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("activate"))
	now := s.now().UTC()

	t, a, err := s.deps.Store.GetActivationTokenByHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return apperrors.TokenInvalid
	}
	if t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return apperrors.TokenInvalid
	}
	// Una cuenta ya activa no se reactiva, aunque quede un token vivo.
	if a.IsActive {
		return apperrors.TokenInvalid
	}

	if ok, reasons := s.deps.PasswordPolicy.Validate(plainPassword); !ok {
		return apperrors.InvalidInput.WithDetail("password: " + strings.Join(reasons, ", "))
	}
	hash, err := password.Hash(s.deps.HashParams, plainPassword)
	if err != nil {
		return apperrors.Internal.WithErr(err)
	}

	if err := s.deps.Store.ActivateAdmin(ctx, t.ID, a.ID, hash, now); err != nil {
		if errors.Is(err, core.ErrTokenConsumed) {
			return apperrors.TokenInvalid
		}
		log.Error("activar cuenta", logger.Err(err))
		return apperrors.Internal.WithErr(err)
	}

	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventAccountActivated, meta, core.OutcomeSuccess, nil))
	log.Info("cuenta activada", logger.AdminID(a.ID))
	return nil
}
