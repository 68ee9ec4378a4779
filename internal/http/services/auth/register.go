package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

// RegisterInput es el alta por invitación. La cuenta nace sin password y
// desactivada; el invitado la activa desde el enlace del correo.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	OrgUnit   string
	Role      core.Role
	CreatedBy string // admin autenticado que invita
}

// Register crea la cuenta invitada y despacha el correo de activación.
// Restringido a SUPER_ADMIN a nivel de router.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*core.Admin, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op("register"))
	now := s.now().UTC()

	role := in.Role
	if role == "" {
		role = core.RoleAdmin
	}
	if !role.Valid() {
		return nil, apperrors.InvalidInput.WithDetail("role desconocido")
	}

	a := &core.Admin{
		ID:                   uuid.NewString(),
		Email:                normalizeEmail(in.Email),
		FirstName:            in.FirstName,
		LastName:             in.LastName,
		OrgUnit:              in.OrgUnit,
		Role:                 role,
		TwoFactorMethod:      core.TwoFactorNone,
		NotifyFailedLogin:    true,
		NotifyPasswordChange: true,
		CreatedBy:            &in.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.deps.Store.CreateAdmin(ctx, a); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, apperrors.Conflict.WithDetail("ya existe un administrador con ese email")
		}
		log.Error("crear admin", logger.Err(err))
		return nil, apperrors.Internal.WithErr(err)
	}

	plain, err := tokens.GenerateOpaqueToken(linkTokenBytes)
	if err != nil {
		return nil, apperrors.Internal.WithErr(err)
	}
	t := &core.ActivationToken{
		ID:        uuid.NewString(),
		AdminID:   a.ID,
		TokenHash: tokens.SHA256Base64URL(plain),
		ExpiresAt: now.Add(activationTokenTTL),
		CreatedAt: now,
	}
	if err := s.deps.Store.CreateActivationToken(ctx, t); err != nil {
		log.Error("crear token de activación", logger.Err(err))
		return nil, apperrors.Internal.WithErr(err)
	}

	if err := s.deps.Mailer.SendActivation(ctx, a.Email, a.FirstName, s.activationLink(plain), activationTokenTTL); err != nil {
		log.Error("enviar correo de activación", logger.Err(err))
		return nil, apperrors.Internal.WithErr(err)
	}
	metrics.EmailsSent.WithLabelValues("activation").Inc()

	s.deps.Audit.Record(ctx, auditEvent(&a.ID, core.EventAccountCreated, meta, core.OutcomeSuccess, map[string]any{
		"created_by": in.CreatedBy, "role": string(role),
	}))
	log.Info("admin invitado", logger.AdminID(a.ID), logger.Email(a.Email))
	return a, nil
}

// ListAdmins devuelve todas las cuentas. Restringido a SUPER_ADMIN a nivel
// de router.
func (s *Service) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	admins, err := s.deps.Store.ListAdmins(ctx)
	if err != nil {
		return nil, apperrors.Internal.WithErr(err)
	}
	return admins, nil
}

// UpdateRole cambia el rol de un admin. Las cuentas SUPER_ADMIN no se tocan
// desde la API, ni siquiera entre pares.
func (s *Service) UpdateRole(ctx context.Context, targetID string, role core.Role, requesterID string, meta RequestMeta) (*core.Admin, error) {
	if role != core.RoleAdmin && role != core.RoleViewer {
		return nil, apperrors.InvalidInput.WithDetail("role debe ser ADMIN o VIEWER")
	}
	target, err := s.deps.Store.GetAdminByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, apperrors.NotFound
		}
		return nil, apperrors.Internal.WithErr(err)
	}
	if target.Role == core.RoleSuperAdmin {
		return nil, apperrors.Forbidden.WithDetail("no se puede modificar un SUPER_ADMIN")
	}
	if err := s.deps.Store.SetRole(ctx, targetID, role); err != nil {
		return nil, apperrors.Internal.WithErr(err)
	}
	s.deps.Audit.Record(ctx, auditEvent(&target.ID, core.EventRoleChanged, meta, core.OutcomeSuccess, map[string]any{
		"changed_by": requesterID, "from": string(target.Role), "to": string(role),
	}))
	logger.From(ctx).Info("rol actualizado",
		logger.Layer("service"), logger.Component("auth"), logger.Op("update_role"),
		logger.AdminID(targetID), logger.String("role", string(role)))
	target.Role = role
	return target, nil
}

// DeleteAdmin borra la cuenta en cascada. El security log sobrevive con la
// referencia nuleada. Ni la propia cuenta ni un SUPER_ADMIN son borrables.
func (s *Service) DeleteAdmin(ctx context.Context, targetID, requesterID string) error {
	if targetID == requesterID {
		return apperrors.InvalidInput.WithDetail("no podés borrar tu propia cuenta")
	}
	target, err := s.deps.Store.GetAdminByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return apperrors.NotFound
		}
		return apperrors.Internal.WithErr(err)
	}
	if target.Role == core.RoleSuperAdmin {
		return apperrors.Forbidden.WithDetail("no se puede borrar un SUPER_ADMIN")
	}
	if err := s.deps.Store.DeleteAdmin(ctx, targetID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return apperrors.NotFound
		}
		return apperrors.Internal.WithErr(err)
	}
	logger.From(ctx).Info("admin eliminado",
		logger.Layer("service"), logger.Component("auth"), logger.Op("delete_admin"),
		logger.AdminID(targetID))
	return nil
}
