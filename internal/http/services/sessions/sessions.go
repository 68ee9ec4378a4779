// Package sessions expone la gestión de sesiones del admin autenticado:
// listado, cierre puntual, cierre masivo, logout y refresh.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/adminauth/internal/audit"
	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/metrics"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

type Deps struct {
	Manager *session.Manager
	Audit   *audit.Recorder
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

func (s *Service) AccessTTL() time.Duration  { return s.deps.Manager.AccessTTL() }
func (s *Service) RefreshTTL() time.Duration { return s.deps.Manager.RefreshTTL() }

type RequestMeta struct {
	IP        string
	UserAgent string
}

// List devuelve las sesiones activas del admin con el flag de sesión actual.
func (s *Service) List(ctx context.Context, adminID, currentSessionID string) ([]session.SessionView, error) {
	views, err := s.deps.Manager.ListActive(ctx, adminID, currentSessionID)
	if err != nil {
		return nil, apperrors.Internal.WithErr(err)
	}
	return views, nil
}

// Kill revoca una sesión puntual del propio admin.
func (s *Service) Kill(ctx context.Context, adminID, sessionID string, meta RequestMeta) error {
	if err := s.deps.Manager.Invalidate(ctx, adminID, sessionID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return apperrors.NotFound
		}
		return apperrors.Internal.WithErr(err)
	}
	metrics.SessionsRevoked.WithLabelValues("kill").Inc()
	s.deps.Audit.Record(ctx, audit.Event{
		AdminID:   &adminID,
		Type:      core.EventSessionKilled,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Outcome:   core.OutcomeSuccess,
		Details:   map[string]any{"session_id": sessionID},
	})
	return nil
}

// KillAll revoca todas las sesiones salvo la actual.
func (s *Service) KillAll(ctx context.Context, adminID, currentSessionID string, meta RequestMeta) (int, error) {
	n, err := s.deps.Manager.InvalidateAll(ctx, adminID, &currentSessionID)
	if err != nil {
		return 0, apperrors.Internal.WithErr(err)
	}
	if n > 0 {
		metrics.SessionsRevoked.WithLabelValues("kill_all").Add(float64(n))
	}
	s.deps.Audit.Record(ctx, audit.Event{
		AdminID:   &adminID,
		Type:      core.EventSessionKilled,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Outcome:   core.OutcomeSuccess,
		Details:   map[string]any{"revoked": n, "scope": "all_except_current"},
	})
	logger.From(ctx).Info("sesiones cerradas en bloque", logger.AdminID(adminID), logger.Count(n))
	return n, nil
}

// Logout revoca la sesión dueña del refresh token. Idempotente.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.deps.Manager.Logout(ctx, refreshToken); err != nil {
		return apperrors.Internal.WithErr(err)
	}
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()
	return nil
}

// Refresh rota el refresh token y emite un access nuevo.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*core.Session, *session.TokenPair, error) {
	sn, pair, err := s.deps.Manager.Refresh(ctx, refreshToken, meta.IP, meta.UserAgent)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenInvalid), errors.Is(err, session.ErrSessionRevoked):
			return nil, nil, apperrors.Unauthorized
		default:
			return nil, nil, apperrors.Internal.WithErr(err)
		}
	}
	return sn, pair, nil
}
