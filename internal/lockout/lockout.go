// Package lockout implementa la política de bloqueo de cuentas por intentos
// de login fallidos: umbral con ventana fija y escalamiento a 24h.
package lockout

import (
	"context"
	"time"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

type Policy struct {
	Threshold         int           // fallos que disparan el bloqueo corto
	LockDuration      time.Duration // duración del bloqueo corto
	EscalateAt        int           // fallos que disparan el bloqueo largo
	EscalatedDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold:         5,
		LockDuration:      30 * time.Minute,
		EscalateAt:        10,
		EscalatedDuration: 24 * time.Hour,
	}
}

// Result informa el estado posterior a registrar un fallo.
type Result struct {
	Attempts    int
	Locked      bool
	JustLocked  bool // este fallo fue el que cruzó el umbral
	LockedUntil time.Time
}

type Service struct {
	store  core.Repository
	policy Policy
	now    func() time.Time
}

func New(store core.Repository, policy Policy) *Service {
	return &Service{store: store, policy: policy, now: time.Now}
}

// IsLocked es un chequeo puro de reloj: bloqueado sii lockedUntil está en el
// futuro. Las ventanas vencidas no requieren limpieza previa.
func IsLocked(a *core.Admin, now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// RegisterFailure incrementa el contador de forma atómica y aplica la política
// sobre el valor resultante. JustLocked distingue el request que cruzó el
// umbral (dispara la notificación) de los que llegan con la cuenta ya
// bloqueada.
func (s *Service) RegisterFailure(ctx context.Context, adminID string) (Result, error) {
	attempts, err := s.store.IncrementFailedLogin(ctx, adminID)
	if err != nil {
		return Result{}, err
	}

	res := Result{Attempts: attempts}
	now := s.now().UTC()

	switch {
	case attempts == s.policy.EscalateAt:
		res.Locked = true
		res.JustLocked = true
		res.LockedUntil = now.Add(s.policy.EscalatedDuration)
	case attempts > s.policy.EscalateAt:
		res.Locked = true
		res.LockedUntil = now.Add(s.policy.EscalatedDuration)
	case attempts == s.policy.Threshold:
		res.Locked = true
		res.JustLocked = true
		res.LockedUntil = now.Add(s.policy.LockDuration)
	case attempts > s.policy.Threshold:
		res.Locked = true
		res.LockedUntil = now.Add(s.policy.LockDuration)
	}

	if res.Locked {
		if err := s.store.SetLock(ctx, adminID, res.LockedUntil); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// Reset limpia contador y bloqueo tras un login exitoso.
func (s *Service) Reset(ctx context.Context, adminID string) error {
	return s.store.ResetLoginAttempts(ctx, adminID)
}
