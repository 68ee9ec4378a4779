// Package auth orquesta los flujos de autenticación: login con lockout y
// 2FA, activación de cuentas, reset de contraseña y alta por invitación.
package auth

import (
	"strings"
	"time"

	"github.com/dropDatabas3/adminauth/internal/audit"
	"github.com/dropDatabas3/adminauth/internal/email"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/rate"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/twofactor"
)

const (
	activationTokenTTL = 24 * time.Hour
	resetTokenTTL      = time.Hour
	linkTokenBytes     = 32
)

// Deps agrupa las dependencias del servicio; el cableado vive en cmd.
type Deps struct {
	Store     core.Repository
	Lockout   *lockout.Service
	TwoFactor *twofactor.Service
	Sessions  *session.Manager
	Mailer    *email.Mailer
	Audit     *audit.Recorder

	// ResetLimiter limita pedidos de reset por email normalizado; el límite
	// por IP lo aplica el middleware.
	ResetLimiter rate.Limiter

	PasswordPolicy password.Policy
	HashParams     password.Params
	TempTokenKey   []byte
	BaseURL        string
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

// TTLs de sesión, para que el controller arme cookies coherentes con los
// tokens que emite el manager.
func (s *Service) AccessTTL() time.Duration  { return s.deps.Sessions.AccessTTL() }
func (s *Service) RefreshTTL() time.Duration { return s.deps.Sessions.RefreshTTL() }

// RequestMeta es la metadata del request que acompaña cada operación.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func (s *Service) activationLink(token string) string {
	return s.deps.BaseURL + "/admin-auth/activate?token=" + token
}

func (s *Service) resetLink(token string) string {
	return s.deps.BaseURL + "/admin-auth/reset-password?token=" + token
}
