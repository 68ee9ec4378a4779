package core

import "time"

// Role es el rol de un administrador. Conjunto cerrado.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleViewer     Role = "VIEWER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleViewer:
		return true
	}
	return false
}

// TwoFactorMethod es el método 2FA configurado.
type TwoFactorMethod string

const (
	TwoFactorNone  TwoFactorMethod = "NONE"
	TwoFactorTOTP  TwoFactorMethod = "TOTP"
	TwoFactorEmail TwoFactorMethod = "EMAIL"
)

// Admin es un registro de administrador del back office.
type Admin struct {
	ID           string
	Email        string // único, normalizado a minúsculas
	PasswordHash *string // nil hasta la activación
	FirstName    string
	LastName     string
	OrgUnit      string // unidad organizacional (empresa del grupo)
	Role         Role

	IsActive      bool
	EmailVerified bool

	TwoFactorEnabled bool
	TwoFactorMethod  TwoFactorMethod
	TwoFactorSecret  *string  // secreto TOTP cifrado (secretbox), nil si no aplica
	BackupCodes      []string // hashes sha256 de códigos de respaldo sin consumir
	TOTPLastCounter  *int64   // último time-step TOTP aceptado (anti-replay)

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time

	NotifyFailedLogin    bool
	NotifyPasswordChange bool

	CreatedBy *string // admin que lo invitó, nil para cuentas migradas
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session representa una instancia autenticada (dispositivo/browser).
type Session struct {
	ID               string
	AdminID          string
	RefreshTokenHash string // sha256 del refresh token; el plaintext nunca se persiste
	IP               string
	UserAgent        string
	Device           string
	Browser          string
	OS               string
	Location         *string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// Active informa si la sesión sigue usable en el instante dado.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// ActivationToken es un token de un solo uso para setear el password inicial.
type ActivationToken struct {
	ID        string
	AdminID   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time // nil = sin consumir
	CreatedAt time.Time
}

// PasswordReset es un token de un solo uso para restablecer el password.
type PasswordReset struct {
	ID        string
	AdminID   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EmailOTP es un código de un solo uso enviado por email para completar 2FA.
type EmailOTP struct {
	ID        string
	AdminID   string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EventType enumera los eventos de seguridad auditables.
type EventType string

const (
	EventLogin                 EventType = "LOGIN"
	EventFailedLogin           EventType = "FAILED_LOGIN"
	EventBlocked               EventType = "BLOCKED"
	EventAccountCreated        EventType = "ACCOUNT_CREATED"
	EventAccountActivated      EventType = "ACCOUNT_ACTIVATED"
	EventPasswordResetRequest  EventType = "PASSWORD_RESET_REQUEST"
	EventPasswordResetComplete EventType = "PASSWORD_RESET_COMPLETE"
	EventTwoFactorVerified     EventType = "TWO_FACTOR_VERIFIED"
	EventSessionKilled         EventType = "SESSION_KILLED"
	EventRoleChanged           EventType = "ROLE_CHANGED"
)

// Outcome es el resultado de un evento de seguridad.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeBlocked Outcome = "BLOCKED"
)

// SecurityLog es una fila append-only del log de seguridad.
// AdminID es nullable para que borrar un admin no borre su historial.
type SecurityLog struct {
	ID        string
	AdminID   *string
	EventType EventType
	IP        string
	UserAgent string
	Location  *string
	Outcome   Outcome
	Details   map[string]any
	CreatedAt time.Time
}
