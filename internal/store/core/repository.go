package core

import (
	"context"
	"time"
)

// Repository es el adaptador de persistencia del subsistema: lookups puntuales
// por clave única y updates condicionales atómicos. Las dos operaciones que
// requieren atomicidad real (incremento/reset del contador de fallos y el
// mark-used de tokens) se modelan como un único update condicional contra el
// store, nunca read-then-write, para cerrar la carrera de dos requests que
// ven el mismo token sin consumir.
type Repository interface {
	Ping(ctx context.Context) error

	// ─── Admins ───
	CreateAdmin(ctx context.Context, a *Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*Admin, error)
	GetAdminByID(ctx context.Context, id string) (*Admin, error)
	SetLastLogin(ctx context.Context, adminID string, at time.Time) error

	// ListAdmins devuelve todos los administradores ordenados por rol y
	// fecha de alta descendente.
	ListAdmins(ctx context.Context) ([]Admin, error)

	// SetRole cambia el rol del admin.
	SetRole(ctx context.Context, adminID string, role Role) error

	// DeleteAdmin borra el admin en cascada (sesiones y tokens incluidos)
	// y nulea la referencia en security_log. Restringido al rol super.
	DeleteAdmin(ctx context.Context, adminID string) error

	// ─── Lockout ───

	// IncrementFailedLogin suma 1 al contador de fallos de forma atómica
	// y devuelve el valor resultante.
	IncrementFailedLogin(ctx context.Context, adminID string) (attempts int, err error)

	// SetLock fija locked_until. Dos requests concurrentes que crucen el
	// umbral setean ventanas casi idénticas; es idempotente en la práctica.
	SetLock(ctx context.Context, adminID string, until time.Time) error

	// ResetLoginAttempts pone el contador en cero y limpia locked_until,
	// incondicionalmente.
	ResetLoginAttempts(ctx context.Context, adminID string) error

	// ─── Tokens de activación ───
	CreateActivationToken(ctx context.Context, t *ActivationToken) error
	GetActivationTokenByHash(ctx context.Context, tokenHash string) (*ActivationToken, *Admin, error)

	// ActivateAdmin consume el token y activa la cuenta (password hash,
	// is_active, email_verified) como unidad atómica: un crash entre ambas
	// escrituras no puede dejar un token usable sin consumir.
	// Devuelve ErrTokenConsumed si el token ya fue usado.
	ActivateAdmin(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) error

	// ─── Password reset ───
	CreatePasswordReset(ctx context.Context, t *PasswordReset) error
	GetPasswordResetByHash(ctx context.Context, tokenHash string) (*PasswordReset, *Admin, error)

	// InvalidatePasswordResets marca como usados todos los resets sin
	// consumir del admin. Devuelve cuántos invalidó.
	InvalidatePasswordResets(ctx context.Context, adminID string, at time.Time) (int, error)

	// CompletePasswordReset consume el token, actualiza el password y revoca
	// todas las sesiones del admin, atómicamente. Devuelve la cantidad de
	// sesiones revocadas, o ErrTokenConsumed si perdió la carrera.
	CompletePasswordReset(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) (sessionsRevoked int, err error)

	// ─── Email OTP ───

	// CreateEmailOTP invalida los OTP previos sin consumir del admin y
	// persiste el nuevo.
	CreateEmailOTP(ctx context.Context, otp *EmailOTP) error
	GetLatestEmailOTP(ctx context.Context, adminID string, now time.Time) (*EmailOTP, error)
	IncrementEmailOTPAttempts(ctx context.Context, otpID string) (attempts int, err error)
	ConsumeEmailOTP(ctx context.Context, otpID string, at time.Time) error

	// ─── 2FA settings ───
	SetTwoFactor(ctx context.Context, adminID string, enabled bool, method TwoFactorMethod, encryptedSecret *string, backupCodeHashes []string) error
	SetTOTPLastCounter(ctx context.Context, adminID string, counter int64) error
	SetBackupCodes(ctx context.Context, adminID string, codeHashes []string) error

	// ConsumeBackupCode remueve el hash del set si está presente, de forma
	// atómica. Devuelve false si el código no existía (ya usado o inválido).
	ConsumeBackupCode(ctx context.Context, adminID, codeHash string) (bool, error)

	// ─── Sesiones ───
	CreateSession(ctx context.Context, s *Session) error
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetSessionByRefreshHash(ctx context.Context, refreshHash string) (*Session, error)
	ListActiveSessions(ctx context.Context, adminID string, now time.Time) ([]Session, error)

	// RotateSessionTokens actualiza el refresh hash, metadata y expiración
	// de la sesión (refresh flow).
	RotateSessionTokens(ctx context.Context, sessionID, refreshHash, ip, userAgent string, lastSeen, expiresAt time.Time) error

	TouchSession(ctx context.Context, sessionID string, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAllSessions revoca todas las sesiones activas del admin salvo
	// exceptID (nil = todas). Devuelve cuántas revocó.
	RevokeAllSessions(ctx context.Context, adminID string, exceptID *string, at time.Time) (int, error)

	// ─── Security log ───
	AppendSecurityLog(ctx context.Context, e *SecurityLog) error
	ListSecurityLog(ctx context.Context, adminID *string, limit int) ([]SecurityLog, error)
}
