package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

func (s *Store) CreateActivationToken(ctx context.Context, t *core.ActivationToken) error {
	const q = `
INSERT INTO activation_token (id, admin_id, token_hash, expires_at, used_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, q, t.ID, t.AdminID, t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt)
	return mapPgError(err)
}

func (s *Store) GetActivationTokenByHash(ctx context.Context, tokenHash string) (*core.ActivationToken, *core.Admin, error) {
	const q = `
SELECT id, admin_id, token_hash, expires_at, used_at, created_at
  FROM activation_token
 WHERE token_hash = $1`

	var t core.ActivationToken
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(&t.ID, &t.AdminID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, nil, mapPgError(err)
	}
	a, err := s.GetAdminByID(ctx, t.AdminID)
	if err != nil {
		return nil, nil, err
	}
	return &t, a, nil
}

// ActivateAdmin consume el token y activa la cuenta en una transacción. El
// UPDATE condicional sobre used_at es el lock: si no afecta filas, otro
// request ya consumió el token.
func (s *Store) ActivateAdmin(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	const markUsed = `
UPDATE activation_token SET used_at = $2
 WHERE id = $1 AND used_at IS NULL`
	ct, err := tx.Exec(ctx, markUsed, tokenID, at)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrTokenConsumed
	}

	const activate = `
UPDATE admin
   SET password_hash = $2,
       is_active = TRUE,
       email_verified = TRUE,
       failed_login_attempts = 0,
       locked_until = NULL,
       updated_at = NOW()
 WHERE id = $1`
	if _, err := tx.Exec(ctx, activate, adminID, passwordHash); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func (s *Store) CreatePasswordReset(ctx context.Context, t *core.PasswordReset) error {
	const q = `
INSERT INTO password_reset (id, admin_id, token_hash, expires_at, used_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, q, t.ID, t.AdminID, t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt)
	return mapPgError(err)
}

func (s *Store) GetPasswordResetByHash(ctx context.Context, tokenHash string) (*core.PasswordReset, *core.Admin, error) {
	const q = `
SELECT id, admin_id, token_hash, expires_at, used_at, created_at
  FROM password_reset
 WHERE token_hash = $1`

	var t core.PasswordReset
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(&t.ID, &t.AdminID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, nil, mapPgError(err)
	}
	a, err := s.GetAdminByID(ctx, t.AdminID)
	if err != nil {
		return nil, nil, err
	}
	return &t, a, nil
}

func (s *Store) InvalidatePasswordResets(ctx context.Context, adminID string, at time.Time) (int, error) {
	const q = `
UPDATE password_reset SET used_at = $2
 WHERE admin_id = $1 AND used_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, adminID, at)
	if err != nil {
		return 0, mapPgError(err)
	}
	return int(ct.RowsAffected()), nil
}

// CompletePasswordReset consume el token, cambia el password y revoca todas
// las sesiones del admin en una transacción.
func (s *Store) CompletePasswordReset(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, mapPgError(err)
	}
	defer tx.Rollback(ctx)

	const markUsed = `
UPDATE password_reset SET used_at = $2
 WHERE id = $1 AND used_at IS NULL`
	ct, err := tx.Exec(ctx, markUsed, tokenID, at)
	if err != nil {
		return 0, mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return 0, core.ErrTokenConsumed
	}

	const setPassword = `
UPDATE admin
   SET password_hash = $2,
       failed_login_attempts = 0,
       locked_until = NULL,
       updated_at = NOW()
 WHERE id = $1`
	if _, err := tx.Exec(ctx, setPassword, adminID, passwordHash); err != nil {
		return 0, mapPgError(err)
	}

	const revokeAll = `
UPDATE admin_session SET revoked_at = $2
 WHERE admin_id = $1 AND revoked_at IS NULL AND expires_at > $2`
	rct, err := tx.Exec(ctx, revokeAll, adminID, at)
	if err != nil {
		return 0, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapPgError(err)
	}
	return int(rct.RowsAffected()), nil
}

// CreateEmailOTP invalida los OTP vivos del admin antes de insertar el nuevo,
// en transacción, para que nunca haya dos códigos usables a la vez.
func (s *Store) CreateEmailOTP(ctx context.Context, otp *core.EmailOTP) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	const invalidate = `
UPDATE email_otp SET used_at = $2
 WHERE admin_id = $1 AND used_at IS NULL`
	if _, err := tx.Exec(ctx, invalidate, otp.AdminID, otp.CreatedAt); err != nil {
		return mapPgError(err)
	}

	const insert = `
INSERT INTO email_otp (id, admin_id, code_hash, attempts, expires_at, used_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.Exec(ctx, insert, otp.ID, otp.AdminID, otp.CodeHash, otp.Attempts, otp.ExpiresAt, otp.UsedAt, otp.CreatedAt); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func (s *Store) GetLatestEmailOTP(ctx context.Context, adminID string, now time.Time) (*core.EmailOTP, error) {
	const q = `
SELECT id, admin_id, code_hash, attempts, expires_at, used_at, created_at
  FROM email_otp
 WHERE admin_id = $1 AND used_at IS NULL AND expires_at > $2
 ORDER BY created_at DESC
 LIMIT 1`

	var o core.EmailOTP
	err := s.pool.QueryRow(ctx, q, adminID, now).Scan(&o.ID, &o.AdminID, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.UsedAt, &o.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &o, nil
}

func (s *Store) IncrementEmailOTPAttempts(ctx context.Context, otpID string) (int, error) {
	const q = `
UPDATE email_otp SET attempts = attempts + 1
 WHERE id = $1
RETURNING attempts`

	var attempts int
	if err := s.pool.QueryRow(ctx, q, otpID).Scan(&attempts); err != nil {
		return 0, mapPgError(err)
	}
	return attempts, nil
}

func (s *Store) ConsumeEmailOTP(ctx context.Context, otpID string, at time.Time) error {
	const q = `
UPDATE email_otp SET used_at = $2
 WHERE id = $1 AND used_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, otpID, at)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrTokenConsumed
	}
	return nil
}
