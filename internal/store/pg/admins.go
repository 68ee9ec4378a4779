package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

const adminColumns = `
	id, email, password_hash, first_name, last_name, org_unit, role,
	is_active, email_verified,
	two_factor_enabled, two_factor_method, two_factor_secret, backup_codes, totp_last_counter,
	failed_login_attempts, locked_until, last_login_at,
	notify_failed_login, notify_password_change,
	created_by, created_at, updated_at`

func scanAdmin(row pgx.Row) (*core.Admin, error) {
	var a core.Admin
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.OrgUnit, &a.Role,
		&a.IsActive, &a.EmailVerified,
		&a.TwoFactorEnabled, &a.TwoFactorMethod, &a.TwoFactorSecret, &a.BackupCodes, &a.TOTPLastCounter,
		&a.FailedLoginAttempts, &a.LockedUntil, &a.LastLoginAt,
		&a.NotifyFailedLogin, &a.NotifyPasswordChange,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &a, nil
}

func (s *Store) CreateAdmin(ctx context.Context, a *core.Admin) error {
	const q = `
INSERT INTO admin (
	id, email, password_hash, first_name, last_name, org_unit, role,
	is_active, email_verified,
	two_factor_enabled, two_factor_method, two_factor_secret, backup_codes, totp_last_counter,
	failed_login_attempts, locked_until, last_login_at,
	notify_failed_login, notify_password_change,
	created_by, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`

	_, err := s.pool.Exec(ctx, q,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.OrgUnit, a.Role,
		a.IsActive, a.EmailVerified,
		a.TwoFactorEnabled, a.TwoFactorMethod, a.TwoFactorSecret, a.BackupCodes, a.TOTPLastCounter,
		a.FailedLoginAttempts, a.LockedUntil, a.LastLoginAt,
		a.NotifyFailedLogin, a.NotifyPasswordChange,
		a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	return mapPgError(err)
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*core.Admin, error) {
	q := `SELECT ` + adminColumns + ` FROM admin WHERE email = $1`
	return scanAdmin(s.pool.QueryRow(ctx, q, email))
}

func (s *Store) GetAdminByID(ctx context.Context, id string) (*core.Admin, error) {
	q := `SELECT ` + adminColumns + ` FROM admin WHERE id = $1`
	return scanAdmin(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	q := `SELECT ` + adminColumns + ` FROM admin ORDER BY role ASC, created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var admins []core.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *a)
	}
	return admins, mapPgError(rows.Err())
}

func (s *Store) SetRole(ctx context.Context, adminID string, role core.Role) error {
	const q = `UPDATE admin SET role = $2, updated_at = NOW() WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, adminID, role)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetLastLogin(ctx context.Context, adminID string, at time.Time) error {
	const q = `UPDATE admin SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID, at)
	return mapPgError(err)
}

func (s *Store) IncrementFailedLogin(ctx context.Context, adminID string) (int, error) {
	const q = `
UPDATE admin
   SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
 WHERE id = $1
RETURNING failed_login_attempts`

	var attempts int
	if err := s.pool.QueryRow(ctx, q, adminID).Scan(&attempts); err != nil {
		return 0, mapPgError(err)
	}
	return attempts, nil
}

func (s *Store) SetLock(ctx context.Context, adminID string, until time.Time) error {
	const q = `UPDATE admin SET locked_until = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID, until)
	return mapPgError(err)
}

func (s *Store) ResetLoginAttempts(ctx context.Context, adminID string) error {
	const q = `
UPDATE admin
   SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID)
	return mapPgError(err)
}

// DeleteAdmin borra en cascada sesiones y tokens (FK ON DELETE CASCADE) y
// deja el historial de security_log con admin_id NULL (FK ON DELETE SET NULL).
func (s *Store) DeleteAdmin(ctx context.Context, adminID string) error {
	const q = `DELETE FROM admin WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q, adminID)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetTwoFactor(ctx context.Context, adminID string, enabled bool, method core.TwoFactorMethod, encryptedSecret *string, backupCodeHashes []string) error {
	const q = `
UPDATE admin
   SET two_factor_enabled = $2,
       two_factor_method = $3,
       two_factor_secret = $4,
       backup_codes = $5,
       totp_last_counter = NULL,
       updated_at = NOW()
 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID, enabled, method, encryptedSecret, backupCodeHashes)
	return mapPgError(err)
}

func (s *Store) SetTOTPLastCounter(ctx context.Context, adminID string, counter int64) error {
	// GREATEST evita que un request lento retroceda el contador anti-replay.
	const q = `
UPDATE admin
   SET totp_last_counter = GREATEST(COALESCE(totp_last_counter, 0), $2), updated_at = NOW()
 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID, counter)
	return mapPgError(err)
}

func (s *Store) SetBackupCodes(ctx context.Context, adminID string, codeHashes []string) error {
	const q = `UPDATE admin SET backup_codes = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, adminID, codeHashes)
	return mapPgError(err)
}

// ConsumeBackupCode remueve el hash del array sólo si está presente; el
// RowsAffected distingue "consumido" de "no existía / ya usado".
func (s *Store) ConsumeBackupCode(ctx context.Context, adminID, codeHash string) (bool, error) {
	const q = `
UPDATE admin
   SET backup_codes = array_remove(backup_codes, $2), updated_at = NOW()
 WHERE id = $1 AND $2 = ANY(backup_codes)`
	ct, err := s.pool.Exec(ctx, q, adminID, codeHash)
	if err != nil {
		return false, mapPgError(err)
	}
	return ct.RowsAffected() > 0, nil
}
