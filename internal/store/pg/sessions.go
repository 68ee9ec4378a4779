package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

const sessionColumns = `
	id, admin_id, refresh_token_hash, ip, user_agent, device, browser, os, location,
	created_at, last_seen_at, expires_at, revoked_at`

func scanSession(row pgx.Row) (*core.Session, error) {
	var sn core.Session
	err := row.Scan(
		&sn.ID, &sn.AdminID, &sn.RefreshTokenHash, &sn.IP, &sn.UserAgent,
		&sn.Device, &sn.Browser, &sn.OS, &sn.Location,
		&sn.CreatedAt, &sn.LastSeenAt, &sn.ExpiresAt, &sn.RevokedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &sn, nil
}

func (s *Store) CreateSession(ctx context.Context, sn *core.Session) error {
	const q = `
INSERT INTO admin_session (
	id, admin_id, refresh_token_hash, ip, user_agent, device, browser, os, location,
	created_at, last_seen_at, expires_at, revoked_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, q,
		sn.ID, sn.AdminID, sn.RefreshTokenHash, sn.IP, sn.UserAgent,
		sn.Device, sn.Browser, sn.OS, sn.Location,
		sn.CreatedAt, sn.LastSeenAt, sn.ExpiresAt, sn.RevokedAt,
	)
	return mapPgError(err)
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM admin_session WHERE id = $1`
	return scanSession(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetSessionByRefreshHash(ctx context.Context, refreshHash string) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM admin_session WHERE refresh_token_hash = $1`
	return scanSession(s.pool.QueryRow(ctx, q, refreshHash))
}

func (s *Store) ListActiveSessions(ctx context.Context, adminID string, now time.Time) ([]core.Session, error) {
	q := `SELECT ` + sessionColumns + `
  FROM admin_session
 WHERE admin_id = $1 AND revoked_at IS NULL AND expires_at > $2
 ORDER BY last_seen_at DESC`

	rows, err := s.pool.Query(ctx, q, adminID, now)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []core.Session
	for rows.Next() {
		sn, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sn)
	}
	return out, mapPgError(rows.Err())
}

func (s *Store) RotateSessionTokens(ctx context.Context, sessionID, refreshHash, ip, userAgent string, lastSeen, expiresAt time.Time) error {
	const q = `
UPDATE admin_session
   SET refresh_token_hash = $2, ip = $3, user_agent = $4, last_seen_at = $5, expires_at = $6
 WHERE id = $1 AND revoked_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, sessionID, refreshHash, ip, userAgent, lastSeen, expiresAt)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID string, lastSeen time.Time) error {
	const q = `UPDATE admin_session SET last_seen_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, sessionID, lastSeen)
	return mapPgError(err)
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	const q = `
UPDATE admin_session SET revoked_at = $2
 WHERE id = $1 AND revoked_at IS NULL`
	ct, err := s.pool.Exec(ctx, q, sessionID, at)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) RevokeAllSessions(ctx context.Context, adminID string, exceptID *string, at time.Time) (int, error) {
	const q = `
UPDATE admin_session SET revoked_at = $2
 WHERE admin_id = $1
   AND revoked_at IS NULL
   AND expires_at > $2
   AND ($3::text IS NULL OR id <> $3)`
	ct, err := s.pool.Exec(ctx, q, adminID, at, exceptID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return int(ct.RowsAffected()), nil
}
