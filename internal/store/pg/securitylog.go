package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

func (s *Store) AppendSecurityLog(ctx context.Context, e *core.SecurityLog) error {
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("pg: marshal details: %w", err)
		}
		details = b
	}

	const q = `
INSERT INTO security_log (id, admin_id, event_type, ip, user_agent, location, outcome, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.pool.Exec(ctx, q,
		e.ID, e.AdminID, e.EventType, e.IP, e.UserAgent, e.Location, e.Outcome, details, e.CreatedAt,
	)
	return mapPgError(err)
}

func (s *Store) ListSecurityLog(ctx context.Context, adminID *string, limit int) ([]core.SecurityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, admin_id, event_type, ip, user_agent, location, outcome, details, created_at
  FROM security_log
 WHERE ($1::text IS NULL OR admin_id = $1)
 ORDER BY created_at DESC
 LIMIT $2`

	rows, err := s.pool.Query(ctx, q, adminID, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []core.SecurityLog
	for rows.Next() {
		var e core.SecurityLog
		var details []byte
		err := rows.Scan(&e.ID, &e.AdminID, &e.EventType, &e.IP, &e.UserAgent, &e.Location, &e.Outcome, &details, &e.CreatedAt)
		if err != nil {
			return nil, mapPgError(err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("pg: unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, mapPgError(rows.Err())
}
