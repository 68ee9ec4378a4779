// Package memory implementa core.Repository sobre mapas en memoria. Se usa en
// tests y en modo dev sin Postgres. Un único mutex serializa todo: alcanza
// para reproducir las mismas garantías de atomicidad que los updates
// condicionales del store real.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/adminauth/internal/store/core"
)

type Store struct {
	mu sync.Mutex

	admins      map[string]*core.Admin
	byEmail     map[string]string // email -> adminID
	sessions    map[string]*core.Session
	activations map[string]*core.ActivationToken
	resets      map[string]*core.PasswordReset
	otps        map[string]*core.EmailOTP
	logs        []core.SecurityLog
}

func New() *Store {
	return &Store{
		admins:      make(map[string]*core.Admin),
		byEmail:     make(map[string]string),
		sessions:    make(map[string]*core.Session),
		activations: make(map[string]*core.ActivationToken),
		resets:      make(map[string]*core.PasswordReset),
		otps:        make(map[string]*core.EmailOTP),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func cloneAdmin(a *core.Admin) *core.Admin {
	cp := *a
	cp.BackupCodes = append([]string(nil), a.BackupCodes...)
	return &cp
}

func cloneSession(sn *core.Session) *core.Session {
	cp := *sn
	return &cp
}

// ─── Admins ───

func (s *Store) CreateAdmin(ctx context.Context, a *core.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[a.ID]; ok {
		return core.ErrConflict
	}
	if _, ok := s.byEmail[a.Email]; ok {
		return core.ErrConflict
	}
	s.admins[a.ID] = cloneAdmin(a)
	s.byEmail[a.Email] = a.ID
	return nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneAdmin(s.admins[id]), nil
}

func (s *Store) GetAdminByID(ctx context.Context, id string) (*core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, *cloneAdmin(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SetRole(ctx context.Context, adminID string, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.Role = role
	return nil
}

func (s *Store) SetLastLogin(ctx context.Context, adminID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.LastLoginAt = &at
	a.UpdatedAt = at
	return nil
}

func (s *Store) DeleteAdmin(ctx context.Context, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.byEmail, a.Email)
	delete(s.admins, adminID)
	for id, sn := range s.sessions {
		if sn.AdminID == adminID {
			delete(s.sessions, id)
		}
	}
	for id, t := range s.activations {
		if t.AdminID == adminID {
			delete(s.activations, id)
		}
	}
	for id, t := range s.resets {
		if t.AdminID == adminID {
			delete(s.resets, id)
		}
	}
	for id, o := range s.otps {
		if o.AdminID == adminID {
			delete(s.otps, id)
		}
	}
	for i := range s.logs {
		if s.logs[i].AdminID != nil && *s.logs[i].AdminID == adminID {
			s.logs[i].AdminID = nil
		}
	}
	return nil
}

// ─── Lockout ───

func (s *Store) IncrementFailedLogin(ctx context.Context, adminID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return 0, core.ErrNotFound
	}
	a.FailedLoginAttempts++
	return a.FailedLoginAttempts, nil
}

func (s *Store) SetLock(ctx context.Context, adminID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.LockedUntil = &until
	return nil
}

func (s *Store) ResetLoginAttempts(ctx context.Context, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	return nil
}

// ─── Tokens de activación ───

func (s *Store) CreateActivationToken(ctx context.Context, t *core.ActivationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.activations[t.ID] = &cp
	return nil
}

func (s *Store) GetActivationTokenByHash(ctx context.Context, tokenHash string) (*core.ActivationToken, *core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.activations {
		if t.TokenHash == tokenHash {
			a, ok := s.admins[t.AdminID]
			if !ok {
				return nil, nil, core.ErrNotFound
			}
			cp := *t
			return &cp, cloneAdmin(a), nil
		}
	}
	return nil, nil, core.ErrNotFound
}

func (s *Store) ActivateAdmin(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.activations[tokenID]
	if !ok {
		return core.ErrNotFound
	}
	if t.UsedAt != nil {
		return core.ErrTokenConsumed
	}
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	t.UsedAt = &at
	hash := passwordHash
	a.PasswordHash = &hash
	a.IsActive = true
	a.EmailVerified = true
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = at
	return nil
}

// ─── Password reset ───

func (s *Store) CreatePasswordReset(ctx context.Context, t *core.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.resets[t.ID] = &cp
	return nil
}

func (s *Store) GetPasswordResetByHash(ctx context.Context, tokenHash string) (*core.PasswordReset, *core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.resets {
		if t.TokenHash == tokenHash {
			a, ok := s.admins[t.AdminID]
			if !ok {
				return nil, nil, core.ErrNotFound
			}
			cp := *t
			return &cp, cloneAdmin(a), nil
		}
	}
	return nil, nil, core.ErrNotFound
}

func (s *Store) InvalidatePasswordResets(ctx context.Context, adminID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.resets {
		if t.AdminID == adminID && t.UsedAt == nil {
			ts := at
			t.UsedAt = &ts
			n++
		}
	}
	return n, nil
}

func (s *Store) CompletePasswordReset(ctx context.Context, tokenID, adminID, passwordHash string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resets[tokenID]
	if !ok {
		return 0, core.ErrNotFound
	}
	if t.UsedAt != nil {
		return 0, core.ErrTokenConsumed
	}
	a, ok := s.admins[adminID]
	if !ok {
		return 0, core.ErrNotFound
	}
	t.UsedAt = &at
	hash := passwordHash
	a.PasswordHash = &hash
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = at

	revoked := 0
	for _, sn := range s.sessions {
		if sn.AdminID == adminID && sn.RevokedAt == nil && at.Before(sn.ExpiresAt) {
			ts := at
			sn.RevokedAt = &ts
			revoked++
		}
	}
	return revoked, nil
}

// ─── Email OTP ───

func (s *Store) CreateEmailOTP(ctx context.Context, otp *core.EmailOTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.otps {
		if o.AdminID == otp.AdminID && o.UsedAt == nil {
			ts := otp.CreatedAt
			o.UsedAt = &ts
		}
	}
	cp := *otp
	s.otps[otp.ID] = &cp
	return nil
}

func (s *Store) GetLatestEmailOTP(ctx context.Context, adminID string, now time.Time) (*core.EmailOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *core.EmailOTP
	for _, o := range s.otps {
		if o.AdminID != adminID || o.UsedAt != nil || !now.Before(o.ExpiresAt) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, core.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) IncrementEmailOTPAttempts(ctx context.Context, otpID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otps[otpID]
	if !ok {
		return 0, core.ErrNotFound
	}
	o.Attempts++
	return o.Attempts, nil
}

func (s *Store) ConsumeEmailOTP(ctx context.Context, otpID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otps[otpID]
	if !ok {
		return core.ErrNotFound
	}
	if o.UsedAt != nil {
		return core.ErrTokenConsumed
	}
	o.UsedAt = &at
	return nil
}

// ─── 2FA settings ───

func (s *Store) SetTwoFactor(ctx context.Context, adminID string, enabled bool, method core.TwoFactorMethod, encryptedSecret *string, backupCodeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.TwoFactorEnabled = enabled
	a.TwoFactorMethod = method
	a.TwoFactorSecret = encryptedSecret
	a.BackupCodes = append([]string(nil), backupCodeHashes...)
	a.TOTPLastCounter = nil
	return nil
}

func (s *Store) SetTOTPLastCounter(ctx context.Context, adminID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	if a.TOTPLastCounter == nil || counter > *a.TOTPLastCounter {
		a.TOTPLastCounter = &counter
	}
	return nil
}

func (s *Store) SetBackupCodes(ctx context.Context, adminID string, codeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return core.ErrNotFound
	}
	a.BackupCodes = append([]string(nil), codeHashes...)
	return nil
}

func (s *Store) ConsumeBackupCode(ctx context.Context, adminID, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[adminID]
	if !ok {
		return false, core.ErrNotFound
	}
	for i, h := range a.BackupCodes {
		if h == codeHash {
			a.BackupCodes = append(a.BackupCodes[:i], a.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ─── Sesiones ───

func (s *Store) CreateSession(ctx context.Context, sn *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sn.ID]; ok {
		return core.ErrConflict
	}
	s.sessions[sn.ID] = cloneSession(sn)
	return nil
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneSession(sn), nil
}

func (s *Store) GetSessionByRefreshHash(ctx context.Context, refreshHash string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sn := range s.sessions {
		if sn.RefreshTokenHash == refreshHash {
			return cloneSession(sn), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListActiveSessions(ctx context.Context, adminID string, now time.Time) ([]core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Session
	for _, sn := range s.sessions {
		if sn.AdminID == adminID && sn.Active(now) {
			out = append(out, *cloneSession(sn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (s *Store) RotateSessionTokens(ctx context.Context, sessionID, refreshHash, ip, userAgent string, lastSeen, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.sessions[sessionID]
	if !ok || sn.RevokedAt != nil {
		return core.ErrNotFound
	}
	sn.RefreshTokenHash = refreshHash
	sn.IP = ip
	sn.UserAgent = userAgent
	sn.LastSeenAt = lastSeen
	sn.ExpiresAt = expiresAt
	return nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.sessions[sessionID]
	if !ok {
		return core.ErrNotFound
	}
	sn.LastSeenAt = lastSeen
	return nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, ok := s.sessions[sessionID]
	if !ok || sn.RevokedAt != nil {
		return core.ErrNotFound
	}
	sn.RevokedAt = &at
	return nil
}

func (s *Store) RevokeAllSessions(ctx context.Context, adminID string, exceptID *string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sn := range s.sessions {
		if sn.AdminID != adminID || sn.RevokedAt != nil || !at.Before(sn.ExpiresAt) {
			continue
		}
		if exceptID != nil && sn.ID == *exceptID {
			continue
		}
		ts := at
		sn.RevokedAt = &ts
		n++
	}
	return n, nil
}

// ─── Security log ───

func (s *Store) AppendSecurityLog(ctx context.Context, e *core.SecurityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	s.logs = append(s.logs, cp)
	return nil
}

func (s *Store) ListSecurityLog(ctx context.Context, adminID *string, limit int) ([]core.SecurityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []core.SecurityLog
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.logs[i]
		if adminID != nil && (e.AdminID == nil || *e.AdminID != *adminID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
