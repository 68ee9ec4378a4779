// Package session administra el ciclo de vida de las sesiones de
// administrador: access token JWT de corta vida y refresh token opaco
// persistido como hash.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/adminauth/internal/geoip"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/useragent"
)

const (
	DefaultAccessTTL  = 8 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
)

var (
	ErrTokenInvalid   = errors.New("token inválido")
	ErrTokenExpired   = errors.New("token expirado")
	ErrSessionRevoked = errors.New("sesión revocada o vencida")
)

// Claims del access token. El sid ata el JWT a su sesión para poder
// verificar revocación en los endpoints sensibles.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	OrgUnit   string `json:"org_unit"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Manager struct {
	store      core.Repository
	geo        *geoip.Resolver
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewManager(store core.Repository, geo *geoip.Resolver, jwtSecret []byte, accessTTL, refreshTTL time.Duration) *Manager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Manager{
		store:      store,
		geo:        geo,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// TokenPair es lo que recibe el cliente. El refresh en claro no se persiste.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Create abre una sesión nueva para el admin con la metadata del request.
func (m *Manager) Create(ctx context.Context, a *core.Admin, ip, userAgent string) (*core.Session, *TokenPair, error) {
	now := m.now().UTC()
	refresh, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, nil, err
	}

	ua := useragent.Parse(userAgent)
	var location *string
	if m.geo != nil {
		location = m.geo.Lookup(ctx, ip)
	}

	sn := &core.Session{
		ID:               uuid.NewString(),
		AdminID:          a.ID,
		RefreshTokenHash: tokens.SHA256Base64URL(refresh),
		IP:               ip,
		UserAgent:        userAgent,
		Device:           ua.Device,
		Browser:          ua.Browser,
		OS:               ua.OS,
		Location:         location,
		CreatedAt:        now,
		LastSeenAt:       now,
		ExpiresAt:        now.Add(m.refreshTTL),
	}
	if err := m.store.CreateSession(ctx, sn); err != nil {
		return nil, nil, err
	}

	access, expiresAt, err := m.mintAccessToken(a, sn.ID, now)
	if err != nil {
		return nil, nil, err
	}
	return sn, &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func (m *Manager) mintAccessToken(a *core.Admin, sessionID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.accessTTL)
	claims := Claims{
		Email:     a.Email,
		Role:      string(a.Role),
		OrgUnit:   a.OrgUnit,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: firmar access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifica firma y expiración del access token y que la sesión
// subyacente siga viva.
func (m *Manager) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}

	sn, err := m.store.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if !sn.Active(m.now().UTC()) {
		return nil, ErrSessionRevoked
	}
	return &claims, nil
}

// Refresh rota el refresh token y emite un access nuevo. El hash viejo queda
// inutilizado en el mismo update.
func (m *Manager) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*core.Session, *TokenPair, error) {
	now := m.now().UTC()
	sn, err := m.store.GetSessionByRefreshHash(ctx, tokens.SHA256Base64URL(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if !sn.Active(now) {
		return nil, nil, ErrSessionRevoked
	}

	a, err := m.store.GetAdminByID(ctx, sn.AdminID)
	if err != nil {
		return nil, nil, err
	}
	if !a.IsActive {
		return nil, nil, ErrSessionRevoked
	}

	newRefresh, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, nil, err
	}
	newExpiry := now.Add(m.refreshTTL)
	err = m.store.RotateSessionTokens(ctx, sn.ID, tokens.SHA256Base64URL(newRefresh), ip, userAgent, now, newExpiry)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil, ErrSessionRevoked
		}
		return nil, nil, err
	}
	sn.RefreshTokenHash = tokens.SHA256Base64URL(newRefresh)
	sn.LastSeenAt = now
	sn.ExpiresAt = newExpiry

	access, expiresAt, err := m.mintAccessToken(a, sn.ID, now)
	if err != nil {
		return nil, nil, err
	}
	return sn, &TokenPair{AccessToken: access, RefreshToken: newRefresh, ExpiresAt: expiresAt}, nil
}

// SessionView es una sesión lista para mostrar, con el flag de "esta es la
// sesión desde la que consultás".
type SessionView struct {
	Session core.Session
	Current bool
}

func (m *Manager) ListActive(ctx context.Context, adminID, currentSessionID string) ([]SessionView, error) {
	sessions, err := m.store.ListActiveSessions(ctx, adminID, m.now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, 0, len(sessions))
	for _, sn := range sessions {
		out = append(out, SessionView{Session: sn, Current: sn.ID == currentSessionID})
	}
	return out, nil
}

// Invalidate revoca una sesión puntual, validando pertenencia.
func (m *Manager) Invalidate(ctx context.Context, adminID, sessionID string) error {
	sn, err := m.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sn.AdminID != adminID {
		return core.ErrNotFound
	}
	return m.store.RevokeSession(ctx, sessionID, m.now().UTC())
}

// InvalidateAll revoca todas las sesiones del admin salvo la indicada.
func (m *Manager) InvalidateAll(ctx context.Context, adminID string, exceptID *string) (int, error) {
	return m.store.RevokeAllSessions(ctx, adminID, exceptID, m.now().UTC())
}

// Logout revoca la sesión dueña del refresh token presentado. Un token
// desconocido no es error: logout es idempotente.
func (m *Manager) Logout(ctx context.Context, refreshToken string) error {
	sn, err := m.store.GetSessionByRefreshHash(ctx, tokens.SHA256Base64URL(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := m.store.RevokeSession(ctx, sn.ID, m.now().UTC()); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

// Touch actualiza last_seen_at; fallos no interrumpen al caller.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	return m.store.TouchSession(ctx, sessionID, m.now().UTC())
}
