package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/adminauth/internal/audit"
	"github.com/dropDatabas3/adminauth/internal/email"
	"github.com/dropDatabas3/adminauth/internal/http/controllers"
	authsvc "github.com/dropDatabas3/adminauth/internal/http/services/auth"
	sessionssvc "github.com/dropDatabas3/adminauth/internal/http/services/sessions"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/rate"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/store/memory"
	"github.com/dropDatabas3/adminauth/internal/twofactor"
)

const (
	testPassword = "Zeppelin#Turbina77"
	jwtSecret    = "secreto-de-test-para-jwt-con-largo-suficiente"
)

var hashParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type harness struct {
	server *httptest.Server
	store  *memory.Store
	echo   *email.EchoSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memory.New()
	echo := email.NewEchoSender()
	mailer := email.NewMailer(echo, "Back Office")
	sessions := session.NewManager(st, nil, []byte(jwtSecret), 0, 0)
	recorder := audit.NewRecorder(st, nil)

	authService := authsvc.New(authsvc.Deps{
		Store:          st,
		Lockout:        lockout.New(st, lockout.DefaultPolicy()),
		TwoFactor:      twofactor.New(st, mailer, "BackOffice"),
		Sessions:       sessions,
		Mailer:         mailer,
		Audit:          recorder,
		ResetLimiter:   rate.NewMemoryLimiter(3, time.Hour),
		PasswordPolicy: password.DefaultPolicy,
		HashParams:     hashParams,
		TempTokenKey:   []byte(jwtSecret),
		BaseURL:        "http://localhost:8080",
	})
	sessionService := sessionssvc.New(sessionssvc.Deps{Manager: sessions, Audit: recorder})

	handler := New(Deps{
		Auth:         controllers.NewAuthController(authService, false),
		Sessions:     controllers.NewSessionController(sessionService, false),
		Manager:      sessions,
		LoginLimiter: rate.NewMemoryLimiter(5, 15*time.Minute),
		ResetLimiter: rate.NewMemoryLimiter(3, time.Hour),
		Store:        st,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{server: srv, store: st, echo: echo}
}

func (h *harness) seedAdmin(t *testing.T, emailAddr string, role core.Role) *core.Admin {
	t.Helper()
	hash, err := password.Hash(hashParams, testPassword)
	require.NoError(t, err)
	now := time.Now().UTC()
	a := &core.Admin{
		ID: uuid.NewString(), Email: emailAddr, PasswordHash: &hash,
		FirstName: "Ana", LastName: "García", OrgUnit: "planta-sur",
		Role: role, IsActive: true, EmailVerified: true,
		TwoFactorMethod: core.TwoFactorNone,
		CreatedAt:       now, UpdatedAt: now,
	}
	require.NoError(t, h.store.CreateAdmin(context.Background(), a))
	return a
}

func (h *harness) postJSON(t *testing.T, path string, body any, cookies []*http.Cookie) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, h.server.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (h *harness) login(t *testing.T, emailAddr, pw string) (*http.Response, []*http.Cookie) {
	t.Helper()
	resp := h.postJSON(t, "/admin-auth/login", map[string]string{"email": emailAddr, "password": pw}, nil)
	return resp, resp.Cookies()
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsHttpOnlyCookies(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "ana@example.com", core.RoleAdmin)

	resp, cookies := h.login(t, "ana@example.com", testPassword)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access := cookieByName(cookies, "admin_access_token")
	refresh := cookieByName(cookies, "admin_refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	var body struct {
		Requires2FA bool `json:"requires_2fa"`
		Admin       *struct {
			Email string `json:"email"`
		} `json:"admin"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Requires2FA)
	require.NotNil(t, body.Admin)
	assert.Equal(t, "ana@example.com", body.Admin.Email)
}

func TestLoginRateLimitPerIP(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "ana@example.com", core.RoleAdmin)

	// 5 intentos por ventana; el sexto responde 429 con Retry-After.
	for i := 0; i < 5; i++ {
		resp := h.postJSON(t, "/admin-auth/login", map[string]string{
			"email": "ana@example.com", "password": "Password#Incorrecto9",
		}, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := h.postJSON(t, "/admin-auth/login", map[string]string{
		"email": "ana@example.com", "password": testPassword,
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestSessionsRequireAuth(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/admin-auth/sessions", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionListAndKillAll(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "ana@example.com", core.RoleAdmin)

	// Dos sesiones; la segunda es la "actual".
	respA, _ := h.login(t, "ana@example.com", testPassword)
	respA.Body.Close()
	respB, cookies := h.login(t, "ana@example.com", testPassword)
	respB.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/admin-auth/sessions", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Sessions []struct {
			ID      string `json:"id"`
			Current bool   `json:"current"`
		} `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 2)
	var currents int
	for _, s := range list.Sessions {
		if s.Current {
			currents++
		}
	}
	assert.Equal(t, 1, currents, "exactamente una sesión marcada como actual")

	// Cerrar todas menos la actual.
	reqKill, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/admin-auth/sessions", nil)
	for _, c := range cookies {
		reqKill.AddCookie(c)
	}
	respKill, err := http.DefaultClient.Do(reqKill)
	require.NoError(t, err)
	defer respKill.Body.Close()
	require.Equal(t, http.StatusOK, respKill.StatusCode)

	var killed struct {
		Revoked int `json:"revoked"`
	}
	require.NoError(t, json.NewDecoder(respKill.Body).Decode(&killed))
	assert.Equal(t, 1, killed.Revoked)
}

func TestRegisterRequiresSuperAdmin(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "admin@example.com", core.RoleAdmin)
	h.seedAdmin(t, "root@example.com", core.RoleSuperAdmin)

	payload := map[string]string{
		"email": "nuevo@example.com", "first_name": "Nuevo", "last_name": "Admin",
	}

	// ADMIN común: 403.
	respLogin, cookies := h.login(t, "admin@example.com", testPassword)
	respLogin.Body.Close()
	resp := h.postJSON(t, "/admin-auth/register", payload, cookies)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// SUPER_ADMIN: 201.
	respLogin2, rootCookies := h.login(t, "root@example.com", testPassword)
	respLogin2.Body.Close()
	resp2 := h.postJSON(t, "/admin-auth/register", payload, rootCookies)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusCreated, resp2.StatusCode)
}

func TestAdminManagementEndpoints(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "root@example.com", core.RoleSuperAdmin)
	target := h.seedAdmin(t, "carla@example.com", core.RoleAdmin)

	respLogin, cookies := h.login(t, "root@example.com", testPassword)
	respLogin.Body.Close()

	// Listado con la vista de gestión.
	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/admin-auth/admins", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Admins []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"admins"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Admins, 2)

	// Cambio de rol.
	body, _ := json.Marshal(map[string]string{"role": "viewer"})
	reqPatch, _ := http.NewRequest(http.MethodPatch, h.server.URL+"/admin-auth/admins/"+target.ID, bytes.NewReader(body))
	reqPatch.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		reqPatch.AddCookie(c)
	}
	respPatch, err := http.DefaultClient.Do(reqPatch)
	require.NoError(t, err)
	defer respPatch.Body.Close()
	require.Equal(t, http.StatusOK, respPatch.StatusCode)

	var updated struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(respPatch.Body).Decode(&updated))
	assert.Equal(t, "VIEWER", updated.Role)

	// Un ADMIN común no ve el listado.
	respLogin2, adminCookies := h.login(t, "carla@example.com", testPassword)
	respLogin2.Body.Close()
	req2, _ := http.NewRequest(http.MethodGet, h.server.URL+"/admin-auth/admins", nil)
	for _, c := range adminCookies {
		req2.AddCookie(c)
	}
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestRefreshRotatesCookie(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "ana@example.com", core.RoleAdmin)

	respLogin, cookies := h.login(t, "ana@example.com", testPassword)
	respLogin.Body.Close()
	oldRefresh := cookieByName(cookies, "admin_refresh_token")
	require.NotNil(t, oldRefresh)

	resp := h.postJSON(t, "/admin-auth/refresh", nil, cookies)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	newRefresh := cookieByName(resp.Cookies(), "admin_refresh_token")
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, oldRefresh.Value, newRefresh.Value)

	// El refresh viejo ya no sirve.
	resp2 := h.postJSON(t, "/admin-auth/refresh", nil, []*http.Cookie{oldRefresh})
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestLogoutClearsCookies(t *testing.T) {
	h := newHarness(t)
	h.seedAdmin(t, "ana@example.com", core.RoleAdmin)

	respLogin, cookies := h.login(t, "ana@example.com", testPassword)
	respLogin.Body.Close()

	resp := h.postJSON(t, "/admin-auth/logout", nil, cookies)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	for _, c := range resp.Cookies() {
		assert.Equal(t, -1, c.MaxAge, "las cookies se borran en el logout")
	}

	// La sesión quedó revocada: el access viejo deja de servir.
	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/admin-auth/sessions", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestSecurityHeadersOnAuthEndpoints(t *testing.T) {
	h := newHarness(t)
	resp := h.postJSON(t, "/admin-auth/login", map[string]string{"email": "x@example.com", "password": "p"}, nil)
	defer resp.Body.Close()
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
