package auth

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/adminauth/internal/audit"
	"github.com/dropDatabas3/adminauth/internal/email"
	apperrors "github.com/dropDatabas3/adminauth/internal/http/errors"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/rate"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/store/memory"
	"github.com/dropDatabas3/adminauth/internal/twofactor"
)

const (
	testPassword = "Zeppelin#Turbina77"
	jwtSecret    = "secreto-de-test-para-jwt-con-largo-suficiente"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	echo  *email.EchoSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	echo := email.NewEchoSender()
	mailer := email.NewMailer(echo, "Back Office")

	sessions := session.NewManager(st, nil, []byte(jwtSecret), 0, 0)
	recorder := audit.NewRecorder(st, nil)

	svc := New(Deps{
		Store:          st,
		Lockout:        lockout.New(st, lockout.DefaultPolicy()),
		TwoFactor:      twofactor.New(st, mailer, "BackOffice"),
		Sessions:       sessions,
		Mailer:         mailer,
		Audit:          recorder,
		ResetLimiter:   rate.NewMemoryLimiter(3, time.Hour),
		PasswordPolicy: password.DefaultPolicy,
		HashParams:     password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		TempTokenKey:   []byte(jwtSecret),
		BaseURL:        "http://localhost:8080",
	})
	return &fixture{svc: svc, store: st, echo: echo}
}

func (f *fixture) seedActiveAdmin(t *testing.T, emailAddr string, method core.TwoFactorMethod) *core.Admin {
	t.Helper()
	hash, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	a := &core.Admin{
		ID:                   uuid.NewString(),
		Email:                emailAddr,
		PasswordHash:         &hash,
		FirstName:            "Ana",
		LastName:             "García",
		OrgUnit:              "planta-sur",
		Role:                 core.RoleAdmin,
		IsActive:             true,
		EmailVerified:        true,
		TwoFactorEnabled:     method != core.TwoFactorNone,
		TwoFactorMethod:      method,
		NotifyFailedLogin:    true,
		NotifyPasswordChange: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, f.store.CreateAdmin(context.Background(), a))
	return a
}

var testMeta = RequestMeta{IP: "203.0.113.9", UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0"}

// linkToken extrae el token de un enlace presente en el cuerpo del correo.
func linkToken(t *testing.T, body string) string {
	t.Helper()
	m := regexp.MustCompile(`token=([A-Za-z0-9_-]+)`).FindStringSubmatch(body)
	require.Len(t, m, 2, "el correo debe contener un enlace con token")
	return m[1]
}

func TestLoginSuccessWithout2FA(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)

	res, err := f.svc.Login(context.Background(), "Ana@Example.com ", testPassword, testMeta)
	require.NoError(t, err)
	require.False(t, res.Requires2FA)
	require.NotNil(t, res.Tokens)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	got, err := f.store.GetAdminByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)

	logs, err := f.store.ListSecurityLog(context.Background(), &a.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, core.EventLogin, logs[0].EventType)
	assert.Equal(t, core.OutcomeSuccess, logs[0].Outcome)
}

// La respuesta para email inexistente y para password incorrecto tiene que
// ser byte a byte la misma.
func TestLoginEnumerationResistance(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)

	_, errUnknown := f.svc.Login(context.Background(), "nadie@example.com", testPassword, testMeta)
	_, errWrongPw := f.svc.Login(context.Background(), "ana@example.com", "Password#Incorrecto9", testMeta)

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	aeU := apperrors.As(errUnknown)
	aeW := apperrors.As(errWrongPw)
	assert.Equal(t, aeU.Code, aeW.Code)
	assert.Equal(t, aeU.Message, aeW.Message)
	assert.Equal(t, aeU.HTTPStatus, aeW.HTTPStatus)
}

/// Escenario: cuatro fallos previos y un quinto password incorrecto. El quinto
// bloquea la cuenta, dispara exactamente un aviso y el password correcto deja
// de servir hasta que venza la ventana.
func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, "ana@example.com", "Password#Incorrecto9", testMeta)
		require.ErrorIs(t, err, apperrors.InvalidCredentials)
	}

	_, err := f.svc.Login(ctx, "ana@example.com", "Password#Incorrecto9", testMeta)
	require.ErrorIs(t, err, apperrors.AccountLocked)

	// El rechazo le dice al admin cuánto falta para reintentar.
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Message, "30 minutos")

	// Exactamente un aviso de bloqueo.
	var lockNotices int
	for _, m := range f.echo.Sent() {
		if strings.Contains(m.Subject, "bloqueada") {
			lockNotices++
		}
	}
	assert.Equal(t, 1, lockNotices)

	// Con la cuenta bloqueada, ni el password correcto entra.
	_, err = f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.ErrorIs(t, err, apperrors.AccountLocked)
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Message, "minutos")

	got, _ := f.store.GetAdminByID(ctx, a.ID)
	require.NotNil(t, got.LockedUntil)
	assert.Equal(t, 5, got.FailedLoginAttempts)
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, "ana@example.com", "Password#Incorrecto9", testMeta)
		require.ErrorIs(t, err, apperrors.InvalidCredentials)
	}
	_, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)

	got, _ := f.store.GetAdminByID(ctx, a.ID)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	// Cuenta desactivada que conserva su password (suspensión administrativa).
	hash := *a.PasswordHash
	inactive := &core.Admin{
		ID: uuid.NewString(), Email: "beto@example.com", PasswordHash: &hash,
		Role: core.RoleAdmin, IsActive: false,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateAdmin(ctx, inactive))

	_, err := f.svc.Login(ctx, "beto@example.com", testPassword, testMeta)
	require.ErrorIs(t, err, apperrors.AccountNotActivated)
}

// Escenario: login con 2FA por email. El primer paso no emite tokens y manda
// exactamente un correo con el código; el segundo paso emite la sesión.
func TestLoginWithEmail2FA(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorEmail)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)
	require.True(t, res.Requires2FA)
	assert.Equal(t, core.TwoFactorEmail, res.TwoFactorMethod)
	assert.NotEmpty(t, res.TempToken)
	assert.Nil(t, res.Tokens, "sin segundo factor no hay tokens")

	sent := f.echo.Sent()
	require.Len(t, sent, 1, "exactamente un correo con el código")
	code := regexp.MustCompile(`\d{6}`).FindString(sent[0].TextBody)
	require.NotEmpty(t, code)

	res2, err := f.svc.Verify2FA(ctx, res.TempToken, code, false, testMeta)
	require.NoError(t, err)
	require.False(t, res2.Requires2FA)
	require.NotNil(t, res2.Tokens)
}

func TestVerify2FAWrongCode(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorEmail)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)

	_, err = f.svc.Verify2FA(ctx, res.TempToken, "000000", false, testMeta)
	require.ErrorIs(t, err, apperrors.TwoFactorFailed)
}

func TestVerify2FAExpiredTempToken(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorEmail)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(tokens.TempTokenTTL + time.Minute) }
	_, err = f.svc.Verify2FA(ctx, res.TempToken, "123456", false, testMeta)
	require.ErrorIs(t, err, apperrors.TwoFactorFailed)
}

func TestRegisterAndActivate(t *testing.T) {
	f := newFixture(t)
	superAdmin := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	ctx := context.Background()

	created, err := f.svc.Register(ctx, RegisterInput{
		Email: "nuevo@example.com", FirstName: "Nuevo", LastName: "Admin",
		OrgUnit: "aerotools", Role: core.RoleViewer, CreatedBy: superAdmin.ID,
	}, testMeta)
	require.NoError(t, err)
	assert.False(t, created.IsActive)
	assert.Nil(t, created.PasswordHash)

	sent := f.echo.Sent()
	require.Len(t, sent, 1)
	token := linkToken(t, sent[0].TextBody)

	// Preview no consume el token.
	emailAddr, err := f.svc.PreviewActivation(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "nuevo@example.com", emailAddr)

	// Password débil rechazado con el token todavía usable.
	err = f.svc.Activate(ctx, token, "corta", testMeta)
	require.ErrorIs(t, err, apperrors.InvalidInput)

	require.NoError(t, f.svc.Activate(ctx, token, "Fragua#Soldadura42", testMeta))

	got, err := f.store.GetAdminByEmail(ctx, "nuevo@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, got.EmailVerified)
	require.NotNil(t, got.PasswordHash)

	// El token es de un solo uso.
	err = f.svc.Activate(ctx, token, "Fragua#Soldadura42", testMeta)
	require.ErrorIs(t, err, apperrors.TokenInvalid)
}

// Una cuenta ya activa rechaza la activación aunque exista un token fresco
// sin consumir (por ejemplo, generado por error para una cuenta operativa).
func TestActivateRejectsAlreadyActiveAccount(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	plain, err := tokens.GenerateOpaqueToken(32)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, f.store.CreateActivationToken(ctx, &core.ActivationToken{
		ID:        uuid.NewString(),
		AdminID:   a.ID,
		TokenHash: tokens.SHA256Base64URL(plain),
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
	}))

	err = f.svc.Activate(ctx, plain, "Fragua#Soldadura42", testMeta)
	require.ErrorIs(t, err, apperrors.TokenInvalid)

	// El password original sigue vigente.
	_, err = f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	superAdmin := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	ctx := context.Background()

	in := RegisterInput{Email: "dup@example.com", FirstName: "Dup", LastName: "Uno", CreatedBy: superAdmin.ID}
	_, err := f.svc.Register(ctx, in, testMeta)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, in, testMeta)
	require.ErrorIs(t, err, apperrors.Conflict)
}

// Activación concurrente: N requests con el mismo token, a lo sumo uno gana.
func TestActivateConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	superAdmin := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{
		Email: "race@example.com", FirstName: "Race", LastName: "Cond", CreatedBy: superAdmin.ID,
	}, testMeta)
	require.NoError(t, err)
	token := linkToken(t, f.echo.Sent()[0].TextBody)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Activate(ctx, token, "Fragua#Soldadura42", testMeta)
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactamente un request consume el token")
}

// Escenario: dos pedidos de reset seguidos dejan un único token usable.
func TestForgotPasswordInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com", testMeta))
	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com", testMeta))

	sent := f.echo.Sent()
	require.Len(t, sent, 2)
	first := linkToken(t, sent[0].TextBody)
	second := linkToken(t, sent[1].TextBody)
	require.NotEqual(t, first, second)

	// El primero quedó invalidado por el segundo pedido.
	err := f.svc.ResetPassword(ctx, first, "Fragua#Soldadura42", testMeta)
	require.ErrorIs(t, err, apperrors.TokenInvalid)

	require.NoError(t, f.svc.ResetPassword(ctx, second, "Fragua#Soldadura42", testMeta))
}

func TestForgotPasswordSilentForUnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "fantasma@example.com", testMeta))
	assert.Empty(t, f.echo.Sent(), "sin cuenta no sale ningún correo")
}

func TestForgotPasswordPerEmailRateLimit(t *testing.T) {
	f := newFixture(t)
	f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com", testMeta))
	}
	err := f.svc.ForgotPassword(ctx, "ana@example.com", testMeta)
	require.ErrorIs(t, err, apperrors.RateLimited)
}

// El reset completo revoca las sesiones abiertas antes del cambio; una sesión
// creada después del reset no se ve afectada.
func TestResetPasswordRevokesSessions(t *testing.T) {
	f := newFixture(t)
	a := f.seedActiveAdmin(t, "ana@example.com", core.TwoFactorNone)
	ctx := context.Background()

	res1, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)
	res2, err := f.svc.Login(ctx, "ana@example.com", testPassword, testMeta)
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com", testMeta))
	var resetMail email.Message
	for _, m := range f.echo.Sent() {
		if strings.Contains(m.Subject, "restablecer") {
			resetMail = m
		}
	}
	token := linkToken(t, resetMail.TextBody)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "Fragua#Soldadura42", testMeta))

	for _, sid := range []string{res1.Session.ID, res2.Session.ID} {
		sn, err := f.store.GetSessionByID(ctx, sid)
		require.NoError(t, err)
		require.Equal(t, a.ID, sn.AdminID)
		assert.NotNil(t, sn.RevokedAt, "la sesión previa al reset queda revocada")
	}

	// El password nuevo funciona y abre una sesión limpia.
	res3, err := f.svc.Login(ctx, "ana@example.com", "Fragua#Soldadura42", testMeta)
	require.NoError(t, err)
	sn, err := f.store.GetSessionByID(ctx, res3.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, sn.RevokedAt)

	// Aviso de cambio de password enviado.
	var changed int
	for _, m := range f.echo.Sent() {
		if strings.Contains(m.Subject, "contraseña cambió") {
			changed++
		}
	}
	assert.Equal(t, 1, changed)
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t)
	root := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	require.NoError(t, f.store.SetRole(context.Background(), root.ID, core.RoleSuperAdmin))
	target := f.seedActiveAdmin(t, "carla@example.com", core.TwoFactorNone)
	ctx := context.Background()

	got, err := f.svc.UpdateRole(ctx, target.ID, core.RoleViewer, root.ID, testMeta)
	require.NoError(t, err)
	assert.Equal(t, core.RoleViewer, got.Role)

	stored, err := f.store.GetAdminByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleViewer, stored.Role)

	// El cambio queda auditado con el rol anterior y el nuevo.
	logs, err := f.store.ListSecurityLog(ctx, &target.ID, 10)
	require.NoError(t, err)
	var roleChanges int
	for _, l := range logs {
		if l.EventType == core.EventRoleChanged {
			roleChanges++
			assert.Equal(t, "ADMIN", l.Details["from"])
			assert.Equal(t, "VIEWER", l.Details["to"])
		}
	}
	assert.Equal(t, 1, roleChanges)

	// Ni SUPER_ADMIN como destino ni como objetivo de cambio.
	_, err = f.svc.UpdateRole(ctx, target.ID, core.RoleSuperAdmin, root.ID, testMeta)
	require.ErrorIs(t, err, apperrors.InvalidInput)
	_, err = f.svc.UpdateRole(ctx, root.ID, core.RoleViewer, root.ID, testMeta)
	require.ErrorIs(t, err, apperrors.Forbidden)
}

func TestDeleteAdminRefusesSuperAdminTarget(t *testing.T) {
	f := newFixture(t)
	root := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	require.NoError(t, f.store.SetRole(context.Background(), root.ID, core.RoleSuperAdmin))
	other := f.seedActiveAdmin(t, "otra-root@example.com", core.TwoFactorNone)
	require.NoError(t, f.store.SetRole(context.Background(), other.ID, core.RoleSuperAdmin))

	err := f.svc.DeleteAdmin(context.Background(), other.ID, root.ID)
	require.ErrorIs(t, err, apperrors.Forbidden)
	_, err = f.store.GetAdminByID(context.Background(), other.ID)
	require.NoError(t, err, "la cuenta super sigue existiendo")
}

func TestDeleteAdminPreservesAuditTrail(t *testing.T) {
	f := newFixture(t)
	superAdmin := f.seedActiveAdmin(t, "root@example.com", core.TwoFactorNone)
	victim := f.seedActiveAdmin(t, "victima@example.com", core.TwoFactorNone)
	ctx := context.Background()

	// Genera historial.
	_, err := f.svc.Login(ctx, "victima@example.com", testPassword, testMeta)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteAdmin(ctx, superAdmin.ID, superAdmin.ID), apperrors.InvalidInput)
	require.NoError(t, f.svc.DeleteAdmin(ctx, victim.ID, superAdmin.ID))

	_, err = f.store.GetAdminByID(ctx, victim.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	// El historial sobrevive con la referencia nuleada.
	logs, err := f.store.ListSecurityLog(ctx, nil, 50)
	require.NoError(t, err)
	var orphaned int
	for _, l := range logs {
		if l.AdminID == nil {
			orphaned++
		}
	}
	assert.Greater(t, orphaned, 0)
}
