package twofactor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/adminauth/internal/email"
	"github.com/dropDatabas3/adminauth/internal/security/secretbox"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/security/totp"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/store/memory"
)

func newService(t *testing.T) (*Service, *memory.Store, *email.EchoSender) {
	t.Helper()
	if err := secretbox.UnsafeSetMasterKeyForTests(bytes.Repeat([]byte{7}, 32)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(secretbox.UnsafeResetForTests)

	st := memory.New()
	echo := email.NewEchoSender()
	svc := New(st, email.NewMailer(echo, "Back Office"), "BackOffice")
	return svc, st, echo
}

func seedAdmin(t *testing.T, st *memory.Store, a core.Admin) *core.Admin {
	t.Helper()
	if a.Email == "" {
		a.Email = a.ID + "@example.com"
	}
	if err := st.CreateAdmin(context.Background(), &a); err != nil {
		t.Fatal(err)
	}
	out, err := st.GetAdminByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestEmailOTPSingleUse(t *testing.T) {
	svc, st, echo := newService(t)
	ctx := context.Background()
	a := seedAdmin(t, st, core.Admin{ID: "a1", TwoFactorEnabled: true, TwoFactorMethod: core.TwoFactorEmail})

	if err := svc.SendEmailOTP(ctx, a); err != nil {
		t.Fatal(err)
	}
	sent := echo.Sent()
	if len(sent) != 1 {
		t.Fatalf("se esperaba exactamente un correo, hubo %d", len(sent))
	}

	otp, err := st.GetLatestEmailOTP(ctx, "a1", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	// No conocemos el código en claro; forzamos uno conocido.
	code := "123456"
	otp2 := *otp
	otp2.ID = "otp-known"
	otp2.CodeHash = tokens.SHA256Base64URL(code)
	otp2.CreatedAt = otp.CreatedAt.Add(time.Second)
	if err := st.CreateEmailOTP(ctx, &otp2); err != nil {
		t.Fatal(err)
	}

	if err := svc.VerifyEmailOTP(ctx, "a1", code); err != nil {
		t.Fatalf("primer uso debe pasar: %v", err)
	}
	if err := svc.VerifyEmailOTP(ctx, "a1", code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("segundo uso debe fallar con ErrCodeExpired, fue %v", err)
	}
}

func TestEmailOTPAttemptsExhausted(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	seedAdmin(t, st, core.Admin{ID: "a2", TwoFactorEnabled: true, TwoFactorMethod: core.TwoFactorEmail})

	now := time.Now().UTC()
	otp := &core.EmailOTP{
		ID:        "otp1",
		AdminID:   "a2",
		CodeHash:  tokens.SHA256Base64URL("654321"),
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
	if err := st.CreateEmailOTP(ctx, otp); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 4; i++ {
		if err := svc.VerifyEmailOTP(ctx, "a2", "000000"); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("intento %d: se esperaba ErrCodeInvalid, fue %v", i, err)
		}
	}
	if err := svc.VerifyEmailOTP(ctx, "a2", "000000"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("quinto intento agota el código: %v", err)
	}
	// Incluso el código correcto queda rechazado una vez agotado.
	if err := svc.VerifyEmailOTP(ctx, "a2", "654321"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("código agotado no se acepta ni con el valor correcto: %v", err)
	}
}

func TestBackupCodeConsumedOnce(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	a := seedAdmin(t, st, core.Admin{ID: "a3"})

	enr, err := svc.EnrollEmail(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(enr.BackupCodes) != 10 {
		t.Fatalf("se esperaban 10 códigos, hubo %d", len(enr.BackupCodes))
	}

	code := enr.BackupCodes[0]
	// Formato alterno: minúsculas y sin guión tiene que aceptarse igual.
	alt := tokens.NormalizeBackupCode(code)
	if err := svc.VerifyBackupCode(ctx, "a3", alt); err != nil {
		t.Fatalf("primer uso: %v", err)
	}
	if err := svc.VerifyBackupCode(ctx, "a3", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("segundo uso debe rechazarse: %v", err)
	}
}

func TestVerifyTOTPAntiReplay(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	a := seedAdmin(t, st, core.Admin{ID: "a4", Email: "a4@example.com"})

	enr, err := svc.EnrollTOTP(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if enr.OTPAuthURL == "" || enr.SecretB32 == "" {
		t.Fatal("enrolamiento incompleto")
	}

	// Generamos el código válido con el mismo secreto que quedó cifrado.
	fixed := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	code := totpCodeAt(t, enr.SecretB32, fixed)

	reloaded, _ := st.GetAdminByID(ctx, "a4")
	if err := svc.VerifyTOTP(ctx, reloaded, code); err != nil {
		t.Fatalf("código válido rechazado: %v", err)
	}

	// El mismo código en el mismo step tiene que rechazarse (replay).
	reloaded, _ = st.GetAdminByID(ctx, "a4")
	if err := svc.VerifyTOTP(ctx, reloaded, code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("replay debe fallar con ErrCodeInvalid: %v", err)
	}
}

// totpCodeAt recomputa el código RFC 6238 (SHA1, 6 dígitos, step 30s) para el
// instante dado.
func totpCodeAt(t *testing.T, secretB32 string, at time.Time) string {
	t.Helper()
	raw, err := totp.DecodeSecret(secretB32)
	if err != nil {
		t.Fatal(err)
	}
	counter := at.Unix() / 30
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	m := hmac.New(sha1.New, raw)
	m.Write(msg[:])
	sum := m.Sum(nil)
	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 | int(sum[offset+1])<<16 | int(sum[offset+2])<<8 | int(sum[offset+3])
	return fmt.Sprintf("%06d", bin%1000000)
}
