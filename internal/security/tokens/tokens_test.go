package tokens

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestGenerateOpaqueTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateOpaqueToken(32)
		if err != nil {
			t.Fatal(err)
		}
		if seen[tok] {
			t.Fatal("token repetido")
		}
		seen[tok] = true
	}
}

func TestGenerateNumericOTP(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericOTP(6)
		if err != nil {
			t.Fatal(err)
		}
		if !re.MatchString(code) {
			t.Fatalf("otp con formato inválido: %q", code)
		}
	}
	if _, err := GenerateNumericOTP(2); err == nil {
		t.Fatal("menos de 4 dígitos debe rechazarse")
	}
}

func TestBackupCodesFormat(t *testing.T) {
	codes, err := GenerateBackupCodes(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 10 {
		t.Fatalf("cantidad = %d", len(codes))
	}
	re := regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}$`)
	for _, c := range codes {
		if !re.MatchString(c) {
			t.Fatalf("código con formato inválido: %q", c)
		}
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	if NormalizeBackupCode(" a1b2-c3d4 ") != "A1B2C3D4" {
		t.Fatal("la normalización ignora case, guión y espacios")
	}
	if NormalizeBackupCode("A1B2C3D4") != "A1B2C3D4" {
		t.Fatal("forma canónica es estable")
	}
}

func TestTempTokenRoundTrip(t *testing.T) {
	key := []byte("clave-hmac-para-tests")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok := SignTempToken(key, "admin-1", now)
	id, err := VerifyTempToken(key, tok, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if id != "admin-1" {
		t.Fatalf("adminID = %q", id)
	}
}

func TestTempTokenExpiry(t *testing.T) {
	key := []byte("clave-hmac-para-tests")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok := SignTempToken(key, "admin-1", now)
	if _, err := VerifyTempToken(key, tok, now.Add(6*time.Minute)); !errors.Is(err, ErrTempTokenExpired) {
		t.Fatalf("pasados 5 minutos debe expirar: %v", err)
	}
}

func TestTempTokenRejectsWrongKeyAndTamper(t *testing.T) {
	key := []byte("clave-hmac-para-tests")
	now := time.Now().UTC()
	tok := SignTempToken(key, "admin-1", now)

	if _, err := VerifyTempToken([]byte("otra-clave"), tok, now); !errors.Is(err, ErrTempTokenInvalid) {
		t.Fatalf("clave incorrecta: %v", err)
	}
	if _, err := VerifyTempToken(key, tok[:len(tok)-3]+"abc", now); !errors.Is(err, ErrTempTokenInvalid) {
		t.Fatalf("token adulterado: %v", err)
	}
	if _, err := VerifyTempToken(key, "no-base64!!!", now); !errors.Is(err, ErrTempTokenInvalid) {
		t.Fatalf("basura: %v", err)
	}
}

func TestTempTokenRejectsFutureIssuedAt(t *testing.T) {
	key := []byte("clave-hmac-para-tests")
	now := time.Now().UTC()
	tok := SignTempToken(key, "admin-1", now.Add(10*time.Minute))
	if _, err := VerifyTempToken(key, tok, now); !errors.Is(err, ErrTempTokenInvalid) {
		t.Fatalf("issuedAt futuro: %v", err)
	}
}
