package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
// Se usa para links de activación/reset y como secreto del refresh token.
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
// Hash rápido para indexar tokens de alta entropía en DB: no hace falta
// el hash lento de passwords porque el token no es adivinable dentro de
// su ventana de validez.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateNumericOTP genera un código numérico de n dígitos con crypto/rand.
func GenerateNumericOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", fmt.Errorf("otp digits fuera de rango: %d", digits)
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	n := binary.BigEndian.Uint64(b[:]) % mod
	return fmt.Sprintf("%0*d", digits, n), nil
}

// GenerateBackupCodes genera códigos de respaldo con formato XXXX-XXXX (hex mayúscula).
func GenerateBackupCodes(count int) ([]string, error) {
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, err
		}
		h := strings.ToUpper(hex.EncodeToString(b[:]))
		out = append(out, h[:4]+"-"+h[4:])
	}
	return out, nil
}

// NormalizeBackupCode canonicaliza un código presentado por el usuario:
// mayúsculas y sin guión. El hash en reposo se calcula sobre esta forma.
func NormalizeBackupCode(code string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(code)), "-", "")
}
