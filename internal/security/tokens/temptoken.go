package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Temp token: portador del estado intermedio "password verificado, 2FA pendiente".
// En lugar de estado server-side para esa ventana breve, se codifica
// {adminID, issuedAt} firmado con HMAC-SHA256 y se devuelve al caller.
// Sin firma cualquiera podría forjar el estado intermedio.

const TempTokenTTL = 5 * time.Minute

var (
	ErrTempTokenInvalid = errors.New("temp token inválido")
	ErrTempTokenExpired = errors.New("temp token expirado")
)

// SignTempToken produce base64url(adminID:issuedAtUnix:hmac).
func SignTempToken(key []byte, adminID string, issuedAt time.Time) string {
	payload := adminID + ":" + strconv.FormatInt(issuedAt.Unix(), 10)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + sig))
}

// VerifyTempToken valida firma y edad; devuelve el adminID.
func VerifyTempToken(key []byte, token string, now time.Time) (adminID string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", ErrTempTokenInvalid
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return "", ErrTempTokenInvalid
	}
	adminID, tsStr, sigB64 := parts[0], parts[1], parts[2]

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s:%s", adminID, tsStr)
	want := mac.Sum(nil)
	got, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || !hmac.Equal(got, want) {
		return "", ErrTempTokenInvalid
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return "", ErrTempTokenInvalid
	}
	issued := time.Unix(ts, 0)
	if issued.After(now.Add(time.Minute)) {
		// issuedAt en el futuro: reloj manipulado o token forjado
		return "", ErrTempTokenInvalid
	}
	if now.Sub(issued) > TempTokenTTL {
		return "", ErrTempTokenExpired
	}
	return adminID, nil
}
