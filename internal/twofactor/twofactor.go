// Package twofactor implementa la verificación del segundo factor: TOTP,
// código por email y códigos de respaldo.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/adminauth/internal/email"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/security/secretbox"
	"github.com/dropDatabas3/adminauth/internal/security/tokens"
	"github.com/dropDatabas3/adminauth/internal/security/totp"
	"github.com/dropDatabas3/adminauth/internal/store/core"
)

const (
	otpDigits      = 6
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 5
	totpWindow     = 1 // +/- 1 step de 30s para clock skew
	backupCount    = 10
)

var (
	ErrCodeInvalid     = errors.New("código incorrecto")
	ErrCodeExpired     = errors.New("código expirado o inexistente")
	ErrTooManyAttempts = errors.New("demasiados intentos para este código")
	ErrNotConfigured   = errors.New("2fa no configurado para este método")
)

type Service struct {
	store  core.Repository
	mailer *email.Mailer
	issuer string
	now    func() time.Time
}

func New(store core.Repository, mailer *email.Mailer, issuer string) *Service {
	return &Service{store: store, mailer: mailer, issuer: issuer, now: time.Now}
}

// VerifyTOTP descifra el secreto, valida el código con ventana de skew y
// persiste el contador aceptado para bloquear replay dentro de la ventana.
func (s *Service) VerifyTOTP(ctx context.Context, a *core.Admin, code string) error {
	if a.TwoFactorSecret == nil {
		return ErrNotConfigured
	}
	secretB32, err := secretbox.Decrypt(*a.TwoFactorSecret)
	if err != nil {
		return fmt.Errorf("twofactor: decrypt secreto: %w", err)
	}
	raw, err := totp.DecodeSecret(secretB32)
	if err != nil {
		return fmt.Errorf("twofactor: secreto corrupto: %w", err)
	}
	ok, counter := totp.Verify(raw, code, s.now().UTC(), totpWindow, a.TOTPLastCounter)
	if !ok {
		return ErrCodeInvalid
	}
	if err := s.store.SetTOTPLastCounter(ctx, a.ID, counter); err != nil {
		return err
	}
	return nil
}

// SendEmailOTP genera un código nuevo (invalidando los previos), lo persiste
// hasheado y lo despacha por correo. Si el correo no sale, la operación falla:
// un OTP vivo que el admin nunca va a recibir sólo le sirve a un atacante.
func (s *Service) SendEmailOTP(ctx context.Context, a *core.Admin) error {
	code, err := tokens.GenerateNumericOTP(otpDigits)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	otp := &core.EmailOTP{
		ID:        uuid.NewString(),
		AdminID:   a.ID,
		CodeHash:  tokens.SHA256Base64URL(code),
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateEmailOTP(ctx, otp); err != nil {
		return err
	}
	if err := s.mailer.SendOTPCode(ctx, a.Email, a.FirstName, code, otpTTL); err != nil {
		// Mejor invalidarlo ya que nadie lo va a recibir.
		if cerr := s.store.ConsumeEmailOTP(ctx, otp.ID, s.now().UTC()); cerr != nil {
			logger.From(ctx).Warn("twofactor: no se pudo invalidar otp tras fallo de envío", logger.Err(cerr))
		}
		return fmt.Errorf("twofactor: envío de otp: %w", err)
	}
	return nil
}

// VerifyEmailOTP valida el último código vivo del admin. Distingue expirado,
// incorrecto y agotado por intentos; consume el código sólo en éxito.
func (s *Service) VerifyEmailOTP(ctx context.Context, adminID, code string) error {
	now := s.now().UTC()
	otp, err := s.store.GetLatestEmailOTP(ctx, adminID, now)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrCodeExpired
		}
		return err
	}
	if otp.Attempts >= otpMaxAttempts {
		return ErrTooManyAttempts
	}
	if tokens.SHA256Base64URL(code) != otp.CodeHash {
		attempts, ierr := s.store.IncrementEmailOTPAttempts(ctx, otp.ID)
		if ierr != nil {
			return ierr
		}
		if attempts >= otpMaxAttempts {
			return ErrTooManyAttempts
		}
		return ErrCodeInvalid
	}
	if err := s.store.ConsumeEmailOTP(ctx, otp.ID, now); err != nil {
		if errors.Is(err, core.ErrTokenConsumed) {
			return ErrCodeExpired
		}
		return err
	}
	return nil
}

// VerifyBackupCode consume un código de respaldo. La forma canónica ignora el
// guión y el case.
func (s *Service) VerifyBackupCode(ctx context.Context, adminID, code string) error {
	hash := tokens.SHA256Base64URL(tokens.NormalizeBackupCode(code))
	ok, err := s.store.ConsumeBackupCode(ctx, adminID, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeInvalid
	}
	return nil
}

// Verify despacha al verificador según el método configurado, con fallback a
// código de respaldo cuando el caller lo marca.
func (s *Service) Verify(ctx context.Context, a *core.Admin, code string, useBackup bool) error {
	if useBackup {
		return s.VerifyBackupCode(ctx, a.ID, code)
	}
	switch a.TwoFactorMethod {
	case core.TwoFactorTOTP:
		return s.VerifyTOTP(ctx, a, code)
	case core.TwoFactorEmail:
		return s.VerifyEmailOTP(ctx, a.ID, code)
	default:
		return ErrNotConfigured
	}
}

// Enrollment devuelve lo que el admin necesita para configurar TOTP.
type Enrollment struct {
	SecretB32   string
	OTPAuthURL  string
	BackupCodes []string // en claro, se muestran una única vez
}

// EnrollTOTP genera secreto y códigos de respaldo y habilita el método.
func (s *Service) EnrollTOTP(ctx context.Context, a *core.Admin) (*Enrollment, error) {
	_, secretB32, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	encrypted, err := secretbox.Encrypt(secretB32)
	if err != nil {
		return nil, fmt.Errorf("twofactor: encrypt secreto: %w", err)
	}
	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTwoFactor(ctx, a.ID, true, core.TwoFactorTOTP, &encrypted, hashes); err != nil {
		return nil, err
	}
	return &Enrollment{
		SecretB32:   secretB32,
		OTPAuthURL:  totp.OTPAuthURL(s.issuer, a.Email, secretB32),
		BackupCodes: codes,
	}, nil
}

// EnrollEmail habilita 2FA por código enviado al correo de la cuenta.
func (s *Service) EnrollEmail(ctx context.Context, a *core.Admin) (*Enrollment, error) {
	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTwoFactor(ctx, a.ID, true, core.TwoFactorEmail, nil, hashes); err != nil {
		return nil, err
	}
	return &Enrollment{BackupCodes: codes}, nil
}

// Disable apaga el segundo factor y descarta secreto y códigos de respaldo.
func (s *Service) Disable(ctx context.Context, adminID string) error {
	return s.store.SetTwoFactor(ctx, adminID, false, core.TwoFactorNone, nil, nil)
}

// RotateBackupCodes reemplaza el set completo y devuelve los nuevos en claro.
func (s *Service) RotateBackupCodes(ctx context.Context, adminID string) ([]string, error) {
	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := s.store.SetBackupCodes(ctx, adminID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *Service) newBackupCodes() (codes, hashes []string, err error) {
	codes, err = tokens.GenerateBackupCodes(backupCount)
	if err != nil {
		return nil, nil, err
	}
	hashes = make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = tokens.SHA256Base64URL(tokens.NormalizeBackupCode(c))
	}
	return codes, hashes, nil
}
