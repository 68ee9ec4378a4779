// Package email arma y despacha los correos transaccionales del subsistema.
package email

import (
	"context"
	"fmt"
	"time"
)

// Sender despacha un correo ya armado. SMTP en producción, Echo en dev/tests.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer construye los correos del dominio sobre un Sender.
type Mailer struct {
	sender   Sender
	fromName string
}

func NewMailer(sender Sender, fromName string) *Mailer {
	if fromName == "" {
		fromName = "Back Office"
	}
	return &Mailer{sender: sender, fromName: fromName}
}

func (m *Mailer) SendActivation(ctx context.Context, to, firstName, link string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s: activá tu cuenta de administrador", m.fromName)
	text := fmt.Sprintf(
		"Hola %s,\n\nSe creó una cuenta de administrador para vos. Para activarla y definir tu contraseña entrá a:\n\n%s\n\nEl enlace vence en %s. Si no esperabas este correo, ignoralo.\n",
		firstName, link, humanDuration(ttl),
	)
	html := fmt.Sprintf(
		`<p>Hola %s,</p><p>Se creó una cuenta de administrador para vos. Para activarla y definir tu contraseña hacé clic en el botón:</p><p><a href="%s">Activar cuenta</a></p><p>El enlace vence en %s. Si no esperabas este correo, ignoralo.</p>`,
		firstName, link, humanDuration(ttl),
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTMLBody: html, TextBody: text})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, link string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s: restablecer contraseña", m.fromName)
	text := fmt.Sprintf(
		"Hola %s,\n\nRecibimos un pedido para restablecer tu contraseña. Entrá a:\n\n%s\n\nEl enlace vence en %s y sirve una sola vez. Si no fuiste vos, ignorá este correo; tu contraseña no cambió.\n",
		firstName, link, humanDuration(ttl),
	)
	html := fmt.Sprintf(
		`<p>Hola %s,</p><p>Recibimos un pedido para restablecer tu contraseña:</p><p><a href="%s">Restablecer contraseña</a></p><p>El enlace vence en %s y sirve una sola vez. Si no fuiste vos, ignorá este correo; tu contraseña no cambió.</p>`,
		firstName, link, humanDuration(ttl),
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTMLBody: html, TextBody: text})
}

func (m *Mailer) SendOTPCode(ctx context.Context, to, firstName, code string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s: tu código de verificación", m.fromName)
	text := fmt.Sprintf(
		"Hola %s,\n\nTu código de verificación es: %s\n\nVence en %s. Si no estás intentando iniciar sesión, cambiá tu contraseña de inmediato.\n",
		firstName, code, humanDuration(ttl),
	)
	html := fmt.Sprintf(
		`<p>Hola %s,</p><p>Tu código de verificación es:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>Vence en %s. Si no estás intentando iniciar sesión, cambiá tu contraseña de inmediato.</p>`,
		firstName, code, humanDuration(ttl),
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTMLBody: html, TextBody: text})
}

func (m *Mailer) SendLockoutNotice(ctx context.Context, to, firstName string, until time.Time) error {
	subject := fmt.Sprintf("%s: cuenta bloqueada temporalmente", m.fromName)
	when := until.UTC().Format("2006-01-02 15:04 UTC")
	text := fmt.Sprintf(
		"Hola %s,\n\nTu cuenta quedó bloqueada por intentos de acceso fallidos repetidos. Se desbloquea automáticamente el %s.\n\nSi no fuiste vos, contactá al equipo de seguridad.\n",
		firstName, when,
	)
	html := fmt.Sprintf(
		`<p>Hola %s,</p><p>Tu cuenta quedó bloqueada por intentos de acceso fallidos repetidos. Se desbloquea automáticamente el <strong>%s</strong>.</p><p>Si no fuiste vos, contactá al equipo de seguridad.</p>`,
		firstName, when,
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTMLBody: html, TextBody: text})
}

func (m *Mailer) SendPasswordChangedNotice(ctx context.Context, to, firstName string) error {
	subject := fmt.Sprintf("%s: tu contraseña cambió", m.fromName)
	text := fmt.Sprintf(
		"Hola %s,\n\nTu contraseña se actualizó y todas tus sesiones abiertas se cerraron. Si no fuiste vos, contactá al equipo de seguridad de inmediato.\n",
		firstName,
	)
	html := fmt.Sprintf(
		`<p>Hola %s,</p><p>Tu contraseña se actualizó y todas tus sesiones abiertas se cerraron. Si no fuiste vos, contactá al equipo de seguridad de inmediato.</p>`,
		firstName,
	)
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTMLBody: html, TextBody: text})
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%d horas", int(d.Hours()))
	case d >= time.Hour:
		if d == time.Hour {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", int(d.Hours()))
	default:
		return fmt.Sprintf("%d minutos", int(d.Minutes()))
	}
}
