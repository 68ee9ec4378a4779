package email

import (
	"context"
	"sync"

	"github.com/dropDatabas3/adminauth/internal/observability/logger"
)

// EchoSender loguea el correo en vez de enviarlo y guarda una copia. Es el
// sender de dev y de los tests.
type EchoSender struct {
	mu   sync.Mutex
	sent []Message
}

func NewEchoSender() *EchoSender { return &EchoSender{} }

func (e *EchoSender) Send(ctx context.Context, msg Message) error {
	e.mu.Lock()
	e.sent = append(e.sent, msg)
	e.mu.Unlock()
	logger.From(ctx).Info("email (echo)",
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
	)
	return nil
}

// Sent devuelve una copia de los mensajes despachados.
func (e *EchoSender) Sent() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.sent...)
}

// Reset descarta lo acumulado.
func (e *EchoSender) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = nil
}
