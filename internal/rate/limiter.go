// Package rate implementa rate limiting por clave (IP o email normalizado).
package rate

import (
	"context"
	"time"
)

// Result contiene el resultado de una consulta al rate limiter.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter define la interfaz mínima para un rate limiter.
// El contrato (clave → contador por ventana) vive detrás de esta interfaz
// para que un despliegue multi-instancia pueda enchufar Redis sin tocar
// los services.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
