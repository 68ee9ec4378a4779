package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: ventana deslizante {count, resetAt} por clave, en memoria
// de proceso. No sobrevive un restart y no hace falta que lo haga; un
// despliegue distribuido usa RedisLimiter.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	entries map[string]*memEntry

	lastPrune time.Time
	now       func() time.Time // inyectable en tests
}

type memEntry struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  window,
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &memEntry{count: 1, resetAt: now.Add(l.Window)}
		return Result{Allowed: true, Remaining: l.Max - 1, CurrentHits: 1, WindowTTL: l.Window}, nil
	}

	e.count++
	ttl := e.resetAt.Sub(now)
	if e.count > l.Max {
		return Result{
			Allowed:     false,
			Remaining:   0,
			CurrentHits: e.count,
			RetryAfter:  ttl,
			WindowTTL:   ttl,
		}, nil
	}
	return Result{Allowed: true, Remaining: l.Max - e.count, CurrentHits: e.count, WindowTTL: ttl}, nil
}

// pruneLocked descarta entradas vencidas, como mucho una vez por ventana,
// para que el mapa no crezca sin límite con IPs de un solo uso.
func (l *MemoryLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.Window {
		return
	}
	l.lastPrune = now
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
		}
	}
}
