package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(5, 15*time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		res, err := l.Allow(ctx, "login:203.0.113.9")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d dentro del límite fue rechazado", i)
		}
	}

	// El sexto en la misma ventana se rechaza con RetryAfter.
	res, err := l.Allow(ctx, "login:203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("hit 6 debe rechazarse")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 15*time.Minute {
		t.Fatalf("RetryAfter fuera de rango: %v", res.RetryAfter)
	}

	// Otra clave no comparte ventana.
	if res, _ := l.Allow(ctx, "login:203.0.113.10"); !res.Allowed {
		t.Fatal("claves distintas no comparten contador")
	}

	// Pasada la ventana, el contador arranca de nuevo.
	now = base.Add(16 * time.Minute)
	if res, _ := l.Allow(ctx, "login:203.0.113.9"); !res.Allowed {
		t.Fatal("ventana vencida debe admitir de nuevo")
	}
}

func TestMemoryLimiterPrune(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		key := "k" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		if _, err := l.Allow(ctx, key); err != nil {
			t.Fatal(err)
		}
	}

	now = base.Add(3 * time.Minute)
	if _, err := l.Allow(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}

	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("las entradas vencidas deben podarse, quedan %d", n)
	}
}
