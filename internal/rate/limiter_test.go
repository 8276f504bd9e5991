package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_BlocksOverMax(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("4th request should be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Fatal("expected positive retry-after")
	}

	// otra key no comparte ventana
	res, _ = l.Allow(ctx, "ip:5.6.7.8")
	if !res.Allowed {
		t.Fatal("independent key should be allowed")
	}
}
