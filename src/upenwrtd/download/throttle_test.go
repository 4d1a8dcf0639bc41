package download

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestRateLimiter_UnlimitedIsNil(t *testing.T) {
	rl := newRateLimiter(0)
	if rl != nil {
		t.Fatal("expected nil limiter for unlimited bandwidth")
	}
	if err := rl.Wait(context.Background(), 1<<20); err != nil {
		t.Fatalf("nil limiter must not block: %v", err)
	}
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	rl := newRateLimiter(100)
	_ = rl.Wait(context.Background(), int(rl.maxTokens))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, 1000); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	rl := newRateLimiter(10000)
	_ = rl.Wait(context.Background(), int(rl.maxTokens))

	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := rl.Wait(context.Background(), 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("expected fast return after refill, took %v", elapsed)
	}
}

func TestThrottledReader(t *testing.T) {
	tests := []struct {
		name    string
		limiter *rateLimiter
	}{
		{"unlimited", nil},
		{"within burst", newRateLimiter(50 * 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte("a"), 10*1024)
			tr := newThrottledReader(context.Background(), bytes.NewReader(data), tt.limiter)

			out, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != len(data) {
				t.Errorf("expected %d bytes, got %d", len(data), len(out))
			}
		})
	}
}

func TestThrottledReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := newThrottledReader(ctx, bytes.NewReader([]byte("x")), nil)
	if _, err := tr.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected error from canceled reader")
	}
}
