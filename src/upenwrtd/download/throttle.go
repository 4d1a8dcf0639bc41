package download

import (
	"context"
	"io"
	"sync"
	"time"
)

// rateLimiter is a token bucket shared by every transfer of a Fetcher.
type rateLimiter struct {
	bytesPerSec int64
	tokens      int64
	maxTokens   int64
	lastRefill  time.Time
	mu          sync.Mutex
}

// newRateLimiter returns nil for unlimited bandwidth.
func newRateLimiter(bytesPerSec int64) *rateLimiter {
	if bytesPerSec <= 0 {
		return nil
	}
	// one second of burst, at least 64KB
	maxTokens := max(bytesPerSec, 65536)
	return &rateLimiter{
		bytesPerSec: bytesPerSec,
		tokens:      maxTokens,
		maxTokens:   maxTokens,
		lastRefill:  time.Now(),
	}
}

// Wait blocks until n bytes worth of tokens are available or ctx is done.
func (rl *rateLimiter) Wait(ctx context.Context, n int) error {
	if rl == nil {
		return nil
	}

	for {
		rl.mu.Lock()
		now := time.Now()
		if refill := int64(now.Sub(rl.lastRefill).Seconds() * float64(rl.bytesPerSec)); refill > 0 {
			rl.tokens = min(rl.tokens+refill, rl.maxTokens)
			rl.lastRefill = now
		}

		needed := int64(n)
		if rl.tokens >= needed {
			rl.tokens -= needed
			rl.mu.Unlock()
			return nil
		}

		deficit := needed - rl.tokens
		wait := time.Duration(float64(deficit) / float64(rl.bytesPerSec) * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// throttledReader applies a rateLimiter and ctx cancellation to reads.
type throttledReader struct {
	ctx     context.Context
	reader  io.Reader
	limiter *rateLimiter
}

func newThrottledReader(ctx context.Context, r io.Reader, limiter *rateLimiter) *throttledReader {
	return &throttledReader{ctx: ctx, reader: r, limiter: limiter}
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if err := tr.ctx.Err(); err != nil {
		return 0, err
	}
	if tr.limiter == nil {
		return tr.reader.Read(p)
	}

	// small reads so a single call never holds a large token debt
	if len(p) > 32768 {
		p = p[:32768]
	}

	n, err := tr.reader.Read(p)
	if n > 0 {
		if waitErr := tr.limiter.Wait(tr.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
