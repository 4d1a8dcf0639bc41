// Package memo provides a compute-once cell for values that are expensive to derive
// (parsed metadata, downloaded archives). Unlike sync.Once, a failed computation
// leaves the cell empty so the next caller retries.
package memo

import (
	"context"
	"sync"
)

// Cell holds a lazily computed value of type T.
type Cell[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
}

// Get returns the cached value, computing it with fn on first use.
// Concurrent callers block until the in-flight computation finishes and
// never observe a partially populated value.
func (c *Cell[T]) Get(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return c.value, nil
	}

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.done = true
	return v, nil
}
