// Package executor runs the external tools upenwrtd depends on (git, make)
// with a closed stdin, captured output and context cancellation.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/bitswalk/upenwrt/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the executor package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Command describes one process invocation.
type Command struct {
	// Args is the program followed by its arguments
	Args []string
	// Dir is the working directory
	Dir string
	// Env holds extra KEY=value entries on top of the inherited environment
	Env []string
}

// String renders the command line for logs and error details
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Result is what a finished command left behind.
type Result struct {
	// Output holds the tail of the interleaved stdout and stderr
	Output   string
	ExitCode int
	Duration time.Duration
}

// Executor runs commands. A non-zero exit is reported as an error carrying
// the captured output.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, cmd Command) (*Result, error)

// Run calls f(ctx, cmd)
func (f Func) Run(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}
