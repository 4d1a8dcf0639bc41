package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/bitswalk/upenwrt/src/common/errors"
)

// DefaultOutputLimit is how much trailing output is kept for diagnostics.
const DefaultOutputLimit = 64 * 1024

// HostExecutor runs commands directly on the host.
type HostExecutor struct {
	// OutputLimit caps the captured output tail in bytes
	OutputLimit int
	// KillGrace is how long a canceled process group gets between SIGTERM and SIGKILL
	KillGrace time.Duration
}

// NewHostExecutor creates a host executor with default limits
func NewHostExecutor() *HostExecutor {
	return &HostExecutor{
		OutputLimit: DefaultOutputLimit,
		KillGrace:   10 * time.Second,
	}
}

// Run executes the command in its own process group so cancellation reaches
// every child (make spawns deep process trees). Stdin is /dev/null.
func (e *HostExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, errors.ErrInvalidArgument.WithMessage("No command specified")
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = e.KillGrace

	out := newTailBuffer(e.OutputLimit)
	lines := &lineLogger{prefix: c.Args[0]}
	cmd.Stdout = io.MultiWriter(out, lines)
	cmd.Stderr = cmd.Stdout

	log.Debug("Running command", "cmd", c.String(), "dir", c.Dir)
	start := time.Now()
	err := cmd.Run()
	lines.flush()

	res := &Result{
		Output:   out.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if stderrors.Is(ctxErr, context.DeadlineExceeded) {
				return res, errors.ErrTimeout.WithMessagef("%s timed out", c.Args[0]).WithCause(err)
			}
			return res, errors.ErrCanceled.WithMessagef("%s canceled", c.Args[0]).WithCause(err)
		}
		return res, errors.ErrSubprocess.
			WithMessagef("Command failed: %s", c.String()).
			WithDetail("command", c.String()).
			WithDetail("dir", c.Dir).
			WithDetail("exit_code", res.ExitCode).
			WithDetail("output", res.Output).
			WithCause(err)
	}

	log.Debug("Command finished", "cmd", c.Args[0], "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return fmt.Sprintf("[... output truncated ...]\n%s", t.buf)
	}
	return string(t.buf)
}

// lineLogger forwards complete lines to the debug log.
type lineLogger struct {
	mu      sync.Mutex
	prefix  string
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		log.Debug(string(l.pending[:i]), "cmd", l.prefix)
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		log.Debug(string(l.pending), "cmd", l.prefix)
		l.pending = nil
	}
}
