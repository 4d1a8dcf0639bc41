// Package build runs image builder operations: each request gets a private
// workdir, an unpacked image builder, the reconciled package list and, for
// builds, the resulting sysupgrade image.
package build

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"time"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/upenwrtd/artifact"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/reconcile"
	"github.com/bitswalk/upenwrt/src/upenwrtd/source"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Config holds configuration for the build manager
type Config struct {
	Workers     int           `mapstructure:"workers"`      // Concurrent operations
	Timeout     time.Duration `mapstructure:"timeout"`      // Bound on one operation, queueing excluded
	ImageMarker string        `mapstructure:"image_marker"` // Substring selecting the output image
	KeepWorkdir bool          `mapstructure:"keep_workdir"` // Leave workdirs behind for debugging
	WorkDir     string        `mapstructure:"work_dir"`     // Parent of per-operation workdirs
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		Timeout:     60 * time.Minute,
		ImageMarker: "sysupgrade",
	}
}

// Request describes what a client asked for
type Request struct {
	Mode            db.OperationMode
	TargetName      string
	BoardName       string
	TargetVersion   string
	CurrentRelease  string
	CurrentRevision string
	// Packages are "name" or "name,alias1,alias2" entries
	Packages []string
}

// Manager runs operations with a bounded number of concurrent workers
type Manager struct {
	config    Config
	artifacts *artifact.Provider
	sources   *source.Provider
	engine    *reconcile.Engine
	exec      executor.Executor
	repo      *db.OperationRepository

	slots       chan struct{}
	cancelFuncs map[string]context.CancelFunc
	mu          sync.RWMutex
}

// NewManager creates a build manager. sources may be nil, in which case
// source defaults are never subtracted.
func NewManager(cfg Config, artifacts *artifact.Provider, sources *source.Provider,
	engine *reconcile.Engine, exec executor.Executor, repo *db.OperationRepository) (*Manager, error) {

	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ImageMarker == "" {
		cfg.ImageMarker = def.ImageMarker
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, errors.ErrInternal.WithMessagef("Failed to create work directory %s", cfg.WorkDir).WithCause(err)
	}

	return &Manager{
		config:      cfg,
		artifacts:   artifacts,
		sources:     sources,
		engine:      engine,
		exec:        exec,
		repo:        repo,
		slots:       make(chan struct{}, cfg.Workers),
		cancelFuncs: make(map[string]context.CancelFunc),
	}, nil
}

// Config returns the manager configuration
func (m *Manager) Config() Config {
	return m.config
}

// Repo returns the operation registry
func (m *Manager) Repo() *db.OperationRepository {
	return m.repo
}

// Workers reports the worker pool size and the slots in use
func (m *Manager) Workers() (size, busy int) {
	return cap(m.slots), len(m.slots)
}

// NewOperation validates req and resolves its artifact and source references.
// Nothing is registered or allocated yet.
func (m *Manager) NewOperation(req Request) (*Operation, error) {
	if req.TargetName == "" {
		return nil, errors.ErrMissingArgument.WithMessage("target_name is required")
	}
	if req.BoardName == "" {
		return nil, errors.ErrMissingArgument.WithMessage("board_name is required")
	}
	if _, _, err := targetinfo.SplitTarget(req.TargetName); err != nil {
		return nil, err
	}
	if req.TargetVersion == "" {
		req.TargetVersion = artifact.Snapshot
	}
	if req.Mode == "" {
		req.Mode = db.ModeBuild
	}

	art, err := m.artifacts.Artifact(req.TargetVersion, req.TargetName)
	if err != nil {
		return nil, err
	}

	op := &Operation{Request: req, Artifact: art, manager: m}
	if req.CurrentRelease != "" || req.CurrentRevision != "" {
		if m.sources == nil {
			log.Warn("Source checkouts are not configured, ignoring current firmware",
				"release", req.CurrentRelease, "revision", req.CurrentRevision)
		} else {
			src, err := m.sources.Source(req.TargetName, req.CurrentRelease, req.CurrentRevision)
			if err != nil {
				return nil, err
			}
			op.Source = src
		}
	}
	return op, nil
}

// Execute registers op, waits for a worker slot, acquires the workdir, runs fn
// and always releases the workdir afterwards. The outcome is recorded in the
// registry.
func (m *Manager) Execute(ctx context.Context, op *Operation, fn func(context.Context, *Operation) error) error {
	record := &db.Operation{
		Mode:            op.Request.Mode,
		TargetName:      op.Request.TargetName,
		BoardName:       op.Request.BoardName,
		TargetVersion:   op.Request.TargetVersion,
		CurrentRelease:  op.Request.CurrentRelease,
		CurrentRevision: op.Request.CurrentRevision,
		Packages:        op.Request.Packages,
	}
	if err := m.repo.Create(record); err != nil {
		return err
	}
	op.ID = record.ID

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.registerCancel(op.ID, cancel)
	defer m.unregisterCancel(op.ID)

	err := m.run(ctx, op, fn)
	m.finish(op, err)
	return err
}

func (m *Manager) run(ctx context.Context, op *Operation, fn func(context.Context, *Operation) error) (err error) {
	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
	}
	// A slot and a cancellation can become ready together.
	if ctx.Err() != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.ErrBusy.WithCause(ctx.Err())
		}
		return errors.ErrCanceled.WithMessage("Operation canceled while waiting for a worker").WithCause(ctx.Err())
	}

	if err := m.repo.MarkStarted(op.ID); err != nil {
		log.Warn("Failed to mark operation started", "id", op.ID, "error", err)
	}

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	log.Info("Operation started",
		"id", op.ID,
		"mode", op.Request.Mode,
		"target", op.Request.TargetName,
		"board", op.Request.BoardName,
		"version", op.Request.TargetVersion)

	if err := op.Acquire(); err != nil {
		return err
	}
	defer op.Release()

	return fn(ctx, op)
}

func (m *Manager) finish(op *Operation, err error) {
	var recErr error
	switch {
	case err == nil:
		recErr = m.repo.MarkCompleted(op.ID, op.ImageName, op.ImageSize)
		log.Info("Operation completed", "id", op.ID, "image", op.ImageName)
	case errors.Is(err, errors.ErrCanceled) || stderrors.Is(err, context.Canceled):
		recErr = m.repo.MarkCanceled(op.ID, err.Error())
		log.Info("Operation canceled", "id", op.ID)
	default:
		recErr = m.repo.MarkFailed(op.ID, err.Error())
		log.Error("Operation failed", "id", op.ID, "state", op.State(), "error", err)
	}
	if recErr != nil {
		log.Warn("Failed to record operation outcome", "id", op.ID, "error", recErr)
	}
}

// Cancel cancels a queued or running operation
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	cancel, exists := m.cancelFuncs[id]
	m.mu.RUnlock()

	if !exists {
		return errors.ErrOperationNotFound.WithMessagef("No active operation %s", id)
	}
	log.Info("Canceling operation", "id", id)
	cancel()
	return nil
}

// CancelAll cancels every queued or running operation and returns how many
// were signaled. Their workdirs are released as they unwind.
func (m *Manager) CancelAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, cancel := range m.cancelFuncs {
		log.Info("Canceling operation", "id", id)
		cancel()
	}
	return len(m.cancelFuncs)
}

// Active reports whether the operation is queued or running
func (m *Manager) Active(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.cancelFuncs[id]
	return exists
}

func (m *Manager) registerCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelFuncs[id] = cancel
}

func (m *Manager) unregisterCancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancelFuncs, id)
}
