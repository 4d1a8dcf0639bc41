package build

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/memo"
	"github.com/bitswalk/upenwrt/src/upenwrtd/artifact"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/reconcile"
	"github.com/bitswalk/upenwrt/src/upenwrtd/source"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

// Details is the prepared state of an operation
type Details struct {
	BuilderDir string
	Profile    *targetinfo.Profile
	// Packages is the explicit package list for the image builder
	Packages []string
	// Removed lists source defaults the client no longer has
	Removed []string
}

// Operation is one build or list request. It owns its workdir between
// Acquire and Release.
type Operation struct {
	ID       string
	Request  Request
	Artifact *artifact.Artifact
	Source   *source.Source
	Workdir  string

	// Set by Build
	Image     string
	ImageName string
	ImageSize int64

	manager     *Manager
	prepared    memo.Cell[*Details]
	releaseOnce sync.Once
	mu          sync.Mutex
	state       db.OperationState
}

// State returns the last state the operation reached
func (op *Operation) State() db.OperationState {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state == "" {
		return db.StateCreated
	}
	return op.state
}

func (op *Operation) setState(state db.OperationState) {
	op.mu.Lock()
	op.state = state
	op.mu.Unlock()

	log.Debug("Operation state", "id", op.ID, "state", state)
	if op.ID == "" || op.manager.repo == nil {
		return
	}
	if err := op.manager.repo.UpdateState(op.ID, state); err != nil {
		log.Warn("Failed to record operation state", "id", op.ID, "state", state, "error", err)
	}
}

// Acquire creates the operation's private workdir
func (op *Operation) Acquire() error {
	dir, err := os.MkdirTemp(op.manager.config.WorkDir, "op-")
	if err != nil {
		return errors.ErrInternal.WithMessage("Failed to create operation workdir").WithCause(err)
	}
	op.Workdir = dir
	op.setState(db.StateWorkdirAcquired)
	log.Debug("Workdir acquired", "id", op.ID, "workdir", dir)
	return nil
}

// Release removes the workdir. It runs at most once; failures are logged only.
func (op *Operation) Release() {
	op.releaseOnce.Do(func() {
		if op.Workdir == "" {
			return
		}
		if op.manager.config.KeepWorkdir {
			log.Info("Keeping workdir", "id", op.ID, "workdir", op.Workdir)
		} else if err := os.RemoveAll(op.Workdir); err != nil {
			log.Warn("Failed to remove workdir", "id", op.ID, "workdir", op.Workdir, "error", err)
		}
		op.setState(db.StateReleased)
	})
}

// Prepare unpacks the image builder, resolves the board and reconciles the
// requested packages. The result is computed once per operation.
func (op *Operation) Prepare(ctx context.Context) (*Details, error) {
	return op.prepared.Get(ctx, op.prepare)
}

func (op *Operation) prepare(ctx context.Context) (*Details, error) {
	if op.Workdir == "" {
		return nil, errors.ErrInternal.WithMessage("Operation has no workdir")
	}
	req := op.Request
	log.Info("Preparing operation", "id", op.ID, "target", req.TargetName, "board", req.BoardName)

	builderDir, err := op.Artifact.BuilderDir(ctx, op.Workdir)
	if err != nil {
		return nil, err
	}
	builderInfo, err := op.Artifact.TargetInfo(ctx, builderDir)
	if err != nil {
		return nil, err
	}
	profile := builderInfo.Profile(req.BoardName)
	if profile == nil {
		return nil, unknownBoard(builderInfo, req.TargetName, req.BoardName, "image builder")
	}
	packages, err := op.Artifact.PackageInfo(ctx, builderDir)
	if err != nil {
		return nil, err
	}
	op.setState(db.StateBuilderObtained)
	log.Debug("Builder profile", "id", op.ID, "profile", profile.Name, "dir", builderDir)

	input := reconcile.Input{
		Requested: req.Packages,
		Builder:   &reconcile.Defaults{Profile: profile.Packages},
		Packages:  packages,
	}
	if target := builderInfo.Target(profile.Target); target != nil {
		input.Builder.Target = target.Packages
	}

	if op.Source != nil {
		defaults, err := op.sourceDefaults(ctx)
		if err != nil {
			return nil, err
		}
		input.Source = defaults
		op.setState(db.StateSourceObtained)
	}

	result, err := op.manager.engine.Reconcile(input)
	if err != nil {
		return nil, err
	}
	op.setState(db.StateReconciled)
	if op.ID != "" && op.manager.repo != nil {
		if err := op.manager.repo.SetInstallPackages(op.ID, result.Install); err != nil {
			log.Warn("Failed to record package list", "id", op.ID, "error", err)
		}
	}

	log.Info("Packages reconciled", "id", op.ID, "install", result.Install, "removed", result.Removed)
	return &Details{
		BuilderDir: builderDir,
		Profile:    profile,
		Packages:   result.Install,
		Removed:    result.Removed,
	}, nil
}

func (op *Operation) sourceDefaults(ctx context.Context) (*reconcile.Defaults, error) {
	req := op.Request
	info, err := op.Source.TargetInfo(ctx, op.Workdir)
	if err != nil {
		return nil, err
	}

	target := info.Target(req.TargetName)
	if target == nil {
		return nil, errors.ErrUnknownTarget.
			WithMessagef("Target %s is unknown to the firmware at %s", req.TargetName, op.Source.Ref).
			WithDetail("valid_targets", info.Dump(""))
	}
	profile := info.TargetProfile(req.TargetName, req.BoardName)
	if profile == nil {
		return nil, unknownBoard(info, req.TargetName, req.BoardName, "firmware at "+op.Source.Ref)
	}

	log.Debug("Source defaults", "id", op.ID, "ref", op.Source.Ref, "target", target.Name, "profile", profile.Name)
	return &reconcile.Defaults{Target: target.Packages, Profile: profile.Packages}, nil
}

func unknownBoard(info *targetinfo.TargetInfo, target, board, where string) error {
	return errors.ErrUnknownBoard.
		WithMessagef("Board %s is unknown to the %s for %s. Valid targets:\n%s", board, where, target, info.Dump(target)).
		WithDetail("target", target).
		WithDetail("board", board)
}

// ListPackages returns the reconciled package list without building
func (op *Operation) ListPackages(ctx context.Context) ([]string, error) {
	details, err := op.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return details.Packages, nil
}

// Build runs the image builder and returns the path of the produced image.
func (op *Operation) Build(ctx context.Context) (string, error) {
	details, err := op.Prepare(ctx)
	if err != nil {
		return "", err
	}

	log.Info("Building image", "id", op.ID, "profile", details.Profile.Name, "packages", len(details.Packages))
	_, err = op.manager.exec.Run(ctx, executor.Command{
		Args: []string{
			"make", "image",
			"PROFILE=" + details.Profile.Name,
			"PACKAGES=" + strings.Join(details.Packages, " "),
		},
		Dir: details.BuilderDir,
	})
	if err != nil {
		return "", err
	}
	op.setState(db.StateBuilt)

	image, err := op.locateImage(details.BuilderDir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(image)
	if err != nil {
		return "", errors.ErrImageNotFound.WithMessagef("Built image %s is not readable", filepath.Base(image)).WithCause(err)
	}
	op.Image = image
	op.ImageName = filepath.Base(image)
	op.ImageSize = info.Size()
	op.setState(db.StateArtifactLocated)
	return image, nil
}

func (op *Operation) locateImage(builderDir string) (string, error) {
	outdir := filepath.Join(builderDir, "bin", "targets", op.Artifact.Target)
	entries, err := os.ReadDir(outdir)
	if err != nil {
		return "", errors.ErrImageNotFound.WithMessagef("No output directory %s", outdir).WithCause(err)
	}

	marker := op.manager.config.ImageMarker
	var names, matches []string
	for _, e := range entries {
		names = append(names, e.Name())
		if strings.Contains(e.Name(), marker) {
			matches = append(matches, e.Name())
		}
	}
	log.Debug("Build outputs", "id", op.ID, "dir", outdir, "outputs", names)

	if len(matches) != 1 {
		sort.Strings(matches)
		return "", errors.ErrImageNotFound.
			WithMessagef("Got %d %s images after building, expected one", len(matches), marker).
			WithDetail("outputs", names)
	}
	return filepath.Join(outdir, matches[0]), nil
}
