// Package source derives the default package sets of the firmware a router
// currently runs, from a checkout of the OpenWrt build system at that
// firmware's git ref.
package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/common/memo"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the source package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// SnapshotRelease is the release string reported by development builds.
const SnapshotRelease = "SNAPSHOT"

var revisionPattern = regexp.MustCompile(`^r([0-9]+)-([0-9a-f]+)$`)

// ParseRef maps the release and revision a router reports to a git ref of the
// OpenWrt repository.
func ParseRef(release, revision string) (string, error) {
	switch release {
	case "":
		return "", errors.ErrInvalidArgument.
			WithMessage("Current release is required to locate the source").
			WithDetail("revision", revision)
	case SnapshotRelease:
		m := revisionPattern.FindStringSubmatch(revision)
		if m == nil {
			return "", errors.ErrInvalidArgument.
				WithMessagef("Bad revision: release=%s, revision=%s", release, revision).
				WithDetail("release", release).
				WithDetail("revision", revision)
		}
		return m[2], nil
	default:
		return "v" + release, nil
	}
}

// Config holds the source checkout settings
type Config struct {
	// RepoDir contains the openwrt.git mirror
	RepoDir string `mapstructure:"repo_dir"`
	// PatchDir holds patches applied on top of every checkout, in name order
	PatchDir string `mapstructure:"patch_dir"`
	// GitName and GitEmail identify the committer of applied patches
	GitName  string `mapstructure:"git_name"`
	GitEmail string `mapstructure:"git_email"`
}

// Provider hands out Sources sharing one executor and metadata cache.
type Provider struct {
	config Config
	exec   executor.Executor
	cache  storage.Backend
}

// NewProvider creates a source provider. cache may be nil, in which case
// generated metadata is not kept between operations.
func NewProvider(cfg Config, exec executor.Executor, cache storage.Backend) *Provider {
	if cfg.GitName == "" {
		cfg.GitName = "upenwrtd"
	}
	if cfg.GitEmail == "" {
		cfg.GitEmail = "upenwrtd@localhost"
	}
	return &Provider{config: cfg, exec: exec, cache: cache}
}

// Source is the OpenWrt build system of one target at one git ref.
type Source struct {
	Target string
	Ref    string
	arch   string

	provider   *Provider
	targetInfo memo.Cell[*targetinfo.TargetInfo]
}

// Source returns the source for target at the firmware described by release and revision.
func (p *Provider) Source(target, release, revision string) (*Source, error) {
	arch, _, err := targetinfo.SplitTarget(target)
	if err != nil {
		return nil, err
	}
	ref, err := ParseRef(release, revision)
	if err != nil {
		return nil, err
	}
	return &Source{Target: target, Ref: ref, arch: arch, provider: p}, nil
}

func (s *Source) run(ctx context.Context, dir string, args ...string) error {
	_, err := s.provider.exec.Run(ctx, executor.Command{
		Args: args,
		Dir:  dir,
		Env: []string{
			"GIT_COMMITTER_NAME=" + s.provider.config.GitName,
			"GIT_COMMITTER_EMAIL=" + s.provider.config.GitEmail,
		},
	})
	return err
}

// Checkout clones the mirror into a fresh worktree below workdir, checks out
// the ref and applies the local patches. Any failing step is fatal.
func (s *Source) Checkout(ctx context.Context, workdir string) (string, error) {
	repo := filepath.Join(s.provider.config.RepoDir, "openwrt.git")
	worktree, err := os.MkdirTemp(workdir, "worktree")
	if err != nil {
		return "", errors.ErrInternal.WithMessage("Failed to create worktree directory").WithCause(err)
	}

	log.Info("Checking out source", "ref", s.Ref, "worktree", worktree)
	if err := s.run(ctx, workdir, "git", "clone", "--no-checkout", repo, worktree); err != nil {
		return "", err
	}
	if err := s.run(ctx, worktree, "git", "checkout", "--force", s.Ref); err != nil {
		return "", err
	}

	patches, err := s.patches()
	if err != nil {
		return "", err
	}
	for _, patch := range patches {
		log.Debug("Applying patch", "patch", filepath.Base(patch))
		if err := s.run(ctx, worktree, "git", "am", "-3", patch); err != nil {
			return "", err
		}
	}

	return worktree, nil
}

// patches lists the patch files in name order
func (s *Source) patches() ([]string, error) {
	dir := s.provider.config.PatchDir
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		log.Debug("No patch directory", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrInternal.WithMessagef("Failed to list patches in %s", dir).WithCause(err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// cacheKey is where the generated target metadata is kept
func (s *Source) cacheKey() string {
	return "targetinfo/" + s.Ref + "/.targetinfo-" + s.arch
}

// TargetInfo returns the target metadata of the source, parsed once. It is
// served from the metadata cache when possible; otherwise the source is
// checked out below workdir and the metadata generated.
func (s *Source) TargetInfo(ctx context.Context, workdir string) (*targetinfo.TargetInfo, error) {
	return s.targetInfo.Get(ctx, func(ctx context.Context) (*targetinfo.TargetInfo, error) {
		if ti, ok := s.cachedTargetInfo(ctx); ok {
			return ti, nil
		}

		worktree, err := s.Checkout(ctx, workdir)
		if err != nil {
			return nil, err
		}

		path, err := s.generateTargetInfo(ctx, worktree)
		if err != nil {
			return nil, err
		}
		s.storeTargetInfo(ctx, path)

		ti, err := targetinfo.LoadTargetInfo(path)
		if err != nil {
			return nil, errors.ErrMetadataMissing.WithMessagef("Failed to read %s", path).WithCause(err)
		}
		return ti, nil
	})
}

func (s *Source) generateTargetInfo(ctx context.Context, worktree string) (string, error) {
	path := filepath.Join(worktree, "tmp", "info", ".targetinfo-"+s.arch)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	log.Info("Generating target metadata", "ref", s.Ref, "arch", s.arch)
	if err := s.run(ctx, worktree, "make", "prepare-tmpinfo"); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.ErrMetadataMissing.
			WithMessagef("make prepare-tmpinfo did not produce .targetinfo-%s", s.arch).
			WithDetail("path", path)
	}
	return path, nil
}

func (s *Source) cachedTargetInfo(ctx context.Context) (*targetinfo.TargetInfo, bool) {
	cache := s.provider.cache
	if cache == nil {
		return nil, false
	}

	reader, _, err := cache.Download(ctx, s.cacheKey())
	if err != nil {
		if !errors.Is(err, errors.ErrObjectNotFound) {
			log.Warn("Failed to read cached target metadata", "key", s.cacheKey(), "error", err)
		}
		return nil, false
	}
	defer reader.Close()

	ti, err := targetinfo.ParseTargetInfo(reader)
	if err != nil {
		log.Warn("Failed to parse cached target metadata", "key", s.cacheKey(), "error", err)
		return nil, false
	}
	log.Debug("Using cached target metadata", "key", s.cacheKey())
	return ti, true
}

// storeTargetInfo keeps the generated metadata; failures only cost a regeneration later.
func (s *Source) storeTargetInfo(ctx context.Context, path string) {
	cache := s.provider.cache
	if cache == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn("Failed to open generated target metadata", "path", path, "error", err)
		return
	}
	defer f.Close()

	if err := cache.Upload(ctx, s.cacheKey(), f, -1, "text/plain"); err != nil {
		log.Warn("Failed to cache target metadata", "key", s.cacheKey(), "error", err)
	}
}
