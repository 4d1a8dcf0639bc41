// Package artifact provides OpenWrt image builders: it resolves the download
// location for a (version, target) pair, keeps the archive in the cache and
// unpacks a private copy into an operation's workdir.
package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/common/memo"
	"github.com/bitswalk/upenwrt/src/upenwrtd/download"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the artifact package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Snapshot is the version id of the development branch.
const Snapshot = "snapshot"

// Config holds the image builder location settings
type Config struct {
	// BaseURL is the root of the OpenWrt download tree
	BaseURL string `mapstructure:"base_url"`
	// Extensions are tried in order; a missing archive moves on to the next one
	Extensions []string `mapstructure:"extensions"`
	// HostSuffix names the build host flavor of the image builder
	HostSuffix string `mapstructure:"host_suffix"`
}

// DefaultConfig returns the upstream OpenWrt download location
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://downloads.openwrt.org",
		Extensions: []string{".tar.zst", ".tar.xz"},
		HostSuffix: ".Linux-x86_64",
	}
}

// Provider hands out Artifacts backed by a shared fetcher.
type Provider struct {
	config  Config
	fetcher *download.Fetcher
}

// NewProvider creates an artifact provider
func NewProvider(cfg Config, fetcher *download.Fetcher) *Provider {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = def.Extensions
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{config: cfg, fetcher: fetcher}
}

// Artifact is the image builder of one OpenWrt version for one target.
type Artifact struct {
	Version     string
	Target      string
	ReleasePath string

	provider    *Provider
	archive     memo.Cell[string]
	targetInfo  memo.Cell[*targetinfo.TargetInfo]
	packageInfo memo.Cell[*targetinfo.PackageInfo]
}

// Artifact returns the image builder for version and target.
func (p *Provider) Artifact(version, target string) (*Artifact, error) {
	if _, _, err := targetinfo.SplitTarget(target); err != nil {
		return nil, err
	}

	var releasePath string
	switch {
	case version == "":
		return nil, errors.ErrMissingArgument.WithMessage("Target version is required")
	case version == Snapshot:
		releasePath = "snapshots"
	case strings.Contains(version, "/") || strings.Contains(version, ".."):
		return nil, errors.ErrInvalidArgument.
			WithMessagef("Bad version id: %s", version).
			WithDetail("version", version)
	default:
		releasePath = "releases/" + version
	}

	return &Artifact{
		Version:     version,
		Target:      target,
		ReleasePath: releasePath,
		provider:    p,
	}, nil
}

// BaseURL is the download directory of the target
func (a *Artifact) BaseURL() string {
	return a.provider.config.BaseURL + "/" + a.ReleasePath + "/targets/" + a.Target
}

// FileName returns the image builder file name for ext.
func (a *Artifact) FileName(ext string) string {
	name := "openwrt-imagebuilder"
	if a.Version != Snapshot {
		name += "-" + a.Version
	}
	return name + "-" + strings.ReplaceAll(a.Target, "/", "-") + a.provider.config.HostSuffix + ext
}

// cacheKey is where the archive named fileName lives in the cache backend
func (a *Artifact) cacheKey(fileName string) string {
	return "imagebuilder/" + a.ReleasePath + "/" + fileName
}

// Archive makes sure the image builder archive is cached and returns its key.
func (a *Artifact) Archive(ctx context.Context) (string, error) {
	return a.archive.Get(ctx, a.fetchArchive)
}

func (a *Artifact) fetchArchive(ctx context.Context) (string, error) {
	var tried []string
	for _, ext := range a.provider.config.Extensions {
		name := a.FileName(ext)
		url := a.BaseURL() + "/" + name

		res, err := a.provider.fetcher.Fetch(ctx, url, a.cacheKey(name))
		if errors.Is(err, errors.ErrDownloadNotFound) {
			log.Debug("Image builder not available", "url", url)
			tried = append(tried, url)
			continue
		}
		if err != nil {
			return "", err
		}
		log.Info("Image builder ready", "version", a.Version, "target", a.Target, "key", res.Key, "updated", res.Updated)
		return res.Key, nil
	}

	return "", errors.ErrUnknownTarget.
		WithMessagef("No image builder for %s at version %s", a.Target, a.Version).
		WithDetail("target", a.Target).
		WithDetail("version", a.Version).
		WithDetail("tried", tried)
}

// BuilderDir unpacks a private copy of the image builder below workdir and
// returns its root directory.
func (a *Artifact) BuilderDir(ctx context.Context, workdir string) (string, error) {
	key, err := a.Archive(ctx)
	if err != nil {
		return "", err
	}

	dest, err := os.MkdirTemp(workdir, "imagebuilder")
	if err != nil {
		return "", errors.ErrInternal.WithMessage("Failed to create image builder directory").WithCause(err)
	}

	root, err := a.unpack(ctx, key, dest)
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			log.Warn("Failed to remove partial image builder", "dir", dest, "error", rmErr)
		}
		return "", err
	}

	log.Debug("Image builder unpacked", "dir", root)
	return root, nil
}

func (a *Artifact) unpack(ctx context.Context, key, dest string) (string, error) {
	reader, _, err := a.provider.fetcher.Cache().Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if err := extractArchive(ctx, reader, key, dest); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", errors.ErrInternal.WithMessage("Failed to list unpacked image builder").WithCause(err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return "", errors.ErrArchiveLayout.
			WithMessagef("Got %d top-level entries after unpacking %s, expected one directory", len(entries), key).
			WithDetail("entries", names)
	}

	return filepath.Join(dest, entries[0].Name()), nil
}

// TargetInfo returns the image builder's target metadata, parsed once.
func (a *Artifact) TargetInfo(ctx context.Context, builderDir string) (*targetinfo.TargetInfo, error) {
	return a.targetInfo.Get(ctx, func(context.Context) (*targetinfo.TargetInfo, error) {
		path := filepath.Join(builderDir, ".targetinfo")
		ti, err := targetinfo.LoadTargetInfo(path)
		if err != nil {
			return nil, errors.ErrMetadataMissing.
				WithMessage("Image builder has no readable .targetinfo").
				WithDetail("path", path).
				WithCause(err)
		}
		return ti, nil
	})
}

// PackageInfo returns the image builder's package index, parsed once. A
// builder without .packageinfo yields an empty index.
func (a *Artifact) PackageInfo(ctx context.Context, builderDir string) (*targetinfo.PackageInfo, error) {
	return a.packageInfo.Get(ctx, func(context.Context) (*targetinfo.PackageInfo, error) {
		path := filepath.Join(builderDir, ".packageinfo")
		pi, err := targetinfo.LoadPackageInfo(path)
		if os.IsNotExist(err) {
			log.Warn("Image builder has no .packageinfo, alias correlation is limited to defaults", "path", path)
			return targetinfo.NewPackageInfo(), nil
		}
		if err != nil {
			return nil, errors.ErrMetadataMissing.
				WithMessage("Image builder has an unreadable .packageinfo").
				WithDetail("path", path).
				WithCause(err)
		}
		return pi, nil
	})
}
