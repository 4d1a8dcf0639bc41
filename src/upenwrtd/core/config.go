package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bitswalk/upenwrt/src/common/cli"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api"
	"github.com/bitswalk/upenwrt/src/upenwrtd/artifact"
	"github.com/bitswalk/upenwrt/src/upenwrtd/build"
	"github.com/bitswalk/upenwrt/src/upenwrtd/download"
	"github.com/bitswalk/upenwrt/src/upenwrtd/reconcile"
	"github.com/bitswalk/upenwrt/src/upenwrtd/source"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

// Layout is the on-disk layout under the base directory
type Layout struct {
	Base    string
	Static  string
	Patches string
	Cache   string
	Work    string
	Repo    string
}

func layout() Layout {
	base, err := filepath.Abs(cli.GetExpandedString("paths.base"))
	if err != nil {
		base = cli.GetExpandedString("paths.base")
	}
	static := filepath.Join(base, "static")
	return Layout{
		Base:    base,
		Static:  static,
		Patches: filepath.Join(static, "patches"),
		Cache:   filepath.Join(base, "cache"),
		Work:    filepath.Join(base, "work"),
		Repo:    filepath.Join(base, "repo"),
	}
}

func storageConfig(l Layout) storage.Config {
	cfg := storage.DefaultConfig(l.Cache)
	cacheType := viper.GetString("cache.type")

	// An S3 endpoint selects the S3 backend regardless of cache.type
	endpoint := viper.GetString("cache.s3.endpoint")
	if endpoint != "" {
		cacheType = "s3"
	}
	cfg.Type = cacheType
	cfg.S3 = storage.S3Config{
		Endpoint:        endpoint,
		Region:          viper.GetString("cache.s3.region"),
		Bucket:          viper.GetString("cache.s3.bucket"),
		Prefix:          viper.GetString("cache.s3.prefix"),
		AccessKeyID:     viper.GetString("cache.s3.access_key_id"),
		SecretAccessKey: viper.GetString("cache.s3.secret_access_key"),
		UsePathStyle:    viper.GetBool("cache.s3.use_path_style"),
	}
	return cfg
}

func downloadConfig(l Layout) (download.Config, error) {
	cfg := download.DefaultConfig()
	cfg.Timeout = cli.GetDuration("download.timeout", cfg.Timeout)
	cfg.ProxyURL = viper.GetString("download.proxy_url")
	cfg.BytesPerSec = viper.GetInt64("download.bytes_per_sec")
	cfg.TempDir = filepath.Join(l.Work, "downloads")
	if ua := viper.GetString("download.user_agent"); ua != "" {
		cfg.UserAgent = ua
	} else {
		cfg.UserAgent = VersionInfo.UserAgent("upenwrtd")
	}

	if err := viper.UnmarshalKey("download.mirrors", &cfg.Mirrors); err != nil {
		return cfg, fmt.Errorf("invalid download.mirrors: %w", err)
	}
	// download.mirror_url is shorthand for a mirror of the whole upstream site
	if mirror := viper.GetString("download.mirror_url"); mirror != "" {
		cfg.Mirrors = append(cfg.Mirrors, download.Mirror{
			Name:      "default",
			URLPrefix: artifactConfig().BaseURL,
			MirrorURL: strings.TrimSuffix(mirror, "/"),
		})
	}
	return cfg, nil
}

func artifactConfig() artifact.Config {
	cfg := artifact.DefaultConfig()
	if v := viper.GetString("imagebuilder.base_url"); v != "" {
		cfg.BaseURL = strings.TrimSuffix(v, "/")
	}
	if v := viper.GetStringSlice("imagebuilder.extensions"); len(v) > 0 {
		cfg.Extensions = v
	}
	if v := viper.GetString("imagebuilder.host_suffix"); v != "" {
		cfg.HostSuffix = v
	}
	return cfg
}

func sourceConfig(l Layout) source.Config {
	return source.Config{
		RepoDir:  l.Repo,
		PatchDir: l.Patches,
		GitName:  viper.GetString("source.git_name"),
		GitEmail: viper.GetString("source.git_email"),
	}
}

func buildConfig(l Layout) build.Config {
	def := build.DefaultConfig()
	return build.Config{
		Workers:     viper.GetInt("build.workers"),
		Timeout:     cli.GetDuration("build.timeout", def.Timeout),
		ImageMarker: viper.GetString("build.image_marker"),
		KeepWorkdir: viper.GetBool("build.keep_workdir"),
		WorkDir:     l.Work,
	}
}

func reconcileConfig() (reconcile.Config, error) {
	cfg := reconcile.DefaultConfig()
	if !viper.IsSet("reconcile.fixups") {
		return cfg, nil
	}
	var rules []reconcile.FixupRule
	if err := viper.UnmarshalKey("reconcile.fixups", &rules); err != nil {
		return cfg, fmt.Errorf("invalid reconcile.fixups: %w", err)
	}
	cfg.Fixups = rules
	return cfg, nil
}

func baseURL() string {
	if v := viper.GetString("server.base_url"); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	host := viper.GetString("server.bind")
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d%s", host, viper.GetInt("server.port"), viper.GetString("server.base_path"))
}

func operationRetention() time.Duration {
	return cli.GetDuration("operations.retention", 24*time.Hour)
}

func rateLimitConfig() *api.RateLimitConfig {
	cfg := api.DefaultRateLimitConfig()
	cfg.Enabled = viper.GetBool("ratelimit.enabled")
	cfg.BuildRequestsPerMin = viper.GetInt("ratelimit.build_requests_per_min")
	cfg.APIRequestsPerMin = viper.GetInt("ratelimit.api_requests_per_min")
	return &cfg
}
