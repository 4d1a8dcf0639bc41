// Package api wires the upenwrtd HTTP handlers.
package api

import (
	"path"

	"github.com/bitswalk/upenwrt/src/common/logs"
	"github.com/bitswalk/upenwrt/src/common/version"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/base"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/cache"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/images"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/operations"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/templates"
)

// SetLogger sets the logger for the api package and subpackages
func SetLogger(l *logs.Logger) {
	common.SetLogger(l)
	common.SetAuditLogger(l)
}

// SetVersionInfo sets the version info for the api package and subpackages
func SetVersionInfo(v *version.Info) {
	base.SetVersionInfo(v)
}

// New creates a new API instance with all subpackage handlers
func New(cfg Config) *API {
	a := &API{
		Base: base.NewHandler(base.Config{
			BuildManager: cfg.BuildManager,
		}),

		Images: images.NewHandler(images.Config{
			BuildManager: cfg.BuildManager,
		}),

		Operations: operations.NewHandler(operations.Config{
			BuildManager: cfg.BuildManager,
		}),

		Cache: cache.NewHandler(cache.Config{
			Storage: cfg.Storage,
		}),

		Templates: templates.NewHandler(templates.Config{
			StaticDir: cfg.StaticDir,
			BaseURL:   cfg.BaseURL,
		}),

		basePath: cleanBasePath(cfg.BasePath),
	}
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		a.rateLimiter = NewRateLimiter(*cfg.RateLimit)
	}
	return a
}

// Close stops background work owned by the API
func (a *API) Close() {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}

func cleanBasePath(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return ""
	}
	return p
}
