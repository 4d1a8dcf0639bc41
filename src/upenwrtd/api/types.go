package api

import (
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/base"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/cache"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/images"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/operations"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/templates"
	"github.com/bitswalk/upenwrt/src/upenwrtd/build"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

// ErrorResponse is an alias to common.ErrorResponse
type ErrorResponse = common.ErrorResponse

// API holds all handler instances
type API struct {
	Base       *base.Handler
	Images     *images.Handler
	Operations *operations.Handler
	Cache      *cache.Handler
	Templates  *templates.Handler

	basePath    string
	rateLimiter *RateLimiter
}

// Config contains API configuration options
type Config struct {
	BuildManager *build.Manager
	Storage      storage.Backend

	// StaticDir holds README.txt and get.sh
	StaticDir string
	// BaseURL is the public URL substituted into the templates
	BaseURL string
	// BasePath is the path prefix all routes are mounted under
	BasePath string
	// RateLimit bounds requests per client IP; nil or disabled means no limit
	RateLimit *RateLimitConfig
}
