// Package download fetches remote files into the cache backend with
// conditional GET, so unchanged image builder archives are reused.
package download

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bitswalk/upenwrt/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the download package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Config holds the outbound download configuration
type Config struct {
	// UserAgent is sent on every request
	UserAgent string `mapstructure:"user_agent"`

	// Timeout bounds a whole transfer; zero disables it
	Timeout time.Duration `mapstructure:"timeout"`

	// ProxyURL routes every download through an HTTP(S) proxy
	ProxyURL string `mapstructure:"proxy_url"`

	// BytesPerSec caps the aggregate download bandwidth (0 = unlimited)
	BytesPerSec int64 `mapstructure:"bytes_per_sec"`

	// TempDir receives in-flight downloads; empty uses the system default
	TempDir string `mapstructure:"temp_dir"`

	// Mirrors rewrite URL prefixes, first match wins
	Mirrors []Mirror `mapstructure:"mirrors"`
}

// DefaultConfig returns the default download configuration
func DefaultConfig() Config {
	return Config{
		UserAgent: "upenwrtd/1.0",
		Timeout:   30 * time.Minute,
	}
}

// NewHTTPClient builds the process-wide client used for all downloads.
// The transfer timeout is applied per request through the context, so the
// client itself only bounds connection setup.
func NewHTTPClient(cfg Config) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          16,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Transport: transport}, nil
}
