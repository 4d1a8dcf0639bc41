// Package storage provides the cache backends used by upenwrtd for downloaded
// image builder archives and generated source metadata.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bitswalk/upenwrt/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the storage package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Backend defines the interface for cache backends.
// Upload must replace an existing object atomically: a concurrent reader sees
// either the previous object or the new one, never a partial write.
type Backend interface {
	// Upload stores data under key. A size of -1 means unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete deletes an object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetInfo retrieves metadata for an object
	GetInfo(ctx context.Context, key string) (*ObjectInfo, error)

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// LocalPathResolver is implemented by backends that keep objects on the local
// filesystem, so callers can read them in place.
type LocalPathResolver interface {
	ResolvePath(key string) string
}

// ObjectInfo holds metadata about a cached object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Config holds the storage configuration
type Config struct {
	// Type is the storage backend type: "local" or "s3"
	Type string `mapstructure:"type"`

	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
}

// DefaultConfig returns a local cache under basePath
func DefaultConfig(basePath string) Config {
	return Config{
		Type:  "local",
		Local: LocalConfig{BasePath: basePath},
	}
}

// New creates a storage backend from configuration
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
