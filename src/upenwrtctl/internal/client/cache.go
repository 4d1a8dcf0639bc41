package client

import (
	"context"
	"strings"
	"time"
)

// CacheStatusResponse represents the cache backend status
type CacheStatusResponse struct {
	Available bool   `json:"available"`
	Type      string `json:"type"`
	Location  string `json:"location"`
	Message   string `json:"message"`
}

// CacheObject is one cached download
type CacheObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CacheObjectListResponse lists cached objects
type CacheObjectListResponse struct {
	Count     int           `json:"count"`
	TotalSize int64         `json:"total_size"`
	Objects   []CacheObject `json:"objects"`
}

// CacheStatus returns the cache backend status
func (c *Client) CacheStatus(ctx context.Context) (*CacheStatusResponse, error) {
	var resp CacheStatusResponse
	if err := c.Get(ctx, "/v1/cache", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCacheObjects lists cached objects, optionally under a key prefix
func (c *Client) ListCacheObjects(ctx context.Context, prefix string) (*CacheObjectListResponse, error) {
	var resp CacheObjectListResponse
	opts := &ListOptions{Prefix: prefix}
	if err := c.Get(ctx, "/v1/cache/objects"+opts.QueryString(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EvictCacheObject removes one cached object
func (c *Client) EvictCacheObject(ctx context.Context, key string) error {
	return c.Delete(ctx, "/v1/cache/objects/"+strings.TrimPrefix(key, "/"), nil)
}
