package cache

import "github.com/bitswalk/upenwrt/src/upenwrtd/storage"

// Handler handles cache inspection requests
type Handler struct {
	storage storage.Backend
}

// Config contains configuration for the cache handler
type Config struct {
	Storage storage.Backend
}

// StatusResponse represents the cache backend status
type StatusResponse struct {
	Available bool   `json:"available" example:"true"`
	Type      string `json:"type" example:"local"`
	Location  string `json:"location" example:"/var/lib/upenwrtd/cache"`
	Message   string `json:"message" example:"Cache is operational"`
}

// ObjectListResponse lists cached objects
type ObjectListResponse struct {
	Count     int                  `json:"count" example:"2"`
	TotalSize int64                `json:"total_size" example:"104857600"`
	Objects   []storage.ObjectInfo `json:"objects"`
}
