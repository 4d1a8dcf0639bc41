package base

import "github.com/bitswalk/upenwrt/src/upenwrtd/build"

// Handler handles base HTTP requests (health, version)
type Handler struct {
	manager *build.Manager
}

// Config contains configuration for the base handler
type Config struct {
	BuildManager *build.Manager
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"healthy"`
	Timestamp string `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Workers   int    `json:"workers" example:"2"`
	Busy      int    `json:"busy" example:"1"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version        string `json:"version" example:"upenwrtd v1.0.0-4f9f297"`
	ReleaseVersion string `json:"release_version" example:"1.0.0"`
	BuildDate      string `json:"build_date" example:"2024-01-15T10:30:00Z"`
	GitCommit      string `json:"git_commit" example:"4f9f297"`
	GoVersion      string `json:"go_version" example:"go1.24"`
}
