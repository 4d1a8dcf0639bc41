package client

import "context"

// HealthResponse matches the server's /v1/health response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Workers   int    `json:"workers"`
	Busy      int    `json:"busy"`
}

// VersionResponse matches the server's /v1/version response
type VersionResponse struct {
	Version        string `json:"version"`
	ReleaseVersion string `json:"release_version"`
	BuildDate      string `json:"build_date"`
	GitCommit      string `json:"git_commit"`
	GoVersion      string `json:"go_version"`
}

// Health returns the server health and worker usage
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.Get(ctx, "/v1/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var resp VersionResponse
	if err := c.Get(ctx, "/v1/version", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
