package client

import (
	"context"
	"net/url"
	"time"
)

// Operation is one entry of the server's operation registry
type Operation struct {
	ID              string     `json:"id"`
	Mode            string     `json:"mode"`
	TargetName      string     `json:"target_name"`
	BoardName       string     `json:"board_name"`
	TargetVersion   string     `json:"target_version"`
	CurrentRelease  string     `json:"current_release,omitempty"`
	CurrentRevision string     `json:"current_revision,omitempty"`
	Packages        []string   `json:"packages"`
	InstallPackages []string   `json:"install_packages,omitempty"`
	Status          string     `json:"status"`
	State           string     `json:"state"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ErrorState      string     `json:"error_state,omitempty"`
	ImageName       string     `json:"image_name,omitempty"`
	ImageSize       int64      `json:"image_size,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Active          bool       `json:"active"`
}

// Duration returns how long the operation ran, or has been running so far
func (o *Operation) Duration(now time.Time) time.Duration {
	if o.StartedAt == nil {
		return 0
	}
	end := now
	if o.CompletedAt != nil {
		end = *o.CompletedAt
	}
	return end.Sub(*o.StartedAt).Round(time.Second)
}

// OperationListResponse represents a list of operations
type OperationListResponse struct {
	Count      int         `json:"count"`
	Operations []Operation `json:"operations"`
}

// CancelResponse is returned once a cancel request was delivered
type CancelResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ListOperations returns recent operations, newest first
func (c *Client) ListOperations(ctx context.Context, opts *ListOptions) (*OperationListResponse, error) {
	var resp OperationListResponse
	if err := c.Get(ctx, "/v1/operations"+opts.QueryString(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOperation returns one operation
func (c *Client) GetOperation(ctx context.Context, id string) (*Operation, error) {
	var resp Operation
	if err := c.Get(ctx, "/v1/operations/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOperation cancels a queued or running operation
func (c *Client) CancelOperation(ctx context.Context, id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.Delete(ctx, "/v1/operations/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
