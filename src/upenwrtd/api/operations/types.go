package operations

import (
	"github.com/bitswalk/upenwrt/src/upenwrtd/build"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
)

// Handler handles operation registry requests
type Handler struct {
	manager *build.Manager
}

// Config contains configuration for the operations handler
type Config struct {
	BuildManager *build.Manager
}

// OperationResponse is one registry entry
type OperationResponse struct {
	db.Operation
	Active bool `json:"active" example:"true"`
}

// OperationListResponse represents a list of operations
type OperationListResponse struct {
	Count      int                 `json:"count" example:"1"`
	Operations []OperationResponse `json:"operations"`
}

// CancelResponse is returned after a cancel request was delivered
type CancelResponse struct {
	ID      string `json:"id" example:"0b9c2f5e-7d3a-4a59-9d8e-4c1f0f6a1b2c"`
	Message string `json:"message" example:"Cancellation requested"`
}
