package db

import "time"

// OperationStatus is the coarse lifecycle of an operation
type OperationStatus string

const (
	StatusQueued    OperationStatus = "queued"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
	StatusCanceled  OperationStatus = "canceled"
)

// Finished reports whether the status is terminal
func (s OperationStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// OperationState is the pipeline step an operation last reached
type OperationState string

const (
	StateCreated         OperationState = "created"
	StateWorkdirAcquired OperationState = "workdir-acquired"
	StateBuilderObtained OperationState = "builder-obtained"
	StateSourceObtained  OperationState = "source-obtained"
	StateReconciled      OperationState = "reconciled"
	StateBuilt           OperationState = "built"
	StateArtifactLocated OperationState = "artifact-located"
	StateReleased        OperationState = "released"
)

// OperationMode selects what an operation produces
type OperationMode string

const (
	ModeBuild OperationMode = "build"
	ModeList  OperationMode = "list"
)

// Operation is the registry record of one build or list request
type Operation struct {
	ID              string          `json:"id"`
	Mode            OperationMode   `json:"mode"`
	TargetName      string          `json:"target_name"`
	BoardName       string          `json:"board_name"`
	TargetVersion   string          `json:"target_version"`
	CurrentRelease  string          `json:"current_release,omitempty"`
	CurrentRevision string          `json:"current_revision,omitempty"`
	Packages        []string        `json:"packages"`
	InstallPackages []string        `json:"install_packages,omitempty"`
	Status          OperationStatus `json:"status"`
	State           OperationState  `json:"state"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ErrorState      OperationState  `json:"error_state,omitempty"`
	ImageName       string          `json:"image_name,omitempty"`
	ImageSize       int64           `json:"image_size,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}
