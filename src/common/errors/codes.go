package errors

import "net/http"

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeInvalidRequest Code = "invalid_request"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
	CodeTimeout        Code = "timeout"
	CodeCanceled       Code = "canceled"
)

// ============================================================================
// Request Errors
// ============================================================================

var (
	// ErrInvalidArgument is returned when a request parameter is malformed
	ErrInvalidArgument = New(DomainRequest, "invalid_argument", http.StatusBadRequest,
		"Invalid argument")

	// ErrMissingArgument is returned when a required request parameter is absent
	ErrMissingArgument = New(DomainRequest, "missing_argument", http.StatusBadRequest,
		"Missing argument")

	// ErrUnknownTarget is returned when the image builder does not know the target
	ErrUnknownTarget = New(DomainRequest, "unknown_target", http.StatusNotFound,
		"Unknown target")

	// ErrUnknownBoard is returned when no profile or device alias matches the board
	ErrUnknownBoard = New(DomainRequest, "unknown_board", http.StatusNotFound,
		"Unknown board")

	// ErrRateLimited is returned when a client sends too many requests
	ErrRateLimited = New(DomainRequest, "rate_limited", http.StatusTooManyRequests,
		"Too many requests, try again later")

	// ErrOperationNotFound is returned when an operation id is not registered
	ErrOperationNotFound = New(DomainRequest, CodeNotFound, http.StatusNotFound,
		"Operation not found")
)

// ============================================================================
// Integrity Errors
// ============================================================================

var (
	// ErrArchiveLayout is returned when an archive does not hold exactly one top-level entry
	ErrArchiveLayout = New(DomainIntegrity, "archive_layout", http.StatusInternalServerError,
		"Archive must contain exactly one top-level entry")

	// ErrImageNotFound is returned when the build output holds zero or several images
	ErrImageNotFound = New(DomainIntegrity, "image_not_found", http.StatusInternalServerError,
		"Could not locate a single sysupgrade image")

	// ErrAmbiguousAlias is returned when an alias resolves to more than one package
	ErrAmbiguousAlias = New(DomainIntegrity, "ambiguous_alias", http.StatusInternalServerError,
		"Ambiguous package alias")

	// ErrMetadataMissing is returned when expected metadata was not generated
	ErrMetadataMissing = New(DomainIntegrity, "metadata_missing", http.StatusInternalServerError,
		"Metadata file missing")
)

// ============================================================================
// Subprocess Errors
// ============================================================================

var (
	// ErrSubprocess is returned when an external command exits non-zero
	ErrSubprocess = New(DomainSubprocess, "failed", http.StatusInternalServerError,
		"External command failed")
)

// ============================================================================
// Download Errors
// ============================================================================

var (
	// ErrDownloadFailed is returned on transport errors or unexpected upstream statuses
	ErrDownloadFailed = New(DomainDownload, "failed", http.StatusBadGateway,
		"Download failed")

	// ErrDownloadNotFound is returned when upstream answers 404
	ErrDownloadNotFound = New(DomainDownload, CodeNotFound, http.StatusNotFound,
		"Remote file not found")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	// ErrStorageUnavailable is returned when the cache backend cannot be reached
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, http.StatusServiceUnavailable,
		"Storage service unavailable")

	// ErrObjectNotFound is returned when a cached object is absent
	ErrObjectNotFound = New(DomainStorage, CodeNotFound, http.StatusNotFound,
		"Object not found")

	// ErrStorageUpload is returned when writing to the cache fails
	ErrStorageUpload = New(DomainStorage, "upload_failed", http.StatusInternalServerError,
		"Failed to store object")
)

// ============================================================================
// Database Errors
// ============================================================================

var (
	// ErrDatabaseQuery is returned when a registry query fails
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", http.StatusInternalServerError,
		"Database query failed")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal server error
	ErrInternal = New(DomainInternal, CodeInternal, http.StatusInternalServerError,
		"Internal server error")

	// ErrCanceled is returned when an operation is canceled or the client went away
	ErrCanceled = New(DomainInternal, CodeCanceled, 499,
		"Operation canceled")

	// ErrTimeout is returned when an operation exceeds its deadline
	ErrTimeout = New(DomainInternal, CodeTimeout, http.StatusGatewayTimeout,
		"Operation timed out")

	// ErrBusy is returned when no worker slot frees up before the caller gives up
	ErrBusy = New(DomainInternal, CodeUnavailable, http.StatusServiceUnavailable,
		"All build workers are busy")
)
