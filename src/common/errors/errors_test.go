package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bitswalk/upenwrt/src/common/errors"
)

// =============================================================================
// Error Creation Tests
// =============================================================================

func TestError_New(t *testing.T) {
	err := errors.New(errors.DomainRequest, "test_code", http.StatusBadRequest, "test message")

	if err.Domain != errors.DomainRequest {
		t.Fatalf("expected domain %s, got %s", errors.DomainRequest, err.Domain)
	}
	if err.Code != "test_code" {
		t.Fatalf("expected code test_code, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := stderrors.New("exit status 2")
	err := errors.Wrap(cause, errors.DomainSubprocess, "failed", http.StatusInternalServerError, "make failed")

	if err.Unwrap() != cause {
		t.Fatal("expected wrapped error to be returned by Unwrap")
	}
	if got := err.Error(); got != "subprocess.failed: make failed: exit status 2" {
		t.Fatalf("unexpected error string: %s", got)
	}
}

// =============================================================================
// Derivation Tests
// =============================================================================

func TestError_DerivedKeepsSentinelUnchanged(t *testing.T) {
	original := errors.ErrSubprocess
	derived := original.
		WithMessagef("git checkout %s failed", "abcdef01").
		WithDetail("exit_code", 128).
		WithCause(stderrors.New("exit status 128"))

	if original.Unwrap() != nil || original.Details != nil {
		t.Fatal("sentinel error must not be mutated")
	}
	if original.Message == derived.Message {
		t.Fatal("derived message should differ")
	}
	if derived.Details["exit_code"] != 128 {
		t.Fatalf("expected exit_code detail, got %v", derived.Details)
	}
	if !errors.Is(derived, errors.ErrSubprocess) {
		t.Fatal("derived error should match its sentinel")
	}
}

func TestError_WithDetailCopies(t *testing.T) {
	a := errors.ErrSubprocess.WithDetail("command", "make image")
	b := a.WithDetail("exit_code", 1)

	if _, ok := a.Details["exit_code"]; ok {
		t.Fatal("WithDetail must not write into the receiver's details")
	}
	if len(b.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(b.Details))
	}
}

// =============================================================================
// Matching Tests
// =============================================================================

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same sentinel", errors.ErrUnknownBoard, errors.ErrUnknownBoard, true},
		{"custom message", errors.ErrUnknownBoard.WithMessage("nope"), errors.ErrUnknownBoard, true},
		{"fmt wrapped", fmt.Errorf("prepare: %w", errors.ErrArchiveLayout), errors.ErrArchiveLayout, true},
		{"different code", errors.ErrUnknownBoard, errors.ErrUnknownTarget, false},
		{"plain error", stderrors.New("boom"), errors.ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", errors.ErrInvalidArgument, http.StatusBadRequest},
		{"unknown board", errors.ErrUnknownBoard, http.StatusNotFound},
		{"integrity", errors.ErrImageNotFound, http.StatusInternalServerError},
		{"download", errors.ErrDownloadFailed, http.StatusBadGateway},
		{"wrapped", fmt.Errorf("x: %w", errors.ErrMissingArgument), http.StatusBadRequest},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsUserError(t *testing.T) {
	if !errors.IsUserError(errors.ErrUnknownBoard) {
		t.Error("unknown board should be a user error")
	}
	if errors.IsUserError(errors.ErrAmbiguousAlias) {
		t.Error("ambiguous alias should not be a user error")
	}
	if errors.IsUserError(stderrors.New("boom")) {
		t.Error("plain errors should not be user errors")
	}
}

// =============================================================================
// Response Tests
// =============================================================================

func TestNewResponse(t *testing.T) {
	resp := errors.NewResponse(fmt.Errorf("wrapped: %w", errors.ErrUnknownTarget.WithMessage("Unknown target foo/bar")))
	if resp.Error != "request.unknown_target" {
		t.Fatalf("unexpected error code %q", resp.Error)
	}
	if resp.Message != "Unknown target foo/bar" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	generic := errors.NewResponse(stderrors.New("secret internals"))
	if generic.Error != "internal.internal_error" || strings.Contains(generic.Message, "secret") {
		t.Fatalf("plain errors must not leak: %+v", generic)
	}
}

func TestResponse_Text(t *testing.T) {
	resp := errors.ErrSubprocess.
		WithMessage("make image failed").
		WithDetail("output", "line1\nline2").
		WithDetail("exit_code", 2).
		WithDetail("command", "make image").
		ToResponse()

	want := "subprocess.failed: make image failed\ncommand: make image\nexit_code: 2\n\nline1\nline2\n"
	if got := resp.Text(); got != want {
		t.Fatalf("Text() =\n%q\nwant\n%q", got, want)
	}
}
