package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Response represents a standard error response for HTTP APIs
type Response struct {
	// Error contains the error code (domain.code format)
	Error string `json:"error"`

	// Message contains a human-readable error message
	Message string `json:"message"`

	// Details contains optional additional error details
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToResponse converts an Error to an HTTP response structure
func (e *Error) ToResponse() Response {
	return Response{
		Error:   string(e.Domain) + "." + string(e.Code),
		Message: e.Message,
		Details: e.Details,
	}
}

// NewResponse creates a response from any error. Errors that are not an
// *Error anywhere in the chain become a generic internal error.
func NewResponse(err error) Response {
	var e *Error
	if As(err, &e) {
		return e.ToResponse()
	}

	return Response{
		Error:   string(DomainInternal) + "." + string(CodeInternal),
		Message: "Internal server error",
	}
}

// Text renders the response for plain-text clients such as shell scripts on a router.
// Details are appended one per line in key order; the "output" detail goes last.
func (r Response) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", r.Error, r.Message)

	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		if k != "output" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, r.Details[k])
	}
	if out, ok := r.Details["output"]; ok {
		fmt.Fprintf(&b, "\n%v\n", out)
	}
	return b.String()
}
