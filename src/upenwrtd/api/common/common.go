// Package common holds helpers shared by the upenwrtd HTTP handlers.
package common

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
)

const (
	DefaultPaginationLimit = 50
	MaxPaginationLimit     = 500
)

var log = logs.NewDefault()

// SetLogger sets the logger for the api common package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// ErrorResponse is the JSON error body
type ErrorResponse = errors.Response

// WantsJSON reports whether the client negotiated a JSON response.
// Shell clients on routers send no Accept header and get plain text.
func WantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/plain")
}

// WriteError sends err with its HTTP status, as JSON or as plain text
func WriteError(c *gin.Context, err error) {
	status := errors.GetHTTPStatus(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	resp := errors.NewResponse(err)

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		log.Debug("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	if c.Writer.Written() {
		// Headers are gone; the client sees a truncated body.
		c.Abort()
		return
	}
	if WantsJSON(c) {
		c.AbortWithStatusJSON(status, resp)
		return
	}
	c.Abort()
	c.String(status, resp.Text())
}

// GetPaginationLimit extracts the limit query parameter
func GetPaginationLimit(c *gin.Context, maxLimit int) int {
	limit := DefaultPaginationLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	return limit
}
