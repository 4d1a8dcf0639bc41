package common

import (
	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/logs"
)

var auditLogger = logs.NewDefault()

// SetAuditLogger sets the logger used for audit entries
func SetAuditLogger(l *logs.Logger) {
	if l != nil {
		auditLogger = l
	}
}

// AuditAction names an operator action that changes server state
type AuditAction string

const (
	AuditOperationCancel AuditAction = "operation.cancel"
	AuditCacheEvict      AuditAction = "cache.evict"
)

// Audit records an operator action on resource. err is the outcome; a nil
// err is logged as a success. Entries carry audit=true for filtering.
func Audit(c *gin.Context, action AuditAction, resource string, err error) {
	args := []any{
		"audit", true,
		"action", string(action),
		"resource", resource,
	}
	if c != nil {
		args = append(args,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}

	if err == nil {
		auditLogger.Info("Operator action", append(args, "outcome", "success")...)
		return
	}
	args = append(args, "outcome", "failure", "error", errors.NewResponse(err).Error)
	auditLogger.Warn("Operator action", args...)
}
