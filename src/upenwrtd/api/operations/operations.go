// Package operations exposes the operation registry: recent build and list
// requests, their progress and cancellation.
package operations

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
)

// NewHandler creates a new operations handler
func NewHandler(cfg Config) *Handler {
	return &Handler{manager: cfg.BuildManager}
}

// HandleList lists recent operations
// @Summary      List operations
// @Description  Lists recent operations, newest first
// @Tags         Operations
// @Produce      json
// @Param        limit   query     int     false  "Maximum number of operations"  default(50)
// @Param        status  query     string  false  "Filter by status"  Enums(queued, running, completed, failed, canceled)
// @Success      200     {object}  OperationListResponse
// @Failure      400     {object}  common.ErrorResponse
// @Failure      500     {object}  common.ErrorResponse
// @Router       /v1/operations [get]
func (h *Handler) HandleList(c *gin.Context) {
	var (
		ops []db.Operation
		err error
	)
	if status := c.Query("status"); status != "" {
		switch s := db.OperationStatus(status); s {
		case db.StatusQueued, db.StatusRunning, db.StatusCompleted, db.StatusFailed, db.StatusCanceled:
			ops, err = h.manager.Repo().ListByStatus(s)
		default:
			common.WriteError(c, errors.ErrInvalidArgument.WithMessagef("Unknown operation status: %s", status))
			return
		}
	} else {
		ops, err = h.manager.Repo().List(common.GetPaginationLimit(c, common.MaxPaginationLimit))
	}
	if err != nil {
		common.WriteError(c, err)
		return
	}

	resp := OperationListResponse{Operations: make([]OperationResponse, 0, len(ops))}
	for _, op := range ops {
		resp.Operations = append(resp.Operations, OperationResponse{Operation: op, Active: h.manager.Active(op.ID)})
	}
	resp.Count = len(resp.Operations)
	c.JSON(http.StatusOK, resp)
}

// HandleGet returns one operation
// @Summary      Get operation
// @Description  Returns the registry entry of an operation
// @Tags         Operations
// @Produce      json
// @Param        id   path      string  true  "Operation ID"
// @Success      200  {object}  OperationResponse
// @Failure      404  {object}  common.ErrorResponse
// @Failure      500  {object}  common.ErrorResponse
// @Router       /v1/operations/{id} [get]
func (h *Handler) HandleGet(c *gin.Context) {
	id := c.Param("id")
	op, err := h.manager.Repo().GetByID(id)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	if op == nil {
		common.WriteError(c, errors.ErrOperationNotFound.WithMessagef("Operation not found: %s", id))
		return
	}
	c.JSON(http.StatusOK, OperationResponse{Operation: *op, Active: h.manager.Active(id)})
}

// HandleCancel cancels a queued or running operation
// @Summary      Cancel operation
// @Description  Cancels a queued or running operation. Its workdir is released.
// @Tags         Operations
// @Produce      json
// @Param        id   path      string  true  "Operation ID"
// @Success      202  {object}  CancelResponse
// @Failure      404  {object}  common.ErrorResponse
// @Router       /v1/operations/{id} [delete]
func (h *Handler) HandleCancel(c *gin.Context) {
	id := c.Param("id")
	err := h.manager.Cancel(id)
	common.Audit(c, common.AuditOperationCancel, id, err)

	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, CancelResponse{ID: id, Message: "Cancellation requested"})
}
