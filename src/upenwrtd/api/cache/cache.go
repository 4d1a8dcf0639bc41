// Package cache reports on the download cache: image builder archives and
// target metadata generated from source checkouts.
package cache

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
)

// NewHandler creates a new cache handler
func NewHandler(cfg Config) *Handler {
	return &Handler{storage: cfg.Storage}
}

// HandleStatus returns the cache backend status
// @Summary      Cache status
// @Description  Reports whether the cache backend is reachable
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /v1/cache [get]
func (h *Handler) HandleStatus(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusOK, StatusResponse{
			Available: false,
			Message:   "Cache not configured",
		})
		return
	}

	if err := h.storage.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, StatusResponse{
			Available: false,
			Type:      h.storage.Type(),
			Location:  h.storage.Location(),
			Message:   "Cache unreachable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Available: true,
		Type:      h.storage.Type(),
		Location:  h.storage.Location(),
		Message:   "Cache is operational",
	})
}

// HandleListObjects lists cached objects
// @Summary      List cached objects
// @Description  Lists cached objects under an optional key prefix
// @Tags         Cache
// @Produce      json
// @Param        prefix  query     string  false  "Key prefix, e.g. imagebuilder/snapshots"
// @Success      200     {object}  ObjectListResponse
// @Failure      503     {object}  common.ErrorResponse
// @Router       /v1/cache/objects [get]
func (h *Handler) HandleListObjects(c *gin.Context) {
	if h.storage == nil {
		common.WriteError(c, errors.ErrStorageUnavailable)
		return
	}

	objects, err := h.storage.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		common.WriteError(c, err)
		return
	}

	resp := ObjectListResponse{Objects: objects}
	if resp.Objects == nil {
		resp.Objects = []storage.ObjectInfo{}
	}
	for _, obj := range objects {
		resp.TotalSize += obj.Size
	}
	resp.Count = len(resp.Objects)
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteObject evicts a cached object so the next request fetches it again
// @Summary      Evict cached object
// @Description  Deletes a cached object
// @Tags         Cache
// @Param        key  path  string  true  "Object key"
// @Success      204  "No Content"
// @Failure      400  {object}  common.ErrorResponse
// @Failure      503  {object}  common.ErrorResponse
// @Router       /v1/cache/objects/{key} [delete]
func (h *Handler) HandleDeleteObject(c *gin.Context) {
	if h.storage == nil {
		common.WriteError(c, errors.ErrStorageUnavailable)
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		common.WriteError(c, errors.ErrMissingArgument.WithMessage("Object key is required"))
		return
	}

	err := h.storage.Delete(c.Request.Context(), key)
	common.Audit(c, common.AuditCacheEvict, key, err)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
