// Package images serves the /api endpoints used by routers to fetch a
// sysupgrade image or the package list it would contain.
package images

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
	"github.com/bitswalk/upenwrt/src/upenwrtd/build"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
)

// NewHandler creates a new images handler
func NewHandler(cfg Config) *Handler {
	return &Handler{manager: cfg.BuildManager}
}

// HandleGet builds an image or lists its packages depending on mode
// @Summary      Build image or list packages
// @Description  Builds a sysupgrade image for the board, keeping the packages installed on the
// @Description  current firmware. With mode=list only the reconciled package list is returned.
// @Tags         Images
// @Produce      octet-stream,plain
// @Param        target_name       query  string    true   "Target, e.g. ath79/generic"
// @Param        board_name        query  string    true   "Board name as reported by the device"
// @Param        target_version    query  string    false  "Release to build, or snapshot"  default(snapshot)
// @Param        current_release   query  string    false  "Release of the running firmware"
// @Param        current_revision  query  string    false  "Revision of the running firmware"
// @Param        pkgs              query  []string  false  "Installed packages, name[,alias...]"  collectionFormat(multi)
// @Param        mode              query  string    false  "build or list"  Enums(build, list)  default(build)
// @Success      200  {file}    string  "Image or package list"
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Failure      429  {object}  common.ErrorResponse
// @Failure      500  {object}  common.ErrorResponse
// @Failure      502  {object}  common.ErrorResponse
// @Router       /api/get [get]
func (h *Handler) HandleGet(c *gin.Context) {
	h.handle(c, db.OperationMode(c.DefaultQuery("mode", string(db.ModeBuild))))
}

// HandleBuild builds an image
// @Summary      Build image
// @Description  Same as /api/get with mode=build
// @Tags         Images
// @Produce      octet-stream
// @Param        target_name       query  string    true   "Target, e.g. ath79/generic"
// @Param        board_name        query  string    true   "Board name as reported by the device"
// @Param        target_version    query  string    false  "Release to build, or snapshot"  default(snapshot)
// @Param        current_release   query  string    false  "Release of the running firmware"
// @Param        current_revision  query  string    false  "Revision of the running firmware"
// @Param        pkgs              query  []string  false  "Installed packages, name[,alias...]"  collectionFormat(multi)
// @Success      200  {file}    string  "Sysupgrade image"
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Failure      429  {object}  common.ErrorResponse
// @Failure      500  {object}  common.ErrorResponse
// @Router       /api/build [get]
func (h *Handler) HandleBuild(c *gin.Context) {
	h.handle(c, db.ModeBuild)
}

// HandleList returns the package list without building
// @Summary      List packages
// @Description  Same as /api/get with mode=list
// @Tags         Images
// @Produce      plain
// @Param        target_name       query  string    true   "Target, e.g. ath79/generic"
// @Param        board_name        query  string    true   "Board name as reported by the device"
// @Param        target_version    query  string    false  "Release to build, or snapshot"  default(snapshot)
// @Param        current_release   query  string    false  "Release of the running firmware"
// @Param        current_revision  query  string    false  "Revision of the running firmware"
// @Param        pkgs              query  []string  false  "Installed packages, name[,alias...]"  collectionFormat(multi)
// @Success      200  {string}  string  "Space separated package list"
// @Failure      400  {object}  common.ErrorResponse
// @Failure      404  {object}  common.ErrorResponse
// @Failure      429  {object}  common.ErrorResponse
// @Router       /api/list [get]
func (h *Handler) HandleList(c *gin.Context) {
	h.handle(c, db.ModeList)
}

func (h *Handler) handle(c *gin.Context, mode db.OperationMode) {
	if mode != db.ModeBuild && mode != db.ModeList {
		common.WriteError(c, errors.ErrInvalidArgument.
			WithMessagef("Bad mode: %s, expected \"build\" or \"list\"", mode))
		return
	}

	op, err := h.manager.NewOperation(build.Request{
		Mode:            mode,
		TargetName:      c.Query("target_name"),
		BoardName:       c.Query("board_name"),
		TargetVersion:   c.Query("target_version"),
		CurrentRelease:  c.Query("current_release"),
		CurrentRevision: c.Query("current_revision"),
		Packages:        c.QueryArray("pkgs"),
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}

	if mode == db.ModeList {
		h.list(c, op)
		return
	}
	h.build(c, op)
}

func (h *Handler) list(c *gin.Context, op *build.Operation) {
	var packages []string
	err := h.manager.Execute(c.Request.Context(), op, func(ctx context.Context, op *build.Operation) error {
		var err error
		packages, err = op.ListPackages(ctx)
		return err
	})
	if op.ID != "" {
		c.Header("X-Operation-Id", op.ID)
	}
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.String(http.StatusOK, strings.Join(packages, " "))
}

func (h *Handler) build(c *gin.Context, op *build.Operation) {
	// The image is opened before the workdir is released and streamed from
	// the open descriptor afterwards.
	var image *os.File
	err := h.manager.Execute(c.Request.Context(), op, func(ctx context.Context, op *build.Operation) error {
		path, err := op.Build(ctx)
		if err != nil {
			return err
		}
		image, err = os.Open(path)
		if err != nil {
			return errors.ErrImageNotFound.WithMessagef("Failed to open %s", op.ImageName).WithCause(err)
		}
		return nil
	})
	if op.ID != "" {
		c.Header("X-Operation-Id", op.ID)
	}
	if err != nil {
		if image != nil {
			image.Close()
		}
		common.WriteError(c, err)
		return
	}
	defer image.Close()

	info, err := image.Stat()
	if err != nil {
		common.WriteError(c, errors.ErrImageNotFound.WithMessagef("Failed to stat %s", op.ImageName).WithCause(err))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", image, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, op.ImageName),
		"Last-Modified":       info.ModTime().UTC().Format(http.TimeFormat),
	})
}
