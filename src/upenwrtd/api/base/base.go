package base

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/version"
)

var VersionInfo = version.New()

// SetVersionInfo sets the version info for the base package
func SetVersionInfo(v *version.Info) {
	if v != nil {
		VersionInfo = v
	}
}

// NewHandler creates a new base handler
func NewHandler(cfg Config) *Handler {
	return &Handler{manager: cfg.BuildManager}
}

// HandleHealth returns the current health status of the server
// @Summary      Health check
// @Description  Reports liveness and worker pool usage
// @Tags         System
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /v1/health [get]
func (h *Handler) HandleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.manager != nil {
		response.Workers, response.Busy = h.manager.Workers()
	}

	c.JSON(http.StatusOK, response)
}

// HandleVersion returns version and build information for the server
// @Summary      Version
// @Description  Returns version and build information
// @Tags         System
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /v1/version [get]
func (h *Handler) HandleVersion(c *gin.Context) {
	response := VersionResponse{
		Version:        VersionInfo.Version,
		ReleaseVersion: VersionInfo.ReleaseVersion,
		BuildDate:      VersionInfo.BuildDate,
		GitCommit:      VersionInfo.GitCommit,
		GoVersion:      version.GoVersion(),
	}

	c.JSON(http.StatusOK, response)
}
