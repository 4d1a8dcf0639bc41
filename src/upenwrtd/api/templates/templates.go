// Package templates serves the helper files routers fetch first: the README
// and the get.sh script, with the service base URL filled in.
package templates

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/upenwrtd/api/common"
)

// Template file names under the static directory
const (
	ReadmeFile = "README.txt"
	ScriptFile = "get.sh"
)

// Handler serves templated static files
type Handler struct {
	staticDir string
	baseURL   string
}

// Config contains configuration for the templates handler
type Config struct {
	StaticDir string
	BaseURL   string
}

// NewHandler creates a new templates handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		staticDir: cfg.StaticDir,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// HandleReadme serves the usage README
// @Summary      README
// @Description  Usage instructions for routers
// @Tags         Templates
// @Produce      plain
// @Success      200  {string}  string
// @Router       / [get]
func (h *Handler) HandleReadme(c *gin.Context) {
	h.serve(c, ReadmeFile, map[string]string{
		"BASE_URL": h.baseURL,
	})
}

// HandleGetScript serves the upgrade script
// @Summary      Upgrade script
// @Description  Shell script that collects the router state and downloads an image
// @Tags         Templates
// @Produce      plain
// @Success      200  {string}  string
// @Router       /get [get]
func (h *Handler) HandleGetScript(c *gin.Context) {
	h.serve(c, ScriptFile, map[string]string{
		"BASE_URL": h.baseURL,
		"API_ARGS": "",
	})
}

// HandleListScript serves the upgrade script in package listing mode
// @Summary      Package listing script
// @Description  Shell script that prints the package list an upgrade would install
// @Tags         Templates
// @Produce      plain
// @Success      200  {string}  string
// @Router       /list [get]
func (h *Handler) HandleListScript(c *gin.Context) {
	h.serve(c, ScriptFile, map[string]string{
		"BASE_URL": h.baseURL,
		"API_ARGS": "-d 'mode=list'",
	})
}

func (h *Handler) serve(c *gin.Context, file string, replacements map[string]string) {
	path := filepath.Join(h.staticDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		common.WriteError(c, errors.ErrInternal.WithMessagef("Template %s is not available", file).WithCause(err))
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		common.WriteError(c, errors.ErrInternal.WithMessagef("Template %s is not available", file).WithCause(err))
		return
	}

	text := string(data)
	for k, v := range replacements {
		text = strings.ReplaceAll(text, "@"+k+"@", v)
	}

	c.Header("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	c.String(http.StatusOK, text)
}
