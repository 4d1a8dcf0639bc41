package base

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bitswalk/upenwrt/src/common/version"
)

func TestHandleHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/health", NewHandler(Config{}).HandleHealth)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || resp.Timestamp == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetVersionInfo(&version.Info{Version: "upenwrtd v1.2.3", ReleaseVersion: "1.2.3", GitCommit: "abc1234"})
	t.Cleanup(func() { SetVersionInfo(version.New()) })

	router := gin.New()
	router.GET("/v1/version", NewHandler(Config{}).HandleVersion)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/version", nil))

	var resp VersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ReleaseVersion != "1.2.3" || resp.GitCommit != "abc1234" || resp.GoVersion == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}
