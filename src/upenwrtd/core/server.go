package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/bitswalk/upenwrt/src/upenwrtd/api"
	"github.com/bitswalk/upenwrt/src/upenwrtd/artifact"
	"github.com/bitswalk/upenwrt/src/upenwrtd/build"
	"github.com/bitswalk/upenwrt/src/upenwrtd/db"
	_ "github.com/bitswalk/upenwrt/src/upenwrtd/docs"
	"github.com/bitswalk/upenwrt/src/upenwrtd/download"
	"github.com/bitswalk/upenwrt/src/upenwrtd/executor"
	"github.com/bitswalk/upenwrt/src/upenwrtd/reconcile"
	"github.com/bitswalk/upenwrt/src/upenwrtd/source"
	"github.com/bitswalk/upenwrt/src/upenwrtd/storage"
	"github.com/bitswalk/upenwrt/src/upenwrtd/targetinfo"
)

// Server holds the HTTP server instance and its dependencies
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	database     *db.Database
	storage      storage.Backend
	buildManager *build.Manager
	api          *api.API
}

// setLoggers hands the process logger to every package
func setLoggers() {
	db.SetLogger(log)
	storage.SetLogger(log)
	download.SetLogger(log)
	executor.SetLogger(log)
	targetinfo.SetLogger(log)
	artifact.SetLogger(log)
	source.SetLogger(log)
	reconcile.SetLogger(log)
	build.SetLogger(log)
	api.SetLogger(log)
}

// NewServer creates a new Server instance
func NewServer(l Layout, database *db.Database, storageBackend storage.Backend) (*Server, error) {
	if viper.GetString("log.level") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if !viper.GetBool("server.trust_proxy") {
		if err := router.SetTrustedProxies(nil); err != nil {
			return nil, fmt.Errorf("failed to configure trusted proxies: %w", err)
		}
	}
	router.Use(gin.Recovery())
	router.Use(ginLogger())

	// One HTTP client for every download
	downloadCfg, err := downloadConfig(l)
	if err != nil {
		return nil, err
	}
	client, err := download.NewHTTPClient(downloadCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create download client: %w", err)
	}
	fetcher := download.NewFetcher(client, storageBackend, downloadCfg)
	artifacts := artifact.NewProvider(artifactConfig(), fetcher)

	exec := executor.NewHostExecutor()
	sources := source.NewProvider(sourceConfig(l), exec, storageBackend)

	reconcileCfg, err := reconcileConfig()
	if err != nil {
		return nil, err
	}
	engine, err := reconcile.New(reconcileCfg)
	if err != nil {
		return nil, err
	}

	buildManager, err := build.NewManager(buildConfig(l), artifacts, sources, engine, exec,
		db.NewOperationRepository(database))
	if err != nil {
		return nil, err
	}

	api.SetVersionInfo(VersionInfo)
	apiInstance := api.New(api.Config{
		BuildManager: buildManager,
		Storage:      storageBackend,
		StaticDir:    l.Static,
		BaseURL:      baseURL(),
		BasePath:     viper.GetString("server.base_path"),
		RateLimit:    rateLimitConfig(),
	})
	apiInstance.RegisterRoutes(router)

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &Server{
		router:       router,
		database:     database,
		storage:      storageBackend,
		buildManager: buildManager,
		api:          apiInstance,
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal arrives
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", viper.GetString("server.bind"), viper.GetInt("server.port"))

	// Images take minutes to build and stream, so there is no write timeout.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.pruneOperations(ctx, operationRetention())

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting upenwrtd server", "address", addr, "base_url", baseURL())
		log.Info("Cache enabled", "type", s.storage.Type(), "location", s.storage.Location())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Received signal, shutting down", "signal", sig)
	}

	return s.Shutdown()
}

// Shutdown cancels running operations and stops the HTTP server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.buildManager != nil {
		if n := s.buildManager.CancelAll(); n > 0 {
			log.Info("Canceled running operations", "count", n)
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.api != nil {
		s.api.Close()
	}

	log.Info("Server stopped gracefully")
	return nil
}

// pruneOperations drops finished operations older than retention from the registry
func (s *Server) pruneOperations(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(max(retention/4, time.Minute))
	defer ticker.Stop()

	repo := s.buildManager.Repo()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PruneFinished(time.Now().Add(-retention))
			if err != nil {
				log.Warn("Failed to prune operations", "error", err)
			} else if n > 0 {
				log.Debug("Pruned operations", "count", n)
			}
		}
	}
}

// ginLogger returns a gin middleware for logging requests
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		log.Debug("HTTP request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// runServer is called by the root command to start the server
func runServer() error {
	log.Info("upenwrtd starting",
		"version", VersionInfo.Version,
		"build_date", VersionInfo.BuildDate,
		"log_output", log.Output(),
	)
	setLoggers()

	l := layout()
	for _, dir := range []string{l.Static, l.Work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	log.Info("Using base directory", "path", l.Base)

	database, err := db.New()
	if err != nil {
		return fmt.Errorf("failed to initialize operation registry: %w", err)
	}
	defer database.Close()

	storageCfg := storageConfig(l)
	log.Info("Initializing cache", "type", storageCfg.Type)
	storageBackend, err := storage.New(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	if s3Backend, ok := storageBackend.(*storage.S3Backend); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s3Backend.EnsureBucket(ctx); err != nil {
			log.Warn("S3 bucket not accessible, downloads will not be cached", "error", err)
		}
	}

	server, err := NewServer(l, database, storageBackend)
	if err != nil {
		return err
	}
	return server.Run()
}
