package api

import "github.com/gin-gonic/gin"

// RegisterRoutes configures all API routes on the given router
func (a *API) RegisterRoutes(router *gin.Engine) {
	root := router.Group(a.basePath)

	// Helper files fetched by routers
	root.GET("/", a.Templates.HandleReadme)
	root.GET("/get", a.Templates.HandleGetScript)
	root.GET("/list", a.Templates.HandleListScript)

	// Image endpoints
	images := root.Group("/api", a.rateLimit(ScopeBuild))
	{
		images.GET("/get", a.Images.HandleGet)
		images.GET("/build", a.Images.HandleBuild)
		images.GET("/list", a.Images.HandleList)
	}

	// API v1 routes
	v1 := root.Group("/v1", a.rateLimit(ScopeAPI))
	{
		v1.GET("/health", a.Base.HandleHealth)
		v1.GET("/version", a.Base.HandleVersion)

		operations := v1.Group("/operations")
		{
			operations.GET("", a.Operations.HandleList)
			operations.GET("/:id", a.Operations.HandleGet)
			operations.DELETE("/:id", a.Operations.HandleCancel)
		}

		cache := v1.Group("/cache")
		{
			cache.GET("", a.Cache.HandleStatus)
			cache.GET("/objects", a.Cache.HandleListObjects)
			cache.DELETE("/objects/*key", a.Cache.HandleDeleteObject)
		}
	}
}
