// Package api wires the HTTP surface of server mode: enqueueing album
// runs, inspecting their progress and aggregate stats.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/api/handlers"
	"github.com/yourusername/albumgrab-go/api/middleware"
	"github.com/yourusername/albumgrab-go/internal/app"
)

// SetupRouter sets up the HTTP router
func SetupRouter(queue *app.TaskQueue, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(queue)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		albumHandler := handlers.NewAlbumHandler(queue, logger)
		albums := v1.Group("/albums")
		{
			albums.POST("", albumHandler.AddAlbum)
			albums.GET("", albumHandler.ListAlbums)
			albums.GET("/stats", albumHandler.GetStats)
			albums.GET("/:id", albumHandler.GetAlbum)
			albums.GET("/:id/outcomes", albumHandler.GetOutcomes)
		}
	}

	return router
}
