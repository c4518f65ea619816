// server/internal/api/routes/routes.go
package routes

import (
	"time"

	"spotmytrash-api-server/config"
	"spotmytrash-api-server/internal/api/handlers"
	"spotmytrash-api-server/internal/api/middleware"
	"spotmytrash-api-server/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups everything SetupRouter mounts.
type Handlers struct {
	Capture      *handlers.CaptureHandler
	Points       *handlers.GarbagePointHandler
	OfflineQueue *handlers.OfflineQueueHandler
	WebSocket    *handlers.WebSocketHandler
	Health       *handlers.HealthHandler
}

func SetupRouter(cfg config.ServerConfig, h Handlers, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	if m != nil {
		router.Use(middleware.Metrics(m))
	}
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/healthz", h.Health.Healthz)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", h.WebSocket.ServeWs)
		apiV1.POST("/captures", h.Capture.CreateCapture)
		apiV1.GET("/offline-queue", h.OfflineQueue.ListQueued)

		points := apiV1.Group("/garbage-points")
		{
			points.GET("", h.Points.ListGarbagePoints)
			points.GET("/stats", h.Points.GetStats)
			points.GET("/nearby", h.Points.GetNearby)
			points.GET("/geojson", h.Points.GetGeoJSON)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
