package api

import (
	"github.com/gin-gonic/gin"

	"github.com/datapulse/insight-engine/internal/api/handlers"
	"github.com/datapulse/insight-engine/internal/middleware"
)

// Handlers bundles the route targets so SetupRoutes stays a pure wiring
// function.
type Handlers struct {
	Health  *handlers.HealthHandler
	Insight *handlers.InsightHandler
	Story   *handlers.StoryHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, auth *middleware.AuthMiddleware) {
	router.GET("/health", h.Health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(auth.RequireAuth())
	{
		insights := v1.Group("/insights")
		{
			insights.POST("/discover", h.Insight.Discover)
			insights.GET("/runs/:id", h.Insight.GetRun)
		}

		stories := v1.Group("/stories")
		{
			stories.POST("", h.Story.Assemble)
		}
	}
}
