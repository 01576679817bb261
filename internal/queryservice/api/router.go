package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes for the query service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)
	router.GET("/", api.RootHandler)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/query", api.QueryHandler)
		apiGroup.GET("/stats", api.StatsHandler)
		apiGroup.GET("/test-retrieval", api.TestRetrievalHandler)
	}
}
