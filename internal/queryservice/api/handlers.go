package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/pipeline"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

const (
	defaultTopK = 5
	maxTopK     = 100
)

// API provides handlers for the retrieval query service.
type API struct {
	service        *pipeline.QueryService
	collectionName string
	embeddingDim   int
	logger         *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(service *pipeline.QueryService, collectionName string, embeddingDim int, logger *logger.Logger) *API {
	return &API{
		service:        service,
		collectionName: collectionName,
		embeddingDim:   embeddingDim,
		logger:         logger,
	}
}

// HealthHandler reports service liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// RootHandler describes the available endpoints.
func (a *API) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "rag-query-service",
		"endpoints": gin.H{
			"query":          "POST /api/query",
			"stats":          "GET /api/stats",
			"test_retrieval": "GET /api/test-retrieval",
			"health":         "GET /health",
		},
	})
}

// QueryHandler answers a retrieval query.
func (a *API) QueryHandler(c *gin.Context) {
	var payload struct {
		Query string `json:"query"`
		TopK  *int   `json:"top_k"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.Warn(fmt.Sprintf("Invalid request payload: %v", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if payload.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	topK := defaultTopK
	if payload.TopK != nil {
		if *payload.TopK < 1 || *payload.TopK > maxTopK {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("top_k must be between 1 and %d", maxTopK)})
			return
		}
		topK = *payload.TopK
	}

	results, err := a.service.Query(c.Request.Context(), payload.Query, topK)
	if err != nil {
		a.logger.Error(fmt.Sprintf("Query failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   payload.Query,
		"top_k":   topK,
		"count":   len(results),
		"results": results,
	})
}

// StatsHandler reports collection statistics.
func (a *API) StatsHandler(c *gin.Context) {
	stats, err := a.service.Stats(c.Request.Context())
	if err != nil {
		a.logger.Error(fmt.Sprintf("Stats failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collection_exists": stats.CollectionExists,
		"collection_name":   a.collectionName,
		"document_count":    stats.DocumentCount,
		"embedding_dim":     a.embeddingDim,
	})
}

// TestRetrievalHandler runs a fixed smoke-test query against the index.
func (a *API) TestRetrievalHandler(c *gin.Context) {
	results, err := a.service.Query(c.Request.Context(), "What is this project about?", defaultTopK)
	if err != nil {
		a.logger.Error(fmt.Sprintf("Test retrieval failed: %v", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Test retrieval failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"count":   len(results),
		"results": results,
	})
}
