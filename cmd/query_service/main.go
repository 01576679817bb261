package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/config"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/database/milvus"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/embedding"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/queryservice/api"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/pipeline"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/vectorstore"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("query_service")

	appLogger.Info("Logger initialized")

	// Initialize Milvus connection
	ctx := context.Background()
	db, err := milvus.Connect(ctx, &cfg.Milvus, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer db.Close()
	appLogger.Info("Milvus connection established")

	index := vectorstore.NewMilvusIndex(db, cfg.Milvus.CollectionName, cfg.Milvus.EmbeddingDim, appLogger)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Initialize dependencies (Index -> Service -> Handler)
	queryService := pipeline.NewQueryService(embedder, index, appLogger)
	apiHandler := api.NewAPI(queryService, cfg.Milvus.CollectionName, cfg.Milvus.EmbeddingDim, appLogger)
	appLogger.Info("Dependencies injected")

	// Setup and start Gin router
	router := gin.Default()
	api.RegisterRoutes(router, apiHandler)
	appLogger.Info("Router setup completed")

	appLogger.Info("Starting server on " + cfg.Server.HTTPAddr)
	if err := router.Run(cfg.Server.HTTPAddr); err != nil {
		appLogger.Fatal(err.Error())
	}
}

func newEmbedder(cfg *config.AppConfig) (interfaces.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		oa := cfg.Embedding.OpenAI
		if oa.Endpoint != "" {
			return embedding.NewAzureOpenAIModel(oa.APIKey, oa.Endpoint, oa.Deployment, oa.APIVersion, cfg.Embedding.BatchSize)
		}
		return embedding.NewOpenAIModel(oa.APIKey, oa.Model, cfg.Embedding.BatchSize)
	case "ollama":
		return embedding.NewOllamaModel(cfg.Embedding.Ollama.Model, cfg.Embedding.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}
