package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/config"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/database/milvus"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/embedding"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/localfiles"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/pipeline"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/splitters"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/vectorstore"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/repository"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

func main() {
	var (
		configPath   string
		repoURL      string
		dataDir      string
		processLocal bool
		skipExisting bool
		force        bool
	)

	rootCmd := &cobra.Command{
		Use:           "indexer",
		Short:         "Index repository and local documents into the vector store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Flags override file config when explicitly set.
			if cmd.Flags().Changed("repo-url") {
				cfg.Repository.URL = repoURL
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.LocalFiles.Directory = dataDir
			}
			if cmd.Flags().Changed("process-local") {
				cfg.LocalFiles.Enabled = processLocal
			}
			if cmd.Flags().Changed("skip-existing") {
				cfg.Indexing.SkipExistingDocuments = skipExisting
			}
			if cmd.Flags().Changed("force") {
				cfg.Indexing.ForceReprocess = force
			}

			return runIndexer(cfg)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.Flags().StringVar(&repoURL, "repo-url", "", "repository URL to index")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "local data directory to ingest")
	rootCmd.Flags().BoolVar(&processLocal, "process-local", true, "process local files")
	rootCmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "skip documents already present in the vector store")
	rootCmd.Flags().BoolVar(&force, "force", false, "reprocess all documents even if already indexed")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("indexer failed: %v", err)
	}
}

func runIndexer(cfg *config.AppConfig) error {
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("indexer")

	ctx := context.Background()

	db, err := milvus.Connect(ctx, &cfg.Milvus, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to milvus: %w", err)
	}
	defer db.Close()
	appLogger.Info("Milvus connection established")

	index := vectorstore.NewMilvusIndex(db, cfg.Milvus.CollectionName, cfg.Milvus.EmbeddingDim, appLogger)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedding model: %w", err)
	}

	chunker, err := splitters.NewRecursiveCharacterSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create splitter: %w", err)
	}

	source, err := repository.NewGitSource(cfg.Repository.Token, cfg.Repository.Ignore, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create repository source: %w", err)
	}

	localReader := localfiles.NewReader(nil, appLogger)

	p := pipeline.NewIndexingPipeline(source, localReader, chunker, embedder, index, appLogger)

	state := p.Run(ctx, pipeline.RunOptions{
		RepositoryURL:         cfg.Repository.URL,
		LocalDataDir:          cfg.LocalFiles.Directory,
		ProcessLocalFiles:     cfg.LocalFiles.Enabled,
		SkipExistingDocuments: cfg.Indexing.SkipExistingDocuments,
		ForceReprocess:        cfg.Indexing.ForceReprocess,
	})

	fmt.Printf("Status:    %s\n", state.Status)
	fmt.Printf("New:       %d\n", state.NewCount)
	fmt.Printf("Skipped:   %d\n", state.SkippedCount)
	fmt.Printf("Chunks:    %d\n", len(state.Chunks))
	if state.Err != "" {
		fmt.Printf("Error:     %s\n", state.Err)
	}

	if state.Status == pipeline.StatusFailed {
		// Returned instead of exiting here so deferred cleanup closes the
		// Milvus connection before the process terminates.
		return fmt.Errorf("indexing run failed: %s", state.Err)
	}
	return nil
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
