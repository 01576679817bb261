package pipeline

import (
	"context"
	"fmt"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// QueryService answers retrieval queries: embed the query text with the
// same model family used at indexing time, then run a vector search.
type QueryService struct {
	embedder interfaces.Embedder
	index    interfaces.VectorIndex
	log      *logger.Logger
}

func NewQueryService(embedder interfaces.Embedder, index interfaces.VectorIndex, log *logger.Logger) *QueryService {
	return &QueryService{
		embedder: embedder,
		index:    index,
		log:      log,
	}
}

// Query embeds text and returns the topK nearest chunks.
func (s *QueryService) Query(ctx context.Context, text string, topK int) ([]models.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	s.log.Debug(fmt.Sprintf("Query returned %d results", len(results)))
	return results, nil
}

// IndexStats describes the state of the backing collection.
type IndexStats struct {
	CollectionExists bool
	DocumentCount    int64
}

// Stats reports whether the collection exists and how many chunks it holds.
func (s *QueryService) Stats(ctx context.Context) (IndexStats, error) {
	exists, err := s.index.CollectionExists(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return IndexStats{}, nil
	}
	count, err := s.index.GetDocumentCount(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to count documents: %w", err)
	}
	return IndexStats{CollectionExists: true, DocumentCount: count}, nil
}
