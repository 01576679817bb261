package interfaces

import (
	"context"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
)

// RepositorySource acquires a remote document source onto local disk and
// enumerates the markdown documents it contains. An empty URL is a no-op:
// Acquire returns an empty path, ListDocuments returns no documents and
// Release does nothing.
type RepositorySource interface {
	Acquire(ctx context.Context, url string) (string, error)
	ListDocuments(ctx context.Context, localPath string) ([]models.Document, error)
	Release(localPath string) error
}

// LocalFileReader ingests supported files (images, diagrams, word documents,
// spreadsheets) from a local directory. Unsupported extensions are skipped;
// per-file errors produce a degraded document instead of aborting the walk.
type LocalFileReader interface {
	ReadDirectory(ctx context.Context, dir string) ([]models.Document, error)
}

// Chunker splits document text into an ordered sequence of overlapping
// chunks. ChunkAll concatenates per-document results in input order, with
// chunk indices reset per document.
type Chunker interface {
	Chunk(doc models.Document) ([]models.Chunk, error)
	ChunkAll(docs []models.Document) ([]models.Chunk, error)
}

// Embedder maps text to fixed-dimension float vectors. EmbedBatch returns
// one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex owns one named collection in the backing vector store and
// mediates all reads and writes against it.
type VectorIndex interface {
	CollectionExists(ctx context.Context) (bool, error)

	// InitializeCollection destructively (re)creates the collection with the
	// canonical schema. Callers that must preserve existing data use
	// InitializeOrLoadCollection instead.
	InitializeCollection(ctx context.Context) error

	// InitializeOrLoadCollection is the idempotent entry point: it creates
	// the collection when absent and otherwise binds to the existing one,
	// degrading to compatibility mode when the stored schema is narrower
	// than the canonical one.
	InitializeOrLoadCollection(ctx context.Context) error

	InsertEmbeddings(ctx context.Context, batch []models.EmbeddedChunk) error
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]models.SearchResult, error)

	// GetExistingFilePaths returns a best-effort snapshot of the distinct
	// file paths currently stored. The snapshot is bounded by the backing
	// store's per-query row cap and is not guaranteed complete for very
	// large collections.
	GetExistingFilePaths(ctx context.Context) (map[string]struct{}, error)

	GetDocumentCount(ctx context.Context) (int64, error)
	DeleteCollection(ctx context.Context) error
}

// VisionAnalyzer summarizes an image file as text. It is an optional
// collaborator: without one, image documents carry a placeholder line.
type VisionAnalyzer interface {
	Summarize(ctx context.Context, path string) (string, error)
}
