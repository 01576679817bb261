package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/database/milvus"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

const (
	// Canonical schema fields. Older collections may carry only {id,
	// embedding} (or name the vector field "vector"); inserts and searches
	// introspect the stored schema instead of assuming this layout.
	FieldID            = "id"
	FieldEmbedding     = "embedding"
	FieldVectorLegacy  = "vector"
	FieldContent       = "content"
	FieldFilePath      = "file_path"
	FieldRepositoryURL = "repository_url"
	FieldChunkIndex    = "chunk_index"

	// maxContentLength is the VarChar cap of the content field. Longer chunk
	// content is truncated at insert time, not rejected.
	maxContentLength = 65535
	maxPathLength    = 1000

	// existingPathsLimit bounds the de-duplication snapshot query. Milvus
	// caps a single query at 16384 rows; collections larger than that get a
	// best-effort snapshot, which is a documented scalability limit.
	existingPathsLimit = 16384

	indexNlist = 128

	canonicalFieldCount = 6
)

// Backend is the view of the Milvus client wrapper the index needs,
// narrowed so tests can substitute an in-memory fake.
type Backend interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	DropCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, schema *entity.Schema) error
	CreateIndex(ctx context.Context, name, field string, idx entity.Index) error
	LoadCollection(ctx context.Context, name string) error
	DescribeSchema(ctx context.Context, name string) (*entity.Schema, error)
	Insert(ctx context.Context, name string, columns ...entity.Column) error
	Flush(ctx context.Context, name string) error
	Search(ctx context.Context, name string, outputFields []string, vector []float32, vectorField string, topK int) ([]client.SearchResult, error)
	Query(ctx context.Context, name, expr string, outputFields []string, limit int64) ([]entity.Column, error)
	RowCount(ctx context.Context, name string) (int64, error)
}

// compile-time check that the production client satisfies the backend seam
var _ Backend = (*milvus.Client)(nil)

// MilvusIndex owns one named Milvus collection: schema management, batched
// upserts, nearest-neighbor search and existing-key enumeration. The backing
// connection is established once, before construction, and shared for the
// lifetime of the instance.
type MilvusIndex struct {
	backend      Backend
	log          *logger.Logger
	collection   string
	embeddingDim int

	// compatWarned gates the schema-degradation warning to once per run.
	compatWarned bool
}

// NewMilvusIndex creates the index over an already-connected backend.
func NewMilvusIndex(backend Backend, collection string, embeddingDim int, log *logger.Logger) *MilvusIndex {
	return &MilvusIndex{
		backend:      backend,
		log:          log,
		collection:   collection,
		embeddingDim: embeddingDim,
	}
}

// CollectionExists reports whether the configured collection is present.
func (m *MilvusIndex) CollectionExists(ctx context.Context) (bool, error) {
	return m.backend.HasCollection(ctx, m.collection)
}

// InitializeCollection destructively (re)creates the collection with the
// canonical schema and an IVF_FLAT L2 index over the embedding field. Any
// pre-existing collection of the same name is dropped first.
func (m *MilvusIndex) InitializeCollection(ctx context.Context) error {
	exists, err := m.backend.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", m.collection, err)
	}
	if exists {
		m.log.Info(fmt.Sprintf("Dropping existing collection: %s", m.collection))
		if err := m.backend.DropCollection(ctx, m.collection); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", m.collection, err)
		}
	}

	if err := m.backend.CreateCollection(ctx, m.canonicalSchema()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", m.collection, err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, indexNlist)
	if err != nil {
		return fmt.Errorf("failed to build ivf_flat index: %w", err)
	}
	if err := m.backend.CreateIndex(ctx, m.collection, FieldEmbedding, idx); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", FieldEmbedding, err)
	}

	m.log.Info(fmt.Sprintf("Created collection: %s", m.collection))
	return nil
}

// InitializeOrLoadCollection creates the collection when absent, otherwise
// binds to the existing one without modification. An existing collection
// with fewer fields than the canonical schema puts the index into
// compatibility mode: inserts write only the fields the stored schema
// supports, and the degradation is logged once per run.
func (m *MilvusIndex) InitializeOrLoadCollection(ctx context.Context) error {
	exists, err := m.backend.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", m.collection, err)
	}

	if !exists {
		m.log.Info(fmt.Sprintf("Collection '%s' does not exist. Creating new collection...", m.collection))
		if err := m.InitializeCollection(ctx); err != nil {
			return err
		}
		return m.backend.LoadCollection(ctx, m.collection)
	}

	m.log.Info(fmt.Sprintf("Collection '%s' already exists. Loading...", m.collection))
	if count, err := m.backend.RowCount(ctx, m.collection); err == nil {
		m.log.Info(fmt.Sprintf("Found %d existing documents in collection", count))
	}

	schema, err := m.backend.DescribeSchema(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to describe collection %s: %w", m.collection, err)
	}
	if len(schema.Fields) < canonicalFieldCount {
		m.warnCompatibilityMode(schema)
	}

	return m.backend.LoadCollection(ctx, m.collection)
}

func (m *MilvusIndex) warnCompatibilityMode(schema *entity.Schema) {
	if m.compatWarned {
		return
	}
	m.compatWarned = true

	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	m.log.Warn(fmt.Sprintf(
		"SCHEMA COMPATIBILITY MODE: collection '%s' has %d fields (%s), expected %d; "+
			"new data will be inserted using the existing schema and some metadata will not be stored. "+
			"Run with forceReprocess=true to recreate the collection with the full schema.",
		m.collection, len(schema.Fields), strings.Join(names, ", "), canonicalFieldCount))
}

// InsertEmbeddings appends the batch to the collection and flushes it so the
// records are visible to subsequent searches before returning. The stored
// schema is introspected per call and each chunk is mapped onto whichever
// fields are actually present; content longer than the VarChar cap is
// truncated rather than rejected. The call can be retried as a whole; the
// de-duplication stage upstream prevents user-visible duplication across runs.
func (m *MilvusIndex) InsertEmbeddings(ctx context.Context, batch []models.EmbeddedChunk) error {
	if len(batch) == 0 {
		return nil
	}

	for _, ec := range batch {
		if len(ec.Embedding) != m.embeddingDim {
			return fmt.Errorf("embedding dimension mismatch for %s chunk %d: got %d, want %d",
				ec.Chunk.SourcePath, ec.Chunk.Index, len(ec.Embedding), m.embeddingDim)
		}
	}

	schema, err := m.backend.DescribeSchema(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to describe collection %s: %w", m.collection, err)
	}

	if len(schema.Fields) < canonicalFieldCount {
		m.warnCompatibilityMode(schema)
	}

	embeddings := make([][]float32, len(batch))
	for i, ec := range batch {
		embeddings[i] = ec.Embedding
	}

	var columns []entity.Column
	for _, field := range schema.Fields {
		switch {
		case field.PrimaryKey && field.AutoID:
			// Store-assigned id.
		case field.DataType == entity.FieldTypeFloatVector:
			columns = append(columns, entity.NewColumnFloatVector(field.Name, m.embeddingDim, embeddings))
		case field.Name == FieldContent:
			contents := make([]string, len(batch))
			for i, ec := range batch {
				contents[i] = truncate(ec.Chunk.Content, maxContentLength)
			}
			columns = append(columns, entity.NewColumnVarChar(FieldContent, contents))
		case field.Name == FieldFilePath:
			paths := make([]string, len(batch))
			for i, ec := range batch {
				paths[i] = truncate(ec.Chunk.SourcePath, maxPathLength)
			}
			columns = append(columns, entity.NewColumnVarChar(FieldFilePath, paths))
		case field.Name == FieldRepositoryURL:
			origins := make([]string, len(batch))
			for i, ec := range batch {
				origins[i] = truncate(ec.Chunk.Origin, maxPathLength)
			}
			columns = append(columns, entity.NewColumnVarChar(FieldRepositoryURL, origins))
		case field.Name == FieldChunkIndex:
			indices := make([]int64, len(batch))
			for i, ec := range batch {
				indices[i] = int64(ec.Chunk.Index)
			}
			columns = append(columns, entity.NewColumnInt64(FieldChunkIndex, indices))
		default:
			// Field this version does not know; leave it to the store's
			// default value handling.
		}
	}

	if len(columns) == 0 {
		return fmt.Errorf("collection %s has no insertable fields", m.collection)
	}

	if err := m.backend.Insert(ctx, m.collection, columns...); err != nil {
		return err
	}
	if err := m.backend.Flush(ctx, m.collection); err != nil {
		return err
	}

	m.log.Info(fmt.Sprintf("Inserted %d embeddings into Milvus", len(batch)))
	return nil
}

// Search returns the topK nearest records by L2 distance. Metadata fields
// absent from a degraded schema come back as zero values, not errors.
func (m *MilvusIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	if err := m.backend.LoadCollection(ctx, m.collection); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", m.collection, err)
	}

	schema, err := m.backend.DescribeSchema(ctx, m.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection %s: %w", m.collection, err)
	}

	vectorField := FieldEmbedding
	present := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		present[f.Name] = true
		if f.DataType == entity.FieldTypeFloatVector {
			vectorField = f.Name
		}
	}

	var outputFields []string
	for _, name := range []string{FieldContent, FieldFilePath, FieldRepositoryURL, FieldChunkIndex} {
		if present[name] {
			outputFields = append(outputFields, name)
		}
	}

	results, err := m.backend.Search(ctx, m.collection, outputFields, queryEmbedding, vectorField, topK)
	if err != nil {
		return nil, err
	}

	var out []models.SearchResult
	for _, res := range results {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		var ids []int64
		if idCol, ok := res.IDs.(*entity.ColumnInt64); ok {
			ids = idCol.Data()
		}

		var contents, paths, origins []string
		var chunkIndices []int64
		if col, ok := findColumn(FieldContent).(*entity.ColumnVarChar); ok {
			contents = col.Data()
		}
		if col, ok := findColumn(FieldFilePath).(*entity.ColumnVarChar); ok {
			paths = col.Data()
		}
		if col, ok := findColumn(FieldRepositoryURL).(*entity.ColumnVarChar); ok {
			origins = col.Data()
		}
		if col, ok := findColumn(FieldChunkIndex).(*entity.ColumnInt64); ok {
			chunkIndices = col.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			r := models.SearchResult{Distance: res.Scores[i]}
			if i < len(ids) {
				r.ID = ids[i]
			}
			if i < len(contents) {
				r.Content = contents[i]
			}
			if i < len(paths) {
				r.FilePath = paths[i]
			}
			if i < len(origins) {
				r.RepositoryURL = origins[i]
			}
			if i < len(chunkIndices) {
				r.ChunkIndex = chunkIndices[i]
			}
			out = append(out, r)
		}
	}

	return out, nil
}

// GetExistingFilePaths enumerates the distinct file paths currently stored.
// The result is a best-effort snapshot bounded by the store's per-query row
// cap; query failures (including a schema without a file_path field) degrade
// to an empty set with a warning rather than an error.
func (m *MilvusIndex) GetExistingFilePaths(ctx context.Context) (map[string]struct{}, error) {
	paths := make(map[string]struct{})

	exists, err := m.backend.HasCollection(ctx, m.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", m.collection, err)
	}
	if !exists {
		return paths, nil
	}

	if err := m.backend.LoadCollection(ctx, m.collection); err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", m.collection, err)
	}

	columns, err := m.backend.Query(ctx, m.collection, "id > 0", []string{FieldFilePath}, existingPathsLimit)
	if err != nil {
		m.log.Warn(fmt.Sprintf("Could not retrieve existing file paths: %v", err))
		return paths, nil
	}

	for _, col := range columns {
		if pathCol, ok := col.(*entity.ColumnVarChar); ok && pathCol.Name() == FieldFilePath {
			for _, p := range pathCol.Data() {
				if p != "" {
					paths[p] = struct{}{}
				}
			}
		}
	}
	return paths, nil
}

// GetDocumentCount returns the total stored record count, or 0 when the
// collection does not exist.
func (m *MilvusIndex) GetDocumentCount(ctx context.Context) (int64, error) {
	exists, err := m.backend.HasCollection(ctx, m.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection %s: %w", m.collection, err)
	}
	if !exists {
		return 0, nil
	}
	return m.backend.RowCount(ctx, m.collection)
}

// DeleteCollection drops the collection if present; otherwise it is a no-op.
func (m *MilvusIndex) DeleteCollection(ctx context.Context) error {
	exists, err := m.backend.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", m.collection, err)
	}
	if !exists {
		return nil
	}
	if err := m.backend.DropCollection(ctx, m.collection); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", m.collection, err)
	}
	m.log.Info(fmt.Sprintf("Deleted collection: %s", m.collection))
	return nil
}

func (m *MilvusIndex) canonicalSchema() *entity.Schema {
	return entity.NewSchema().
		WithName(m.collection).
		WithDescription("RAG embeddings for markdown files").
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.embeddingDim))).
		WithField(entity.NewField().WithName(FieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxContentLength)).
		WithField(entity.NewField().WithName(FieldFilePath).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxPathLength)).
		WithField(entity.NewField().WithName(FieldRepositoryURL).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxPathLength)).
		WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64))
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// compile-time check to ensure MilvusIndex implements the VectorIndex interface
var _ interfaces.VectorIndex = (*MilvusIndex)(nil)
