package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// Status is the pipeline run status. Stages advance it linearly; any stage
// that fails records its error and moves the run to StatusError, after which
// only cleanup executes.
type Status string

const (
	StatusInitialized        Status = "initialized"
	StatusRepositoryAcquired Status = "repository_acquired"
	StatusDocumentsExtracted Status = "documents_extracted"
	StatusNoNewDocuments     Status = "no_new_documents"
	StatusDocumentsChunked   Status = "documents_chunked"
	StatusEmbeddingsCreated  Status = "embeddings_created"
	StatusEmbeddingsStored   Status = "embeddings_stored"
	StatusError              Status = "error"

	// Terminal statuses, resolved during cleanup.
	StatusCompleted          Status = "completed"
	StatusCompletedNoChanges Status = "completed_no_changes"
	StatusFailed             Status = "failed"
)

// RunOptions is the pipeline invocation surface.
type RunOptions struct {
	RepositoryURL         string
	LocalDataDir          string
	ProcessLocalFiles     bool
	SkipExistingDocuments bool
	ForceReprocess        bool
}

// RunState is the mutable context threaded through the pipeline stages. It
// is exclusively owned by one in-flight run and discarded at run end; the
// vector index is the only persistent artifact.
type RunState struct {
	RunID    string
	Options  RunOptions
	RepoPath string

	Documents      []models.Document
	Chunks         []models.Chunk
	EmbeddedChunks []models.EmbeddedChunk

	// ExistingFilePaths is snapshotted once at the start of the run and
	// used for filtering later in the same run; staleness within a run is
	// accepted.
	ExistingFilePaths map[string]struct{}

	SkippedCount int
	NewCount     int

	Status Status
	Err    string
}

func (s *RunState) fail(format string, args ...interface{}) {
	s.Err = fmt.Sprintf(format, args...)
	s.Status = StatusError
}

func (s *RunState) failed() bool {
	return s.Status == StatusError
}

func (s *RunState) noNewDocuments() bool {
	return s.Status == StatusNoNewDocuments
}

// IndexingPipeline sequences document acquisition, local-file ingestion,
// de-duplication against the index, chunking, embedding, storage and
// cleanup. The flow is strictly linear: a fatal stage error short-circuits
// the remaining stages, local ingestion degrades instead of failing, and
// cleanup always runs.
type IndexingPipeline struct {
	source     interfaces.RepositorySource
	localFiles interfaces.LocalFileReader // optional
	chunker    interfaces.Chunker
	embedder   interfaces.Embedder
	index      interfaces.VectorIndex
	log        *logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline. localFiles may be nil
// when local ingestion is not configured.
func NewIndexingPipeline(
	source interfaces.RepositorySource,
	localFiles interfaces.LocalFileReader,
	chunker interfaces.Chunker,
	embedder interfaces.Embedder,
	index interfaces.VectorIndex,
	log *logger.Logger,
) *IndexingPipeline {
	return &IndexingPipeline{
		source:     source,
		localFiles: localFiles,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		log:        log,
	}
}

// Run executes one indexing run and returns the terminal run state. The
// returned status is always one of StatusCompleted,
// StatusCompletedNoChanges or StatusFailed.
func (p *IndexingPipeline) Run(ctx context.Context, opts RunOptions) *RunState {
	state := &RunState{
		RunID:             uuid.NewString(),
		Options:           opts,
		Status:            StatusInitialized,
		ExistingFilePaths: make(map[string]struct{}),
	}

	p.log.Info(fmt.Sprintf("Starting indexing run %s: repository=%q localDir=%q skipExisting=%v force=%v",
		state.RunID, opts.RepositoryURL, opts.LocalDataDir, opts.SkipExistingDocuments, opts.ForceReprocess))

	stages := []struct {
		name string
		fn   func(context.Context, *RunState)
	}{
		{"acquire_repository", p.acquireRepository},
		{"extract_documents", p.extractDocuments},
		{"process_local_files", p.processLocalFiles},
		{"filter_existing_documents", p.filterExistingDocuments},
		{"chunk_documents", p.chunkDocuments},
		{"create_embeddings", p.createEmbeddings},
		{"store_embeddings", p.storeEmbeddings},
	}

	for _, stage := range stages {
		p.log.Debug(fmt.Sprintf("Stage: %s", stage.name))
		stage.fn(ctx, state)
	}

	// Cleanup always runs, even after a fatal stage error.
	p.cleanup(state)

	p.log.Info(fmt.Sprintf("Indexing run finished: status=%s new=%d skipped=%d chunks=%d",
		state.Status, state.NewCount, state.SkippedCount, len(state.Chunks)))
	if state.Err != "" {
		p.log.Error(state.Err)
	}
	return state
}

// acquireRepository snapshots the existing de-duplication keys and clones
// the remote source. The snapshot happens once, before any new documents
// are fetched; its failure degrades to an empty snapshot rather than
// aborting the run.
func (p *IndexingPipeline) acquireRepository(ctx context.Context, state *RunState) {
	if state.Options.SkipExistingDocuments && !state.Options.ForceReprocess {
		p.log.Info("Checking vector store for existing documents...")
		existing, err := p.index.GetExistingFilePaths(ctx)
		if err != nil {
			p.log.Warn(fmt.Sprintf("Could not snapshot existing file paths: %v", err))
		} else {
			state.ExistingFilePaths = existing
			if len(existing) > 0 {
				p.log.Info(fmt.Sprintf("Found %d existing documents in vector store", len(existing)))
			}
		}
	}

	if state.Options.RepositoryURL != "" {
		repoPath, err := p.source.Acquire(ctx, state.Options.RepositoryURL)
		if err != nil {
			state.fail("failed to acquire repository: %v", err)
			return
		}
		state.RepoPath = repoPath
	} else {
		p.log.Info("No repository URL provided - will process local files only")
	}

	state.Status = StatusRepositoryAcquired
}

// extractDocuments pulls all markdown documents from the acquired working
// copy. No acquired source means zero documents, not an error.
func (p *IndexingPipeline) extractDocuments(ctx context.Context, state *RunState) {
	if state.failed() {
		return
	}

	if state.RepoPath != "" {
		documents, err := p.source.ListDocuments(ctx, state.RepoPath)
		if err != nil {
			state.fail("failed to extract documents: %v", err)
			return
		}
		state.Documents = documents
		p.log.Info(fmt.Sprintf("Extracted %d markdown documents from repository", len(documents)))
	} else {
		p.log.Info("No repository cloned - will rely on local files only")
	}

	state.Status = StatusDocumentsExtracted
}

// processLocalFiles appends documents from the local data directory. This
// stage is best-effort: its failures are logged and the run proceeds with
// whatever was already gathered.
func (p *IndexingPipeline) processLocalFiles(ctx context.Context, state *RunState) {
	if state.failed() {
		return
	}

	if !state.Options.ProcessLocalFiles || p.localFiles == nil {
		p.log.Info("Skipping local file processing (disabled or not configured)")
		return
	}
	if state.Options.LocalDataDir == "" {
		p.log.Info("No local data directory specified")
		return
	}

	localDocs, err := p.localFiles.ReadDirectory(ctx, state.Options.LocalDataDir)
	if err != nil {
		p.log.Warn(fmt.Sprintf("Failed to process local files: %v", err))
		return
	}
	state.Documents = append(state.Documents, localDocs...)
	p.log.Info(fmt.Sprintf("Processed %d local files, total documents: %d", len(localDocs), len(state.Documents)))
}

// filterExistingDocuments partitions the accumulated documents into new and
// already-indexed against the snapshot taken at the start of the run. With
// force reprocessing, or with de-duplication disabled, every document is
// treated as new.
func (p *IndexingPipeline) filterExistingDocuments(ctx context.Context, state *RunState) {
	if state.failed() {
		return
	}

	if state.Options.ForceReprocess {
		p.log.Info("Force reprocess enabled - will process all documents")
		state.NewCount = len(state.Documents)
		return
	}
	if !state.Options.SkipExistingDocuments {
		p.log.Info("Skip existing disabled - will process all documents")
		state.NewCount = len(state.Documents)
		return
	}

	if len(state.ExistingFilePaths) == 0 {
		p.log.Info("No existing documents found in vector store")
		state.NewCount = len(state.Documents)
		return
	}

	total := len(state.Documents)
	newDocuments := make([]models.Document, 0, total)
	for _, doc := range state.Documents {
		if _, indexed := state.ExistingFilePaths[doc.Path]; indexed {
			p.log.Debug(fmt.Sprintf("Skipping (already indexed): %s", doc.Path))
			continue
		}
		newDocuments = append(newDocuments, doc)
	}

	state.Documents = newDocuments
	state.NewCount = len(newDocuments)
	state.SkippedCount = total - len(newDocuments)
	p.log.Info(fmt.Sprintf("Documents: total=%d already indexed=%d new=%d", total, state.SkippedCount, state.NewCount))

	if state.NewCount == 0 {
		p.log.Info("All documents are already indexed. Nothing to process.")
		state.Status = StatusNoNewDocuments
	}
}

// chunkDocuments splits the remaining documents.
func (p *IndexingPipeline) chunkDocuments(ctx context.Context, state *RunState) {
	if state.failed() || state.noNewDocuments() {
		return
	}

	chunks, err := p.chunker.ChunkAll(state.Documents)
	if err != nil {
		state.fail("failed to chunk documents: %v", err)
		return
	}
	state.Chunks = chunks
	state.Status = StatusDocumentsChunked
	p.log.Info(fmt.Sprintf("Created %d chunks", len(chunks)))
}

// createEmbeddings embeds every chunk's text in a single batch call and
// pairs results back with their chunks by position. The embedder's output
// order matching the input order is the correctness-critical invariant here.
func (p *IndexingPipeline) createEmbeddings(ctx context.Context, state *RunState) {
	if state.failed() || state.noNewDocuments() {
		return
	}

	texts := make([]string, len(state.Chunks))
	for i, chunk := range state.Chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		state.fail("failed to create embeddings: %v", err)
		return
	}
	if len(embeddings) != len(state.Chunks) {
		state.fail("embedding count mismatch: got %d embeddings for %d chunks", len(embeddings), len(state.Chunks))
		return
	}

	embedded := make([]models.EmbeddedChunk, len(state.Chunks))
	for i, chunk := range state.Chunks {
		embedded[i] = models.NewEmbeddedChunk(chunk, embeddings[i])
	}
	state.EmbeddedChunks = embedded
	state.Status = StatusEmbeddingsCreated
	p.log.Info(fmt.Sprintf("Created %d embeddings", len(embedded)))
}

// storeEmbeddings binds to (or creates) the collection non-destructively and
// inserts the newly embedded batch.
func (p *IndexingPipeline) storeEmbeddings(ctx context.Context, state *RunState) {
	if state.failed() || state.noNewDocuments() {
		return
	}

	// Never the destructive InitializeCollection here: prior data must
	// survive an incremental run.
	if err := p.index.InitializeOrLoadCollection(ctx); err != nil {
		state.fail("failed to initialize collection: %v", err)
		return
	}
	if err := p.index.InsertEmbeddings(ctx, state.EmbeddedChunks); err != nil {
		state.fail("failed to store embeddings: %v", err)
		return
	}
	state.Status = StatusEmbeddingsStored
	p.log.Info("Successfully stored embeddings")
}

// cleanup releases the cloned working copy and resolves the terminal
// status. Its own failures are logged, never propagated.
func (p *IndexingPipeline) cleanup(state *RunState) {
	if state.RepoPath != "" {
		if err := p.source.Release(state.RepoPath); err != nil {
			p.log.Warn(fmt.Sprintf("Cleanup warning: %v", err))
		}
	}

	switch {
	case state.Err != "":
		state.Status = StatusFailed
	case state.noNewDocuments():
		state.Status = StatusCompletedNoChanges
	default:
		state.Status = StatusCompleted
	}
}
