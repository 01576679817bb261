package models

import (
	"strings"
	"time"
)

// DocumentKind tags the source format of a document.
type DocumentKind string

const (
	KindMarkdown     DocumentKind = "markdown"
	KindImage        DocumentKind = "image"
	KindDiagram      DocumentKind = "diagram"
	KindSpreadsheet  DocumentKind = "spreadsheet"
	KindWordDocument DocumentKind = "word_document"
)

// OriginLocal marks documents ingested from the local data directory rather
// than a remote repository. Remote documents carry the repository URL instead.
const OriginLocal = "local"

// kindByExtension maps the file extensions the local ingestion path supports
// onto their document kind. Markdown is not listed here: it is only ingested
// through the repository reader.
var kindByExtension = map[string]DocumentKind{
	".png":    KindImage,
	".jpg":    KindImage,
	".jpeg":   KindImage,
	".gif":    KindImage,
	".bmp":    KindImage,
	".svg":    KindImage,
	".webp":   KindImage,
	".drawio": KindDiagram,
	".docx":   KindWordDocument,
	".doc":    KindWordDocument,
	".xlsx":   KindSpreadsheet,
	".xls":    KindSpreadsheet,
}

// KindForExtension resolves a file extension (with leading dot, any case) to
// a locally supported DocumentKind. The second result is false for
// unsupported extensions, which callers silently skip.
func KindForExtension(ext string) (DocumentKind, bool) {
	kind, ok := kindByExtension[strings.ToLower(ext)]
	return kind, ok
}

// Document is one logical source unit: a markdown file from a repository or
// a file from the local data directory. Documents are immutable once created.
type Document struct {
	// Content is the extracted text of the document.
	Content string

	// Path identifies the document within a run and is the de-duplication
	// key against the vector index.
	Path string

	// Origin is the repository URL for remote documents, or OriginLocal.
	Origin string

	Kind     DocumentKind
	Metadata Metadata
}

// Chunk is a contiguous slice of a document's content. Chunks of the same
// document are ordered by Index; adjacent chunks may share an overlap region.
type Chunk struct {
	Content string

	// Index is the 0-based position among the chunks of one document.
	Index int

	// SourcePath is copied from the parent document's Path.
	SourcePath string

	Origin   string
	Kind     DocumentKind
	Metadata Metadata
}

// EmbeddedChunk pairs a chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk     Chunk
	Embedding []float32
	CreatedAt time.Time
}

// NewEmbeddedChunk builds an EmbeddedChunk, stamping the creation time.
func NewEmbeddedChunk(chunk Chunk, embedding []float32) EmbeddedChunk {
	return EmbeddedChunk{
		Chunk:     chunk,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
}

// SearchResult is one nearest-neighbor hit returned by the vector index.
// Metadata fields a degraded schema cannot provide are left at their zero
// value rather than reported as an error.
type SearchResult struct {
	ID            int64   `json:"id"`
	Distance      float32 `json:"distance"`
	Content       string  `json:"content"`
	FilePath      string  `json:"file_path"`
	RepositoryURL string  `json:"repository_url"`
	ChunkIndex    int64   `json:"chunk_index"`
}
