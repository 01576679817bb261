package splitters

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

func newTestSplitter(t *testing.T, size, overlap int) *RecursiveCharacterSplitter {
	t.Helper()
	logger.Init(logrus.ErrorLevel)
	s, err := NewRecursiveCharacterSplitter(size, overlap, logger.New("test"))
	if err != nil {
		t.Fatalf("NewRecursiveCharacterSplitter() error = %v", err)
	}
	return s
}

func TestNewRecursiveCharacterSplitter_InvalidParams(t *testing.T) {
	logger.Init(logrus.ErrorLevel)
	log := logger.New("test")

	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRecursiveCharacterSplitter(tc.size, tc.overlap, log); err == nil {
				t.Errorf("expected error for size=%d overlap=%d", tc.size, tc.overlap)
			}
		})
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	s := newTestSplitter(t, 100, 20)

	chunks, err := s.Chunk(models.Document{Content: "", Path: "empty.md"})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty document, got %d", len(chunks))
	}
}

func TestChunk_SmallDocumentSingleChunk(t *testing.T) {
	s := newTestSplitter(t, 100, 20)

	doc := models.Document{
		Content:  "short text",
		Path:     "a.md",
		Origin:   "https://example.com/repo",
		Kind:     models.KindMarkdown,
		Metadata: models.Metadata{"file_name": models.String("a.md")},
	}
	chunks, err := s.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Content != doc.Content {
		t.Errorf("chunk content = %q, want %q", c.Content, doc.Content)
	}
	if c.Index != 0 {
		t.Errorf("chunk index = %d, want 0", c.Index)
	}
	if c.SourcePath != doc.Path || c.Origin != doc.Origin || c.Kind != doc.Kind {
		t.Errorf("chunk provenance not carried over: %+v", c)
	}
	if got := c.Metadata["total_chunks"]; got.Int != 1 {
		t.Errorf("total_chunks = %d, want 1", got.Int)
	}
}

func TestChunk_ParagraphSplitReconstructsExactly(t *testing.T) {
	s := newTestSplitter(t, 6, 0)

	content := "aaaa\n\nbbbb\n\ncccc"
	chunks, err := s.Chunk(models.Document{Content: content, Path: "p.md"})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	want := []string{"aaaa\n\n", "bbbb\n\n", "cccc"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	var rebuilt strings.Builder
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		rebuilt.WriteString(c.Content)
	}
	if rebuilt.String() != content {
		t.Errorf("concatenation = %q, want original %q", rebuilt.String(), content)
	}
}

func TestChunk_RawSliceFallback(t *testing.T) {
	// A separator-free run longer than the chunk size falls back to
	// character slicing.
	s := newTestSplitter(t, 10, 0)

	content := strings.Repeat("x", 25)
	chunks, err := s.Chunk(models.Document{Content: content, Path: "x.md"})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	wantLens := []int{10, 10, 5}
	if len(chunks) != len(wantLens) {
		t.Fatalf("expected %d chunks, got %d", len(wantLens), len(chunks))
	}
	var rebuilt strings.Builder
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, n, wantLens[i])
		}
		rebuilt.WriteString(c.Content)
	}
	if rebuilt.String() != content {
		t.Errorf("concatenation does not reconstruct original")
	}
}

func TestChunk_OverlapRetainsTail(t *testing.T) {
	s := newTestSplitter(t, 10, 4)

	content := "abcdefghijklmnopqrstuvwxy" // 25 distinct runes
	chunks, err := s.Chunk(models.Document{Content: content, Path: "o.md"})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	want := []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxy"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunkContents(chunks))
	}
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
	}

	// Each chunk begins with the 4-rune tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-4:]
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Errorf("chunk %d does not start with predecessor tail %q", i, tail)
		}
	}
}

func TestChunk_NeverExceedsChunkSize(t *testing.T) {
	s := newTestSplitter(t, 50, 10)

	content := strings.Repeat("some words here\nanother line of text\n\n", 30)
	chunks, err := s.Chunk(models.Document{Content: content, Path: "big.md"})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 50 {
			t.Errorf("chunk %d has %d runes, exceeds chunk size", i, n)
		}
		if !strings.Contains(content, c.Content) {
			t.Errorf("chunk %d is not a substring of the input", i)
		}
	}
}

func TestChunk_MetadataCloned(t *testing.T) {
	s := newTestSplitter(t, 100, 0)

	doc := models.Document{
		Content:  "hello world",
		Path:     "m.md",
		Metadata: models.Metadata{"file_name": models.String("m.md")},
	}
	chunks, err := s.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	chunks[0].Metadata["mutated"] = models.Bool(true)
	if _, ok := doc.Metadata["mutated"]; ok {
		t.Error("mutating chunk metadata leaked into the document metadata")
	}
}

func TestChunkAll_OrderAndIndexReset(t *testing.T) {
	s := newTestSplitter(t, 10, 0)

	docs := []models.Document{
		{Content: strings.Repeat("a", 15), Path: "one.md"},
		{Content: "tiny", Path: "two.md"},
	}
	chunks, err := s.ChunkAll(docs)
	if err != nil {
		t.Fatalf("ChunkAll() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].SourcePath != "one.md" || chunks[1].SourcePath != "one.md" || chunks[2].SourcePath != "two.md" {
		t.Errorf("chunks out of document order: %v", chunkContents(chunks))
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Errorf("first document indices = %d,%d, want 0,1", chunks[0].Index, chunks[1].Index)
	}
	if chunks[2].Index != 0 {
		t.Errorf("second document index = %d, want 0 (indices reset per document)", chunks[2].Index)
	}
}

func chunkContents(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
