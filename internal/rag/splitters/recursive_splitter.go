package splitters

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// defaultSeparators is the split priority: paragraph break, line break,
// space, and finally raw character slicing when nothing else matches.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveCharacterSplitter splits document text into overlapping chunks.
// It recursively breaks text on the highest-priority separator present so
// that each chunk stays within ChunkSize characters, then merges the pieces
// back together with ChunkOverlap characters of shared tail between adjacent
// chunks. Sizes are measured in runes.
type RecursiveCharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	separators   []string
	log          *logger.Logger
}

// NewRecursiveCharacterSplitter creates a splitter. ChunkOverlap must be
// strictly smaller than ChunkSize.
func NewRecursiveCharacterSplitter(chunkSize, chunkOverlap int, log *logger.Logger) (*RecursiveCharacterSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}
	return &RecursiveCharacterSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
		log:          log,
	}, nil
}

// Chunk splits one document. A zero-length document yields zero chunks.
func (s *RecursiveCharacterSplitter) Chunk(doc models.Document) ([]models.Chunk, error) {
	pieces := s.mergeAtoms(s.atomize(doc.Content, s.separators))

	chunks := make([]models.Chunk, 0, len(pieces))
	for i, text := range pieces {
		md := doc.Metadata.Clone()
		md["total_chunks"] = models.Int(int64(len(pieces)))
		chunks = append(chunks, models.Chunk{
			Content:    text,
			Index:      i,
			SourcePath: doc.Path,
			Origin:     doc.Origin,
			Kind:       doc.Kind,
			Metadata:   md,
		})
	}
	return chunks, nil
}

// ChunkAll splits every document and concatenates the results in input
// order. Chunk indices restart at zero for each document.
func (s *RecursiveCharacterSplitter) ChunkAll(docs []models.Document) ([]models.Chunk, error) {
	var all []models.Chunk
	for _, doc := range docs {
		chunks, err := s.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", doc.Path, err)
		}
		s.log.Debug(fmt.Sprintf("Chunked %s: %d chunks", doc.Path, len(chunks)))
		all = append(all, chunks...)
	}
	s.log.Info(fmt.Sprintf("Total chunks created: %d", len(all)))
	return all, nil
}

// atomize breaks text into pieces each strictly shorter than ChunkSize,
// splitting on the first separator present and recursing with the remaining,
// lower-priority separators for oversized pieces. Separators stay attached
// to the end of the piece they terminate, so joining atoms reconstructs the
// input exactly.
func (s *RecursiveCharacterSplitter) atomize(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) < s.ChunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, cand := range separators {
		if cand == "" {
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		// No separator left inside this run: fall back to raw character
		// slicing. Single runes are the atoms; merging re-assembles them
		// into ChunkSize windows.
		atoms := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			atoms = append(atoms, string(r))
		}
		return atoms
	}

	var atoms []string
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) < s.ChunkSize {
			atoms = append(atoms, piece)
		} else {
			atoms = append(atoms, s.atomize(piece, rest)...)
		}
	}
	return atoms
}

// mergeAtoms greedily packs atoms into chunks of at most ChunkSize runes.
// When a chunk is emitted, a tail of at most ChunkOverlap runes is retained
// as the start of the next chunk. The final chunk carries no trailing
// overlap obligation.
func (s *RecursiveCharacterSplitter) mergeAtoms(atoms []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, atom := range atoms {
		length := utf8.RuneCountInString(atom)
		if total+length > s.ChunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total > s.ChunkOverlap || total+length > s.ChunkSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, atom)
		total += length
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

// compile-time check to ensure RecursiveCharacterSplitter implements the Chunker interface
var _ interfaces.Chunker = (*RecursiveCharacterSplitter)(nil)
