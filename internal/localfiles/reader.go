package localfiles

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"baliance.com/gooxml/document"
	"github.com/djherbis/times"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/rag/interfaces"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

// maxSheetRows caps how many rows of a spreadsheet sheet are rendered into
// the document text; larger sheets get a truncation note.
const maxSheetRows = 100

// Reader ingests supported files (images, drawio diagrams, word documents,
// spreadsheets) from a local directory. Unsupported extensions are skipped
// silently; a file that fails to parse produces a degraded document naming
// the error, so the directory walk never aborts on one bad file.
type Reader struct {
	vision interfaces.VisionAnalyzer // optional
	log    *logger.Logger
}

// NewReader creates a reader. vision may be nil, in which case image
// documents carry a placeholder line instead of a visual summary.
func NewReader(vision interfaces.VisionAnalyzer, log *logger.Logger) *Reader {
	return &Reader{vision: vision, log: log}
}

// ReadDirectory walks dir recursively and returns a Document per supported
// file. A missing directory yields zero documents with a warning.
func (r *Reader) ReadDirectory(ctx context.Context, dir string) ([]models.Document, error) {
	if _, err := os.Stat(dir); err != nil {
		r.log.Warn(fmt.Sprintf("Directory %s does not exist", dir))
		return nil, nil
	}

	r.log.Info(fmt.Sprintf("Scanning directory: %s", dir))

	var documents []models.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		kind, ok := models.KindForExtension(filepath.Ext(path))
		if !ok {
			return nil
		}

		documents = append(documents, r.readFile(ctx, path, kind))
		r.log.Debug(fmt.Sprintf("Processed: %s", filepath.Base(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dir, err)
	}

	r.log.Info(fmt.Sprintf("Total files processed: %d", len(documents)))
	return documents, nil
}

// readFile dispatches on the document kind. Parse failures come back as a
// degraded document describing the error.
func (r *Reader) readFile(ctx context.Context, path string, kind models.DocumentKind) models.Document {
	var (
		content string
		extra   models.Metadata
		err     error
	)

	switch kind {
	case models.KindImage:
		content, extra, err = r.readImage(ctx, path)
	case models.KindDiagram:
		content, extra, err = r.readDiagram(ctx, path)
	case models.KindWordDocument:
		content, extra, err = r.readWordDocument(path)
	case models.KindSpreadsheet:
		content, extra, err = r.readSpreadsheet(path)
	default:
		err = fmt.Errorf("unhandled document kind %q", kind)
	}

	md := baseMetadata(path, kind)
	for k, v := range extra {
		md[k] = v
	}

	if err != nil {
		r.log.Warn(fmt.Sprintf("Error processing %s: %v", path, err))
		md["error"] = models.String(err.Error())
		content = fmt.Sprintf("%s: %s (Error reading: %v)", kindLabel(kind), filepath.Base(path), err)
	}

	return models.Document{
		Content:  content,
		Path:     path,
		Origin:   models.OriginLocal,
		Kind:     kind,
		Metadata: md,
	}
}

func (r *Reader) readImage(ctx context.Context, path string) (string, models.Metadata, error) {
	md := models.Metadata{}
	if mt, err := mimetype.DetectFile(path); err == nil {
		md["mime_type"] = models.String(mt.String())
	}

	if r.vision == nil {
		content := fmt.Sprintf("Image file: %s (vision analyzer not configured)", filepath.Base(path))
		return content, md, nil
	}

	summary, err := r.vision.Summarize(ctx, path)
	if err != nil {
		return "", md, fmt.Errorf("vision analysis failed: %w", err)
	}
	md["analyzed_by"] = models.String("vision_analyzer")
	return summary, md, nil
}

func (r *Reader) readDiagram(ctx context.Context, path string) (string, models.Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	md := models.Metadata{}
	pngPath := path + ".png"
	_, pngErr := os.Stat(pngPath)
	hasPNG := pngErr == nil
	md["has_png_export"] = models.Bool(hasPNG)

	if hasPNG && r.vision != nil {
		summary, err := r.vision.Summarize(ctx, pngPath)
		if err == nil {
			content := fmt.Sprintf("Diagram File: %s\n\n--- Visual Analysis ---\n%s\n\n--- Source XML ---\n%s",
				filepath.Base(path), summary, string(raw))
			return content, md, nil
		}
		r.log.Warn(fmt.Sprintf("Vision analysis of %s failed: %v", pngPath, err))
	}

	return fmt.Sprintf("Diagram File: %s\n\n%s", filepath.Base(path), string(raw)), md, nil
}

func (r *Reader) readWordDocument(path string) (string, models.Metadata, error) {
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		// Only the OOXML format is parseable.
		content := fmt.Sprintf("Word document: %s (.doc format not supported, only .docx)", filepath.Base(path))
		return content, nil, nil
	}

	doc, err := document.Open(path)
	if err != nil {
		return "", nil, err
	}

	var lines []string
	for _, p := range doc.Paragraphs() {
		var sb strings.Builder
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			lines = append(lines, text)
		}
	}

	for _, table := range doc.Tables() {
		for _, row := range table.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				var sb strings.Builder
				for _, p := range cell.Paragraphs() {
					for _, run := range p.Runs() {
						sb.WriteString(run.Text())
					}
				}
				cells = append(cells, sb.String())
			}
			if rowText := strings.Join(cells, " | "); strings.TrimSpace(rowText) != "" {
				lines = append(lines, rowText)
			}
		}
	}

	md := models.Metadata{
		"paragraph_count": models.Int(int64(len(doc.Paragraphs()))),
		"table_count":     models.Int(int64(len(doc.Tables()))),
	}
	content := fmt.Sprintf("Word Document: %s\n\n%s", filepath.Base(path), strings.Join(lines, "\n"))
	return content, md, nil
}

func (r *Reader) readSpreadsheet(path string) (string, models.Metadata, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	lines := []string{fmt.Sprintf("Spreadsheet: %s\n", filepath.Base(path))}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			r.log.Warn(fmt.Sprintf("Skipping sheet %s of %s: %v", sheet, path, err))
			continue
		}

		lines = append(lines, fmt.Sprintf("\n--- Sheet: %s ---", sheet))
		limit := len(rows)
		if limit > maxSheetRows {
			limit = maxSheetRows
		}
		for _, row := range rows[:limit] {
			if rowText := strings.Join(row, " | "); strings.TrimSpace(rowText) != "" {
				lines = append(lines, rowText)
			}
		}
		if len(rows) > maxSheetRows {
			lines = append(lines, fmt.Sprintf("... (Truncated, total rows: %d)", len(rows)))
		}
	}

	md := models.Metadata{
		"sheet_count": models.Int(int64(len(sheets))),
		"sheet_names": models.String(strings.Join(sheets, ", ")),
	}
	return strings.Join(lines, "\n"), md, nil
}

func baseMetadata(path string, kind models.DocumentKind) models.Metadata {
	md := models.Metadata{
		"source":    models.String("local_directory"),
		"file_type": models.String(string(kind)),
	}
	if info, err := os.Stat(path); err == nil {
		md["file_size"] = models.Int(info.Size())
	}
	if ts, err := times.Stat(path); err == nil {
		md["modified_at"] = models.String(ts.ModTime().UTC().Format(time.RFC3339))
	}
	return md
}

func kindLabel(kind models.DocumentKind) string {
	switch kind {
	case models.KindImage:
		return "Image file"
	case models.KindDiagram:
		return "Diagram file"
	case models.KindWordDocument:
		return "Word document"
	case models.KindSpreadsheet:
		return "Spreadsheet"
	default:
		return "File"
	}
}

// compile-time check to ensure Reader implements the LocalFileReader interface
var _ interfaces.LocalFileReader = (*Reader)(nil)
