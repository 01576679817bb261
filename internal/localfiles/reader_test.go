package localfiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"baliance.com/gooxml/document"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/internal/models"
	"github.com/NadeeshaMedagama/rag-milvus-vision-pipeline/pkg/logger"
)

type fakeVision struct {
	summary string
	err     error
	calls   int
}

func (f *fakeVision) Summarize(ctx context.Context, path string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func newTestReader(vision *fakeVision) *Reader {
	logger.Init(logrus.ErrorLevel)
	if vision == nil {
		return NewReader(nil, logger.New("test"))
	}
	return NewReader(vision, logger.New("test"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadDirectory_MissingDirectory(t *testing.T) {
	r := newTestReader(nil)

	docs, err := r.ReadDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected 0 documents for missing directory, got %d", len(docs))
	}
}

func TestReadDirectory_SkipsUnsupportedExtensions(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "plain text")
	writeFile(t, dir, "README.md", "# markdown comes from the repository, not here")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected unsupported files to be skipped, got %d documents", len(docs))
	}
}

func TestReadDirectory_Diagram(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	xml := `<mxfile><diagram name="arch">content</diagram></mxfile>`
	path := writeFile(t, dir, "arch.drawio", xml)

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	doc := docs[0]
	if doc.Kind != models.KindDiagram {
		t.Errorf("kind = %q, want %q", doc.Kind, models.KindDiagram)
	}
	if doc.Path != path {
		t.Errorf("path = %q, want %q", doc.Path, path)
	}
	if doc.Origin != models.OriginLocal {
		t.Errorf("origin = %q, want %q", doc.Origin, models.OriginLocal)
	}
	if !strings.Contains(doc.Content, xml) {
		t.Errorf("diagram content does not embed the source XML: %q", doc.Content)
	}
	if v, ok := doc.Metadata["has_png_export"]; !ok || v.Bool {
		t.Errorf("has_png_export = %+v, want present and false", v)
	}
	if v, ok := doc.Metadata["file_type"]; !ok || v.Str != string(models.KindDiagram) {
		t.Errorf("file_type = %+v", v)
	}
}

func TestReadDirectory_DiagramWithPNGExport(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	writeFile(t, dir, "flow.drawio", "<mxfile/>")
	writeFile(t, dir, "flow.drawio.png", "\x89PNG fake bytes")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}

	var diagram *models.Document
	for i := range docs {
		if docs[i].Kind == models.KindDiagram {
			diagram = &docs[i]
		}
	}
	if diagram == nil {
		t.Fatal("no diagram document found")
	}
	if v := diagram.Metadata["has_png_export"]; !v.Bool {
		t.Error("has_png_export = false, want true")
	}
}

func TestReadDirectory_ImageWithoutVision(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	writeFile(t, dir, "photo.png", "\x89PNG\r\n\x1a\nnot really a png")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Kind != models.KindImage {
		t.Errorf("kind = %q, want %q", doc.Kind, models.KindImage)
	}
	if !strings.Contains(doc.Content, "vision analyzer not configured") {
		t.Errorf("expected placeholder content, got %q", doc.Content)
	}
}

func TestReadDirectory_ImageWithVision(t *testing.T) {
	vision := &fakeVision{summary: "A diagram of the deployment architecture."}
	r := newTestReader(vision)
	dir := t.TempDir()
	writeFile(t, dir, "deploy.png", "\x89PNG\r\n\x1a\nfake")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Content != vision.summary {
		t.Errorf("content = %q, want vision summary", doc.Content)
	}
	if v := doc.Metadata["analyzed_by"]; v.Str != "vision_analyzer" {
		t.Errorf("analyzed_by = %+v", v)
	}
	if vision.calls != 1 {
		t.Errorf("vision called %d times, want 1", vision.calls)
	}
}

func TestReadDirectory_ImageVisionFailureDegrades(t *testing.T) {
	vision := &fakeVision{err: errors.New("model overloaded")}
	r := newTestReader(vision)
	dir := t.TempDir()
	writeFile(t, dir, "broken.png", "\x89PNG\r\n\x1a\nfake")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 degraded document, got %d", len(docs))
	}
	doc := docs[0]
	if !strings.Contains(doc.Content, "Error reading") {
		t.Errorf("expected degraded content, got %q", doc.Content)
	}
	if _, ok := doc.Metadata["error"]; !ok {
		t.Error("degraded document is missing the error metadata")
	}
}

func TestReadDirectory_Spreadsheet(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.xlsx")

	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Item"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "Count"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "Widget"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B2", 42); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Kind != models.KindSpreadsheet {
		t.Errorf("kind = %q, want %q", doc.Kind, models.KindSpreadsheet)
	}
	if !strings.Contains(doc.Content, "Item | Count") || !strings.Contains(doc.Content, "Widget | 42") {
		t.Errorf("spreadsheet rows missing from content: %q", doc.Content)
	}
	if v := doc.Metadata["sheet_count"]; v.Int != 1 {
		t.Errorf("sheet_count = %d, want 1", v.Int)
	}
	if v := doc.Metadata["sheet_names"]; v.Str != "Sheet1" {
		t.Errorf("sheet_names = %q, want Sheet1", v.Str)
	}
}

func TestReadDirectory_CorruptSpreadsheetDegrades(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	writeFile(t, dir, "bad.xlsx", "this is not a zip archive")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 degraded document, got %d", len(docs))
	}
	doc := docs[0]
	if !strings.Contains(doc.Content, "Error reading") {
		t.Errorf("expected degraded content, got %q", doc.Content)
	}
	if _, ok := doc.Metadata["error"]; !ok {
		t.Error("degraded document is missing the error metadata")
	}
}

func TestReadDirectory_WordDocument(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "design.docx")

	doc := document.New()
	para := doc.AddParagraph()
	run := para.AddRun()
	run.AddText("System design overview")
	if err := doc.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	got := docs[0]
	if got.Kind != models.KindWordDocument {
		t.Errorf("kind = %q, want %q", got.Kind, models.KindWordDocument)
	}
	if !strings.Contains(got.Content, "System design overview") {
		t.Errorf("paragraph text missing from content: %q", got.Content)
	}
}

func TestReadDirectory_LegacyDocPlaceholder(t *testing.T) {
	r := newTestReader(nil)
	dir := t.TempDir()
	writeFile(t, dir, "old.doc", "binary word 97 content")

	docs, err := r.ReadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if !strings.Contains(docs[0].Content, ".doc format not supported") {
		t.Errorf("expected placeholder content for legacy .doc, got %q", docs[0].Content)
	}
}
