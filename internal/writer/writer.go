// Package writer persists processed documents as one JSON file each.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// ResultSuffix is appended to the input base name to form the output name.
const ResultSuffix = "_result.json"

// Mirror receives a copy of every result file after it is written locally.
type Mirror interface {
	PutResult(ctx context.Context, name string, data []byte) error
}

// Writer writes results into a single output directory.
type Writer struct {
	dir    string
	mirror Mirror
	logger *slog.Logger
}

// Option customizes a Writer.
type Option func(*Writer)

// WithMirror uploads each result through m as well.
func WithMirror(m Mirror) Option {
	return func(w *Writer) { w.mirror = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New builds a Writer for dir.
func New(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores docs in order. Content is cleared before serialization. The
// first failure is returned; files written before it are left in place.
func (w *Writer) Write(ctx context.Context, docs []*model.Document) error {
	w.logger.Info("writer.chunk.start", "documents", len(docs))
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, doc := range docs {
		name := ResultName(doc.FileName)
		doc.Content = nil
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.FileName, err)
		}
		path := filepath.Join(w.dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if w.mirror != nil {
			if err := w.mirror.PutResult(ctx, name, data); err != nil {
				return fmt.Errorf("mirror %s: %w", name, err)
			}
		}
		w.logger.Info("writer.result.written", "file", doc.FileName, "path", path, "status", doc.Status)
	}
	return nil
}

// ResultName maps report.pdf (any case of the extension) to
// report_result.json.
func ResultName(fileName string) string {
	base := fileName
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ResultSuffix
}
