// Package processor runs one document through metadata extraction and a
// completion call, recording the outcome on the document itself.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// MetadataExtractor reads page count, title and author from PDF bytes.
type MetadataExtractor interface {
	Extract(data []byte) (model.Metadata, error)
}

// Completer sends a document to the completion endpoint.
type Completer interface {
	Complete(ctx context.Context, doc *model.Document, prompt string) (*model.CompletionResult, error)
}

// Processor is stateless between calls and may be shared by workers.
type Processor struct {
	extractor MetadataExtractor
	client    Completer
	prompt    string
	logger    *slog.Logger
}

// Option customizes a Processor.
type Option func(*Processor)

// WithPrompt overrides the client's prompt resolution for every document.
func WithPrompt(prompt string) Option {
	return func(p *Processor) { p.prompt = prompt }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New builds a Processor.
func New(extractor MetadataExtractor, client Completer, opts ...Option) *Processor {
	p := &Processor{extractor: extractor, client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process never returns an error: failures leave the document in ERROR
// with the code and message recorded. The end time is always stamped.
func (p *Processor) Process(ctx context.Context, doc *model.Document) (out *model.Document) {
	if doc == nil || doc.Status.Terminal() {
		return doc
	}
	logger := p.logger.With("doc_id", doc.ID, "file", doc.FileName)
	start := time.Now()
	doc.ProcessingStartTime = model.Now()
	_ = doc.SetStatus(model.StatusProcessing)

	failure := func(stage string, err error, fallback apperr.Code) {
		code := apperr.CodeOf(err)
		if code == "" {
			code = fallback
		}
		logger.Error("processor.document.failed", "stage", stage, "code", code, "error", err)
		doc.Fail(string(code), err.Error())
	}
	defer func() {
		if r := recover(); r != nil {
			failure("panic", fmt.Errorf("recovered: %v", r), apperr.PDFProcessingError)
		}
		doc.ProcessingEndTime = model.Now()
		out = doc
	}()

	meta, err := p.extractor.Extract(doc.Content)
	if err != nil {
		failure("extract", err, apperr.PDFProcessingError)
		return doc
	}
	doc.ApplyMetadata(meta)

	res, err := p.client.Complete(ctx, doc, p.prompt)
	if err != nil {
		failure("complete", err, apperr.APICommunicationError)
		return doc
	}
	doc.DeepseekResponse = model.Optional(res.Text())
	_ = doc.SetStatus(model.StatusCompleted)
	logger.Info("processor.document.completed",
		"pages", doc.PageCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc
}
