// Package batch drives the scan, process and write stages in fixed-size
// chunks. Each chunk is written in a single writer call; chunks run one
// after another in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// DefaultChunkSize applies when no positive chunk size is configured.
const DefaultChunkSize = 10

// State is the engine's position in its cycle:
// INITIAL -> (READING -> PROCESSING -> WRITING -> COMMITTED)* -> COMPLETED.
type State int

const (
	StateInitial State = iota
	StateReading
	StateProcessing
	StateWriting
	StateCommitted
	StateCompleted
	StateFailed
)

var stateNames = [...]string{"INITIAL", "READING", "PROCESSING", "WRITING", "COMMITTED", "COMPLETED", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Reader yields documents until it returns io.EOF.
type Reader interface {
	Next(ctx context.Context) (*model.Document, error)
}

// Processor handles one document. It records failures on the document
// instead of returning them.
type Processor interface {
	Process(ctx context.Context, doc *model.Document) *model.Document
}

// Writer commits one chunk.
type Writer interface {
	Write(ctx context.Context, docs []*model.Document) error
}

// Summary counts what a run did.
type Summary struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Engine runs a single pipeline. An Engine is not reusable across
// concurrent Run calls.
type Engine struct {
	reader    Reader
	processor Processor
	writer    Writer
	chunkSize int
	workers   int
	logger    *slog.Logger
	hook      func(State)
	state     State
}

// Option customizes an Engine.
type Option func(*Engine)

// WithChunkSize sets the documents per chunk. Non-positive values keep the
// default.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithWorkers lets up to n documents of a chunk be processed at once. The
// chunk keeps its input order either way.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStateHook is called on every state change.
func WithStateHook(fn func(State)) Option {
	return func(e *Engine) { e.hook = fn }
}

// New builds an Engine.
func New(r Reader, p Processor, w Writer, opts ...Option) *Engine {
	e := &Engine{
		reader:    r,
		processor: p,
		writer:    w,
		chunkSize: DefaultChunkSize,
		workers:   1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Run processes the whole input. Per-document failures are recorded on
// the documents. A reader or writer error stops the run and is returned;
// results already written stay on disk.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := time.Now()
	e.enter(StateInitial)
	e.logger.Info("batch.run.start", "chunk_size", e.chunkSize, "workers", e.workers)

	for chunk := 1; ; chunk++ {
		if err := ctx.Err(); err != nil {
			e.enter(StateFailed)
			return sum, err
		}
		e.enter(StateReading)
		docs, exhausted, err := e.read(ctx)
		if err != nil {
			e.enter(StateFailed)
			e.logger.Error("batch.read.failed", "chunk", chunk, "error", err)
			return sum, fmt.Errorf("read chunk %d: %w", chunk, err)
		}
		if len(docs) == 0 {
			break
		}

		e.enter(StateProcessing)
		e.process(ctx, docs)

		e.enter(StateWriting)
		if err := e.writer.Write(ctx, docs); err != nil {
			e.enter(StateFailed)
			e.logger.Error("batch.write.failed", "chunk", chunk, "error", err)
			return sum, fmt.Errorf("write chunk %d: %w", chunk, err)
		}

		e.enter(StateCommitted)
		sum.Chunks++
		for _, doc := range docs {
			sum.Documents++
			switch doc.Status {
			case model.StatusCompleted:
				sum.Completed++
			case model.StatusError:
				sum.Failed++
			}
		}
		e.logger.Info("batch.chunk.committed", "chunk", chunk, "documents", len(docs))
		if exhausted {
			break
		}
	}

	e.enter(StateCompleted)
	e.logger.Info("batch.run.completed",
		"chunks", sum.Chunks,
		"documents", sum.Documents,
		"completed", sum.Completed,
		"failed", sum.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sum, nil
}

// read pulls up to chunkSize documents. exhausted reports that the reader
// returned io.EOF.
func (e *Engine) read(ctx context.Context) (docs []*model.Document, exhausted bool, err error) {
	docs = make([]*model.Document, 0, e.chunkSize)
	for len(docs) < e.chunkSize {
		doc, err := e.reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			return docs, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		docs = append(docs, doc)
	}
	return docs, false, nil
}

func (e *Engine) process(ctx context.Context, docs []*model.Document) {
	if e.workers <= 1 {
		for i, doc := range docs {
			if out := e.processor.Process(ctx, doc); out != nil {
				docs[i] = out
			}
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if out := e.processor.Process(ctx, doc); out != nil {
				docs[i] = out
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) enter(s State) {
	e.state = s
	if e.hook != nil {
		e.hook(s)
	}
}
