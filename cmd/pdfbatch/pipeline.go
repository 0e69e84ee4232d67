package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/pdfbatch/internal/config"
	"github.com/dharsanguruparan/pdfbatch/internal/deepseek"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
	pdfutil "github.com/dharsanguruparan/pdfbatch/internal/pdf"
	"github.com/dharsanguruparan/pdfbatch/internal/processor"
	"github.com/dharsanguruparan/pdfbatch/internal/s3storage"
	"github.com/dharsanguruparan/pdfbatch/internal/scanner"
	"github.com/dharsanguruparan/pdfbatch/internal/writer"
)

type pipeline struct {
	scanner   *scanner.Scanner
	processor *processor.Processor
	writer    *writer.Writer
}

// newPipeline wires the stages for a batch run. The API client is built
// first so an invalid configuration stops the run before any work starts.
func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	writerOpts := []writer.Option{writer.WithLogger(logger)}
	if cfg.S3.Enabled() {
		store, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		writerOpts = append(writerOpts, writer.WithMirror(store))
		logger.Info("pipeline.mirror.enabled", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	}
	return &pipeline{
		scanner:   scanner.New(cfg.InputDirectory, logger),
		processor: newProcessor(cfg, client, logger),
		writer:    writer.New(cfg.OutputDirectory, writerOpts...),
	}, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (*deepseek.Client, error) {
	client, err := deepseek.NewClient(deepseek.Config{
		BaseURL:     cfg.APIURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Prompt:      cfg.Prompt,
		PromptFile:  cfg.PromptFile,
		Timeout:     cfg.APITimeout,
	}, deepseek.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	return client, nil
}

// newProcessor leaves the prompt override empty so the client resolves the
// configured literal, prompt file or default.
func newProcessor(cfg *config.Config, client processor.Completer, logger *slog.Logger) *processor.Processor {
	return processor.New(pdfutil.NewExtractor(cfg.ValidatePDF), client, processor.WithLogger(logger))
}

// streamAnalysis prints each newly arrived fragment. Stream results carry
// cumulative text, so the delta is the new suffix.
func streamAnalysis(cmd *cobra.Command, client *deepseek.Client, doc *model.Document) error {
	s, err := client.Stream(cmd.Context(), doc, "")
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()
	printed := 0
	for s.Next() {
		text := s.Current().RawResponse
		fmt.Fprint(out, text[printed:])
		printed = len(text)
	}
	fmt.Fprintln(out)
	return s.Err()
}
