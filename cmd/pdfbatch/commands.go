package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/pdfbatch/internal/batch"
	"github.com/dharsanguruparan/pdfbatch/internal/config"
	"github.com/dharsanguruparan/pdfbatch/internal/logging"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pdfbatch",
		Short: "Batch PDF analysis against a chat completion API",
		Long: `pdfbatch scans a directory for PDF files, extracts basic metadata, sends each
document to a completion endpoint and writes one <name>_result.json per input.

Every flag can also be set as PDFBATCH_<FLAG> (dashes become underscores) or
in a config file passed with --config.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	config.RegisterFlags(cmd.PersistentFlags())
	cmd.AddCommand(
		newRunCmd(opts),
		newAnalyzeCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every PDF in the input directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			engine := batch.New(p.scanner, p.processor, p.writer,
				batch.WithChunkSize(cfg.ChunkSize),
				batch.WithWorkers(cfg.Workers),
				batch.WithLogger(logger),
			)
			sum, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d documents in %d chunks: %d completed, %d failed\n",
				sum.Documents, sum.Chunks, sum.Completed, sum.Failed)
			return nil
		},
	}
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Analyze a single PDF and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			doc := model.NewDocument(args[0], data)
			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}
			if stream {
				return streamAnalysis(cmd, client, doc)
			}
			p := newProcessor(cfg, client, logger)
			p.Process(cmd.Context(), doc)
			doc.Content = nil
			if err := writeJSON(cmd.OutOrStdout(), doc); err != nil {
				return err
			}
			if doc.Status == model.StatusError {
				return fmt.Errorf("analysis failed: %s", model.StringValue(doc.ErrorMessage))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Print the completion as it streams in")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg.Masked())
		},
	}
}

// loadConfig resolves configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotenv(opts.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cmd.Flags(), opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
