// Package config centralizes how pdfbatch reads flags, environment variables,
// optional config files and .env files, and exposes them as typed values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
)

// EnvPrefix is prepended to every key when it is read from the environment,
// so chunk-size becomes PDFBATCH_CHUNK_SIZE.
const EnvPrefix = "PDFBATCH"

// Recognized keys. Flag names and config file keys are the same strings.
const (
	KeyInputDirectory  = "input-directory"
	KeyOutputDirectory = "output-directory"
	KeyChunkSize       = "chunk-size"
	KeyWorkers         = "workers"
	KeyPrompt          = "prompt"
	KeyPromptFile      = "prompt-file"
	KeyModel           = "model"
	KeyTemperature     = "temperature"
	KeyMaxTokens       = "max-tokens"
	KeyAPIURL          = "api-url"
	KeyAPIKey          = "api-key"
	KeyAPITimeout      = "api-timeout"
	KeyValidatePDF     = "validate-pdf"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyS3Endpoint      = "s3-endpoint"
	KeyS3AccessKey     = "s3-access-key"
	KeyS3SecretKey     = "s3-secret-key"
	KeyS3Bucket        = "s3-bucket"
	KeyS3Prefix        = "s3-prefix"
	KeyS3Region        = "s3-region"
	KeyS3UseSSL        = "s3-use-ssl"
)

const (
	DefaultInputDirectory  = "./input"
	DefaultOutputDirectory = "./output"
	DefaultChunkSize       = 10
	DefaultWorkers         = 1
	DefaultModel           = "deepseek-coder"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 4096
	DefaultAPIURL          = "https://api.deepseek.com"
	DefaultAPITimeout      = 120 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultS3Prefix        = "results"
)

// Config is the effective runtime configuration.
type Config struct {
	InputDirectory  string        `json:"inputDirectory"`
	OutputDirectory string        `json:"outputDirectory"`
	ChunkSize       int           `json:"chunkSize"`
	Workers         int           `json:"workers"`
	Prompt          string        `json:"prompt"`
	PromptFile      string        `json:"promptFile"`
	Model           string        `json:"model"`
	Temperature     float64       `json:"temperature"`
	MaxTokens       int           `json:"maxTokens"`
	APIURL          string        `json:"apiUrl"`
	APIKey          string        `json:"apiKey"`
	APITimeout      time.Duration `json:"apiTimeout"`
	ValidatePDF     bool          `json:"validatePdf"`
	LogLevel        string        `json:"logLevel"`
	LogFormat       string        `json:"logFormat"`
	S3              S3            `json:"s3"`
}

// S3 configures the optional result mirror.
type S3 struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"useSsl"`
}

// Enabled reports whether enough is configured to mirror results.
func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// RegisterFlags declares every key on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyInputDirectory, DefaultInputDirectory, "Directory scanned recursively for .pdf files")
	fs.String(KeyOutputDirectory, DefaultOutputDirectory, "Directory receiving <name>_result.json files")
	fs.Int(KeyChunkSize, DefaultChunkSize, "Documents processed and written per chunk")
	fs.Int(KeyWorkers, DefaultWorkers, "Documents processed concurrently within a chunk")
	fs.String(KeyPrompt, "", "Literal prompt text (takes precedence over --prompt-file)")
	fs.String(KeyPromptFile, "", "File containing the prompt text")
	fs.String(KeyModel, DefaultModel, "Completion model name")
	fs.Float64(KeyTemperature, DefaultTemperature, "Sampling temperature in [0,1]")
	fs.Int(KeyMaxTokens, DefaultMaxTokens, "Maximum tokens in the completion")
	fs.String(KeyAPIURL, DefaultAPIURL, "Completion API base URL")
	fs.String(KeyAPIKey, "", "Completion API key")
	fs.Duration(KeyAPITimeout, DefaultAPITimeout, "HTTP timeout for a single completion call")
	fs.Bool(KeyValidatePDF, true, "Validate PDF structure before extracting metadata")
	fs.String(KeyLogLevel, DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, DefaultLogFormat, "Log format (text or json)")
	fs.String(KeyS3Endpoint, "", "S3/MinIO endpoint for mirroring results (host:port)")
	fs.String(KeyS3AccessKey, "", "S3 access key")
	fs.String(KeyS3SecretKey, "", "S3 secret key")
	fs.String(KeyS3Bucket, "", "S3 bucket receiving result files")
	fs.String(KeyS3Prefix, DefaultS3Prefix, "Key prefix for mirrored results")
	fs.String(KeyS3Region, "", "S3 region")
	fs.Bool(KeyS3UseSSL, false, "Use TLS when talking to S3")
}

// LoadDotenv loads path into the process environment. A missing file is not
// an error. Variables already set are left alone.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves the configuration. Precedence is flags that were set, then
// PDFBATCH_* environment variables, then the optional config file, then
// defaults. fs may be nil.
func Load(flags *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	cfg := &Config{
		InputDirectory:  v.GetString(KeyInputDirectory),
		OutputDirectory: v.GetString(KeyOutputDirectory),
		ChunkSize:       v.GetInt(KeyChunkSize),
		Workers:         v.GetInt(KeyWorkers),
		Prompt:          v.GetString(KeyPrompt),
		PromptFile:      v.GetString(KeyPromptFile),
		Model:           v.GetString(KeyModel),
		Temperature:     v.GetFloat64(KeyTemperature),
		MaxTokens:       v.GetInt(KeyMaxTokens),
		APIURL:          v.GetString(KeyAPIURL),
		APIKey:          v.GetString(KeyAPIKey),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		ValidatePDF:     v.GetBool(KeyValidatePDF),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		S3: S3{
			Endpoint:  v.GetString(KeyS3Endpoint),
			AccessKey: v.GetString(KeyS3AccessKey),
			SecretKey: v.GetString(KeyS3SecretKey),
			Bucket:    v.GetString(KeyS3Bucket),
			Prefix:    v.GetString(KeyS3Prefix),
			Region:    v.GetString(KeyS3Region),
			UseSSL:    v.GetBool(KeyS3UseSSL),
		},
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyInputDirectory, DefaultInputDirectory)
	v.SetDefault(KeyOutputDirectory, DefaultOutputDirectory)
	v.SetDefault(KeyChunkSize, DefaultChunkSize)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyTemperature, DefaultTemperature)
	v.SetDefault(KeyMaxTokens, DefaultMaxTokens)
	v.SetDefault(KeyAPIURL, DefaultAPIURL)
	v.SetDefault(KeyAPITimeout, DefaultAPITimeout)
	v.SetDefault(KeyValidatePDF, true)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyS3Prefix, DefaultS3Prefix)
}

// Validate checks the settings owned by the batch layer. Temperature and
// max-tokens are checked by the API client when it is built.
func (c *Config) Validate() error {
	switch {
	case c.InputDirectory == "":
		return apperr.New(apperr.ConfigurationError, "Input directory must be set", "")
	case c.OutputDirectory == "":
		return apperr.New(apperr.ConfigurationError, "Output directory must be set", "")
	case c.ChunkSize <= 0:
		return apperr.New(apperr.ConfigurationError, "Chunk size must be positive", fmt.Sprintf("Current value: %d", c.ChunkSize))
	case c.Workers <= 0:
		return apperr.New(apperr.ConfigurationError, "Workers must be positive", fmt.Sprintf("Current value: %d", c.Workers))
	case c.LogFormat != "text" && c.LogFormat != "json":
		return apperr.New(apperr.ConfigurationError, "Log format must be text or json", "Current value: "+c.LogFormat)
	}
	return nil
}

// Masked returns a copy safe to print, with secrets replaced.
func (c Config) Masked() Config {
	c.APIKey = mask(c.APIKey)
	c.S3.SecretKey = mask(c.S3.SecretKey)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
