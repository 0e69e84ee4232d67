package deepseek

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// FileAttachment carries the encoded document inside a chat message.
type FileAttachment struct {
	Type     string `json:"type"`
	FileType string `json:"file_type"`
	Content  string `json:"content"`
	Name     string `json:"name"`
}

// ChatMessage is a single message in a completion request.
type ChatMessage struct {
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	FileAttachment *FileAttachment `json:"file_attachment,omitempty"`
}

// ChatCompletionRequest is the body posted to the completions endpoint.
type ChatCompletionRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// BuildRequest resolves the prompt and wraps doc's content as a base64 PDF
// attachment in a single user message.
func (c *Client) BuildRequest(doc *model.Document, prompt string, stream bool) (*ChatCompletionRequest, error) {
	if doc == nil || doc.Content == nil {
		return nil, apperr.New(apperr.PDFProcessingError, "Invalid PDF document", "PDF document or content is null")
	}
	text, err := c.ResolvePrompt(prompt)
	if err != nil {
		return nil, err
	}
	msg := ChatMessage{
		Role:    "user",
		Content: text,
		FileAttachment: &FileAttachment{
			Type:     "file_attachment",
			FileType: "pdf",
			Content:  base64.StdEncoding.EncodeToString(doc.Content),
			Name:     doc.FileName,
		},
	}
	return &ChatCompletionRequest{
		Messages:    []ChatMessage{msg},
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	}, nil
}

// ResolvePrompt picks the prompt text. A non-empty override wins, then the
// configured literal, then the prompt file. A prompt file that does not
// exist falls back to DefaultPrompt; one that exists but cannot be read is
// a PROMPT_NOT_FOUND error.
func (c *Client) ResolvePrompt(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if c.cfg.Prompt != "" {
		return c.cfg.Prompt, nil
	}
	if c.cfg.PromptFile == "" {
		return DefaultPrompt, nil
	}
	data, err := os.ReadFile(c.cfg.PromptFile)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("deepseek.prompt.file_missing", "path", c.cfg.PromptFile)
		return DefaultPrompt, nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.PromptNotFound, "Failed to load prompt", err)
	}
	return string(data), nil
}
