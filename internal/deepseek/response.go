package deepseek

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// responseSchema is the minimum shape a non-streamed response must have.
const responseSchema = `{
  "type": "object",
  "required": ["choices"],
  "properties": {
    "id":      {"type": "string"},
    "model":   {"type": "string"},
    "object":  {"type": "string"},
    "created": {"type": "integer"},
    "choices": {"type": "object"},
    "usage":   {"type": ["object", "null"]}
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("response.json")
})

// completionResponse is the wire form of both full and streamed responses.
type completionResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Choices map[string]any `json:"choices"`
	Usage   map[string]any `json:"usage"`
}

func (r completionResponse) result(raw string) *model.CompletionResult {
	return &model.CompletionResult{
		ID:          r.ID,
		Model:       r.Model,
		Object:      r.Object,
		Created:     r.Created,
		Choices:     r.Choices,
		Usage:       r.Usage,
		RawResponse: raw,
	}
}

// parseResponse validates and decodes a non-streamed body.
func parseResponse(raw []byte) (*model.CompletionResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperr.New(apperr.InvalidResponse, "Received null or invalid response from API", "Response is empty")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.InvalidResponse, "Received null or invalid response from API", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidResponse, "Response schema unavailable", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, apperr.Wrap(apperr.InvalidResponse, "Received null or invalid response from API", err)
	}
	var resp completionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, apperr.Wrap(apperr.InvalidResponse, "Received null or invalid response from API", err)
	}
	return resp.result(string(raw)), nil
}
