package deepseek

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/logging"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func testDoc(name string) *model.Document {
	return model.NewDocument("/in/"+name, []byte("%PDF-1.4 body of "+name))
}

func TestNewClientValidatesConfiguration(t *testing.T) {
	cases := []struct {
		name        string
		temperature float64
		maxTokens   int
		wantErr     bool
	}{
		{"negative temperature", -0.1, 100, true},
		{"temperature above one", 1.5, 100, true},
		{"zero max tokens", 0.7, 0, true},
		{"negative max tokens", 0.7, -5, true},
		{"valid", 0.7, 100, false},
		{"lower bound", 0, 1, false},
		{"upper bound", 1, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Temperature = tc.temperature
			cfg.MaxTokens = tc.maxTokens
			_, err := NewClient(cfg, WithLogger(logging.Discard()))
			if tc.wantErr {
				if !apperr.Is(err, apperr.ConfigurationError) {
					t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "not a url"
	if _, err := NewClient(cfg, WithLogger(logging.Discard())); !apperr.Is(err, apperr.ConfigurationError) {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestResolvePrompt(t *testing.T) {
	dir := t.TempDir()
	promptFile := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptFile, []byte("from file"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}

	cases := []struct {
		name     string
		prompt   string
		file     string
		override string
		want     string
	}{
		{"override wins", "literal", promptFile, "override", "override"},
		{"literal beats file", "literal", promptFile, "", "literal"},
		{"file used", "", promptFile, "", "from file"},
		{"missing file falls back", "", filepath.Join(dir, "absent.txt"), "", DefaultPrompt},
		{"nothing configured", "", "", "", DefaultPrompt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, DefaultBaseURL, func(cfg *Config) {
				cfg.Prompt = tc.prompt
				cfg.PromptFile = tc.file
			})
			got, err := c.ResolvePrompt(tc.override)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestResolvePromptUnreadableFile(t *testing.T) {
	// A directory exists but cannot be read as a file.
	c := newTestClient(t, DefaultBaseURL, func(cfg *Config) { cfg.PromptFile = t.TempDir() })
	if _, err := c.ResolvePrompt(""); !apperr.Is(err, apperr.PromptNotFound) {
		t.Fatalf("expected PROMPT_NOT_FOUND, got %v", err)
	}
}

func TestBuildRequestShape(t *testing.T) {
	c := newTestClient(t, DefaultBaseURL, func(cfg *Config) { cfg.MaxTokens = 100 })
	doc := testDoc("report.pdf")
	req, err := c.BuildRequest(doc, "summarize", true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire struct {
		Messages []struct {
			Role           string            `json:"role"`
			Content        string            `json:"content"`
			FileAttachment map[string]string `json:"file_attachment"`
		} `json:"messages"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Stream      bool    `json:"stream"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(wire.Messages) != 1 || wire.Messages[0].Role != "user" || wire.Messages[0].Content != "summarize" {
		t.Fatalf("unexpected messages %+v", wire.Messages)
	}
	att := wire.Messages[0].FileAttachment
	if att["type"] != "file_attachment" || att["file_type"] != "pdf" || att["name"] != "report.pdf" {
		t.Fatalf("unexpected attachment %+v", att)
	}
	decoded, err := base64.StdEncoding.DecodeString(att["content"])
	if err != nil || string(decoded) != string(doc.Content) {
		t.Fatalf("attachment content does not round trip: %v", err)
	}
	if wire.Model != DefaultModel || wire.Temperature != 0.7 || wire.MaxTokens != 100 || !wire.Stream {
		t.Fatalf("unexpected request settings %+v", wire)
	}
}

func TestBuildRequestRejectsMissingContent(t *testing.T) {
	c := newTestClient(t, DefaultBaseURL, nil)
	if _, err := c.BuildRequest(nil, "", false); !apperr.Is(err, apperr.PDFProcessingError) {
		t.Fatalf("nil document: got %v", err)
	}
	doc := testDoc("a.pdf")
	doc.Content = nil
	if _, err := c.BuildRequest(doc, "", false); !apperr.Is(err, apperr.PDFProcessingError) {
		t.Fatalf("nil content: got %v", err)
	}
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream {
			t.Errorf("sync call sent stream=true")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl-1","model":"deepseek-coder","object":"chat.completion","created":1700000000,
			"choices":{"content":"A short summary."},"usage":{"total_tokens":42}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	res, err := c.Complete(context.Background(), testDoc("a.pdf"), "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.ID != "cmpl-1" || res.Model != "deepseek-coder" || res.Object != "chat.completion" || res.Created != 1700000000 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Text() != "A short summary." || res.Usage["total_tokens"] != float64(42) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.RawResponse, `"cmpl-1"`) {
		t.Fatalf("raw response not kept: %q", res.RawResponse)
	}
}

func TestCompleteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), testDoc("a.pdf"), "")
	if !apperr.Is(err, apperr.APICommunicationError) {
		t.Fatalf("expected API_COMMUNICATION_ERROR, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("status missing from error: %v", err)
	}
}

func TestCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, nil).Complete(context.Background(), testDoc("a.pdf"), "")
	if !apperr.Is(err, apperr.APICommunicationError) {
		t.Fatalf("expected API_COMMUNICATION_ERROR, got %v", err)
	}
}

func TestCompleteInvalidResponse(t *testing.T) {
	bodies := map[string]string{
		"empty":           "",
		"null":            "null",
		"no choices":      `{"id":"x"}`,
		"null choices":    `{"id":"x","choices":null}`,
		"choices as list": `{"id":"x","choices":[{"content":"y"}]}`,
		"not json":        "<html>oops</html>",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()
			_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), testDoc("a.pdf"), "")
			if !apperr.Is(err, apperr.InvalidResponse) {
				t.Fatalf("expected INVALID_RESPONSE, got %v", err)
			}
		})
	}
}

func TestCompleteKeepsUnreadablePromptCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request should not be sent")
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.PromptFile = t.TempDir() })
	if _, err := c.Complete(context.Background(), testDoc("a.pdf"), ""); !apperr.Is(err, apperr.PromptNotFound) {
		t.Fatalf("expected PROMPT_NOT_FOUND, got %v", err)
	}
}
