package deepseek

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

const maxStreamLine = 4 << 20

// Stream is a finite, non-restartable sequence of partial results. Each
// result carries the text accumulated so far, not just the latest delta.
// The accumulator belongs to this Stream alone.
//
//	for s.Next() {
//		fmt.Println(s.Current().RawResponse)
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	body    io.ReadCloser
	lines   *bufio.Scanner
	logger  *slog.Logger
	text    strings.Builder
	current *model.CompletionResult
	chunks  int
	err     error
	done    bool

	closeOnce sync.Once
	closeErr  error
}

func newStream(body io.ReadCloser, logger *slog.Logger) *Stream {
	lines := bufio.NewScanner(body)
	lines.Buffer(make([]byte, 0, 64<<10), maxStreamLine)
	return &Stream{body: body, lines: lines, logger: logger}
}

// Next advances to the next partial result. It returns false at the end of
// the stream, after an error, or after Close.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for s.lines.Scan() {
		payload, ok := dataPayload(s.lines.Text())
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			s.finish(nil)
			return false
		}
		var chunk completionResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.finish(fmt.Errorf("decode chunk %d: %w", s.chunks+1, err))
			return false
		}
		s.text.WriteString(deltaContent(chunk.Choices))
		s.chunks++
		s.current = chunk.result(s.text.String())
		s.logger.Debug("deepseek.stream.chunk", "chunk", s.chunks, "length", s.text.Len())
		return true
	}
	s.finish(s.lines.Err())
	return false
}

// Current returns the most recent partial result.
func (s *Stream) Current() *model.CompletionResult {
	return s.current
}

// Text returns the full text accumulated so far.
func (s *Stream) Text() string {
	return s.text.String()
}

// Err returns the error that ended the stream, if any. It is always a
// STREAM_PROCESSING_ERROR.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the response body. The consumer may close at any point.
func (s *Stream) Close() error {
	s.done = true
	s.closeOnce.Do(func() { s.closeErr = s.body.Close() })
	return s.closeErr
}

func (s *Stream) finish(err error) {
	if err != nil {
		s.err = apperr.Wrap(apperr.StreamProcessingError, "Error during stream processing", err)
		s.logger.Error("deepseek.stream.failed", "chunks", s.chunks, "error", err)
	} else {
		s.logger.Info("deepseek.stream.done", "chunks", s.chunks, "length", s.text.Len())
	}
	s.Close()
}

// dataPayload extracts the JSON text from one line of the response. It
// accepts server-sent event "data:" lines and bare JSON lines, and skips
// blanks, comments and other event fields.
func dataPayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "", strings.HasPrefix(line, ":"):
		return "", false
	case strings.HasPrefix(line, "data:"):
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
	case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		return "", false
	}
	return line, true
}

// deltaContent reads the incremental text under choices.content.
func deltaContent(choices map[string]any) string {
	switch v := choices["content"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
