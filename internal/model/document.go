// Package model contains the value types passed between pipeline stages.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ContentTypePDF is the only content type the scanner produces.
const ContentTypePDF = "application/pdf"

// DocumentStatus describes where a document is in its single processing pass.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusError      DocumentStatus = "ERROR"
)

// Terminal reports whether no further transition is allowed from s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ErrTerminalStatus is returned when a finished document is moved again.
var ErrTerminalStatus = errors.New("document already in terminal status")

// Document is both the unit of work and the persisted result. Content is
// held only while the document is in flight; the writer clears it.
type Document struct {
	ID                  string         `json:"id"`
	FileName            string         `json:"fileName"`
	FilePath            string         `json:"filePath"`
	Content             []byte         `json:"content"`
	ContentType         string         `json:"contentType"`
	FileSize            int64          `json:"fileSize"`
	Status              DocumentStatus `json:"status"`
	PageCount           int            `json:"pageCount"`
	Title               *string        `json:"title"`
	Author              *string        `json:"author"`
	ProcessingStartTime *Timestamp     `json:"processingStartTime"`
	ProcessingEndTime   *Timestamp     `json:"processingEndTime"`
	DeepseekResponse    *string        `json:"deepseekResponse"`
	ErrorCode           *string        `json:"errorCode"`
	ErrorMessage        *string        `json:"errorMessage"`
}

// NewDocument builds a PENDING document for the file at path.
func NewDocument(path string, content []byte) *Document {
	return &Document{
		ID:          uuid.NewString(),
		FileName:    filepath.Base(path),
		FilePath:    path,
		Content:     content,
		ContentType: ContentTypePDF,
		FileSize:    int64(len(content)),
		Status:      StatusPending,
	}
}

// SetStatus moves the document to next unless it already finished.
func (d *Document) SetStatus(next DocumentStatus) error {
	if d.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalStatus, d.Status, next)
	}
	d.Status = next
	return nil
}

// Fail marks the document ERROR and records why.
func (d *Document) Fail(code, message string) {
	if d.Status.Terminal() {
		return
	}
	d.Status = StatusError
	d.ErrorCode = Optional(code)
	d.ErrorMessage = Optional(message)
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Optional returns nil for the empty string so blank values serialize as null.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TimestampLayout is ISO-8601 local date-time without zone or fraction.
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp is a local wall-clock instant with second precision.
type Timestamp struct {
	time.Time
}

// Now returns the current local time truncated to the second.
func Now() *Timestamp {
	return &Timestamp{Time: time.Now().Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(TimestampLayout) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp: invalid value %s", s)
	}
	parsed, err := time.ParseInLocation(TimestampLayout, s[1:len(s)-1], time.Local)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// Metadata is what the PDF extractor reports about a document.
type Metadata struct {
	PageCount int
	Title     string
	Author    string
}

// ApplyMetadata copies m onto the document. Empty title or author stay null.
func (d *Document) ApplyMetadata(m Metadata) {
	d.PageCount = m.PageCount
	d.Title = Optional(m.Title)
	d.Author = Optional(m.Author)
}
