// Package pdfutil reads lightweight metadata out of PDF bytes.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dharsanguruparan/pdfbatch/internal/apperr"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

var errEmpty = errors.New("empty pdf content")

var disableConfigDir sync.Once

// Extractor reports page count, title and author. With Validate set, the
// bytes are first checked by pdfcpu in relaxed mode.
type Extractor struct {
	Validate bool
}

// NewExtractor builds an Extractor.
func NewExtractor(validate bool) *Extractor {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)
	return &Extractor{Validate: validate}
}

// Extract returns the document metadata. Every failure is a
// PDF_PROCESSING_ERROR.
func (e *Extractor) Extract(data []byte) (model.Metadata, error) {
	if len(data) == 0 {
		return model.Metadata{}, apperr.Wrap(apperr.PDFProcessingError, "Invalid PDF document", errEmpty)
	}
	if e.Validate {
		if err := validate(data); err != nil {
			return model.Metadata{}, apperr.Wrap(apperr.PDFProcessingError, "PDF failed validation", err)
		}
	}
	meta, err := readMetadata(data)
	if err != nil {
		return model.Metadata{}, apperr.Wrap(apperr.PDFProcessingError, "Failed to read PDF metadata", err)
	}
	return meta, nil
}

func validate(data []byte) error {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// readMetadata recovers from panics inside the parser, which it raises on
// some malformed cross-reference tables.
func readMetadata(data []byte) (meta model.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return model.Metadata{}, fmt.Errorf("new pdf reader: %w", err)
	}
	info := doc.Trailer().Key("Info")
	meta.PageCount = doc.NumPage()
	if !info.IsNull() {
		meta.Title = strings.TrimSpace(info.Key("Title").Text())
		meta.Author = strings.TrimSpace(info.Key("Author").Text())
	}
	return meta, nil
}
