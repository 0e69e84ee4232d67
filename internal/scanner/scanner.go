// Package scanner turns an input directory into an ordered sequence of
// PENDING documents.
package scanner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

// Scanner walks its directory once, on the first call to Next, and serves
// the resulting snapshot. Files created or removed afterwards are not seen.
type Scanner struct {
	dir    string
	logger *slog.Logger

	once    sync.Once
	paths   []string
	scanErr error
	cursor  atomic.Int64
}

// New builds a Scanner over dir.
func New(dir string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{dir: dir, logger: logger}
}

// Next returns the next document with its content loaded. It returns io.EOF
// once the snapshot is exhausted, and keeps returning io.EOF afterwards.
// Next is safe for concurrent use; every entry is served exactly once.
func (s *Scanner) Next(ctx context.Context) (*model.Document, error) {
	s.once.Do(s.scan)
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := s.cursor.Add(1) - 1
	if i >= int64(len(s.paths)) {
		return nil, io.EOF
	}
	path := s.paths[i]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc := model.NewDocument(path, data)
	s.logger.Debug("scanner.document.read", "file", doc.FileName, "bytes", doc.FileSize)
	return doc, nil
}

// Len reports how many files the snapshot holds. It triggers the scan.
func (s *Scanner) Len() int {
	s.once.Do(s.scan)
	return len(s.paths)
}

func (s *Scanner) scan() {
	info, err := os.Stat(s.dir)
	switch {
	case os.IsNotExist(err):
		s.logger.Info("scanner.directory.created", "dir", s.dir)
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			s.scanErr = fmt.Errorf("create input directory: %w", err)
		}
		return
	case err != nil:
		s.scanErr = fmt.Errorf("stat input directory: %w", err)
		return
	case !info.IsDir():
		s.scanErr = fmt.Errorf("input path %s is not a directory", s.dir)
		return
	}

	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && IsPDF(d.Name()) {
			s.paths = append(s.paths, path)
		}
		return nil
	})
	if err != nil {
		s.paths = nil
		s.scanErr = fmt.Errorf("walk %s: %w", s.dir, err)
		return
	}
	s.logger.Info("scanner.snapshot.taken", "dir", s.dir, "files", len(s.paths))
}

// IsPDF reports whether name ends in .pdf, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
