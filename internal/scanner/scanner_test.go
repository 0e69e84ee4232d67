package scanner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dharsanguruparan/pdfbatch/internal/logging"
	"github.com/dharsanguruparan/pdfbatch/internal/model"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func drain(t *testing.T, s *Scanner) []*model.Document {
	t.Helper()
	var docs []*model.Document
	for {
		doc, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return docs
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		docs = append(docs, doc)
	}
}

func TestScannerFiltersPDFs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "A")
	writeFile(t, filepath.Join(dir, "b.PDF"), "BB")
	writeFile(t, filepath.Join(dir, "nested", "c.Pdf"), "CCC")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "nested", "readme.txt"), "y")
	if err := os.Mkdir(filepath.Join(dir, "folder.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := New(dir, logging.Discard())
	docs := drain(t, s)
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	wantNames := []string{"a.pdf", "b.PDF", "c.Pdf"}
	seen := map[string]bool{}
	for i, doc := range docs {
		if doc.FileName != wantNames[i] {
			t.Fatalf("doc %d: got %s want %s", i, doc.FileName, wantNames[i])
		}
		if seen[doc.FilePath] {
			t.Fatalf("duplicate %s", doc.FilePath)
		}
		seen[doc.FilePath] = true
		if doc.Status != model.StatusPending || doc.FileSize != int64(i+1) || len(doc.Content) != i+1 {
			t.Fatalf("unexpected document %+v", doc)
		}
	}
}

func TestScannerExhaustionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "only.pdf"), "x")
	s := New(dir, logging.Discard())
	if _, err := s.Next(context.Background()); err != nil {
		t.Fatalf("first next: %v", err)
	}
	for i := 0; i < 3; i++ {
		doc, err := s.Next(context.Background())
		if !errors.Is(err, io.EOF) || doc != nil {
			t.Fatalf("call %d after end: doc=%v err=%v", i, doc, err)
		}
	}
}

func TestScannerCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "incoming")
	s := New(dir, logging.Discard())
	if _, err := s.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to be created: %v", err)
	}
}

func TestScannerSnapshotIsImmutable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "A")
	s := New(dir, logging.Discard())
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
	writeFile(t, filepath.Join(dir, "b.pdf"), "B")
	if docs := drain(t, s); len(docs) != 1 {
		t.Fatalf("late file observed: %d docs", len(docs))
	}
}

func TestScannerSurfacesReadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.pdf")
	writeFile(t, path, "x")
	s := New(dir, logging.Discard())
	_ = s.Len()
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, err := s.Next(context.Background())
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestScannerConcurrentPulls(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf", "6.pdf", "7.pdf", "8.pdf"} {
		writeFile(t, filepath.Join(dir, name), name)
	}
	s := New(dir, logging.Discard())

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				doc, err := s.Next(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[doc.FileName]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct files, got %d", len(seen))
	}
	for name, n := range seen {
		if n != 1 {
			t.Fatalf("%s served %d times", name, n)
		}
	}
}

func TestIsPDF(t *testing.T) {
	cases := map[string]bool{"a.pdf": true, "A.PDF": true, "a.pdf.txt": false, "pdf": false, "a.pd": false}
	for name, want := range cases {
		if got := IsPDF(name); got != want {
			t.Fatalf("IsPDF(%q) = %v", name, got)
		}
	}
}
