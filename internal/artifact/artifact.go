// Package artifact writes downloaded documents to disk and inspects them.
package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Iron-Ham/git2doc/internal/errors"
)

// ErrNotPDF is returned by Inspect for data without a PDF header.
var ErrNotPDF = errors.New("artifact is not a PDF")

var pdfMagic = []byte("%PDF-")

// Info describes an artifact.
type Info struct {
	Bytes int
	Pages int
}

// IsPDF reports whether data starts with a PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Inspect counts the pages of a PDF artifact. Validation is relaxed since
// generated documents are not always strictly conformant.
func Inspect(data []byte) (Info, error) {
	info := Info{Bytes: len(data)}
	if !IsPDF(data) {
		return info, ErrNotPDF
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return info, fmt.Errorf("failed to count pages: %w", err)
	}
	info.Pages = pages
	return info, nil
}

// Destination resolves where an artifact named filename is written. An
// empty dest means the current directory; an existing directory or a path
// ending in a separator receives the file under its own name.
func Destination(dest, filename string) string {
	if dest == "" {
		return filename
	}
	if os.IsPathSeparator(dest[len(dest)-1]) {
		return filepath.Join(dest, filename)
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		return filepath.Join(dest, filename)
	}
	return dest
}

// Write stores data at path atomically, creating parent directories.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
