// Package output handles file naming and atomic writing of compiled
// artifacts. A file is first written next to its destination and renamed
// into place, so readers never observe a partial PDF.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaurav-prasanna/folioscan/core"
)

// Writer writes artifacts into an output directory.
type Writer struct {
	OutputDir string
}

// New creates a Writer targeting the given output directory.
// If outputDir is empty, it defaults to the current working directory.
func New(outputDir string) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{OutputDir: outputDir}, nil
}

// PathFor returns the artifact path for a document name and variant.
// Example: "Series A Deck", External → Series_A_Deck_searchable_premium.pdf
func (w *Writer) PathFor(name string, v core.Variant) string {
	return filepath.Join(w.OutputDir, FileName(name, v))
}

// FileName derives the artifact file name from the document name and the
// requested recognition variant.
func FileName(name string, v core.Variant) string {
	base := Slug(name)
	switch v {
	case core.VariantExternal:
		return base + "_searchable_premium.pdf"
	case core.VariantEmbedded:
		return base + "_searchable.pdf"
	default:
		return base + ".pdf"
	}
}

// Sidecar returns path with its extension replaced by ext.
func Sidecar(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	return WriteWith(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteWith atomically replaces path with whatever fn writes. On any error
// the destination is left untouched and the temporary file is removed.
func WriteWith(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return nil
}

// MoveFile renames src over dst, falling back to copy-and-replace when the
// two are on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	if err := WriteWith(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return err
	}
	return os.Remove(src)
}

// Slug turns a document name into a file-system-safe name used for both the
// page directory and the output file. Runs of anything other than letters,
// digits, '-' and '_' collapse to a single underscore.
func Slug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, ch := range strings.TrimSpace(name) {
		ok := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_'
		if !ok {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(ch)
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
