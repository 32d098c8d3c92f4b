// Package store persists acquired page images in a per-document directory.
// The directory is the only durable record of acquisition progress: a page
// exists exactly when its file does.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gaurav-prasanna/folioscan/core"
	"github.com/gaurav-prasanna/folioscan/core/raster"
)

// pageNamePattern accepts any zero-padding width so stores written with
// the older unpadded naming still sort correctly.
var pageNamePattern = regexp.MustCompile(`^page_(\d+)\.jpg$`)

// ErrPageExists is returned when writing an index that is already stored.
var ErrPageExists = errors.New("page already stored")

// Store is a directory of page_<index>.jpg files.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// FileName returns the canonical file name for a page index.
func FileName(index int) string {
	return fmt.Sprintf("page_%04d.jpg", index)
}

// ParseIndex extracts the page index from a file name.
func ParseIndex(name string) (int, bool) {
	m := pageNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Write persists a validated page. The bytes land in a temporary file first
// and are renamed into place, so a partially written page is never visible.
func (s *Store) Write(page core.Page) error {
	if page.Index < 1 {
		return fmt.Errorf("invalid page index %d", page.Index)
	}
	if len(page.Image) == 0 {
		return fmt.Errorf("page %d has no image data", page.Index)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	entries, err := s.entries()
	if err != nil {
		return err
	}
	if _, ok := entries[page.Index]; ok {
		return fmt.Errorf("writing page %d: %w", page.Index, ErrPageExists)
	}

	tmp, err := os.CreateTemp(s.Dir, ".page-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(page.Image); err != nil {
		tmp.Close()
		return fmt.Errorf("writing page %d: %w", page.Index, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing page %d: %w", page.Index, err)
	}
	dest := filepath.Join(s.Dir, FileName(page.Index))
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("renaming page %d into place: %w", page.Index, err)
	}
	return nil
}

// Exists reports whether the store holds at least one page.
func (s *Store) Exists() bool {
	indices, err := s.Indices()
	return err == nil && len(indices) > 0
}

// Indices returns the stored page indices in ascending numeric order.
func (s *Store) Indices() ([]int, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(entries))
	for idx := range entries {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}

// Last returns the highest stored index.
func (s *Store) Last() (int, bool, error) {
	indices, err := s.Indices()
	if err != nil || len(indices) == 0 {
		return 0, false, err
	}
	return indices[len(indices)-1], true, nil
}

// Path returns the on-disk path of a stored page.
func (s *Store) Path(index int) (string, error) {
	entries, err := s.entries()
	if err != nil {
		return "", err
	}
	name, ok := entries[index]
	if !ok {
		return "", fmt.Errorf("page %d: %w", index, os.ErrNotExist)
	}
	return filepath.Join(s.Dir, name), nil
}

// ListOrdered yields stored pages in ascending numeric index order. Files
// are read one at a time as the sequence is consumed. A page whose bytes
// cannot be decoded is yielded with an IMAGE_DECODE_FAILURE error and
// iteration continues; any other error ends the sequence.
func (s *Store) ListOrdered(ctx context.Context) iter.Seq2[core.Page, error] {
	return func(yield func(core.Page, error) bool) {
		entries, err := s.entries()
		if err != nil {
			yield(core.Page{}, err)
			return
		}
		indices := make([]int, 0, len(entries))
		for idx := range entries {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		for _, idx := range indices {
			if err := ctx.Err(); err != nil {
				yield(core.Page{}, err)
				return
			}
			data, err := os.ReadFile(filepath.Join(s.Dir, entries[idx]))
			if err != nil {
				yield(core.Page{}, core.NewError(core.CodeStore, "reading page", idx, err))
				return
			}
			info, err := raster.Inspect(data)
			if err != nil {
				if !yield(core.Page{Index: idx}, core.NewError(core.CodeImageDecode, "inspecting page", idx, err)) {
					return
				}
				continue
			}
			page := core.Page{
				Index:  idx,
				Image:  data,
				Width:  info.Width,
				Height: info.Height,
				DPI:    info.DPI,
				Format: info.Format,
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

// WriteReport saves v as YAML under name in the store directory, replacing
// any previous report of the same name. Reports are informational only.
func (s *Store) WriteReport(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling report %s: %w", name, err)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing report %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.Dir, name))
}

// ReadReport decodes the YAML report saved under name into v.
func (s *Store) ReadReport(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return fmt.Errorf("reading report %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing report %s: %w", name, err)
	}
	return nil
}

// entries maps page index to file name. A missing directory is an empty
// store; two files naming the same index is an error.
func (s *Store) entries() (map[int]string, error) {
	dirEntries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing store directory: %w", err)
	}
	out := make(map[int]string, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		idx, ok := ParseIndex(e.Name())
		if !ok {
			continue
		}
		if prev, dup := out[idx]; dup {
			return nil, fmt.Errorf("page %d stored twice (%s and %s)", idx, prev, e.Name())
		}
		out[idx] = e.Name()
	}
	return out, nil
}
