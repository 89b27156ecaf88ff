package mela

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/models"
)

// Entry is one decoded recipe together with the archive entry it came from.
type Entry struct {
	Name   string
	Header models.SourceRecipeHeader
	Recipe models.SourceRecipe
}

// Reader enumerates the recipes of a source archive.
type Reader struct {
	zr     *zip.Reader
	closer io.Closer
}

// Open opens the source archive at path. The caller must Close it.
func Open(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("mela: open %s: %w", path, err)
	}
	return &Reader{zr: &rc.Reader, closer: rc}, nil
}

// NewReader reads a source archive of the given size from r.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("mela: read archive: %w", err)
	}
	return &Reader{zr: zr}, nil
}

// Close releases the underlying archive file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Len returns the number of recipe entries in the archive.
func (r *Reader) Len() int {
	n := 0
	for _, f := range r.zr.File {
		if !isDir(f) {
			n++
		}
	}
	return n
}

// Recipes yields entries in archive order. Iteration stops at the first
// error, which is yielded together with an Entry carrying only the Name.
// Each entry is opened, read and closed before it is yielded.
func (r *Reader) Recipes() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, f := range r.zr.File {
			if isDir(f) {
				continue
			}
			e, err := readEntry(f)
			if err != nil {
				yield(Entry{Name: f.Name}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func readEntry(f *zip.File) (Entry, error) {
	header, err := ParseEntryName(f.Name)
	if err != nil {
		return Entry{}, err
	}
	data, err := readAll(f)
	if err != nil {
		return Entry{}, fmt.Errorf("mela: read %s: %w", f.Name, err)
	}
	rec, err := ParseDocument(f.Name, data)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: f.Name, Header: header, Recipe: rec}, nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ParseDocument decodes one source recipe document. The id and title fields
// are required; any other absent field keeps its zero value.
func ParseDocument(entry string, data []byte) (models.SourceRecipe, error) {
	var rec models.SourceRecipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.SourceRecipe{}, &apperr.DocumentParseError{Entry: entry, Err: err}
	}
	if err := validation.ValidateStruct(&rec,
		validation.Field(&rec.ID, validation.Required),
		validation.Field(&rec.Title, validation.Required),
	); err != nil {
		return models.SourceRecipe{}, &apperr.DocumentParseError{Entry: entry, Err: err}
	}
	return rec, nil
}

func isDir(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/")
}
