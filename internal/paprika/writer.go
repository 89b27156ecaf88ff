// Package paprika writes Paprika import archives: a zip archive holding one
// gzip-compressed JSON document per recipe, named "<name>.paprikarecipe".
package paprika

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/models"
)

// Extension is the per-recipe entry suffix inside a target archive.
const Extension = ".paprikarecipe"

// DuplicatePolicy decides what happens when two recipes map to the same entry name.
type DuplicatePolicy string

// Duplicate policies.
const (
	DuplicateSuffix DuplicatePolicy = "suffix" // "Name (2).paprikarecipe"
	DuplicateReject DuplicatePolicy = "reject"
)

// Options controls archive creation.
type Options struct {
	Overwrite  bool
	Duplicates DuplicatePolicy
}

// Writer appends recipes to a target archive. Entries are written one at a
// time; each is complete before Add returns.
type Writer struct {
	path  string
	zw    *zip.Writer
	names map[string]struct{}
	dupes DuplicatePolicy
	count int

	tmp  *os.File
	done bool
}

// Create starts a target archive at path. Data goes to a temp file in the
// same directory and only replaces path on Close.
func Create(path string, opts Options) (*Writer, error) {
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, &apperr.OutputIOError{Path: path, Err: apperr.ErrOutputExists}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, &apperr.OutputIOError{Path: path, Err: err}
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".melaconv-tmp-*")
	if err != nil {
		return nil, &apperr.OutputIOError{Path: path, Err: fmt.Errorf("create temp: %w", err)}
	}

	w := newWriter(tmp, opts)
	w.path = path
	w.tmp = tmp
	return w, nil
}

// NewWriter writes a target archive to dst. Close finalizes the archive but
// does not close dst.
func NewWriter(dst io.Writer, opts Options) *Writer {
	return newWriter(dst, opts)
}

func newWriter(dst io.Writer, opts Options) *Writer {
	dupes := opts.Duplicates
	if dupes == "" {
		dupes = DuplicateSuffix
	}
	return &Writer{
		zw:    zip.NewWriter(dst),
		names: make(map[string]struct{}),
		dupes: dupes,
	}
}

// Add writes rec as the next entry and returns the entry name used.
func (w *Writer) Add(rec models.TargetRecipe) (string, error) {
	if w.done {
		return "", w.ioErr(errors.New("writer is closed"))
	}

	name, err := w.reserve(EntryName(rec.Name))
	if err != nil {
		return "", err
	}

	payload, err := Encode(rec)
	if err != nil {
		return "", err
	}

	// The payload is already gzip, so the zip layer stores it as-is.
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return "", w.ioErr(fmt.Errorf("create entry %s: %w", name, err))
	}
	if _, err := fw.Write(payload); err != nil {
		return "", w.ioErr(fmt.Errorf("write entry %s: %w", name, err))
	}
	w.count++
	return name, nil
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close finalizes the archive. For file-backed writers the temp file is
// synced and renamed over the destination; on failure it is removed.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.zw.Close(); err != nil {
		w.discard()
		return w.ioErr(fmt.Errorf("finalize archive: %w", err))
	}
	if w.tmp == nil {
		return nil
	}

	if err := w.tmp.Sync(); err != nil {
		w.discard()
		return w.ioErr(fmt.Errorf("fsync: %w", err))
	}
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(w.tmp.Name())
		return w.ioErr(fmt.Errorf("close temp: %w", err))
	}
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		_ = os.Remove(w.tmp.Name())
		return w.ioErr(fmt.Errorf("rename: %w", err))
	}
	return nil
}

// Abort drops everything written so far. The destination path is untouched.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	if w.tmp == nil {
		return
	}
	_ = w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
}

func (w *Writer) reserve(name string) (string, error) {
	if _, taken := w.names[name]; !taken {
		w.names[name] = struct{}{}
		return name, nil
	}
	if w.dupes == DuplicateReject {
		return "", fmt.Errorf("%w: %s", apperr.ErrDuplicateName, name)
	}
	base := strings.TrimSuffix(name, Extension)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, Extension)
		if _, taken := w.names[candidate]; !taken {
			w.names[candidate] = struct{}{}
			return candidate, nil
		}
	}
}

func (w *Writer) ioErr(err error) error {
	return &apperr.OutputIOError{Path: w.path, Err: err}
}

// EntryName returns the archive entry name for a recipe name. Forward
// slashes would create directories inside the archive and become "_".
func EntryName(name string) string {
	return strings.ReplaceAll(name, "/", "_") + Extension
}

// Encode serializes rec as gzip-compressed JSON.
func Encode(rec models.TargetRecipe) ([]byte, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("paprika: encode %q: %w", rec.Name, err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(doc); err != nil {
		return nil, fmt.Errorf("paprika: compress %q: %w", rec.Name, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("paprika: compress %q: %w", rec.Name, err)
	}
	return buf.Bytes(), nil
}
