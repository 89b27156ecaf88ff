// Package testutil provides shared test helpers for building source archives
// and inspecting target archives.
package testutil

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/melaconv/internal/models"
)

// SourceEntry is one raw entry for a test source archive.
type SourceEntry struct {
	Name string
	Data []byte
}

// RecipeEntry builds a source entry named "<ordinal>-<title>.melarecipe"
// holding rec as JSON.
func RecipeEntry(t *testing.T, name string, rec models.SourceRecipe) SourceEntry {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	return SourceEntry{Name: name, Data: data}
}

// SourceArchiveBytes returns a source archive with stored (uncompressed) entries.
func SourceArchiveBytes(t *testing.T, entries ...SourceEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// SourceArchive writes a source archive into a temp directory and returns its path.
func SourceArchive(t *testing.T, entries ...SourceEntry) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "export.melarecipes")
	if err := os.WriteFile(p, SourceArchiveBytes(t, entries...), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TargetEntry is one decoded entry of a target archive.
type TargetEntry struct {
	Name   string
	Method uint16
	Raw    map[string]any
	Recipe models.TargetRecipe
}

// ReadTargetArchive decodes every gzip JSON entry of the target archive at path.
func ReadTargetArchive(t *testing.T, path string) []TargetEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return ReadTargetArchiveBytes(t, data)
}

// ReadTargetArchiveBytes decodes every gzip JSON entry of an in-memory target archive.
func ReadTargetArchiveBytes(t *testing.T, data []byte) []TargetEntry {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open target archive: %v", err)
	}
	var out []TargetEntry
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		gz, err := gzip.NewReader(rc)
		if err != nil {
			t.Fatalf("gzip %s: %v", f.Name, err)
		}
		doc, err := io.ReadAll(gz)
		if err != nil {
			t.Fatalf("gunzip %s: %v", f.Name, err)
		}
		_ = gz.Close()
		_ = rc.Close()

		e := TargetEntry{Name: f.Name, Method: f.Method}
		if err := json.Unmarshal(doc, &e.Raw); err != nil {
			t.Fatalf("decode %s: %v", f.Name, err)
		}
		if err := json.Unmarshal(doc, &e.Recipe); err != nil {
			t.Fatalf("decode %s: %v", f.Name, err)
		}
		out = append(out, e)
	}
	return out
}
