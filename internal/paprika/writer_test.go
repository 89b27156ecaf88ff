package paprika

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/models"
	"github.com/starford/melaconv/internal/testutil"
)

func recipe(name string) models.TargetRecipe {
	return models.TargetRecipe{
		UID:        "UID-" + name,
		Name:       name,
		Hash:       "abc",
		Photos:     []models.Photo{},
		Categories: []string{},
		Created:    "2023-07-15 21:27:36",
	}
}

func add(t *testing.T, w *Writer, name string) string {
	t.Helper()
	entry, err := w.Add(recipe(name))
	if err != nil {
		t.Fatalf("Add(%q): %v", name, err)
	}
	return entry
}

func create(t *testing.T, out string, opts Options) *Writer {
	t.Helper()
	w, err := Create(out, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w
}

func assertNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("%s: stat err = %v, want not exist", path, err)
	}
}

func TestCreate_WritesGzipEntries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.paprikarecipes")
	w := create(t, out, Options{})

	if name := add(t, w, "Soup"); name != "Soup.paprikarecipe" {
		t.Errorf("entry name = %q", name)
	}
	add(t, w, "Bread")
	if w.Count() != 2 {
		t.Errorf("Count = %d, want 2", w.Count())
	}

	// Nothing at the destination until Close.
	assertNotExist(t, out)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := testutil.ReadTargetArchive(t, out)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "Soup.paprikarecipe" || entries[0].Recipe.Name != "Soup" {
		t.Errorf("first entry = %s %q", entries[0].Name, entries[0].Recipe.Name)
	}
	if entries[0].Method != zip.Store {
		t.Errorf("method = %d, want Store", entries[0].Method)
	}
	if entries[1].Name != "Bread.paprikarecipe" {
		t.Errorf("second entry = %s", entries[1].Name)
	}
	if v, ok := entries[1].Raw["photo_data"]; !ok || v != nil {
		t.Errorf("photo_data = %v (present %v), want null", v, ok)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(out), ".melaconv-tmp-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left: %v", leftovers)
	}
}

func TestCreate_EmptyArchive(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.paprikarecipes")
	w := create(t, out, Options{})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if entries := testutil.ReadTargetArchive(t, out); len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestCreate_OutputExists(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.paprikarecipes")
	if err := os.WriteFile(out, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Create(out, Options{})
	if !errors.Is(err, apperr.ErrOutputExists) {
		t.Fatalf("err = %v, want ErrOutputExists", err)
	}
	var ioErr *apperr.OutputIOError
	if !errors.As(err, &ioErr) {
		t.Errorf("error %v is not an OutputIOError", err)
	}

	if data, _ := os.ReadFile(out); string(data) != "keep me" {
		t.Errorf("existing output changed to %q", data)
	}
}

func TestCreate_Overwrite(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.paprikarecipes")
	if err := os.WriteFile(out, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := create(t, out, Options{Overwrite: true})
	add(t, w, "Soup")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if entries := testutil.ReadTargetArchive(t, out); len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestCreate_MissingDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "out.paprikarecipes")
	_, err := Create(out, Options{})
	var ioErr *apperr.OutputIOError
	if !errors.As(err, &ioErr) {
		t.Errorf("err = %v, want OutputIOError", err)
	}
}

func TestAbort_LeavesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.paprikarecipes")
	w := create(t, out, Options{})
	add(t, w, "Soup")

	w.Abort()
	w.Abort()

	assertNotExist(t, out)
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(leftovers) != 0 {
		t.Errorf("leftovers = %v", leftovers)
	}

	if _, err := w.Add(recipe("Late")); err == nil {
		t.Error("Add after Abort should fail")
	}
}

func TestDuplicates_Suffix(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{Duplicates: DuplicateSuffix})

	names := make([]string, 0, 3)
	for range 3 {
		names = append(names, add(t, w, "Pancakes"))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{
		"Pancakes.paprikarecipe",
		"Pancakes (2).paprikarecipe",
		"Pancakes (3).paprikarecipe",
	}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	entries := testutil.ReadTargetArchiveBytes(t, buf.Bytes())
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Recipe.Name != "Pancakes" {
			t.Errorf("%s holds recipe %q", e.Name, e.Recipe.Name)
		}
	}
}

func TestDuplicates_DefaultIsSuffix(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Options{})
	add(t, w, "A")
	if n := add(t, w, "A"); n != "A (2).paprikarecipe" {
		t.Errorf("second name = %q", n)
	}
}

func TestDuplicates_Reject(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Options{Duplicates: DuplicateReject})
	add(t, w, "Pancakes")
	if _, err := w.Add(recipe("Pancakes")); !errors.Is(err, apperr.ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
	if w.Count() != 1 {
		t.Errorf("Count = %d, want 1", w.Count())
	}
}

func TestEntryName(t *testing.T) {
	cases := map[string]string{
		"Soup":              "Soup.paprikarecipe",
		"Salt/Pepper Steak": "Salt_Pepper Steak.paprikarecipe",
		"a/b/c":             "a_b_c.paprikarecipe",
	}
	for in, want := range cases {
		if got := EntryName(in); got != want {
			t.Errorf("EntryName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEncode_IsGzip(t *testing.T) {
	data, err := Encode(recipe("Soup"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		t.Errorf("header = % x, want gzip magic", data[:min(2, len(data))])
	}
}
