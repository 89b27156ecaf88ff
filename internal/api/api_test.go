package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/starford/melaconv/internal/converter"
	"github.com/starford/melaconv/internal/ledger"
	"github.com/starford/melaconv/internal/models"
	"github.com/starford/melaconv/internal/paprika"
	"github.com/starford/melaconv/internal/testutil"
)

// testEnv builds a router backed by a temp ledger. An empty token disables auth.
func testEnv(t *testing.T, token string) (http.Handler, *ledger.DB) {
	t.Helper()

	dbFile, err := os.CreateTemp("", "melaconv-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conv := converter.New(converter.WithLedger(db))
	h := NewHandler(conv, db, paprika.Options{})
	return NewRouter(h, token != "", token, nil), db
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validArchive(t *testing.T) []byte {
	return testutil.SourceArchiveBytes(t,
		testutil.RecipeEntry(t, "0-Soup.melarecipe", models.SourceRecipe{ID: "s", Title: "Soup"}),
		testutil.RecipeEntry(t, "1-Bread.melarecipe", models.SourceRecipe{ID: "b", Title: "Bread", Favorite: true}),
	)
}

func TestConvertUpload(t *testing.T) {
	router, _ := testEnv(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "export.melarecipes", validArchive(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	if n := w.Header().Get("X-Recipe-Count"); n != "2" {
		t.Errorf("X-Recipe-Count = %q", n)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="export.paprikarecipes"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	entries := testutil.ReadTargetArchiveBytes(t, w.Body.Bytes())
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].Name != "Bread.paprikarecipe" || entries[1].Recipe.Rating != 5 {
		t.Errorf("second entry = %s %+v", entries[1].Name, entries[1].Recipe)
	}
}

func TestConvertUpload_BadEntry(t *testing.T) {
	router, _ := testEnv(t, "")
	archive := testutil.SourceArchiveBytes(t,
		testutil.RecipeEntry(t, "0-Soup.melarecipe", models.SourceRecipe{ID: "s", Title: "Soup"}),
		testutil.SourceEntry{Name: "1-Broken.melarecipe", Data: []byte(`{"title": "Broken"}`)},
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "export.melarecipes", archive))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp stageErrResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stage != "read" || resp.Entry != "1-Broken.melarecipe" {
		t.Errorf("response = %+v", resp)
	}
}

func TestConvertUpload_DuplicateRejected(t *testing.T) {
	h := NewHandler(converter.New(), nil, paprika.Options{Duplicates: paprika.DuplicateReject})
	router := NewRouter(h, false, "", nil)
	archive := testutil.SourceArchiveBytes(t,
		testutil.RecipeEntry(t, "0-Soup.melarecipe", models.SourceRecipe{ID: "a", Title: "Soup"}),
		testutil.RecipeEntry(t, "1-Soup.melarecipe", models.SourceRecipe{ID: "b", Title: "Soup"}),
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "export.melarecipes", archive))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp stageErrResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stage != "write" || resp.Entry != "1-Soup.melarecipe" {
		t.Errorf("response = %+v", resp)
	}
}

func TestConvertUpload_NotZip(t *testing.T) {
	router, _ := testEnv(t, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "export.melarecipes", []byte("plain text")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConvertUpload_MissingFile(t *testing.T) {
	router, _ := testEnv(t, "")
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRunsRecorded(t *testing.T) {
	router, _ := testEnv(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "export.melarecipes", validArchive(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("convert status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("runs status = %d", w.Code)
	}
	var list struct {
		Runs []ledger.RunRow `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Runs) != 1 || list.Runs[0].Count != 2 || list.Runs[0].Source != "export.melarecipes" {
		t.Fatalf("runs = %+v", list.Runs)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d", w.Code)
	}
	var detail struct {
		Run     ledger.RunRow     `json:"run"`
		Entries []ledger.EntryRow `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Run.Status != ledger.StatusSucceeded || len(detail.Entries) != 2 {
		t.Errorf("detail = %+v", detail)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/1/entries", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("entries status = %d", w.Code)
	}
	var entries struct {
		Entries []ledger.EntryRow `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries.Entries) != 2 || entries.Entries[0].Target != "Soup.paprikarecipe" {
		t.Errorf("entries = %+v", entries.Entries)
	}
}

func TestGetRun_NotFoundAndInvalid(t *testing.T) {
	router, _ := testEnv(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/99", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", w.Code)
	}
}

func TestRuns_LedgerDisabled(t *testing.T) {
	router := NewRouter(NewHandler(converter.New(), nil, paprika.Options{}), false, "", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuth(t *testing.T) {
	router, _ := testEnv(t, "secret")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d", w.Code)
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"export.melarecipes":         "export.paprikarecipes",
		"dir/My Recipes.melarecipes": "My Recipes.paprikarecipes",
		"noext":                      "noext.paprikarecipes",
		"":                           "recipes.paprikarecipes",
	}
	for in, want := range cases {
		if got := outputName(in); got != want {
			t.Errorf("outputName(%q) = %q, want %q", in, got, want)
		}
	}
}
