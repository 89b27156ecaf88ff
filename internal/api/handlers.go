package api

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/converter"
	"github.com/starford/melaconv/internal/ledger"
	"github.com/starford/melaconv/internal/mela"
	"github.com/starford/melaconv/internal/paprika"
)

const (
	maxUploadBytes = 512 << 20 // 512 MB; exports carry base64 photos
	maxMemoryBytes = 32 << 20
)

// RunReader is the read side of the conversion ledger.
type RunReader interface {
	ListRuns(limit int) ([]ledger.RunRow, error)
	GetRun(id int64) (*ledger.RunRow, error)
	Entries(runID int64) ([]ledger.EntryRow, error)
}

// Handler holds API route handlers.
type Handler struct {
	conv   *converter.Converter
	runs   RunReader
	output paprika.Options
}

// NewHandler creates a new Handler. runs may be nil when the ledger is disabled.
func NewHandler(conv *converter.Converter, runs RunReader, output paprika.Options) *Handler {
	return &Handler{conv: conv, runs: runs, output: output}
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert an uploaded Mela export into a Paprika archive
//	@Tags			convert
//	@Accept			multipart/form-data
//	@Produce		application/zip
//	@Param			file	formData	file	true	"Mela .melarecipes archive"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	stageErrResponse
//	@Failure		422		{object}	stageErrResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	src, err := mela.NewReader(file, header.Size)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file is not a zip archive"))
		return
	}

	var buf bytes.Buffer
	// The response is produced in memory, so there is nothing to overwrite.
	out := paprika.NewWriter(&buf, paprika.Options{Duplicates: h.output.Duplicates})
	n, err := h.conv.ConvertStream(r.Context(), header.Filename, src, out)
	if err != nil {
		writeStageError(w, err)
		return
	}
	if err := out.Close(); err != nil {
		slog.Error("finalize archive failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputName(header.Filename)))
	w.Header().Set("X-Recipe-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent conversion runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, errorBody("ledger is disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs": nonNilSlice(runs),
	})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one conversion run with its entries
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		int	true	"Run id"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, errorBody("ledger is disabled"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return
	}
	run, err := h.runs.GetRun(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	entries, err := h.runs.Entries(id)
	if err != nil {
		slog.Error("list entries failed", slog.Int64("run", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"entries": nonNilSlice(entries),
	})
}

// RunEntries handles GET /api/runs/{id}/entries.
//
//	@Summary		List the recipes converted by one run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		int	true	"Run id"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/entries [get]
func (h *Handler) RunEntries(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, errorBody("ledger is disabled"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return
	}
	if _, err := h.runs.GetRun(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	entries, err := h.runs.Entries(id)
	if err != nil {
		slog.Error("list entries failed", slog.Int64("run", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": nonNilSlice(entries),
	})
}

func writeStageError(w http.ResponseWriter, err error) {
	body := stageErrResponse{Error: err.Error()}
	var stageErr *apperr.StageError
	if errors.As(err, &stageErr) {
		body.Stage = stageErr.Stage
		body.Entry = stageErr.Entry
	}

	var nameErr *apperr.NameParseError
	var docErr *apperr.DocumentParseError
	switch {
	case errors.Is(err, apperr.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, body)
	case errors.As(err, &nameErr), errors.As(err, &docErr), body.Stage == apperr.StageMap:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		slog.Error("conversion failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// outputName turns "export.melarecipes" into "export.paprikarecipes".
func outputName(upload string) string {
	base := filepath.Base(upload)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "recipes"
	}
	return base + ".paprikarecipes"
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
