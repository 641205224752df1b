package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"finsight/internal/api"
	"finsight/internal/export"
	"finsight/internal/log"
	"finsight/internal/view"
)

// handleExportCSV streams the filtered, sorted cache as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	snap, err := s.loaded(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	txs := view.Apply(snap.Transactions, q.Filters, q.Sort)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(s.now())))
	if err := export.WriteCSV(w, txs); err != nil && !isClientGone(r.Context(), err) {
		// Headers are gone by now; all that is left is to record it.
		log.LogError(r.Context(), log.FromContext(r.Context()), "Failed to write CSV export", err, log.OpExport,
			log.LogFields{log.FieldCount: len(txs)})
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "CSV exported", log.FieldCount, len(txs))
}

// ImportPreview is the dry-run answer of POST /api/import.
type ImportPreview struct {
	export.Preview
	NewCategories []string `json:"newCategories"`
}

// ImportResponse is the answer of a real upload.
type ImportResponse struct {
	api.ImportResult
	Version uint64 `json:"version"`
}

// handleImport takes a multipart "file". With ?dryRun=true a CSV is parsed
// locally and the candidates returned without contacting the backend;
// otherwise the file is uploaded and the cache reloaded.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BadRequestError("expected a multipart form with a file").Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing form field \"file\"").Write(w)
		return
	}
	defer file.Close()

	name := safeFilename(header.Filename)
	if name == "" {
		BadRequestError("missing file name").Write(w)
		return
	}

	if ParseBool(r.URL.Query(), "dryRun") {
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			BadRequestError("preview requires a .csv file").Write(w)
			return
		}
		preview, err := export.ReadCSV(file)
		if err != nil {
			FromError(r.Context(), fmt.Errorf("%w: %w", ErrBadRequest, err)).Write(w)
			return
		}
		newCats := s.deps.Categories.Drift(preview.Valid)
		if newCats == nil {
			newCats = []string{}
		}
		NewJSONResponse().Body(ImportPreview{Preview: preview, NewCategories: newCats}).Write(w)
		return
	}

	if err := configured(s.deps.Importer != nil, "import"); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	res, err := s.deps.Importer.Import(r.Context(), name, file)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	logger := log.FromContext(r.Context())
	logger.InfoContext(r.Context(), "Statement imported",
		"file", name,
		"imported", res.Imported,
		"skipped", res.Skipped)

	// The upload succeeded; a failed reload only leaves the cache stale.
	version := s.deps.Store.Snapshot().Version
	if snap, err := s.deps.Store.Load(r.Context()); err != nil {
		log.LogError(r.Context(), logger, "Failed to reload after import", err, log.OpLoad, nil)
	} else {
		version = snap.Version
	}
	NewJSONResponse().Body(ImportResponse{ImportResult: res, Version: version}).Write(w)
}
