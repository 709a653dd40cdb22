package handlers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flk-api/internal/models"
	"flk-api/pkg/importer"
)

// ItemInserter stores parsed items atomically.
type ItemInserter interface {
	InsertItems(ctx context.Context, items []models.InventoryItem) (int, error)
}

// ImportItemsHandler handles Excel imports of inventory items
type ImportItemsHandler struct {
	Store     ItemInserter
	Mapping   *importer.Mapping
	MaxBytes  int64
	MaxErrors int
}

// NewImportItemsHandler creates a new import handler
func NewImportItemsHandler(store ItemInserter, mapping *importer.Mapping) *ImportItemsHandler {
	return &ImportItemsHandler{
		Store:     store,
		Mapping:   mapping,
		MaxBytes:  20 << 20, // 20 MB
		MaxErrors: 50,
	}
}

// ImportItems handles POST /api/import-brg
func (h *ImportItemsHandler) ImportItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "content-type must be multipart/form-data")
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := h.MaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeError(w, http.StatusBadRequest, "only .xlsx files are accepted")
		return
	}

	items, sum, err := importer.ParseItems(file, h.Mapping, importer.ParseOptions{
		DefaultNoSeri: strings.TrimSpace(r.FormValue("no_seri")),
		MaxErrors:     maxErrors,
	})
	sum.DryRun = dryRun
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sum.Errors > 0 {
		// all-or-nothing: a sheet with bad rows inserts nothing
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"ok":      false,
			"message": "import contains invalid rows",
			"data":    sum,
		})
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "no item rows found")
		return
	}

	if !dryRun {
		n, err := h.Store.InsertItems(r.Context(), items)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"ok":      false,
				"message": "failed to store items",
				"error":   err.Error(),
			})
			return
		}
		sum.Inserted = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "message": message})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
