package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flk-api/internal/models"
)

// InsertItems writes items in one transaction; nothing is kept if any row fails.
func (s *Server) InsertItems(ctx context.Context, items []models.InventoryItem) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (no_seri, item_code, item_name, qty, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.Tables.Items))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, it.NoSeri, it.ItemCode, it.ItemName, it.Qty, now); err != nil {
			return 0, fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(items), nil
}

// POST /api/create-brg
func (s *Server) createItems(w http.ResponseWriter, r *http.Request) {
	var req models.CreateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.NoSeri = strings.TrimSpace(req.NoSeri)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	for i := range req.Items {
		if req.Items[i].Qty.IsNegative() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("items[%d].qty must not be negative", i))
			return
		}
		req.Items[i].NoSeri = req.NoSeri
	}

	n, err := s.InsertItems(r.Context(), req.Items)
	if err != nil {
		s.serverError(w, r, "failed to create items", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "inserted": n})
}

// GET /api/get-brg?no_seri=
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	noSeri := strings.TrimSpace(r.URL.Query().Get("no_seri"))
	if noSeri == "" {
		writeError(w, http.StatusBadRequest, "no_seri is required")
		return
	}

	rows, err := s.DB.QueryContext(r.Context(), fmt.Sprintf(
		`SELECT id, no_seri, item_code, item_name, qty, created_at FROM %s WHERE no_seri = $1 ORDER BY id`,
		s.Tables.Items), noSeri)
	if err != nil {
		s.serverError(w, r, "failed to load items", err)
		return
	}
	defer rows.Close()

	items := []models.InventoryItem{}
	for rows.Next() {
		var it models.InventoryItem
		if err := rows.Scan(&it.ID, &it.NoSeri, &it.ItemCode, &it.ItemName, &it.Qty, &it.CreatedAt); err != nil {
			s.serverError(w, r, "failed to load items", err)
			return
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		s.serverError(w, r, "failed to load items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
