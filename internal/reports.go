package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"flk-api/internal/models"
)

const reportColumns = `id, type, no_rep, no_seri, kd_cus, nm_cus, item_code, item_name,
	reporter, technician, call_at, arrival_at, start_at, finish_at,
	complaint, problem, solution, status, rep_count, unit_count,
	attachment, deleted, created_at, updated_at`

// formTimeLayouts are tried in order for timestamp form fields.
var formTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(sc rowScanner) (models.ServiceReport, error) {
	var rep models.ServiceReport
	err := sc.Scan(
		&rep.ID, &rep.Type, &rep.NoRep, &rep.NoSeri, &rep.KdCus, &rep.NmCus, &rep.ItemCode, &rep.ItemName,
		&rep.Reporter, &rep.Technician, &rep.CallAt, &rep.ArrivalAt, &rep.StartAt, &rep.FinishAt,
		&rep.Complaint, &rep.Problem, &rep.Solution, &rep.Status, &rep.RepCount, &rep.UnitCount,
		&rep.Attachment, &rep.Deleted, &rep.CreatedAt, &rep.UpdatedAt,
	)
	return rep, err
}

// queryReports runs a report SELECT and collects every row.
func (s *Server) queryReports(r *http.Request, where string, args ...interface{}) ([]models.ServiceReport, error) {
	sqlStr := fmt.Sprintf("SELECT %s FROM %s%s", reportColumns, s.Tables.Reports, where)
	sqlStr += buildOrderBy(r.URL.Query().Get("sort"), reportSortColumns)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.ServiceReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// GET /api/get-flk
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.queryReports(r, "")
	if err != nil {
		s.serverError(w, r, "failed to load reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// GET /api/get-flk-norep and /api/get-flk-noseri
func (s *Server) listReportsByType(reportType int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.queryReports(r, " WHERE type = $1", reportType)
		if err != nil {
			s.serverError(w, r, "failed to load reports", err)
			return
		}
		writeJSON(w, http.StatusOK, reports)
	}
}

func (s *Server) findReport(r *http.Request, id int64) (models.ServiceReport, error) {
	row := s.DB.QueryRowContext(r.Context(),
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", reportColumns, s.Tables.Reports), id)
	return scanReport(row)
}

// GET /api/get-flk-one-by-id?id=
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	rep, err := s.findReport(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.serverError(w, r, "failed to load report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/get-rep-seri-by-cus[-edit]
func (s *Server) repSeriByCustomer(excludeCurrent bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		kdCus := strings.TrimSpace(q.Get("kd_cus"))
		noSeri := strings.TrimSpace(q.Get("no_seri"))
		if kdCus == "" || noSeri == "" {
			writeError(w, http.StatusBadRequest, "kd_cus and no_seri are required")
			return
		}

		where := " WHERE kd_cus = $1 AND no_seri = $2"
		args := []interface{}{kdCus, noSeri}
		if excludeCurrent {
			id, ok := parseID(w, q.Get("id"))
			if !ok {
				return
			}
			where += " AND id <> $3"
			args = append(args, id)
		}

		var status models.RepSeriStatus
		err := s.DB.QueryRowContext(r.Context(),
			fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.Tables.Reports, where), args...).Scan(&status.Total)
		if err != nil {
			s.serverError(w, r, "failed to count reports", err)
			return
		}

		if status.Total > 0 {
			err = s.DB.QueryRowContext(r.Context(),
				fmt.Sprintf("SELECT status, rep_count FROM %s%s ORDER BY id DESC LIMIT 1", s.Tables.Reports, where),
				args...).Scan(&status.Status, &status.RepCount)
			if err != nil {
				s.serverError(w, r, "failed to load latest report", err)
				return
			}
			status.Found = true
		}

		writeJSON(w, http.StatusOK, status)
	}
}

// POST /api/create-flk (multipart, optional "file" part)
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseUploadForm(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	rep, err := reportFromForm(form.Value, s.formLoc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(rep); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	var stored *storedFile
	if files := form.File["file"]; len(files) > 0 {
		stored, err = s.storeUpload(files[0])
		if err != nil {
			s.uploadFailed(w, r, err)
			return
		}
		rep.Attachment = stored.Path
	}

	now := time.Now().UTC()
	rep.CreatedAt, rep.UpdatedAt = now, now
	err = s.DB.QueryRowContext(r.Context(), fmt.Sprintf(`
		INSERT INTO %s (type, no_rep, no_seri, kd_cus, nm_cus, item_code, item_name,
			reporter, technician, call_at, arrival_at, start_at, finish_at,
			complaint, problem, solution, status, rep_count, unit_count,
			attachment, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING id`, s.Tables.Reports),
		rep.Type, rep.NoRep, rep.NoSeri, rep.KdCus, rep.NmCus, rep.ItemCode, rep.ItemName,
		rep.Reporter, rep.Technician, rep.CallAt, rep.ArrivalAt, rep.StartAt, rep.FinishAt,
		rep.Complaint, rep.Problem, rep.Solution, rep.Status, rep.RepCount, rep.UnitCount,
		rep.Attachment, false, rep.CreatedAt, rep.UpdatedAt,
	).Scan(&rep.ID)
	if err != nil {
		if stored != nil {
			if rmErr := os.Remove(stored.diskPath); rmErr != nil {
				s.logger(r).WithError(rmErr).Warn("failed to remove orphaned upload")
			}
		}
		s.serverError(w, r, "failed to create report", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":   true,
		"id":   rep.ID,
		"data": rep,
	})
}

// POST /api/edit-flk?id=
func (s *Server) editReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.URL.Query().Get("id"))
	if !ok {
		return
	}

	var in models.ServiceReport
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.DB.ExecContext(r.Context(), fmt.Sprintf(`
		UPDATE %s SET type=$1, no_rep=$2, no_seri=$3, kd_cus=$4, nm_cus=$5, item_code=$6, item_name=$7,
			reporter=$8, technician=$9, call_at=$10, arrival_at=$11, start_at=$12, finish_at=$13,
			complaint=$14, problem=$15, solution=$16, status=$17, rep_count=$18, unit_count=$19,
			updated_at=$20
		WHERE id=$21`, s.Tables.Reports),
		in.Type, in.NoRep, in.NoSeri, in.KdCus, in.NmCus, in.ItemCode, in.ItemName,
		in.Reporter, in.Technician, in.CallAt, in.ArrivalAt, in.StartAt, in.FinishAt,
		in.Complaint, in.Problem, in.Solution, in.Status, in.RepCount, in.UnitCount,
		time.Now().UTC(), id,
	)
	if err != nil {
		s.serverError(w, r, "failed to update report", err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	rep, err := s.findReport(r, id)
	if err != nil {
		s.serverError(w, r, "failed to reload report", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "data": rep})
}

// parseID writes a 400 and returns false when raw is not a positive integer.
func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// reportFromForm reads a multipart report. Timestamps without an offset are in loc.
func reportFromForm(v url.Values, loc *time.Location) (models.ServiceReport, error) {
	rep := models.ServiceReport{
		NoRep:      strings.TrimSpace(v.Get("no_rep")),
		NoSeri:     strings.TrimSpace(v.Get("no_seri")),
		KdCus:      strings.TrimSpace(v.Get("kd_cus")),
		NmCus:      v.Get("nm_cus"),
		ItemCode:   v.Get("item_code"),
		ItemName:   v.Get("item_name"),
		Reporter:   v.Get("reporter"),
		Technician: v.Get("technician"),
		Complaint:  v.Get("complaint"),
		Problem:    v.Get("problem"),
		Solution:   v.Get("solution"),
		Status:     v.Get("status"),
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"type", &rep.Type},
		{"rep_count", &rep.RepCount},
		{"unit_count", &rep.UnitCount},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(v.Get(f.field))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return rep, fmt.Errorf("%s must be a number", f.field)
		}
		*f.dst = n
	}

	times := []struct {
		field string
		dst   **time.Time
	}{
		{"call_at", &rep.CallAt},
		{"arrival_at", &rep.ArrivalAt},
		{"start_at", &rep.StartAt},
		{"finish_at", &rep.FinishAt},
	}
	for _, f := range times {
		t, err := parseFormTime(v.Get(f.field), loc)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", f.field, err)
		}
		*f.dst = t
	}
	return rep, nil
}

func parseFormTime(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range formTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", raw)
}
