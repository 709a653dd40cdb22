package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet     = "Report"
	exportHeaderRow = 4
	minColWidth     = 10
	maxColWidth     = 80
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type exportColumn struct {
	Field      string `json:"field"`
	HeaderName string `json:"headerName"`
}

type exportRequest struct {
	Data        []map[string]interface{} `json:"data"`
	Columns     []exportColumn           `json:"columns"`
	ReportTitle string                   `json:"reportTitle"`
}

// POST /api/export-excel
func (s *Server) exportExcel(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns are required")
		return
	}
	if len(req.Columns) > excelize.MaxColumns {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d columns can be exported", excelize.MaxColumns))
		return
	}
	if len(req.Data) > excelize.TotalRows-exportHeaderRow {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d rows can be exported", excelize.TotalRows-exportHeaderRow))
		return
	}
	if strings.TrimSpace(req.ReportTitle) == "" {
		req.ReportTitle = exportSheet
	}

	now := time.Now()
	f, err := buildWorkbook(req, now)
	if err != nil {
		s.serverError(w, r, "failed to build workbook", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(req.ReportTitle, now)))
	if err := f.Write(w); err != nil {
		s.logger(r).WithError(err).Error("failed to stream workbook")
		return
	}
	s.logger(r).WithFields(logrus.Fields{"rows": len(req.Data), "columns": len(req.Columns)}).Info("workbook exported")
}

// buildWorkbook lays out title, timestamp, a blank row, headers, then one row per record.
func buildWorkbook(req exportRequest, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		f.Close()
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(req.Columns))
	if err != nil {
		f.Close()
		return nil, err
	}

	f.SetCellValue(exportSheet, "A1", req.ReportTitle)
	f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)
	if len(req.Columns) > 1 {
		if err := f.MergeCell(exportSheet, "A1", lastCol+"1"); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetCellValue(exportSheet, "A2", "Generated: "+now.Format("2006-01-02 15:04:05"))

	widths := make([]int, len(req.Columns))
	for i, col := range req.Columns {
		header := col.HeaderName
		if header == "" {
			header = col.Field
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, exportHeaderRow)
		f.SetCellValue(exportSheet, cell, header)
		widths[i] = utf8.RuneCountInString(header)
	}
	headerEnd, _ := excelize.CoordinatesToCellName(len(req.Columns), exportHeaderRow)
	f.SetCellStyle(exportSheet, "A4", headerEnd, headerStyle)

	for rowIdx, record := range req.Data {
		for colIdx, col := range req.Columns {
			value, text := cellValue(record[col.Field])
			if n := utf8.RuneCountInString(text); n > widths[colIdx] {
				widths[colIdx] = n
			}
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, exportHeaderRow+1+rowIdx)
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(exportSheet, name, name, float64(clampWidth(width+2)))
	}
	return f, nil
}

// cellValue converts a decoded JSON value to a cell value and its display text.
// Missing and null values yield a nil cell.
func cellValue(v interface{}) (interface{}, string) {
	switch val := v.(type) {
	case nil:
		return nil, ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, val.String()
		}
		if f, err := val.Float64(); err == nil {
			return f, val.String()
		}
		return val.String(), val.String()
	case bool:
		return val, fmt.Sprint(val)
	case string:
		return val, val
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			s := fmt.Sprint(val)
			return s, s
		}
		return string(raw), string(raw)
	}
}

func clampWidth(w int) int {
	if w < minColWidth {
		return minColWidth
	}
	if w > maxColWidth {
		return maxColWidth
	}
	return w
}

func exportFilename(title string, now time.Time) string {
	base := strings.Trim(unsafeFilenameChars.ReplaceAllString(title, "_"), "_")
	if base == "" {
		base = exportSheet
	}
	return fmt.Sprintf("%s_%s.xlsx", base, now.Format("20060102_150405"))
}
