// Package importer reads inventory item rows from Excel workbooks.
package importer

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"flk-api/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

//go:embed default_mapping.yaml
var defaultMappingYAML []byte

// Target fields a mapping can bind headers to.
const (
	FieldNoSeri   = "no_seri"
	FieldItemCode = "item_code"
	FieldItemName = "item_name"
	FieldQty      = "qty"
)

var knownFields = []string{FieldNoSeri, FieldItemCode, FieldItemName, FieldQty}

// Mapping binds spreadsheet headers to item fields.
type Mapping struct {
	Version int                     `yaml:"version"`
	Sheet   string                  `yaml:"sheet"`
	Fields  map[string]FieldMapping `yaml:"fields"`
}

type FieldMapping struct {
	Aliases  []string `yaml:"aliases"`
	Required bool     `yaml:"required"`
}

// ParseOptions tunes ParseItems.
type ParseOptions struct {
	DefaultNoSeri string // used for rows with an empty serial cell
	MaxErrors     int    // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Sheet    string     `json:"sheet"`
	Parsed   int        `json:"parsed"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
	DryRun   bool       `json:"dry_run"`
}

// DefaultMapping returns the embedded mapping.
func DefaultMapping() *Mapping {
	m, err := parseMapping(defaultMappingYAML)
	if err != nil {
		panic(fmt.Sprintf("importer: embedded mapping: %v", err))
	}
	return m
}

// LoadMapping reads a YAML mapping from path; an empty path yields the default.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return parseMapping(data)
}

func parseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	for name := range m.Fields {
		if !isKnownField(name) {
			return nil, fmt.Errorf("mapping: unknown field %q", name)
		}
	}
	if len(m.Fields[FieldItemCode].Aliases) == 0 {
		return nil, fmt.Errorf("mapping: %s needs at least one alias", FieldItemCode)
	}
	return &m, nil
}

func isKnownField(name string) bool {
	for _, f := range knownFields {
		if f == name {
			return true
		}
	}
	return false
}

// fieldFor resolves a header cell to its target field, or "".
func (m *Mapping) fieldFor(header string) string {
	header = strings.TrimSpace(header)
	for field, fm := range m.Fields {
		if strings.EqualFold(header, field) {
			return field
		}
		for _, alias := range fm.Aliases {
			if strings.EqualFold(header, strings.TrimSpace(alias)) {
				return field
			}
		}
	}
	return ""
}

// ParseItems reads the mapped sheet (the first one by default). The header is
// row 1; blank rows are skipped and invalid rows are counted as errors.
func ParseItems(r io.Reader, m *Mapping, opts ParseOptions) ([]models.InventoryItem, ImportSummary, error) {
	var summary ImportSummary
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 50
	}

	// xlsx.OpenBinary needs the whole workbook in memory
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to open Excel file: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return nil, summary, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.Sheets[0]
	if m.Sheet != "" {
		s, ok := wb.Sheet[m.Sheet]
		if !ok {
			return nil, summary, fmt.Errorf("sheet %q not found", m.Sheet)
		}
		sheet = s
	}
	summary.Sheet = sheet.Name

	if sheet.MaxRow == 0 {
		return nil, summary, fmt.Errorf("sheet %q is empty", sheet.Name)
	}
	header, err := sheet.Row(0)
	if err != nil {
		return nil, summary, fmt.Errorf("failed to read header row: %w", err)
	}

	columns := make(map[string]int)
	for c := 0; c < sheet.MaxCol; c++ {
		if field := m.fieldFor(header.GetCell(c).String()); field != "" {
			if _, dup := columns[field]; !dup {
				columns[field] = c
			}
		}
	}
	for field, fm := range m.Fields {
		if _, ok := columns[field]; fm.Required && !ok {
			return nil, summary, fmt.Errorf("required column %s not found in header", field)
		}
	}

	items := []models.InventoryItem{}
	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			summary.Skipped++
			continue
		}

		values := make(map[string]string, len(columns))
		blank := true
		for field, c := range columns {
			v := strings.TrimSpace(row.GetCell(c).String())
			if v != "" {
				blank = false
			}
			values[field] = v
		}
		if blank {
			summary.Skipped++
			continue
		}

		item, err := buildItem(values, opts.DefaultNoSeri)
		if err != nil {
			summary.Errors++
			if len(summary.Samples) < opts.MaxErrors {
				summary.Samples = append(summary.Samples, RowError{Row: rowIdx + 1, Message: err.Error()})
			}
			continue
		}
		items = append(items, item)
		summary.Parsed++
	}

	return items, summary, nil
}

func buildItem(values map[string]string, defaultNoSeri string) (models.InventoryItem, error) {
	item := models.InventoryItem{
		NoSeri:   values[FieldNoSeri],
		ItemCode: values[FieldItemCode],
		ItemName: values[FieldItemName],
	}
	if item.NoSeri == "" {
		item.NoSeri = defaultNoSeri
	}
	if item.NoSeri == "" {
		return item, fmt.Errorf("%s is required", FieldNoSeri)
	}
	if item.ItemCode == "" {
		return item, fmt.Errorf("%s is required", FieldItemCode)
	}

	raw := values[FieldQty]
	if raw == "" {
		return item, fmt.Errorf("%s is required", FieldQty)
	}
	qty, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return item, fmt.Errorf("invalid %s %q", FieldQty, raw)
	}
	if qty.IsNegative() {
		return item, fmt.Errorf("%s must not be negative", FieldQty)
	}
	item.Qty = qty
	return item, nil
}

// Store inserts items into table within a single transaction.
func Store(ctx context.Context, pool *pgxpool.Pool, table string, items []models.InventoryItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	sqlStr := fmt.Sprintf(`INSERT INTO %s (no_seri, item_code, item_name, qty, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`, ident)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(sqlStr, it.NoSeri, it.ItemCode, it.ItemName, it.Qty.String(), now)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(items), nil
}
