package importer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Items")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sh.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestDefaultMapping(t *testing.T) {
	m := DefaultMapping()
	assert.Equal(t, 1, m.Version)
	assert.True(t, m.Fields[FieldItemCode].Required)
	assert.Equal(t, FieldItemCode, m.fieldFor("  kode barang "))
	assert.Equal(t, FieldQty, m.fieldFor("QUANTITY"))
	assert.Equal(t, FieldNoSeri, m.fieldFor("no_seri"))
	assert.Equal(t, "", m.fieldFor("Remarks"))
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path uses default", func(t *testing.T) {
		m, err := LoadMapping("")
		require.NoError(t, err)
		assert.NotEmpty(t, m.Fields)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 2\nsheet: BRG\nfields:\n  item_code:\n    aliases: [Part]\n    required: true\n  qty:\n    aliases: [Pcs]\n"), 0o644))
		m, err := LoadMapping(path)
		require.NoError(t, err)
		assert.Equal(t, "BRG", m.Sheet)
		assert.Equal(t, FieldItemCode, m.fieldFor("part"))
	})

	t.Run("unknown field", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fields:\n  price:\n    aliases: [Price]\n"), 0o644))
		_, err := LoadMapping(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapping(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParseItems(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"No Seri", "Kode Barang", "Nama Barang", "Qty"},
		{"SN-1", "BRG-01", "Filter", "2"},
		{"", "BRG-02", "Belt", "1.5"},
		{"", "", "", ""},
		{"SN-1", "", "No code", "1"},
		{"SN-1", "BRG-03", "Bad qty", "abc"},
		{"SN-1", "BRG-04", "Negative", "-1"},
	})

	items, summary, err := ParseItems(wb, DefaultMapping(), ParseOptions{DefaultNoSeri: "SN-DEFAULT"})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "SN-1", items[0].NoSeri)
	assert.Equal(t, "BRG-01", items[0].ItemCode)
	assert.True(t, items[0].Qty.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "SN-DEFAULT", items[1].NoSeri)
	assert.True(t, items[1].Qty.Equal(decimal.RequireFromString("1.5")))

	assert.Equal(t, "Items", summary.Sheet)
	assert.Equal(t, 2, summary.Parsed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 3, summary.Errors)
	require.Len(t, summary.Samples, 3)
	assert.Equal(t, 5, summary.Samples[0].Row)
	assert.Contains(t, summary.Samples[0].Message, "item_code")
}

func TestParseItemsMissingRequiredColumn(t *testing.T) {
	wb := buildWorkbook(t, [][]string{
		{"Kode Barang", "Nama Barang"},
		{"BRG-01", "Filter"},
	})
	_, _, err := ParseItems(wb, DefaultMapping(), ParseOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qty")
}

func TestParseItemsMaxErrors(t *testing.T) {
	rows := [][]string{{"Kode Barang", "Qty", "No Seri"}}
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{"BRG", "x", "SN"})
	}
	_, summary, err := ParseItems(buildWorkbook(t, rows), DefaultMapping(), ParseOptions{MaxErrors: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Errors)
	assert.Len(t, summary.Samples, 2)
}

func TestParseItemsRejectsNonWorkbook(t *testing.T) {
	_, _, err := ParseItems(bytes.NewReader([]byte("not a zip")), DefaultMapping(), ParseOptions{})
	assert.Error(t, err)
}
