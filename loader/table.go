package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoData marks a required source that is missing or lacks its required columns.
	ErrNoData = errors.New("no data")
	// ErrUnsupportedFormat is returned for spreadsheet formats the reader cannot open.
	ErrUnsupportedFormat = errors.New("unsupported table format")
)

// Table is a flat sheet: one header row and string cells.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

func newTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
}

// RenameColumns trims every header and applies the rename map. Lookups are
// case-insensitive; a header already carrying its canonical name is kept.
func (t *Table) RenameColumns(renames map[string]string) {
	upper := make(map[string]string, len(renames))
	for from, to := range renames {
		upper[strings.ToUpper(from)] = to
	}
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if to, ok := upper[strings.ToUpper(h)]; ok {
			h = to
		}
		t.Header[i] = h
	}
	t.reindex()
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// MissingColumns returns the names in required that the header lacks.
func (t *Table) MissingColumns(required ...string) []string {
	var missing []string
	for _, name := range required {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Value returns the trimmed cell of row for column, "" when either is absent.
func (t *Table) Value(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadTable loads the first sheet of an xls/xlsx/xlsm workbook or a csv file.
func ReadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoData)
		}
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls", ".xlsx", ".xlsm":
		rows, err := readSheetRows(data)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return tableFromRows(rows), nil
	case ".csv":
		rows, err := readCSVRows(data)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return tableFromRows(rows), nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

func tableFromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return newTable(nil, nil)
	}
	header := make([]string, len(rows[0]))
	copy(header, rows[0])
	body := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if isBlankRow(r) {
			continue
		}
		body = append(body, r)
	}
	return newTable(header, body)
}

// ole2Magic opens every legacy BIFF workbook.
var ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// readSheetRows returns the raw rows of the first sheet. The format follows
// the content, so an xlsx saved under an .xls name still opens.
func readSheetRows(data []byte) ([][]string, error) {
	if bytes.HasPrefix(data, ole2Magic) {
		return readXLSRows(data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

// readXLSRows reads the first sheet of a BIFF workbook. The decoder panics on
// corrupt files, which is turned into an error.
func readXLSRows(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("corrupt xls workbook: %v: %w", r, ErrUnsupportedFormat)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil || sheet.MaxRow == 0 {
		return nil, nil
	}
	// ReadAllCells walks the sheets in order, so capping at the first sheet's
	// row count keeps the others out. Absent rows come back nil.
	return wb.ReadAllCells(int(sheet.MaxRow) + 1), nil
}

func readCSVRows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if bytes.Count(firstLine(data), []byte(";")) > bytes.Count(firstLine(data), []byte(",")) {
		r.Comma = ';'
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func firstLine(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i]
	}
	return data
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
