package reports

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ErrNothingToWrite is returned when a report has no rows; the previous
// file, if any, is left in place.
var ErrNothingToWrite = errors.New("report has no rows")

const (
	maxSheetNameLen = 31
	nombreColWidth  = 50
	maxColWidth     = 80
)

// Table styles rotate across the per-line sheets.
var TableStyles = func() []string {
	styles := make([]string, 0, 28)
	for i := 1; i <= 28; i++ {
		styles = append(styles, fmt.Sprintf("TableStyleMedium%d", i))
	}
	return styles
}()

// LinePalette colors the sheet tab of each product line.
var LinePalette = map[string]string{
	"PELOTAS":                "#1F77B4",
	"PINTURA":                "#2CA02C",
	"ESCRITURA":              "#D62728",
	"MANUALIDADES":           "#9467BD",
	"DIBUJO":                 "#8C564B",
	"MASCOTAS":               "#E377C2",
	"JUGUETES":               "#7F7F7F",
	"ACCESORIOS":             "#BCBD22",
	"FORROS":                 "#17BECF",
	"PEGAMENTOS":             "#FF7F0E",
	"PUBLICIDAD":             "#7E7E7E",
	"METALICA":               "#555555",
	"PRODUCTOS INDUSTRIALES": "#33A1C9",
	"OTROS":                  "#999999",
	"REPRESENTADAS":          "#A6761D",
	"ARCHIVO":                "#8B4513",
	"ACCESORIOS DEPORTIVOS":  "#00FF00",
}

type sheetTable struct {
	Sheet   string
	Table   string
	Style   string
	Headers []string
	Rows    [][]interface{}
	// Widths overrides the computed width of a column, keyed by header.
	Widths   map[string]float64
	Centered []string
	TabColor string
	// Plain writes a bold header row instead of an Excel table.
	Plain bool
}

type workbook struct {
	f      *excelize.File
	sheets map[string]bool
	tables map[string]bool
}

func newWorkbook() *workbook {
	return &workbook{f: excelize.NewFile(), sheets: map[string]bool{}, tables: map[string]bool{}}
}

func (w *workbook) close() {
	_ = w.f.Close()
}

// hasSheet compares case-insensitively, as Excel does.
func (w *workbook) hasSheet(name string) bool {
	return w.sheets[strings.ToLower(name)]
}

func (w *workbook) empty() bool {
	return len(w.sheets) == 0
}

func (w *workbook) addSheet(name string) error {
	if len(w.sheets) == 0 {
		// reuse the default sheet for the first table
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return err
	}
	w.sheets[strings.ToLower(name)] = true
	return nil
}

func (w *workbook) addTableSheet(t sheetTable) error {
	f := w.f
	if err := w.addSheet(t.Sheet); err != nil {
		return fmt.Errorf("add sheet %q: %w", t.Sheet, err)
	}

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(t.Sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		r := row
		if err := f.SetSheetRow(t.Sheet, fmt.Sprintf("A%d", i+2), &r); err != nil {
			return err
		}
	}

	for i, h := range t.Headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width, ok := t.Widths[h]
		if !ok {
			width = columnWidth(h, t.Rows, i)
		}
		if err := f.SetColWidth(t.Sheet, col, col, width); err != nil {
			return err
		}
	}

	if len(t.Centered) > 0 {
		center, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "center"}})
		if err != nil {
			return err
		}
		for i, h := range t.Headers {
			if !contains(t.Centered, h) {
				continue
			}
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColStyle(t.Sheet, col, center); err != nil {
				return err
			}
		}
	}

	if t.TabColor != "" {
		color := strings.TrimPrefix(t.TabColor, "#")
		if err := f.SetSheetProps(t.Sheet, &excelize.SheetPropsOptions{TabColorRGB: &color}); err != nil {
			return err
		}
	}

	if t.Plain {
		headerStyle, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return err
		}
		return f.SetRowStyle(t.Sheet, 1, 1, headerStyle)
	}

	lastCell, err := excelize.CoordinatesToCellName(len(t.Headers), max(len(t.Rows)+1, 2))
	if err != nil {
		return err
	}
	name := w.uniqueTableName(t.Table)
	return f.AddTable(t.Sheet, &excelize.Table{
		Range:          "A1:" + lastCell,
		Name:           name,
		StyleName:      t.Style,
		ShowRowStripes: utils.NewTrue(),
	})
}

func (w *workbook) uniqueTableName(raw string) string {
	base := TableName(raw)
	name := base
	for i := 2; w.tables[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	w.tables[strings.ToLower(name)] = true
	return name
}

// save writes the workbook through a temp file so readers never see a
// partial report.
func (w *workbook) save(path string) error {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, buf.Bytes())
}

// TableName turns a label into a valid Excel table name.
func TableName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		return "Tabla"
	}
	if first := rune(name[0]); unicode.IsDigit(first) {
		name = "T_" + name
	}
	return name
}

// SheetName truncates to Excel's 31 characters and drops forbidden runes.
func SheetName(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	if utf8.RuneCountInString(cleaned) <= maxSheetNameLen {
		return cleaned
	}
	return string([]rune(cleaned)[:maxSheetNameLen])
}

func columnWidth(header string, rows [][]interface{}, col int) float64 {
	width := utf8.RuneCountInString(header)
	for _, r := range rows {
		if col >= len(r) {
			continue
		}
		if n := utf8.RuneCountInString(fmt.Sprint(r[col])); n > width {
			width = n
		}
	}
	return float64(min(width+2, maxColWidth))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
