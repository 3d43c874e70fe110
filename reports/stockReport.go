package reports

import (
	"sort"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/sirupsen/logrus"
)

var stockReportHeaders = []string{"Orden", "Código", "EAN", "Nombre", "U. x Caja", "Stock VES"}

// WriteStockReport writes one sheet per line to process with the general
// products of that line, sorted by catalog order. Lines without products are
// skipped with a warning.
func WriteStockReport(path string, generales []models.ConsolidatedRow, lines []string) error {
	logger := config.GetLogger()

	byLine := make(map[string][]models.ConsolidatedRow)
	for _, r := range generales {
		byLine[r.Linea] = append(byLine[r.Linea], r)
	}

	wb := newWorkbook()
	defer wb.close()

	styleIndex := 0
	for _, line := range lines {
		rows := byLine[line]
		if len(rows) == 0 {
			logger.WithField("linea", line).Warn("no products found for line")
			continue
		}
		sheet := SheetName(line)
		if sheet == "" || wb.hasSheet(sheet) {
			logger.WithFields(logrus.Fields{"linea": line, "sheet": sheet}).Warn("sheet name already used, skipping line")
			continue
		}

		sorted := make([]models.ConsolidatedRow, len(rows))
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Orden < sorted[j].Orden })

		data := make([][]interface{}, 0, len(sorted))
		for i, r := range sorted {
			data = append(data, []interface{}{i + 1, r.Codigo, r.Ean, r.Nombre, r.UPorCaja, r.StockReferencial})
		}

		err := wb.addTableSheet(sheetTable{
			Sheet:    sheet,
			Table:    "Reporte_" + line,
			Style:    TableStyles[styleIndex%len(TableStyles)],
			Headers:  stockReportHeaders,
			Rows:     data,
			Widths:   map[string]float64{"Nombre": nombreColWidth},
			TabColor: LinePalette[line],
		})
		if err != nil {
			config.LogError(logger, "reports", "WriteStockReport", "add line sheet", line, err)
			return err
		}
		styleIndex++
		logger.WithFields(logrus.Fields{"linea": line, "products": len(data)}).Info("line sheet written")
	}

	if wb.empty() {
		logger.Warn("stock report has no lines with products")
		return ErrNothingToWrite
	}
	if err := wb.save(path); err != nil {
		config.LogError(logger, "reports", "WriteStockReport", "save workbook", path, err)
		return err
	}
	logger.WithField("path", path).Info("stock report written")
	return nil
}
