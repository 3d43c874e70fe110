package reports

import (
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/trend"
)

const (
	historicalSheet = "Historico VES"
	historicalTable = "HistoricoVESReporte"
	trendHeader     = "Tendencia"
)

func WriteHistoricalReport(path string, table *trend.HistoricalTable) error {
	logger := config.GetLogger()
	if table.Empty() {
		logger.Warn("no historical data for the general codes")
		return ErrNothingToWrite
	}

	headers := append([]string{"codigo", "nombre"}, table.Dates...)
	headers = append(headers, trendHeader)

	data := make([][]interface{}, 0, len(table.Rows))
	for _, r := range table.Rows {
		values := make([]interface{}, 0, len(headers))
		values = append(values, r.Codigo, r.Nombre)
		for _, v := range r.Values {
			values = append(values, v)
		}
		values = append(values, r.Trend.Display())
		data = append(data, values)
	}

	wb := newWorkbook()
	defer wb.close()
	err := wb.addTableSheet(sheetTable{
		Sheet:    historicalSheet,
		Table:    historicalTable,
		Style:    fixedTableStyle,
		Headers:  headers,
		Rows:     data,
		Widths:   map[string]float64{"nombre": nombreColWidth, trendHeader: 20},
		Centered: []string{trendHeader},
	})
	if err == nil {
		err = wb.save(path)
	}
	if err != nil {
		config.LogError(logger, "reports", "WriteHistoricalReport", "write workbook", path, err)
		return err
	}
	logger.WithField("dates", len(table.Dates)).Info("historical report written")
	return nil
}
