package reports

import (
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/trend"
	"github.com/mmdatafocus/stock_backend/utils"
)

const (
	especialesSheet = "Especiales"
	especialesTable = "ReporteEspeciales"
	fixedTableStyle = "TableStyleMedium9"
)

// EspecialesHeaders returns the column layout of the special codes report
// for a warehouse schema.
func EspecialesHeaders(schema models.WarehouseSchema) []string {
	headers := []string{"codigo", "nombre", "u_por_caja", "stock_ayer", "stock_hace_1_semana", "motivo"}
	for _, wh := range schema.Warehouses {
		headers = append(headers, models.ColumnName(wh, models.MetricDisponible))
	}
	return append(headers, "Diferencia_Hoy_Ayer")
}

// WriteEspecialesReport joins the special catalog with the snapshot. Codes
// absent from the snapshot keep their catalog name and report zero stock.
func WriteEspecialesReport(path string, specialCatalog []models.CatalogRow, snapshot *models.ConsolidatedSnapshot) error {
	logger := config.GetLogger()
	if snapshot == nil {
		snapshot = models.NewConsolidatedSnapshot(models.WarehouseSchema{}, nil)
	}
	schema := snapshot.Schema

	seen := make(map[string]bool, len(specialCatalog))
	data := make([][]interface{}, 0, len(specialCatalog))
	for _, entry := range specialCatalog {
		code := utils.CleanCode(entry.Codigo)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		row, ok := snapshot.Row(code)
		if !ok {
			row = models.ConsolidatedRow{
				Codigo:   code,
				Nombre:   entry.Nombre,
				UPorCaja: utils.ParseIntOr(entry.UPorCaja, models.DefaultUPorCaja),
			}
		}
		values := []interface{}{code, row.Nombre, row.UPorCaja, row.StockAyer, row.StockHaceUnaSemana, entry.Motivo}
		for _, wh := range schema.Warehouses {
			values = append(values, row.Cell(wh).Disponible)
		}
		values = append(values, trend.DayOverDayDelta(row.StockReferencial, row.StockAyer))
		data = append(data, values)
	}

	if len(data) == 0 {
		logger.Warn("special catalog is empty, especiales report not written")
		return ErrNothingToWrite
	}

	wb := newWorkbook()
	defer wb.close()
	err := wb.addTableSheet(sheetTable{
		Sheet:   especialesSheet,
		Table:   especialesTable,
		Style:   fixedTableStyle,
		Headers: EspecialesHeaders(schema),
		Rows:    data,
		Widths:  map[string]float64{"nombre": nombreColWidth},
	})
	if err == nil {
		err = wb.save(path)
	}
	if err != nil {
		config.LogError(logger, "reports", "WriteEspecialesReport", "write workbook", path, err)
		return err
	}
	logger.WithField("rows", len(data)).Info("especiales report written")
	return nil
}
