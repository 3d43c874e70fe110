package reports

import (
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
)

const consolidatedSheet = "Stock"

// ConsolidatedHeaders lists every snapshot column except motivo.
func ConsolidatedHeaders(schema models.WarehouseSchema) []string {
	headers := []string{"codigo", "nombre", "linea", "ean", "ean_14", "precio", "can_kg_um", "orden", "u_por_caja"}
	headers = append(headers, schema.Columns()...)
	return append(headers, "stock_referencial", "stock_antes", "stock_ayer", "stock_hace_1_semana")
}

func WriteConsolidatedWorkbook(path string, snapshot *models.ConsolidatedSnapshot) error {
	logger := config.GetLogger()
	if snapshot.Len() == 0 {
		return ErrNothingToWrite
	}
	schema := snapshot.Schema

	data := make([][]interface{}, 0, snapshot.Len())
	for _, r := range snapshot.Rows {
		values := []interface{}{r.Codigo, r.Nombre, r.Linea, r.Ean, r.Ean14, r.Precio, r.CanKgUm, r.Orden, r.UPorCaja}
		for _, wh := range schema.Warehouses {
			cell := r.Cell(wh)
			for _, metric := range models.WarehouseMetrics {
				values = append(values, cell.Metric(metric))
			}
		}
		values = append(values, r.StockReferencial, r.StockAntes, r.StockAyer, r.StockHaceUnaSemana)
		data = append(data, values)
	}

	wb := newWorkbook()
	defer wb.close()
	err := wb.addTableSheet(sheetTable{
		Sheet:   consolidatedSheet,
		Headers: ConsolidatedHeaders(schema),
		Rows:    data,
		Widths:  map[string]float64{"nombre": nombreColWidth},
		Plain:   true,
	})
	if err == nil {
		err = wb.save(path)
	}
	if err != nil {
		config.LogError(logger, "reports", "WriteConsolidatedWorkbook", "write workbook", path, err)
		return err
	}
	logger.WithField("rows", len(data)).Info("consolidated workbook written")
	return nil
}
