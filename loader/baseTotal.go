package loader

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

var baseTotalColumns = map[string]string{
	"CODIGO":     "codigo",
	"NOMBRE":     "nombre",
	"LINEA":      "linea",
	"COD_EAN":    "ean",
	"COD_EAN_14": "ean_14",
	"PRECIO":     "precio",
	"CAN_KG_UM":  "can_kg_um",
}

var requiredBaseColumns = []string{"codigo", "nombre", "linea"}

// LoadBaseExport reads the ERP product export. Missing file or missing
// codigo/nombre/linea columns return ErrNoData.
func LoadBaseExport(path string) ([]models.Product, error) {
	logger := config.GetLogger()

	table, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("base export: %w", err)
	}
	table.RenameColumns(baseTotalColumns)

	if missing := table.MissingColumns(requiredBaseColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("base export %s missing columns %v: %w", path, missing, ErrNoData)
	}
	for _, optional := range []string{"ean", "ean_14", "precio", "can_kg_um"} {
		if !table.HasColumn(optional) {
			logger.WithField("column", optional).Warn("base export column missing, using defaults")
		}
	}

	products := make([]models.Product, 0, len(table.Rows))
	skipped := 0
	for _, row := range table.Rows {
		code := utils.CleanCode(table.Value(row, "codigo"))
		if code == "" {
			skipped++
			continue
		}
		products = append(products, models.Product{
			Codigo:  code,
			Nombre:  table.Value(row, "nombre"),
			Linea:   strings.TrimSpace(table.Value(row, "linea")),
			Ean:     utils.CleanBarcode(table.Value(row, "ean")),
			Ean14:   utils.CleanBarcode(table.Value(row, "ean_14")),
			Precio:  utils.ParseFloatOrZero(table.Value(row, "precio")),
			CanKgUm: utils.ParseFloatOrZero(table.Value(row, "can_kg_um")),
		})
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"products": len(products),
		"skipped":  skipped,
	}).Info("base export loaded")
	return products, nil
}
