package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

var manualColumns = map[string]string{
	"CODIGO":      "codigo",
	"NOMBRE":      "nombre",
	"LINEA":       "linea",
	"ORDEN":       "orden",
	"UNID_MASTER": "u_por_caja",
	"MOTIVO":      "motivo",
}

// LoadCatalog reads a manual catalog sheet. orden and u_por_caja stay raw,
// the merger coerces them.
func LoadCatalog(path string, source models.CatalogSource) ([]models.CatalogRow, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("%s catalog: %w", source, err)
	}
	table.RenameColumns(manualColumns)
	if !table.HasColumn("codigo") {
		return nil, fmt.Errorf("%s catalog %s missing codigo column: %w", source, path, ErrNoData)
	}

	rows := make([]models.CatalogRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		// Codes join against the stock export and the base export, so they
		// get the same normalization, internal spaces included.
		code := utils.CleanCode(table.Value(row, "codigo"))
		if code == "" {
			continue
		}
		rows = append(rows, models.CatalogRow{
			Codigo:   code,
			Nombre:   table.Value(row, "nombre"),
			Linea:    table.Value(row, "linea"),
			Orden:    table.Value(row, "orden"),
			UPorCaja: table.Value(row, "u_por_caja"),
			Motivo:   table.Value(row, "motivo"),
		})
	}

	config.GetLogger().WithFields(logrus.Fields{
		"source": source,
		"path":   path,
		"codes":  len(rows),
	}).Info("catalog loaded")
	return rows, nil
}

// LoadLinesToProcess returns the product lines that get their own report
// sheet. The ESPECIALES sentinel and blanks are dropped; an empty result is
// an error.
func LoadLinesToProcess(path string) ([]string, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("lines to process: %w", err)
	}
	table.RenameColumns(manualColumns)
	if !table.HasColumn("linea") {
		return nil, fmt.Errorf("lines to process %s missing linea column: %w", path, ErrNoData)
	}

	var lines []string
	seen := map[string]bool{}
	for _, row := range table.Rows {
		line := strings.TrimSpace(table.Value(row, "linea"))
		if line == "" || line == models.LineaEspeciales || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("lines to process %s: %w", path, errors.Join(ErrNoData, errors.New("no lines listed")))
	}

	config.GetLogger().WithField("lines", len(lines)).Info("lines to process loaded")
	return lines, nil
}

// Sources bundles the manual inputs of one run.
type Sources struct {
	Lines    []string
	General  []models.CatalogRow
	Especial []models.CatalogRow
}

// LoadManualSources loads the lines list and both catalogs, failing on the
// first missing one.
func LoadManualSources(linesPath, generalPath, especialPath string) (*Sources, error) {
	lines, err := LoadLinesToProcess(linesPath)
	if err != nil {
		return nil, err
	}
	general, err := LoadCatalog(generalPath, models.CatalogSourceGeneral)
	if err != nil {
		return nil, err
	}
	especial, err := LoadCatalog(especialPath, models.CatalogSourceSpecial)
	if err != nil {
		return nil, err
	}
	return &Sources{Lines: lines, General: general, Especial: especial}, nil
}
