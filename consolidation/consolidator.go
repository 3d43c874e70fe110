package consolidation

import (
	"errors"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoPivot = errors.New("consolidation: stock pivot is nil")
	ErrNoBase  = errors.New("consolidation: base export is empty")
)

// Inputs are the sources of one consolidation. History maps may be nil.
type Inputs struct {
	Base      []models.Product
	Catalog   []models.CatalogEntry
	Pivot     *models.StockPivot
	Previous  map[string]int
	Yesterday map[string]int
	WeekAgo   map[string]int
}

// Consolidate joins the base export with the catalog, the stock pivot and
// the historical mappings. The result has exactly one row per code, in base
// order, first occurrence wins.
func Consolidate(in Inputs) (*models.ConsolidatedSnapshot, error) {
	if in.Pivot == nil {
		return nil, ErrNoPivot
	}
	if len(in.Base) == 0 {
		return nil, ErrNoBase
	}

	catalog := make(map[string]models.CatalogEntry, len(in.Catalog))
	for _, c := range in.Catalog {
		if _, ok := catalog[c.Codigo]; !ok {
			catalog[c.Codigo] = c
		}
	}

	rows := make([]models.ConsolidatedRow, 0, len(in.Base))
	seen := make(map[string]bool, len(in.Base))
	duplicates, withoutStock := 0, 0
	for _, p := range in.Base {
		if seen[p.Codigo] {
			duplicates++
			continue
		}
		seen[p.Codigo] = true

		row := models.ConsolidatedRow{
			Codigo:   p.Codigo,
			Nombre:   p.Nombre,
			Linea:    p.Linea,
			Ean:      p.Ean,
			Ean14:    p.Ean14,
			Precio:   p.Precio,
			CanKgUm:  p.CanKgUm,
			Orden:    models.DefaultOrden,
			UPorCaja: models.DefaultUPorCaja,
		}
		if c, ok := catalog[p.Codigo]; ok {
			row.Orden = c.Orden
			row.UPorCaja = c.UPorCaja
			row.Motivo = c.Motivo
		}

		if !in.Pivot.Has(p.Codigo) {
			withoutStock++
		}
		row.Stock = in.Pivot.Stock(p.Codigo)
		row.StockReferencial = in.Pivot.Referencial(p.Codigo)

		row.StockAntes = in.Previous[p.Codigo]
		row.StockAyer = in.Yesterday[p.Codigo]
		row.StockHaceUnaSemana = in.WeekAgo[p.Codigo]

		rows = append(rows, row)
	}

	config.GetLogger().WithFields(logrus.Fields{
		"products":      len(rows),
		"duplicates":    duplicates,
		"without_stock": withoutStock,
		"warehouses":    in.Pivot.Schema.Warehouses,
	}).Info("stock consolidated")
	return models.NewConsolidatedSnapshot(in.Pivot.Schema, rows), nil
}

// Partition splits the snapshot into the general and special subsets,
// keyed by the catalog code sets.
func Partition(snapshot *models.ConsolidatedSnapshot, general, special map[string]bool) (generales, especiales []models.ConsolidatedRow) {
	for _, r := range snapshot.Rows {
		if general[r.Codigo] {
			generales = append(generales, r)
		}
		if special[r.Codigo] {
			especiales = append(especiales, r)
		}
	}
	return generales, especiales
}
