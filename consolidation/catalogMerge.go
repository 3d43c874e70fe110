package consolidation

import (
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

// MergeCatalogs stacks the general rows, then the special rows. Codes present
// in both pass through twice; Consolidate keeps the first.
func MergeCatalogs(general, special []models.CatalogRow) []models.CatalogEntry {
	merged := make([]models.CatalogEntry, 0, len(general)+len(special))
	merged = appendCatalog(merged, general, models.CatalogSourceGeneral)
	merged = appendCatalog(merged, special, models.CatalogSourceSpecial)

	config.GetLogger().WithFields(logrus.Fields{
		"general": len(general),
		"special": len(special),
		"merged":  len(merged),
	}).Info("catalogs merged")
	return merged
}

func appendCatalog(dst []models.CatalogEntry, rows []models.CatalogRow, source models.CatalogSource) []models.CatalogEntry {
	for _, r := range rows {
		dst = append(dst, models.CatalogEntry{
			Codigo:   utils.CleanCode(r.Codigo),
			Nombre:   r.Nombre,
			Linea:    r.Linea,
			Orden:    utils.ParseIntOr(r.Orden, models.DefaultOrden),
			UPorCaja: utils.ParseIntOr(r.UPorCaja, models.DefaultUPorCaja),
			Motivo:   r.Motivo,
			Source:   source,
		})
	}
	return dst
}
