package models

// Product is one row of the ERP base export after normalization.
// Codigo is the key of the whole pipeline.
type Product struct {
	Codigo  string  `json:"codigo"`
	Nombre  string  `json:"nombre"`
	Linea   string  `json:"linea"`
	Ean     string  `json:"ean"`
	Ean14   string  `json:"ean_14"`
	Precio  float64 `json:"precio"`
	CanKgUm float64 `json:"can_kg_um"`
}

type CatalogSource string

const (
	CatalogSourceGeneral CatalogSource = "general"
	CatalogSourceSpecial CatalogSource = "special"
)

// LineaEspeciales is the sentinel line of the lines-to-process sheet that is
// routed through the special-codes report instead of the per-line report.
const LineaEspeciales = "ESPECIALES"

const (
	DefaultUPorCaja = 1
	DefaultOrden    = 0
)

// CatalogRow is a manual catalog row as read from the sheet; numeric
// columns stay raw until the merger coerces them.
type CatalogRow struct {
	Codigo   string
	Nombre   string
	Linea    string
	Orden    string
	UPorCaja string
	Motivo   string
}

// CatalogEntry is a merged catalog row with structural defaults applied.
type CatalogEntry struct {
	Codigo   string        `json:"codigo"`
	Nombre   string        `json:"nombre"`
	Linea    string        `json:"linea"`
	Orden    int           `json:"orden"`
	UPorCaja int           `json:"u_por_caja"`
	Motivo   string        `json:"motivo"`
	Source   CatalogSource `json:"source"`
}

// CodeSet returns the distinct codes of rows, trimmed.
func CodeSet(rows []CatalogRow) map[string]bool {
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Codigo != "" {
			set[r.Codigo] = true
		}
	}
	return set
}
