package models

// ConsolidatedRow is one product of the daily consolidated snapshot.
// Every numeric field is populated, missing sources default to zero.
type ConsolidatedRow struct {
	Codigo             string                    `json:"codigo"`
	Nombre             string                    `json:"nombre"`
	Linea              string                    `json:"linea"`
	Ean                string                    `json:"ean"`
	Ean14              string                    `json:"ean_14"`
	Precio             float64                   `json:"precio"`
	CanKgUm            float64                   `json:"can_kg_um"`
	Orden              int                       `json:"orden"`
	UPorCaja           int                       `json:"u_por_caja"`
	Motivo             string                    `json:"motivo"`
	Stock              map[string]WarehouseStock `json:"stock"`
	StockReferencial   int                       `json:"stock_referencial"`
	StockAntes         int                       `json:"stock_antes"`
	StockAyer          int                       `json:"stock_ayer"`
	StockHaceUnaSemana int                       `json:"stock_hace_1_semana"`
}

func (r ConsolidatedRow) Cell(warehouse string) WarehouseStock {
	return r.Stock[warehouse]
}

type ConsolidatedSnapshot struct {
	Schema WarehouseSchema
	Rows   []ConsolidatedRow

	index map[string]int
}

func NewConsolidatedSnapshot(schema WarehouseSchema, rows []ConsolidatedRow) *ConsolidatedSnapshot {
	s := &ConsolidatedSnapshot{Schema: schema, Rows: rows}
	s.reindex()
	return s
}

func (s *ConsolidatedSnapshot) reindex() {
	s.index = make(map[string]int, len(s.Rows))
	for i, r := range s.Rows {
		if _, ok := s.index[r.Codigo]; !ok {
			s.index[r.Codigo] = i
		}
	}
}

// Row looks a product up by code.
func (s *ConsolidatedSnapshot) Row(code string) (ConsolidatedRow, bool) {
	if s == nil {
		return ConsolidatedRow{}, false
	}
	if s.index == nil {
		s.reindex()
	}
	i, ok := s.index[code]
	if !ok {
		return ConsolidatedRow{}, false
	}
	return s.Rows[i], true
}

func (s *ConsolidatedSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ReferentialMap is the {codigo: stock_referencial} mapping persisted as the
// daily and previous-run snapshots.
func (s *ConsolidatedSnapshot) ReferentialMap() map[string]int {
	out := make(map[string]int, s.Len())
	if s == nil {
		return out
	}
	for _, r := range s.Rows {
		out[r.Codigo] = r.StockReferencial
	}
	return out
}
