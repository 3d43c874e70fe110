package models

import (
	"sort"
	"strings"
)

const (
	MetricStockTotal  = "stock_total"
	MetricPredespacho = "predespacho"
	MetricDisponible  = "disponible"
)

var WarehouseMetrics = []string{MetricStockTotal, MetricPredespacho, MetricDisponible}

// WarehouseStock is one (code, warehouse) cell of the stock export.
type WarehouseStock struct {
	StockTotal  int `json:"stock_total"`
	Predespacho int `json:"predespacho"`
	Disponible  int `json:"disponible"`
}

func (w WarehouseStock) Metric(name string) int {
	switch name {
	case MetricStockTotal:
		return w.StockTotal
	case MetricPredespacho:
		return w.Predespacho
	case MetricDisponible:
		return w.Disponible
	}
	return 0
}

// WarehouseSchema is negotiated once from the stock export and handed to every
// later stage. Warehouses is sorted; Reference may be empty.
type WarehouseSchema struct {
	Warehouses []string `json:"warehouses"`
	Reference  string   `json:"reference"`
}

func NewWarehouseSchema(warehouses []string, referenceToken string) WarehouseSchema {
	seen := make(map[string]bool, len(warehouses))
	list := make([]string, 0, len(warehouses))
	for _, wh := range warehouses {
		if wh == "" || seen[wh] {
			continue
		}
		seen[wh] = true
		list = append(list, wh)
	}
	sort.Strings(list)

	schema := WarehouseSchema{Warehouses: list}
	token := strings.ToUpper(strings.TrimSpace(referenceToken))
	if token == "" {
		return schema
	}
	for _, wh := range list {
		if strings.Contains(strings.ToUpper(wh), token) {
			schema.Reference = wh
			break
		}
	}
	return schema
}

func (s WarehouseSchema) HasReference() bool {
	return s.Reference != ""
}

// ColumnName renders the flat {warehouse}_{metric} column name.
func ColumnName(warehouse, metric string) string {
	return warehouse + "_" + metric
}

// Columns lists every warehouse metric column in schema order.
func (s WarehouseSchema) Columns() []string {
	cols := make([]string, 0, len(s.Warehouses)*len(WarehouseMetrics))
	for _, wh := range s.Warehouses {
		for _, m := range WarehouseMetrics {
			cols = append(cols, ColumnName(wh, m))
		}
	}
	return cols
}

// StockPivot is the stock export pivoted to one row per code.
type StockPivot struct {
	Schema WarehouseSchema
	// Order keeps codes in first-seen order of the export.
	Order []string
	Cells map[string]map[string]WarehouseStock
	Names map[string]string
}

func NewStockPivot(schema WarehouseSchema) *StockPivot {
	return &StockPivot{
		Schema: schema,
		Cells:  make(map[string]map[string]WarehouseStock),
		Names:  make(map[string]string),
	}
}

// Cell returns the zero cell for a missing combination.
func (p *StockPivot) Cell(code, warehouse string) WarehouseStock {
	if p == nil {
		return WarehouseStock{}
	}
	return p.Cells[code][warehouse]
}

func (p *StockPivot) Has(code string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Cells[code]
	return ok
}

// Referencial is the reference warehouse available stock, 0 when the schema
// has no reference warehouse.
func (p *StockPivot) Referencial(code string) int {
	if p == nil || !p.Schema.HasReference() {
		return 0
	}
	return p.Cell(code, p.Schema.Reference).Disponible
}

// Stock returns a full per-warehouse map for code with zero-filled cells.
func (p *StockPivot) Stock(code string) map[string]WarehouseStock {
	if p == nil {
		return map[string]WarehouseStock{}
	}
	out := make(map[string]WarehouseStock, len(p.Schema.Warehouses))
	for _, wh := range p.Schema.Warehouses {
		out[wh] = p.Cell(code, wh)
	}
	return out
}
