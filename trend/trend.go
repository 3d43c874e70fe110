package trend

import (
	"sort"

	"github.com/mmdatafocus/stock_backend/models"
)

// Window is how many dated columns back the trend reference sits.
const Window = 7

type Label string

const (
	Increase            Label = "increase"
	Decrease            Label = "decrease"
	Unchanged           Label = "unchanged"
	InsufficientHistory Label = "insufficient-history"
)

// Display is the text written to the historical workbook.
func (l Label) Display() string {
	switch l {
	case Increase:
		return "📈 Aumento"
	case Decrease:
		return "📉 Disminución"
	case Unchanged:
		return "↔️ Se Mantiene"
	}
	return "➖ Sin Datos Históricos (menos de 7 días)"
}

// Classify compares the last value of a dated series with the value Window
// positions earlier. Positions are dated columns, not calendar days. With
// exactly Window values the first one is the reference.
func Classify(values []int) Label {
	n := len(values)
	if n < Window {
		return InsufficientHistory
	}
	last := values[n-1]
	ref := values[referenceIndex(n)]
	switch {
	case last > ref:
		return Increase
	case last < ref:
		return Decrease
	}
	return Unchanged
}

func referenceIndex(n int) int {
	return max(0, n-1-Window)
}

// DayOverDayDelta is today - yesterday.
func DayOverDayDelta(today, yesterday int) int {
	return today - yesterday
}

type HistoricalRow struct {
	Codigo string
	Nombre string
	// Values is aligned with HistoricalTable.Dates; missing dates are 0.
	Values []int
	Trend  Label
}

// HistoricalTable is the dates x codes pivot of the general codes.
type HistoricalTable struct {
	Dates []string
	Rows  []HistoricalRow
}

func (t *HistoricalTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// BuildHistoricalTable restricts series to the cohort and pivots it. Dates
// are the sorted dates holding at least one cohort code; rows are sorted by
// code. names supplies product names, missing names stay empty.
func BuildHistoricalTable(series []models.DatedSnapshot, cohort map[string]bool, names map[string]string) *HistoricalTable {
	byDate := make(map[string]map[string]int)
	codes := make(map[string]bool)
	for _, snap := range series {
		key := snap.DateKey()
		for code, stock := range snap.Stock {
			if !cohort[code] {
				continue
			}
			m, ok := byDate[key]
			if !ok {
				m = make(map[string]int)
				byDate[key] = m
			}
			if _, dup := m[code]; !dup {
				m[code] = stock
			}
			codes[code] = true
		}
	}

	table := &HistoricalTable{}
	for d := range byDate {
		table.Dates = append(table.Dates, d)
	}
	sort.Strings(table.Dates)

	sortedCodes := make([]string, 0, len(codes))
	for c := range codes {
		sortedCodes = append(sortedCodes, c)
	}
	sort.Strings(sortedCodes)

	for _, code := range sortedCodes {
		values := make([]int, len(table.Dates))
		for i, d := range table.Dates {
			values[i] = byDate[d][code]
		}
		table.Rows = append(table.Rows, HistoricalRow{
			Codigo: code,
			Nombre: names[code],
			Values: values,
			Trend:  Classify(values),
		})
	}
	return table
}
