package trend

import (
	"testing"
	"time"

	"github.com/mmdatafocus/stock_backend/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		values   []int
		expected Label
	}{
		{"seven flat then rise", []int{10, 10, 10, 10, 10, 10, 10, 20}, Increase},
		{"drop", []int{30, 10, 10, 10, 10, 10, 10, 5}, Decrease},
		{"same as seven back", []int{10, 99, 99, 99, 99, 99, 99, 10}, Unchanged},
		{"exactly seven uses earliest", []int{5, 0, 0, 0, 0, 0, 8}, Increase},
		{"reference is seven positions back", []int{100, 1, 2, 3, 4, 5, 6, 7, 1}, Unchanged},
		{"six values", []int{1, 2, 3, 4, 5, 6}, InsufficientHistory},
		{"empty", nil, InsufficientHistory},
	}
	for _, tc := range cases {
		if got := Classify(tc.values); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestDayOverDayDelta(t *testing.T) {
	cases := []struct {
		today, yesterday, expected int
	}{
		{15, 15, 0},
		{50, 45, 5},
		{0, 12, -12},
	}
	for _, tc := range cases {
		if got := DayOverDayDelta(tc.today, tc.yesterday); got != tc.expected {
			t.Fatalf("DayOverDayDelta(%d, %d) expected %d, got %d", tc.today, tc.yesterday, tc.expected, got)
		}
	}
}

func snapshotsFor(start time.Time, values map[string][]int, days int) []models.DatedSnapshot {
	var out []models.DatedSnapshot
	for i := 0; i < days; i++ {
		stock := map[string]int{}
		for code, series := range values {
			if i < len(series) && series[i] >= 0 {
				stock[code] = series[i]
			}
		}
		out = append(out, models.DatedSnapshot{Date: start.AddDate(0, 0, i), Stock: stock})
	}
	return out
}

func TestBuildHistoricalTable(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	series := snapshotsFor(start, map[string][]int{
		"A": {10, 10, 10, 10, 10, 10, 10, 20},
		// -1 marks a date without the code
		"B": {5, -1, 5, 5, 5, 5, 5, 1},
		"Z": {1, 1, 1, 1, 1, 1, 1, 1},
	}, 8)

	table := BuildHistoricalTable(series, map[string]bool{"A": true, "B": true}, map[string]string{"A": "Ball"})
	if len(table.Dates) != 8 || table.Dates[0] != "2024-05-01" || table.Dates[7] != "2024-05-08" {
		t.Fatalf("unexpected dates %v", table.Dates)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected cohort-only rows, got %d", len(table.Rows))
	}
	a, b := table.Rows[0], table.Rows[1]
	if a.Codigo != "A" || a.Nombre != "Ball" || a.Trend != Increase {
		t.Fatalf("unexpected row A %+v", a)
	}
	if b.Values[1] != 0 {
		t.Fatalf("expected missing date to be 0, got %d", b.Values[1])
	}
	if b.Nombre != "" || b.Trend != Decrease {
		t.Fatalf("unexpected row B %+v", b)
	}
}

func TestBuildHistoricalTableGapsUseDatedColumns(t *testing.T) {
	// seven snapshots spread over three weeks still give a trend
	var series []models.DatedSnapshot
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	for i := 0; i < 7; i++ {
		series = append(series, models.DatedSnapshot{Date: start.AddDate(0, 0, i*3), Stock: map[string]int{"A": 10 - i}})
	}
	table := BuildHistoricalTable(series, map[string]bool{"A": true}, nil)
	if table.Rows[0].Trend != Decrease {
		t.Fatalf("expected decrease over dated columns, got %s", table.Rows[0].Trend)
	}
}

func TestBuildHistoricalTableInsufficientHistory(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	series := snapshotsFor(start, map[string][]int{"A": {1, 2, 3, 4, 5, 6}}, 6)
	table := BuildHistoricalTable(series, map[string]bool{"A": true}, nil)
	if table.Rows[0].Trend != InsufficientHistory {
		t.Fatalf("expected insufficient history, got %s", table.Rows[0].Trend)
	}
	if InsufficientHistory.Display() == Increase.Display() {
		t.Fatalf("labels must render distinctly")
	}
}

func TestBuildHistoricalTableEmptyCohort(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	table := BuildHistoricalTable(snapshotsFor(start, map[string][]int{"Z": {1}}, 1), map[string]bool{"A": true}, nil)
	if !table.Empty() || len(table.Dates) != 0 {
		t.Fatalf("expected empty table, got %+v", table)
	}
}
