package history

import (
	"context"
	"time"

	"github.com/mmdatafocus/stock_backend/models"
)

// Store persists one {codigo: stock_referencial} mapping per calendar date.
// Snapshots are append-only: the first write of a date wins.
type Store interface {
	// SaveDailySnapshot returns saved=false when the date already exists.
	SaveDailySnapshot(ctx context.Context, date time.Time, snapshot map[string]int) (bool, error)
	// LoadSnapshot returns an empty mapping when the date is absent.
	LoadSnapshot(ctx context.Context, date time.Time) (map[string]int, error)
	// ListDates returns every stored date, ascending.
	ListDates(ctx context.Context) ([]time.Time, error)
	// LoadAll returns every readable snapshot, ascending by date.
	LoadAll(ctx context.Context) ([]models.DatedSnapshot, error)
}

// Lookback loads the snapshots of yesterday and of one week before today.
// A missing or unreadable snapshot degrades to an empty mapping.
func Lookback(ctx context.Context, store Store, today time.Time) (yesterday, weekAgo map[string]int) {
	today = models.TruncateDay(today)
	yesterday = loadOrEmpty(ctx, store, today.AddDate(0, 0, -1))
	weekAgo = loadOrEmpty(ctx, store, today.AddDate(0, 0, -7))
	return yesterday, weekAgo
}
