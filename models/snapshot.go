package models

import (
	"time"
)

// SnapshotDateLayout is the calendar-date format of snapshot file names and keys.
const SnapshotDateLayout = "2006-01-02"

// DatedSnapshot is the referential stock of every code on one calendar date.
type DatedSnapshot struct {
	Date  time.Time
	Stock map[string]int
}

func (d DatedSnapshot) DateKey() string {
	return d.Date.Format(SnapshotDateLayout)
}

// TruncateDay drops the clock part and keeps the location of t.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func ParseSnapshotDate(s string) (time.Time, error) {
	return time.ParseInLocation(SnapshotDateLayout, s, time.Local)
}

// StockSnapshotDay marks a calendar date as written. The unique date key is
// what makes the first write of the day win.
type StockSnapshotDay struct {
	ID           int       `gorm:"primary_key" json:"id"`
	SnapshotDate string    `gorm:"size:10;uniqueIndex;not null" json:"snapshot_date"`
	ItemCount    int       `gorm:"not null;default:0" json:"item_count"`
	RunId        string    `gorm:"size:64" json:"run_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type StockSnapshotItem struct {
	ID               int    `gorm:"primary_key" json:"id"`
	SnapshotDate     string `gorm:"size:10;index:idx_snapshot_item,unique;not null" json:"snapshot_date"`
	Codigo           string `gorm:"size:64;index:idx_snapshot_item,unique;not null" json:"codigo"`
	StockReferencial int    `gorm:"not null;default:0" json:"stock_referencial"`
}
