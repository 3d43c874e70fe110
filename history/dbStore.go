package history

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// DBStore keeps snapshots in MySQL. The day row carries a unique date, so
// the insert that wins the day row owns the snapshot.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.StockSnapshotDay{}, &models.StockSnapshotItem{})
}

func (s *DBStore) SaveDailySnapshot(ctx context.Context, date time.Time, snapshot map[string]int) (bool, error) {
	key := date.Format(models.SnapshotDateLayout)
	runId, _ := utils.GetRunIdFromContext(ctx)
	logger := config.GetLogger().WithField("date", key)

	saved := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		day := models.StockSnapshotDay{
			SnapshotDate: key,
			ItemCount:    len(snapshot),
			RunId:        runId,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&day)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		items := make([]models.StockSnapshotItem, 0, len(snapshot))
		for code, stock := range snapshot {
			items = append(items, models.StockSnapshotItem{
				SnapshotDate:     key,
				Codigo:           code,
				StockReferencial: stock,
			})
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(&items, insertBatchSize).Error; err != nil {
				return err
			}
		}
		saved = true
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "history", "DBStore.SaveDailySnapshot", "insert snapshot", key, err)
		return false, fmt.Errorf("save daily snapshot: %w", err)
	}
	if !saved {
		logger.Info("daily snapshot already exists, keeping the first one")
		return false, nil
	}
	logger.WithFields(logrus.Fields{"codes": len(snapshot), "backend": config.SnapshotStoreMySQL}).Info("daily snapshot saved")
	return true, nil
}

func (s *DBStore) LoadSnapshot(ctx context.Context, date time.Time) (map[string]int, error) {
	return s.loadByKey(ctx, date.Format(models.SnapshotDateLayout))
}

func (s *DBStore) loadByKey(ctx context.Context, key string) (map[string]int, error) {
	var items []models.StockSnapshotItem
	if err := s.db.WithContext(ctx).Where("snapshot_date = ?", key).Find(&items).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Codigo] = it.StockReferencial
	}
	return out, nil
}

func (s *DBStore) ListDates(ctx context.Context) ([]time.Time, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.StockSnapshotDay{}).
		Order("snapshot_date ASC").
		Pluck("snapshot_date", &keys).Error
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		d, err := models.ParseSnapshotDate(k)
		if err != nil {
			config.GetLogger().WithField("snapshot_date", k).Warn("skipping snapshot with unparseable date")
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *DBStore) LoadAll(ctx context.Context) ([]models.DatedSnapshot, error) {
	dates, err := s.ListDates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DatedSnapshot, 0, len(dates))
	for _, d := range dates {
		stock, err := s.loadByKey(ctx, d.Format(models.SnapshotDateLayout))
		if err != nil {
			return nil, err
		}
		out = append(out, models.DatedSnapshot{Date: d, Stock: stock})
	}
	return out, nil
}
