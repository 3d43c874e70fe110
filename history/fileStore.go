package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	snapshotPrefix = "stock_snapshot_"
	snapshotSuffix = ".json"
)

// FileStore keeps one stock_snapshot_YYYY-MM-DD.json per date in dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func SnapshotFileName(date time.Time) string {
	return snapshotPrefix + date.Format(models.SnapshotDateLayout) + snapshotSuffix
}

func (s *FileStore) path(date time.Time) string {
	return filepath.Join(s.dir, SnapshotFileName(date))
}

func (s *FileStore) SaveDailySnapshot(ctx context.Context, date time.Time, snapshot map[string]int) (bool, error) {
	logger := config.GetLogger().WithField("date", date.Format(models.SnapshotDateLayout))
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, err := utils.MarshalIndentJSON(snapshot)
	if err != nil {
		return false, err
	}
	target := s.path(date)
	if err := utils.CreateFileExclusive(target, data); err != nil {
		if errors.Is(err, utils.ErrFileExists) {
			logger.Info("daily snapshot already exists, keeping the first one")
			return false, nil
		}
		return false, fmt.Errorf("save daily snapshot: %w", err)
	}
	logger.WithFields(logrus.Fields{"path": target, "codes": len(snapshot)}).Info("daily snapshot saved")
	return true, nil
}

func (s *FileStore) LoadSnapshot(ctx context.Context, date time.Time) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readSnapshotFile(s.path(date))
}

func (s *FileStore) ListDates(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, snapshotPrefix+"*"+snapshotSuffix))
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(matches))
	for _, m := range matches {
		raw := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), snapshotPrefix), snapshotSuffix)
		date, err := models.ParseSnapshotDate(raw)
		if err != nil {
			config.GetLogger().WithField("path", m).Warn("skipping snapshot with unparseable date")
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *FileStore) LoadAll(ctx context.Context) ([]models.DatedSnapshot, error) {
	dates, err := s.ListDates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DatedSnapshot, 0, len(dates))
	for _, date := range dates {
		stock, err := readSnapshotFile(s.path(date))
		if err != nil {
			config.GetLogger().WithField("date", date.Format(models.SnapshotDateLayout)).Warnf("skipping malformed snapshot: %v", err)
			continue
		}
		out = append(out, models.DatedSnapshot{Date: date, Stock: stock})
	}
	return out, nil
}

// readSnapshotFile decodes a {codigo: stock} file. A missing file is an
// empty mapping. Values written as floats are truncated.
func readSnapshotFile(path string) (map[string]int, error) {
	var raw map[string]float64
	if err := utils.ReadJSON(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	out := make(map[string]int, len(raw))
	for code, v := range raw {
		out[strings.TrimSpace(code)] = int(v)
	}
	return out, nil
}

func loadOrEmpty(ctx context.Context, store Store, date time.Time) map[string]int {
	m, err := store.LoadSnapshot(ctx, date)
	if err != nil {
		config.GetLogger().WithField("date", date.Format(models.SnapshotDateLayout)).Warnf("historical snapshot unavailable, using 0: %v", err)
		return map[string]int{}
	}
	if len(m) == 0 {
		config.GetLogger().WithField("date", date.Format(models.SnapshotDateLayout)).Warn("no historical snapshot for date, using 0")
	}
	return m
}
