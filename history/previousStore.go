package history

import (
	"context"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/utils"
)

// PreviousStore holds the referential stock of the last successful run.
// It lives in the state dir, outside the temp cleanup patterns.
type PreviousStore struct {
	path string
}

func NewPreviousStore(path string) *PreviousStore {
	return &PreviousStore{path: path}
}

// Load returns an empty mapping on the first run. An unreadable file is
// logged and treated the same way, so the next successful run rewrites it.
func (s *PreviousStore) Load(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := readSnapshotFile(s.path)
	if err != nil {
		config.GetLogger().WithField("path", s.path).Warnf("previous stock unreadable, stock_antes defaults to 0: %v", err)
		return map[string]int{}, nil
	}
	if len(m) == 0 {
		config.GetLogger().WithField("path", s.path).Info("no previous stock found, stock_antes defaults to 0")
	}
	return m, nil
}

// Save replaces the previous-run mapping atomically.
func (s *PreviousStore) Save(ctx context.Context, stock map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := utils.WriteJSONAtomic(s.path, stock); err != nil {
		return err
	}
	config.GetLogger().WithField("codes", len(stock)).Info("previous stock saved")
	return nil
}
