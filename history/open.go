package history

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/stock_backend/config"
)

// Open returns the snapshot store selected by SNAPSHOT_BACKEND.
func Open(ctx context.Context, settings *config.Settings) (Store, error) {
	switch settings.SnapshotStore {
	case "", config.SnapshotStoreFile:
		return NewFileStore(settings.HistoricosDir), nil
	case config.SnapshotStoreMySQL:
		db := config.GetDB()
		if db == nil {
			var err error
			db, err = config.ConnectDatabase(ctx, 3)
			if err != nil {
				return nil, err
			}
		}
		store := NewDBStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate snapshot tables: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown SNAPSHOT_BACKEND %q", settings.SnapshotStore)
}
