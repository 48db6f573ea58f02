package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/config"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
	"github.com/felixgeelhaar/stepwise/pkg/storage"
	"github.com/felixgeelhaar/stepwise/pkg/storage/sqlite"
)

// Workspace bundles the config and storage slot for a root directory.
type Workspace struct {
	Root   string
	Config *config.Config
	Slot   tasks.Slot

	close func() error
}

func NewWorkspace(ctx context.Context, root string, logger *slog.Logger) (*Workspace, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: root, Config: cfg, close: func() error { return nil }}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		slot, err := sqlite.Open(ctx, sqlite.SlotConfig{
			DBPath: cfg.Storage.SQLitePath,
			Name:   cfg.Storage.Slot,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		ws.Slot = slot
		ws.close = slot.Close
	default:
		ws.Slot = storage.NewFileSlot(root, cfg.Storage.Slot)
	}

	return ws, nil
}

// Close releases the storage backend.
func (w *Workspace) Close() error {
	return w.close()
}
