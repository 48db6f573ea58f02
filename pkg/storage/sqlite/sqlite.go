// Package sqlite stores task list slots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
	"github.com/felixgeelhaar/stepwise/pkg/storage/sqlite/migrations"
)

// SlotConfig is the configuration for a SQLite backed slot.
type SlotConfig struct {
	DBPath string
	Name   string
	Logger *slog.Logger
	// Now is used for updated_at. Defaults to time.Now.
	Now func() time.Time
}

func (c *SlotConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Name == "" {
		c.Name = tasks.DefaultSlot
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.Logger = c.Logger.With("svc", "storage.SQLite")
	return nil
}

// Slot keeps one named blob in the slots table.
type Slot struct {
	db     *sql.DB
	name   string
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (creating if needed) the database and migrates it.
func Open(ctx context.Context, cfg SlotConfig) (*Slot, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debug("sqlite slot initialized", "path", cfg.DBPath, "slot", cfg.Name)
	return &Slot{db: db, name: cfg.Name, now: cfg.Now, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (s *Slot) Close() error { return s.db.Close() }

func (s *Slot) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM slots WHERE name = ?`, s.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("could not read slot %s: %w", s.name, err)
	}
	return data, nil
}

func (s *Slot) Write(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO slots (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, s.name, data, s.now().Unix()); err != nil {
		return fmt.Errorf("could not write slot %s: %w", s.name, err)
	}
	s.logger.Debug("slot written", "slot", s.name, "bytes", len(data))
	return nil
}

func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("could not clear slot %s: %w", s.name, err)
	}
	return nil
}
