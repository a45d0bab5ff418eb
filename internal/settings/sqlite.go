package settings

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/routing"
)

// SQLite stores the settings in a local database file.
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite opens dsn and creates the tables. ":memory:" works for tests.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	// One connection: sqlite has a single writer and each ":memory:" connection is its
	// own database.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping settings db: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS printers(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  ip TEXT NOT NULL UNIQUE,
  model TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'online' CHECK (status IN ('online','offline','error')),
  is_default INTEGER NOT NULL DEFAULT 0,
  position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS routes(
  category TEXT PRIMARY KEY,
  printer_id TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create settings schema: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (routing.Snapshot, error) {
	return load(ctx, s.db)
}

func load(ctx context.Context, q sqlx.QueryerContext) (routing.Snapshot, error) {
	var snap routing.Snapshot
	err := sqlx.SelectContext(ctx, q, &snap.Printers, `
  SELECT id, name, ip, model, status, is_default
  FROM printers
  ORDER BY position
`)
	if err != nil {
		return routing.Snapshot{}, fmt.Errorf("select printers: %w", err)
	}
	err = sqlx.SelectContext(ctx, q, &snap.Routes, `
  SELECT category, printer_id
  FROM routes
  ORDER BY position
`)
	if err != nil {
		return routing.Snapshot{}, fmt.Errorf("select routes: %w", err)
	}
	return snap, nil
}

// Update rewrites both tables inside one transaction.
func (s *SQLite) Update(ctx context.Context, fn func(routing.Snapshot) (routing.Snapshot, error)) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	snap, err := load(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(snap)
	if err != nil {
		return err
	}
	if err := replace(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings update: %w", err)
	}
	return nil
}

func replace(ctx context.Context, tx *sqlx.Tx, snap routing.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM printers`); err != nil {
		return fmt.Errorf("clear printers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM routes`); err != nil {
		return fmt.Errorf("clear routes: %w", err)
	}
	for i, p := range snap.Printers {
		_, err := tx.ExecContext(ctx, `
  INSERT INTO printers(id, name, ip, model, status, is_default, position)
  VALUES(?, ?, ?, ?, ?, ?, ?)
`, p.ID, p.Name, p.IP, p.Model, statusOrOnline(p.Status), p.IsDefault, i)
		if err != nil {
			return fmt.Errorf("insert printer %s: %w", p.ID, err)
		}
	}
	for i, r := range snap.Routes {
		_, err := tx.ExecContext(ctx, `
  INSERT INTO routes(category, printer_id, position)
  VALUES(?, ?, ?)
`, r.Category, r.PrinterID, i)
		if err != nil {
			return fmt.Errorf("insert route %s: %w", r.Category, err)
		}
	}
	return nil
}

func statusOrOnline(s model.PrinterStatus) string {
	if s == "" {
		return string(model.PrinterOnline)
	}
	return string(s)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
