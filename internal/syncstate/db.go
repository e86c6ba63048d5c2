package syncstate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB persists change-feed state between runs: the sync token to resume from
// and the log of changes already seen, keyed by profile.
type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &DB{db: db}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return instance, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_states (
	profile TEXT PRIMARY KEY,
	sync_token TEXT NOT NULL,
	last_sync_time INTEGER NOT NULL,
	total_changes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS change_log (
	profile TEXT NOT NULL,
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL,
	name TEXT,
	parent_id TEXT,
	is_folder INTEGER NOT NULL DEFAULT 0,
	is_delete INTEGER NOT NULL DEFAULT 0,
	last_modified TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_change_log_profile ON change_log(profile, seq);
CREATE INDEX IF NOT EXISTS idx_change_log_item ON change_log(profile, item_id);
`
