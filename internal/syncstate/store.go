package syncstate

import (
	"context"
	"database/sql"
	"time"

	"github.com/jthake/odrv/internal/types"
)

// State is the persisted resume point for one profile's change feed
type State struct {
	Profile      string
	SyncToken    string
	LastSyncTime time.Time
	TotalChanges int64
}

// GetState returns the stored state for a profile, or nil when the profile
// has never synced
func (d *DB) GetState(ctx context.Context, profile string) (*State, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT profile, sync_token, last_sync_time, total_changes
		FROM sync_states WHERE profile = ?
	`, profile)

	var state State
	var lastSync int64
	err := row.Scan(&state.Profile, &state.SyncToken, &lastSync, &state.TotalChanges)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	state.LastSyncTime = time.Unix(lastSync, 0)
	return &state, nil
}

// RecordSync stores the new sync token and appends the walked changes to the
// change log in a single transaction, so a partial write can never leave the
// token ahead of the log.
func (d *DB) RecordSync(ctx context.Context, profile, syncToken string, items []types.DeltaItem) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_states (profile, sync_token, last_sync_time, total_changes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			sync_token=excluded.sync_token,
			last_sync_time=excluded.last_sync_time,
			total_changes=sync_states.total_changes + excluded.total_changes
	`, profile, syncToken, time.Now().Unix(), len(items))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO change_log (profile, item_id, name, parent_id, is_folder, is_delete, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx, profile, item.ID, item.Name, item.ParentID,
			boolToInt(item.IsFolder), boolToInt(item.IsDelete), item.LastModified)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListChanges returns the most recent logged changes for a profile, newest
// first, capped at limit (0 means no cap)
func (d *DB) ListChanges(ctx context.Context, profile string, limit int) (items []types.DeltaItem, err error) {
	query := `
		SELECT item_id, name, parent_id, is_folder, is_delete, last_modified
		FROM change_log WHERE profile = ? ORDER BY seq DESC
	`
	args := []interface{}{profile}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var item types.DeltaItem
		var isFolder, isDelete int
		if err := rows.Scan(&item.ID, &item.Name, &item.ParentID, &isFolder, &isDelete, &item.LastModified); err != nil {
			return nil, err
		}
		item.IsFolder = isFolder != 0
		item.IsDelete = isDelete != 0
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Reset drops the stored token and change log for a profile; the next sync
// walks the feed from scratch
func (d *DB) Reset(ctx context.Context, profile string) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sync_states WHERE profile = ?`, profile); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM change_log WHERE profile = ?`, profile); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
