package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hisab/internal/core"
)

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	db, release, err := r.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	var v string
	err = db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty setting key", core.ErrValidation)
	}
	db, release, err := r.acquire()
	if err != nil {
		return err
	}
	defer release()

	_, err = db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.timestamp())
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// Settings returns every user-visible setting. Internal sequence counters
// are left out.
func (r *SQLiteRepository) Settings(ctx context.Context) (map[string]string, error) {
	db, release, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings WHERE key NOT LIKE 'sequence.%' ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LogActivity(ctx context.Context, e core.ActivityEntry) (core.ActivityEntry, error) {
	now := r.timestamp()
	db, release, err := r.acquire()
	if err != nil {
		return core.ActivityEntry{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, `INSERT INTO activity_log (action, entity, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?)`, e.Action, e.Entity, e.EntityID, e.Details, now)
	if err != nil {
		return core.ActivityEntry{}, fmt.Errorf("log activity: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.ActivityEntry{}, fmt.Errorf("log activity: %w", err)
	}
	e.CreatedAt = parseTime(now)
	return e, nil
}

// ListActivity returns one page of the activity log, newest first. Pages
// start at 1.
func (r *SQLiteRepository) ListActivity(ctx context.Context, page, pageSize int) ([]core.ActivityEntry, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	db, release, err := r.acquire()
	if err != nil {
		return nil, false, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT id, action, entity, entity_id, details, created_at
		FROM activity_log ORDER BY id DESC LIMIT ? OFFSET ?`, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, false, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityEntry
	for rows.Next() {
		var (
			e       core.ActivityEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.Details, &created); err != nil {
			return nil, false, fmt.Errorf("scan activity: %w", err)
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("list activity: %w", err)
	}
	hasNext := len(out) > pageSize
	if hasNext {
		out = out[:pageSize]
	}
	return out, hasNext, nil
}
