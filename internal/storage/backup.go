package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotSQLite      = errors.New("storage: file is not an SQLite database")
	ErrCorruptBackup  = errors.New("storage: backup failed integrity check")
	ErrBackupExists   = errors.New("storage: backup destination already exists")
	sqliteHeaderMagic = []byte("SQLite format 3\x00")
)

// Backup writes a consistent copy of the database to dest with VACUUM INTO.
// dest must not exist.
func (r *SQLiteRepository) Backup(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	db, release, err := r.acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	slog.InfoContext(ctx, "Database backed up", "dest", dest)
	return nil
}

// Restore replaces the live database with the backup at src. The backup is
// verified first; the previous database is kept next to the live file with a
// ".pre-restore" suffix until the next restore.
func (r *SQLiteRepository) Restore(ctx context.Context, src string) error {
	if err := VerifyBackup(ctx, src); err != nil {
		return err
	}

	staged := r.path + ".restore"
	if err := copyFile(src, staged); err != nil {
		return fmt.Errorf("stage backup: %w", err)
	}
	defer os.Remove(staged)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("close live database: %w", err)
		}
		r.db = nil
	}

	previous := r.path + ".pre-restore"
	os.Remove(previous)
	if err := os.Rename(r.path, previous); err != nil && !errors.Is(err, os.ErrNotExist) {
		return r.reopenAfter(fmt.Errorf("move live database aside: %w", err))
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(r.path + suffix)
	}
	if err := os.Rename(staged, r.path); err != nil {
		os.Rename(previous, r.path)
		return r.reopenAfter(fmt.Errorf("swap in backup: %w", err))
	}

	db, err := openDB(r.path)
	if err != nil {
		os.Remove(r.path)
		os.Rename(previous, r.path)
		return r.reopenAfter(fmt.Errorf("open restored database: %w", err))
	}
	r.db = db
	slog.InfoContext(ctx, "Database restored", "source", src, "previous", previous)
	return nil
}

// reopenAfter tries to bring the live database back after a failed restore
// and returns cause. Must be called with mu held.
func (r *SQLiteRepository) reopenAfter(cause error) error {
	db, err := openDB(r.path)
	if err != nil {
		return fmt.Errorf("%w (reopen: %v)", cause, err)
	}
	r.db = db
	return cause
}

// VerifyBackup checks the SQLite header and runs PRAGMA integrity_check on a
// read-only connection to path.
func VerifyBackup(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	header := make([]byte, len(sqliteHeaderMagic))
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil || !bytes.Equal(header, sqliteHeaderMagic) {
		return fmt.Errorf("%w: %s", ErrNotSQLite, path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBackup, err)
	}
	if !strings.EqualFold(result, "ok") {
		return fmt.Errorf("%w: %s", ErrCorruptBackup, result)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
