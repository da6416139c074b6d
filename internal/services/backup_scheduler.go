package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const backupPrefix = "hisab-"

// BackupSchedulerConfig holds configuration for the backup scheduler.
type BackupSchedulerConfig struct {
	Dir       string
	Frequency BackupFrequency
	// Keep is how many backups survive pruning. Zero keeps everything.
	Keep int
	// CheckInterval is how often dueness is evaluated (default: 1h).
	CheckInterval time.Duration
}

func DefaultBackupSchedulerConfig(dir string) BackupSchedulerConfig {
	return BackupSchedulerConfig{
		Dir:           dir,
		Frequency:     BackupDaily,
		Keep:          14,
		CheckInterval: time.Hour,
	}
}

// Backupper writes a database copy to dest.
type Backupper interface {
	Backup(ctx context.Context, dest string) error
}

// BackupFile describes one backup in the backup directory.
type BackupFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// BackupScheduler takes automatic backups at the configured frequency and
// prunes old ones.
type BackupScheduler struct {
	book    Backupper
	checker DuenessChecker
	config  BackupSchedulerConfig
	now     func() time.Time

	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBackupScheduler(book Backupper, config BackupSchedulerConfig) (*BackupScheduler, error) {
	if config.Frequency == "" {
		config.Frequency = BackupDaily
	}
	checker, err := GetDuenessChecker(config.Frequency)
	if err != nil {
		return nil, err
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Hour
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	return &BackupScheduler{book: book, checker: checker, config: config, now: time.Now}, nil
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("backup scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Backup scheduler started",
		"frequency", s.config.Frequency,
		"keep", s.config.Keep,
		"dir", s.config.Dir)
	return nil
}

// Stop waits for the loop to finish or ctx to expire.
func (s *BackupScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Backup scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Backup scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *BackupScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *BackupScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.backupIfDue(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.backupIfDue(ctx)
		}
	}
}

func (s *BackupScheduler) backupIfDue(ctx context.Context) {
	files, err := s.List()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list backups", "error", err)
		return
	}
	var last time.Time
	if len(files) > 0 {
		last = files[0].ModTime
	}
	if !s.checker.IsDue(last, s.now()) {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled backup failed", "error", err)
	}
}

// RunOnce takes a backup now and prunes old ones. It returns the new file's
// path.
func (s *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	dest := filepath.Join(s.config.Dir, BackupName(s.now()))
	if err := s.book.Backup(ctx, dest); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	if removed, err := s.prune(); err != nil {
		slog.WarnContext(ctx, "Failed to prune backups", "error", err)
	} else if removed > 0 {
		slog.InfoContext(ctx, "Pruned old backups", "removed", removed)
	}
	return dest, nil
}

// List returns the backups in the directory, newest first.
func (s *BackupScheduler) List() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []BackupFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || filepath.Ext(name) != ".db" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupFile{
			Name:    name,
			Path:    filepath.Join(s.config.Dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b BackupFile) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return out, nil
}

func (s *BackupScheduler) prune() (int, error) {
	if s.config.Keep <= 0 {
		return 0, nil
	}
	files, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files[min(s.config.Keep, len(files)):] {
		if err := os.Remove(f.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// BackupName is the file name of a backup taken at t. The random suffix keeps
// names unique within the same second.
func BackupName(t time.Time) string {
	return fmt.Sprintf("%s%s-%s.db", backupPrefix, t.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
