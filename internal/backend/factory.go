package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/cache"
	"hisab/internal/config"
	"hisab/internal/log"
	"hisab/internal/printing"
	"hisab/internal/services"
	"hisab/internal/sheets"
	gsheet "hisab/internal/sheets/google"
	"hisab/internal/sheets/memory"
	"hisab/internal/storage"
)

const cacheSweepInterval = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	opts   []services.Option
}

// NewFactory creates a new factory. Extra service options are applied after
// the publisher option.
func NewFactory(logger *log.Logger, opts ...services.Option) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		opts:   opts,
	}
}

// Create opens the database and wires the optional collaborators. An AMQP
// connection failure disables events instead of failing startup.
func (f *DefaultFactory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	company, err := config.LoadCompany(cfg.CompanyProfile)
	if err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			events = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	opts := make([]services.Option, 0, len(f.opts)+1)
	if events != nil {
		opts = append(opts, services.WithPublisher(events))
	}
	opts = append(opts, f.opts...)
	book := services.NewAccountingService(repo, company, opts...)

	// From here on book.Close releases the repository and the AMQP client.
	fail := func(err error) (*Result, error) {
		if cerr := book.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	renderer, err := f.createRenderer(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	data, err := storage.NewDataStore(cfg.DataDir)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize data store: %w", err))
	}

	var backups *services.BackupScheduler
	if cfg.BackupDir != "" {
		backups, err = services.NewBackupScheduler(book, services.BackupSchedulerConfig{
			Dir:           cfg.BackupDir,
			Frequency:     cfg.BackupFrequency,
			Keep:          cfg.BackupKeep,
			CheckInterval: cfg.BackupCheckInterval,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize backup scheduler: %w", err))
		}
	}

	exporter, err := f.createExporter(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	caches := cache.NewManager()
	if c, ok := book.ReportCache().(cache.Cleaner); ok {
		caches.Register(c)
	}
	caches.StartCleanup(cacheSweepInterval)

	f.logger.Info("Initialized book",
		"db_path", cfg.SQLiteDBPath,
		"company", company.Name,
		"amqp_enabled", events != nil,
		"pdf_enabled", renderer.CanPDF(),
		"exporter", cfg.Exporter())

	return &Result{
		Book:     book,
		Repo:     repo,
		Renderer: renderer,
		Data:     data,
		Backups:  backups,
		Exporter: exporter,
		Events:   events,
		Cleanup: func() error {
			caches.Stop()
			return book.Close()
		},
	}, nil
}

func (f *DefaultFactory) createRenderer(ctx context.Context, cfg Config) (*printing.Renderer, error) {
	if cfg.GotenbergURL == "" {
		return printing.NewRenderer(nil)
	}
	g := printing.NewGotenberg(cfg.GotenbergURL)
	if err := g.Ping(ctx); err != nil {
		f.logger.Warn("PDF converter not reachable yet",
			"url", cfg.GotenbergURL,
			"error", err)
	}
	return printing.NewRenderer(g)
}

func (f *DefaultFactory) createExporter(ctx context.Context, cfg Config) (sheets.LedgerExporter, error) {
	if cfg.Exporter() == MemoryExporter {
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return cli, nil
}
