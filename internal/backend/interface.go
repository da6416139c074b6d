package backend

import (
	"context"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/printing"
	"hisab/internal/services"
	"hisab/internal/sheets"
	"hisab/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the wired book and its collaborators. Events and Backups are
// nil when the matching feature is disabled.
type Result struct {
	Book     *services.AccountingService
	Repo     *storage.SQLiteRepository
	Renderer *printing.Renderer
	Data     *storage.DataStore
	Backups  *services.BackupScheduler
	Exporter sheets.LedgerExporter
	Events   *amqp.Client
	Cleanup  CleanupFunc
}

// Factory builds the book from configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds everything needed to open a book.
type Config struct {
	SQLiteDBPath string
	DataDir      string

	CompanyProfile string

	BackupDir           string
	BackupFrequency     services.BackupFrequency
	BackupKeep          int
	BackupCheckInterval time.Duration

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GotenbergURL string

	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// ExporterType names where fiscal-year summaries are exported.
type ExporterType string

const (
	SheetsExporter ExporterType = "sheets"
	MemoryExporter ExporterType = "memory"
)

// String implements fmt.Stringer
func (t ExporterType) String() string {
	return string(t)
}

// Exporter reports which exporter the config selects.
func (c Config) Exporter() ExporterType {
	if c.GoogleSpreadsheetID != "" {
		return SheetsExporter
	}
	return MemoryExporter
}
