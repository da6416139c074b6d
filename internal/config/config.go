package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP bridge
	Port               string
	RateLimitPerMinute int

	// Storage
	SQLiteDBPath string
	DataDir      string

	// Backups
	BackupDir           string
	BackupFrequency     string
	BackupKeep          int
	BackupCheckInterval time.Duration
	BackupDebounce      time.Duration

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// PDF rendering (optional)
	GotenbergURL string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	ExportRetryInterval      time.Duration

	CompanyProfile string
	LogLevel       string
}

var backupFrequencies = []string{"off", "daily", "weekly", "monthly"}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/hisab.db"),
		DataDir:      getEnv("DATA_DIR", "./data/store"),

		BackupDir:           getEnv("BACKUP_DIR", "./data/backups"),
		BackupFrequency:     strings.ToLower(getEnv("BACKUP_FREQUENCY", "daily")),
		BackupKeep:          getEnvInt("BACKUP_KEEP", 14),
		BackupCheckInterval: getEnvDuration("BACKUP_CHECK_INTERVAL", time.Hour),
		BackupDebounce:      getEnvDuration("BACKUP_DEBOUNCE", 2*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "hisab"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GotenbergURL: strings.TrimRight(getEnv("GOTENBERG_URL", ""), "/"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ExportRetryInterval:      getEnvDuration("EXPORT_RETRY_INTERVAL", 5*time.Minute),

		CompanyProfile: getEnv("COMPANY_PROFILE", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
		errors = append(errors, msg)
	}
	if c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	if !contains(backupFrequencies, c.BackupFrequency) {
		errors = append(errors, fmt.Sprintf("invalid backup frequency '%s': must be one of %v", c.BackupFrequency, backupFrequencies))
	}
	if c.BackupFrequency != "off" {
		if c.BackupDir == "" {
			errors = append(errors, "backup directory cannot be empty when backups are enabled")
		}
		if c.BackupKeep < 1 {
			errors = append(errors, fmt.Sprintf("invalid backup keep %d: must be at least 1", c.BackupKeep))
		}
		if c.BackupCheckInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid backup check interval %v: must be at least 1 minute", c.BackupCheckInterval))
		}
		if c.BackupDebounce < time.Second {
			errors = append(errors, fmt.Sprintf("invalid backup debounce %v: must be at least 1 second", c.BackupDebounce))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GotenbergURL != "" {
		if u, err := url.Parse(c.GotenbergURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid Gotenberg URL '%s': must be an http(s) URL", c.GotenbergURL))
		}
	}

	if c.GoogleSpreadsheetID != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for Sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SheetsEnabled() && c.ExportRetryInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export retry interval %v: must be at least 1 second", c.ExportRetryInterval))
	}

	if c.CompanyProfile != "" {
		if _, err := os.Stat(c.CompanyProfile); err != nil {
			errors = append(errors, fmt.Sprintf("company profile not readable: %s", c.CompanyProfile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether fiscal-year summaries are exported.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err)
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
