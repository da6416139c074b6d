package backend

import (
	"fmt"

	"hisab/internal/config"
	"hisab/internal/services"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DataDir:      appConfig.DataDir,

		CompanyProfile: appConfig.CompanyProfile,

		BackupDir:           appConfig.BackupDir,
		BackupFrequency:     services.BackupFrequency(appConfig.BackupFrequency),
		BackupKeep:          appConfig.BackupKeep,
		BackupCheckInterval: appConfig.BackupCheckInterval,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GotenbergURL: appConfig.GotenbergURL,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.BackupFrequency != "" && c.BackupFrequency != services.BackupOff {
		if _, err := services.GetDuenessChecker(c.BackupFrequency); err != nil {
			return err
		}
		if c.BackupDir == "" {
			return fmt.Errorf("backup directory is required when backups are enabled")
		}
	}
	if c.BackupKeep < 0 {
		return fmt.Errorf("backup keep must not be negative")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP_URL is set")
	}
	if c.Exporter() == SheetsExporter && c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("either a service account file or JSON must be provided for the sheets exporter")
	}
	return nil
}
