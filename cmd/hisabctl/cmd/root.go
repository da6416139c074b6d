// Package cmd provides the hisabctl operator commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hisab/internal/backend"
	"hisab/internal/cli"
	"hisab/internal/config"
	"hisab/internal/log"
)

var (
	envFile string
	debug   bool

	appConfig *config.Config
	logger    *log.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hisabctl",
	Short: "Operate a hisab accounting book",
	Long: `hisabctl runs maintenance and reporting tasks against the book
configured through the environment (SQLITE_DB_PATH, BACKUP_DIR, ...).

Example:
  hisabctl migrate
  hisabctl backup
  hisabctl statement customer 12 --through 2081/82
  hisabctl aging supplier --as-of 2024-09-01`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		} else {
			cli.LoadEnvFile()
		}

		appConfig = config.Load()
		if err := appConfig.Validate(); err != nil {
			return err
		}

		cfg := log.DefaultConfig()
		cfg.Output = os.Stderr
		cfg.Level = log.ParseLevel(appConfig.LogLevel)
		if debug {
			cfg.Level = log.ParseLevel("debug")
		}
		logger = log.New(cfg)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "environment file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statementCmd)
	rootCmd.AddCommand(agingCmd)
	rootCmd.AddCommand(fiscalYearCmd)
}

// openBook wires the configured book. The caller must run Cleanup.
func openBook(ctx context.Context) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(appConfig)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).Create(ctx, bcfg)
}

func withBook(cmd *cobra.Command, fn func(context.Context, *backend.Result) error) error {
	ctx := cmd.Context()
	res, err := openBook(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Cleanup(); cerr != nil {
			logger.Error("Failed to close book", "error", cerr)
		}
	}()
	return fn(ctx, res)
}
