package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hisab/internal/backend"
	"hisab/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := storage.RunMigrations(appConfig.SQLiteDBPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, appConfig.SQLiteDBPath)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [dest]",
	Short: "Write a consistent copy of the book",
	Long: `Without dest the backup goes to BACKUP_DIR and old backups are pruned
to BACKUP_KEEP. An existing dest is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBook(cmd, func(ctx context.Context, res *backend.Result) error {
			if len(args) == 1 {
				if err := res.Book.Backup(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), args[0])
				return nil
			}
			if res.Backups == nil {
				return errors.New("no backup directory configured; pass a destination")
			}
			path, err := res.Backups.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

var listBackups bool

var restoreCmd = &cobra.Command{
	Use:   "restore <src>",
	Short: "Replace the book with a backup",
	Args: func(cmd *cobra.Command, args []string) error {
		if listBackups {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBook(cmd, func(ctx context.Context, res *backend.Result) error {
			if listBackups {
				if res.Backups == nil {
					return errors.New("no backup directory configured")
				}
				files, err := res.Backups.List()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", f.Path, f.Size, f.ModTime.Format("2006-01-02 15:04"))
				}
				return nil
			}
			if err := res.Book.Restore(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored from %s\n", args[0])
			return nil
		})
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&listBackups, "list", false, "list available backups instead of restoring")
}
