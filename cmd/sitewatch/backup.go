package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <backup_file_path>",
		Short: "Copy the whole store to a file",
		Long: `Write the entire status store to the given path, in the same format as
the store itself.

Example:
  sitewatch backup backups/2024-05-12.json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: sitewatch backup <backup_file_path>")
				return nil
			}

			m, _, err := root.newMonitor(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Backup(args[0]); err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			fmt.Fprintf(out, "Backup created successfully at: %s\n", args[0])
			return nil
		},
	}
}

func newRestoreCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup_file_path>",
		Short: "Merge a backup into the store",
		Long: `Append every record in the backup after the store's current content.

Restore is additive: nothing already in the store is removed, so restoring
the same backup twice records its statuses twice. A file that is not a
status store is rejected and the store is left untouched.

Example:
  sitewatch restore backups/2024-05-12.json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: sitewatch restore <backup_file_path>")
				return nil
			}

			m, _, err := root.newMonitor(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			n, err := m.Restore(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("restore aborted, store left unchanged: %w", err)
			}
			fmt.Fprintf(out, "Restore completed successfully from: %s (%d records merged)\n", args[0], n)
			return nil
		},
	}
}
