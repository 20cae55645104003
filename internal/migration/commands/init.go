package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func InitCmd(open DBOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize migration tracking table in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd, open)
			if err != nil {
				return err
			}

			if err := m.EnsureVersionTable(); err != nil {
				return fmt.Errorf("failed to create schema_migrations table: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migration system initialized successfully")
			return nil
		},
	}
}
