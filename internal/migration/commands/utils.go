// Package commands provides the cobra subcommands that drive schema migrations.
package commands

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/migration"
)

// DBOpener returns the database the command should operate on.
type DBOpener func(cmd *cobra.Command) (*gorm.DB, error)

// MigrateCmd groups the migration subcommands under "migrate".
func MigrateCmd(open DBOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		InitCmd(open),
		UpCmd(open),
		DownCmd(open),
		StatusCmd(open),
		HistoryCmd(open),
		CheckCmd(open),
	)
	return cmd
}

func newMigrator(cmd *cobra.Command, open DBOpener) (*migration.Migrator, error) {
	db, err := open(cmd)
	if err != nil {
		return nil, err
	}
	return migration.NewMigrator(db), nil
}
