package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func DownCmd(open DBOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd, open)
			if err != nil {
				return err
			}

			reverted, err := m.Down()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully reverted migration: %s\n", reverted.Name)
			return nil
		},
	}
}
