package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func StatusCmd(open DBOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			m, err := newMigrator(cmd, open)
			if err != nil {
				return err
			}

			applied, err := m.GetAppliedVersions()
			if err != nil {
				return fmt.Errorf("failed to get applied migrations: %w", err)
			}

			fmt.Fprintf(out, "%-16s  %-30s  %-8s\n", "Version", "Name", "Status")
			for _, mr := range m.Migrations() {
				status := "Pending"
				if applied[mr.Version] {
					status = "Applied"
				}
				fmt.Fprintf(out, "%-16s  %-30s  %-8s\n", mr.Version, mr.Name, status)
			}

			return nil
		},
	}
}
