package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func CheckCmd(open DBOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare applied migrations with the live schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			m, err := newMigrator(cmd, open)
			if err != nil {
				return err
			}

			drifts, err := m.Check()
			if err != nil {
				return fmt.Errorf("failed to check schema: %w", err)
			}

			if len(drifts) == 0 {
				fmt.Fprintln(out, "Schema matches applied migrations.")
				return nil
			}
			for _, d := range drifts {
				fmt.Fprintln(out, d.String())
			}
			return fmt.Errorf("schema drift: %d difference(s)", len(drifts))
		},
	}
}
