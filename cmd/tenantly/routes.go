package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/tenantly/internal/guard"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table used for navigation decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tAUTH\tROLE\tREDIRECT")
			for _, r := range guard.DefaultRoutes().All() {
				access := "public"
				switch {
				case r.Entry:
					access = "entry"
				case r.RequiresAuth:
					access = "required"
				}
				role := string(r.Role)
				if role == "" {
					role = "-"
				}
				redirect := r.Redirect
				if redirect == "" {
					redirect = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Path, access, role, redirect)
			}
			return w.Flush()
		},
	}
}
