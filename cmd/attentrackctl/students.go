package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStudentsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "students",
		Short: "List the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)

			students, err := a.Service.ListStudents(cmd.Context())
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), students, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tROLL\tNAME")
				for _, st := range students {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", st.ID, st.RollNumber, st.Name)
				}
			})
		},
	}
}
