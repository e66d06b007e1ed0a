package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type statusView struct {
	State      string `json:"state"`
	Backend    string `json:"backend"`
	InitError  string `json:"initError,omitempty"`
	Relational bool   `json:"relational"`
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Initialize the store and print the backend serving calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)

			state := a.Service.Init(cmd.Context())
			view := statusView{
				State:      state.String(),
				Backend:    string(state.Backend()),
				Relational: a.Service.RelationalHealthy(cmd.Context()),
			}
			if err := a.Service.InitErr(); err != nil {
				view.InitError = err.Error()
			}
			return opts.print(cmd.OutOrStdout(), view, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "state:\t%s\n", view.State)
				fmt.Fprintf(tw, "backend:\t%s\n", view.Backend)
				fmt.Fprintf(tw, "relational reachable:\t%t\n", view.Relational)
				if view.InitError != "" {
					fmt.Fprintf(tw, "init error:\t%s\n", view.InitError)
				}
			})
		},
	}
}
