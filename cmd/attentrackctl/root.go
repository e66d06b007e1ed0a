package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"attentrack/internal/app"
	"attentrack/internal/config"
	"attentrack/internal/logger"
)

type options struct {
	configPath string
	jsonOutput bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "attentrackctl",
		Short: "Inspect and maintain the attendance store",
		Long: `attentrackctl talks to the same stores as the API server.

The relational database is tried first; when it cannot be reached the local
store is used, exactly as the server would.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newSeedCommand(opts))
	root.AddCommand(newStudentsCommand(opts))
	root.AddCommand(newReportCommand(opts))
	return root
}

// open loads configuration and builds the store. Logs go to stderr so
// command output stays clean.
func (o *options) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	l := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: os.Stderr})
	return app.New(cmd.Context(), cfg, l)
}

func (o *options) print(w io.Writer, v any, table func(*tabwriter.Writer)) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func closeApp(a *app.App, cmd *cobra.Command) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "close:", err)
	}
}
