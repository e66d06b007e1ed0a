package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"attentrack/internal/seed"
)

func newSeedCommand(opts *options) *cobra.Command {
	var records int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample roster and, optionally, sample sessions",
		Long: `Adds the 50 sample students whose roll numbers are not taken yet.

With --records, that many sample sessions dated within the last three weeks
are saved as well.`,
		Example: `  attentrackctl seed
  attentrackctl seed --records 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if records < 0 {
				return fmt.Errorf("--records must not be negative")
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)
			ctx := cmd.Context()

			if err := (seed.Roster{}).SeedStudents(ctx, a.Service); err != nil {
				return err
			}
			students, err := a.Service.ListStudents(ctx)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			for _, rec := range seed.Records(rng, students, time.Now(), records) {
				if _, err := a.Service.SaveRecord(ctx, rec); err != nil {
					return fmt.Errorf("save %s: %w", rec.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d students, %d sessions saved via %s store\n",
				len(students), records, a.Service.State().Backend())
			return nil
		},
	}
	cmd.Flags().IntVar(&records, "records", 0, "number of sample sessions to generate")
	return cmd
}
