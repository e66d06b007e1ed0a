package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"attentrack/internal/attendance"
	"attentrack/internal/report"
)

type reportFlags struct {
	rng    string
	query  string
	days   int
	offset int
}

func newReportCommand(opts *options) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print attendance reports",
	}
	cmd.PersistentFlags().StringVar(&flags.rng, "range", "week", "time range: week, month or all")

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Overall status distribution",
		Args:  cobra.NoArgs,
		RunE: withRecords(opts, flags, func(cmd *cobra.Command, d reportData) error {
			s := report.Summarize(d.records)
			return opts.print(cmd.OutOrStdout(), s, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "sessions:\t%d\n", s.Sessions)
				fmt.Fprintf(tw, "present:\t%d\t%d%%\n", s.Present, s.PresentPercent)
				fmt.Fprintf(tw, "absent:\t%d\t%d%%\n", s.Absent, s.AbsentPercent)
				fmt.Fprintf(tw, "late:\t%d\t%d%%\n", s.Late, s.LatePercent)
			})
		}),
	})

	daily := &cobra.Command{
		Use:   "daily",
		Short: "Present percentage per day",
		Args:  cobra.NoArgs,
		RunE: withRecords(opts, flags, func(cmd *cobra.Command, d reportData) error {
			days := report.Daily(d.all, d.today, flags.days)
			return opts.print(cmd.OutOrStdout(), days, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "DATE\tDAY\tPRESENT\tABSENT\tLATE\tTOTAL")
				for _, day := range days {
					fmt.Fprintf(tw, "%s\t%s\t%d%%\t%d%%\t%d%%\t%d\n",
						day.Date, day.Label, day.PresentPercent, day.AbsentPercent, day.LatePercent, day.Total)
				}
			})
		}),
	}
	daily.Flags().IntVar(&flags.days, "days", 7, "number of days ending today")
	cmd.AddCommand(daily)

	students := &cobra.Command{
		Use:   "students",
		Short: "Attendance rate per student, best first",
		Args:  cobra.NoArgs,
		RunE: withRecords(opts, flags, func(cmd *cobra.Command, d reportData) error {
			rates := report.ByStudent(d.students, d.records, flags.query)
			return opts.print(cmd.OutOrStdout(), rates, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ROLL\tNAME\tPRESENT\tABSENT\tLATE\tRATE")
				for _, r := range rates {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d%%\n",
						r.Student.RollNumber, r.Student.Name, r.Present, r.Absent, r.Late, r.Percent)
				}
			})
		}),
	}
	students.Flags().StringVarP(&flags.query, "query", "q", "", "filter by name or roll number")
	cmd.AddCommand(students)

	cmd.AddCommand(&cobra.Command{
		Use:   "classes",
		Short: "Status distribution per class title",
		Args:  cobra.NoArgs,
		RunE: withRecords(opts, flags, func(cmd *cobra.Command, d reportData) error {
			classes := report.ByClass(d.records)
			return opts.print(cmd.OutOrStdout(), classes, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "CLASS\tSESSIONS\tPRESENT\tABSENT\tLATE")
				for _, c := range classes {
					fmt.Fprintf(tw, "%s\t%d\t%d%%\t%d%%\t%d%%\n",
						c.ClassTitle, c.Sessions, c.PresentPercent, c.AbsentPercent, c.LatePercent)
				}
			})
		}),
	})
	week := &cobra.Command{
		Use:   "week",
		Short: "Sessions per day of a Monday to Sunday week",
		Args:  cobra.NoArgs,
		RunE: withRecords(opts, flags, func(cmd *cobra.Command, d reportData) error {
			w := report.Week(d.all, d.today, flags.offset)
			return opts.print(cmd.OutOrStdout(), w, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "week:\t%s .. %s\n", w.Start, w.End)
				fmt.Fprintf(tw, "sessions:\t%d\taverage %d%%\n", w.TotalSessions, w.Average)
				for _, day := range w.Days {
					fmt.Fprintf(tw, "%s\t%d%%\t%d present of %d\n", day.Label, day.Percent, day.Present, day.Total)
					for _, s := range day.Sessions {
						fmt.Fprintf(tw, "\t%s\t%d/%d\t%d%%\n", s.ClassTitle, s.Present, s.Total, s.Percent)
					}
				}
			})
		}),
	}
	week.Flags().IntVar(&flags.offset, "offset", 0, "weeks relative to the current one (negative goes back)")
	cmd.AddCommand(week)
	return cmd
}

type reportData struct {
	today    time.Time
	all      []attendance.Record
	records  []attendance.Record
	students []attendance.Student
}

func withRecords(opts *options, flags *reportFlags, fn func(*cobra.Command, reportData) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := opts.open(cmd)
		if err != nil {
			return err
		}
		defer closeApp(a, cmd)
		ctx := cmd.Context()

		d := reportData{today: time.Now()}
		if d.all, err = a.Service.ListRecords(ctx); err != nil {
			return err
		}
		if d.students, err = a.Service.ListStudents(ctx); err != nil {
			return err
		}
		d.records = report.FilterByRange(d.all, report.ParseRange(flags.rng), d.today)
		return fn(cmd, d)
	}
}
