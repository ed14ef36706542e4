package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Attendance statistics",
	}
	cmd.AddCommand(newReportTodayCmd(a), newReportMonthlyCmd(a))
	return cmd
}

func newReportTodayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Entries, exits and identities currently inside",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			reports := a.reportService(b)
			day, err := reports.ParseDay(mustGetString(cmd, "date"), time.Now())
			if err != nil {
				return err
			}
			st, err := reports.Daily(cmd.Context(), day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mustGetBool(cmd, "json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(out, "%s: %d entries, %d exits, %d inside\n", st.Date, st.Entries, st.Exits, st.Inside)
			return nil
		},
	}
	cmd.Flags().String("date", "", "day as YYYY-MM-DD (default today)")
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func newReportMonthlyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Distinct identities and entries per day of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			reports := a.reportService(b)
			month, err := reports.ParseMonth(mustGetString(cmd, "month"), time.Now())
			if err != nil {
				return err
			}
			rep, err := reports.Monthly(cmd.Context(), month)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mustGetBool(cmd, "csv") {
				return service.WriteMonthlyCSV(out, rep)
			}
			if len(rep.Days) == 0 {
				fmt.Fprintf(out, "no entries in %s\n", rep.Month)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tIDENTITIES\tENTRIES")
			for _, d := range rep.Days {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Date, d.Identities, d.Entries)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("month", "", "month as YYYY-MM (default this month)")
	cmd.Flags().Bool("csv", false, "write CSV instead of a table")
	return cmd
}
