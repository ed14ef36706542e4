package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect the entry/exit log",
	}
	cmd.AddCommand(newLogsListCmd(a), newLogsExportCmd(a))
	return cmd
}

func addDayFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("date", "", "day as YYYY-MM-DD (default today)")
	f.StringP("search", "q", "", "filter by identity id or name")
	f.Bool("open", false, "only identities still inside")
}

func dayLog(cmd *cobra.Command, reports *service.ReportService) ([]service.LogEntry, error) {
	day, err := reports.ParseDay(mustGetString(cmd, "date"), time.Now())
	if err != nil {
		return nil, err
	}
	return reports.DayLog(cmd.Context(), service.LogQuery{
		Day:      day,
		Search:   mustGetString(cmd, "search"),
		OpenOnly: mustGetBool(cmd, "open"),
	})
}

func newLogsListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one day's sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			entries, err := dayLog(cmd, a.reportService(b))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENTRY\tEXIT\tSTATUS\tMETHOD\tSTATION")
			for _, e := range entries {
				exit := "-"
				if e.ClosedAt != nil {
					exit = e.ClosedAt.Local().Format(time.TimeOnly)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.IdentityID, e.Name, e.OpenedAt.Local().Format(time.TimeOnly), exit,
					e.Status(), e.Method, e.OpenedBy)
			}
			return tw.Flush()
		},
	}
	addDayFlags(cmd)
	return cmd
}

func newLogsExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one day's sessions as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			reports := a.reportService(b)
			entries, err := dayLog(cmd, reports)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path := mustGetString(cmd, "out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return reports.WriteSessionsCSV(out, entries)
		},
	}
	addDayFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	return cmd
}
