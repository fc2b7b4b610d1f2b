package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"flightrecorder/internal/config"
	"flightrecorder/internal/export"
	"flightrecorder/internal/jobs"
	"flightrecorder/internal/storage"
)

func newImportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import sightings or airports from a CSV file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sightings FILE",
		Short: "Import sightings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im := &export.SightingsImporter{
				Store: a.store,
				OnRecord: func(n int64, s export.FlattenedSighting) {
					a.log.WithField("records", n).Debugf("imported %s %s", s.Airline, s.FlightNumber)
				},
			}
			n, err := im.ImportFile(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sightings\n", n)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "airports FILE",
		Short: "Import airports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im := &export.AirportsImporter{
				Store: a.store,
				OnRecord: func(n int64, ap export.FlattenedAirport) {
					a.log.WithField("records", n).Debugf("imported %s", ap.Code)
				},
			}
			n, err := im.ImportFile(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d airports\n", n)
			return err
		},
	})
	return cmd
}

// dispatcherFor returns a dispatcher whose export directories all point at the
// directory holding path.
func (a *app) dispatcherFor(path string) (*jobs.Dispatcher, string, error) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	h := jobs.NewHandlers(config.Export{SightingsPath: dir, AirportsPath: dir, ReportsPath: dir}, a.log)
	d, err := jobs.NewDispatcher(a.store, h, jobs.DispatcherConfig{Log: a.log})
	return d, file, err
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sightings or airports to a CSV file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sightings FILE",
		Short: "Export every sighting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, file, err := a.dispatcherFor(args[0])
			if err != nil {
				return err
			}
			status, err := d.ProcessSightings(cmd.Context(), jobs.NewSightingsExportItem(file))
			return reportStatus(cmd, status, err)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "airports FILE",
		Short: "Export every airport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, file, err := a.dispatcherFor(args[0])
			if err != nil {
				return err
			}
			status, err := d.ProcessAirports(cmd.Context(), jobs.NewAirportsExportItem(file))
			return reportStatus(cmd, status, err)
		},
	})
	return cmd
}

type dateFlags struct {
	start, end string
}

func (f *dateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Earliest date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Latest date to include (YYYY-MM-DD)")
}

func (f *dateFlags) parse() (*time.Time, *time.Time, error) {
	start, err := parseDateFlag("start", f.start)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseDateFlag("end", f.end)
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

func newReportCommand(a *app) *cobra.Command {
	var dates dateFlags
	cmd := &cobra.Command{
		Use:   "report KIND FILE",
		Short: "Export a report to a CSV file",
		Long:  "Export a report to a CSV file. KIND is one of: " + kindNames() + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := jobs.ParseReportKind(args[0])
			if err != nil {
				return err
			}
			start, end, err := dates.parse()
			if err != nil {
				return err
			}
			d, file, err := a.dispatcherFor(args[1])
			if err != nil {
				return err
			}
			status, err := d.ProcessReport(cmd.Context(), jobs.NewReportExportItem(kind, file, start, end))
			return reportStatus(cmd, status, err)
		},
	}
	dates.register(cmd)
	return cmd
}

func kindNames() string {
	var s string
	for i, k := range jobs.ReportKinds() {
		if i > 0 {
			s += ", "
		}
		s += k.Name()
	}
	return s
}

// reportStatus prints the outcome of a synchronous export and turns a recorded
// failure into the command's error.
func reportStatus(cmd *cobra.Command, status *storage.JobStatus, err error) error {
	if err != nil {
		return err
	}
	if !status.Succeeded() {
		return fmt.Errorf("%s failed: %s", status.Name, export.FormatValue(status.Error))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s completed (job %d)\n", status.Name, status.ID)
	return nil
}

func newJobsCommand(a *app) *cobra.Command {
	var (
		dates  dateFlags
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List background job statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := dates.parse()
			if err != nil {
				return err
			}
			statuses, err := a.store.ListJobStatuses(cmd.Context(), storage.JobStatusFilter{From: start, To: end}, 1, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				b, _ := json.MarshalIndent(statuses, "", "  ")
				fmt.Fprintln(out, string(b))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTARTED\tCOMPLETED\tERROR")
			for _, j := range statuses {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", j.ID, j.Name,
					j.Start.Format(time.DateTime), formatEnd(j.End), export.FormatValue(j.Error))
			}
			return tw.Flush()
		},
	}
	dates.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max rows")
	return cmd
}

func formatEnd(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateTime)
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date\n", a.cfg.Database.Path)
			return nil
		},
	}
}
