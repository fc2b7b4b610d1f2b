package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flightrecorder/internal/export"
	"flightrecorder/internal/storage"
)

// ErrUnknownReportKind is returned for report names that are not in ReportKinds.
var ErrUnknownReportKind = errors.New("unknown report kind")

// ReportKind is one of the report tables that can be generated and exported.
// The set is closed: the only implementations are the values listed by ReportKinds.
type ReportKind interface {
	// Name is the identifier accepted by ParseReportKind, e.g. "AirlineStatistics".
	Name() string
	// Title is the display name, e.g. "Airline Statistics".
	Title() string
	// Rows generates one page of the report. n is the number of rows returned.
	Rows(ctx context.Context, store *storage.Store, from, to *time.Time, page, size int) (rows any, n int, err error)
	// Export writes the whole report to path.
	Export(ctx context.Context, store *storage.Store, from, to *time.Time, path string, onRecord func(int64)) error

	sealed()
}

// report binds a row type to the query that generates it and the columns it exports.
type report[T any] struct {
	name     string
	title    string
	columns  []export.Column[T]
	generate func(s *storage.Store, ctx context.Context, from, to *time.Time, page, size int) ([]T, error)
}

func (r *report[T]) Name() string  { return r.name }
func (r *report[T]) Title() string { return r.title }
func (r *report[T]) String() string {
	return r.name
}
func (*report[T]) sealed() {}

func (r *report[T]) Rows(ctx context.Context, store *storage.Store, from, to *time.Time, page, size int) (any, int, error) {
	rows, err := r.generate(store, ctx, from, to, page, size)
	if err != nil {
		return nil, 0, err
	}
	return rows, len(rows), nil
}

func (r *report[T]) Export(ctx context.Context, store *storage.Store, from, to *time.Time, path string, onRecord func(int64)) error {
	rows, err := r.generate(store, ctx, from, to, 1, storage.Unbounded)
	if err != nil {
		return fmt.Errorf("generate %s: %w", r.title, err)
	}
	e := export.NewCSVExporter(r.columns)
	e.OnRecord = onRecord
	return e.Export(rows, path)
}

// jobStatusReport lists job statuses; it filters on the job's own start and end.
func jobStatusReport(s *storage.Store, ctx context.Context, from, to *time.Time, page, size int) ([]*storage.JobStatus, error) {
	return s.ListJobStatuses(ctx, storage.JobStatusFilter{From: from, To: to}, page, size)
}

var (
	AirlineStatistics ReportKind = &report[storage.AirlineStatistics]{
		name: "AirlineStatistics", title: "Airline Statistics",
		columns: export.AirlineStatisticsColumns, generate: (*storage.Store).AirlineStatistics,
	}
	LocationStatistics ReportKind = &report[storage.LocationStatistics]{
		name: "LocationStatistics", title: "Location Statistics",
		columns: export.LocationStatisticsColumns, generate: (*storage.Store).LocationStatistics,
	}
	ManufacturerStatistics ReportKind = &report[storage.ManufacturerStatistics]{
		name: "ManufacturerStatistics", title: "Manufacturer Statistics",
		columns: export.ManufacturerStatisticsColumns, generate: (*storage.Store).ManufacturerStatistics,
	}
	ModelStatistics ReportKind = &report[storage.ModelStatistics]{
		name: "ModelStatistics", title: "Model Statistics",
		columns: export.ModelStatisticsColumns, generate: (*storage.Store).ModelStatistics,
	}
	FlightsByMonth ReportKind = &report[storage.FlightsByMonth]{
		name: "FlightsByMonth", title: "Flights By Month",
		columns: export.FlightsByMonthColumns, generate: (*storage.Store).FlightsByMonth,
	}
	JobStatus ReportKind = &report[*storage.JobStatus]{
		name: "JobStatus", title: "Job Status",
		columns: export.JobStatusColumns, generate: jobStatusReport,
	}
	MyFlights ReportKind = &report[storage.MyFlights]{
		name: "MyFlights", title: "My Flights",
		columns: export.MyFlightsColumns, generate: (*storage.Store).MyFlights,
	}
)

// ReportKinds lists every report kind in display order.
func ReportKinds() []ReportKind {
	return []ReportKind{
		AirlineStatistics,
		LocationStatistics,
		ManufacturerStatistics,
		ModelStatistics,
		FlightsByMonth,
		JobStatus,
		MyFlights,
	}
}

// ParseReportKind matches name against the report identifiers, ignoring case.
func ParseReportKind(name string) (ReportKind, error) {
	for _, k := range ReportKinds() {
		if strings.EqualFold(k.Name(), name) {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReportKind, name)
}
