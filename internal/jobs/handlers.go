package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"flightrecorder/internal/config"
	"flightrecorder/internal/export"
	"flightrecorder/internal/storage"
)

// Handlers produce the export files for each work item type. Destinations are the
// item's file name joined onto the configured directory for that item type.
type Handlers struct {
	Dirs config.Export
	Log  logrus.FieldLogger
	Now  func() time.Time
}

// NewHandlers returns handlers writing under dirs and stamping ages from the wall clock.
func NewHandlers(dirs config.Export, log logrus.FieldLogger) *Handlers {
	return &Handlers{Dirs: dirs, Log: log, Now: time.Now}
}

// ExportSightings writes every sighting, flattened, to the item's file.
func (h *Handlers) ExportSightings(ctx context.Context, item *SightingsExportItem, store *storage.Store) error {
	path, err := destination(h.Dirs.SightingsPath, item.FileName)
	if err != nil {
		return err
	}
	sightings, err := store.ListSightings(ctx, 1, storage.Unbounded)
	if err != nil {
		return err
	}
	e := export.NewCSVExporter(export.SightingColumns)
	e.OnRecord = h.progress(item.JobName)
	return e.Export(export.FlattenSightings(sightings, h.Now()), path)
}

// ExportAirports writes every airport to the item's file.
func (h *Handlers) ExportAirports(ctx context.Context, item *AirportsExportItem, store *storage.Store) error {
	path, err := destination(h.Dirs.AirportsPath, item.FileName)
	if err != nil {
		return err
	}
	airports, err := store.ListAirports(ctx, 1, storage.Unbounded)
	if err != nil {
		return err
	}
	e := export.NewCSVExporter(export.AirportColumns)
	e.OnRecord = h.progress(item.JobName)
	return e.Export(export.FlattenAirports(airports), path)
}

// ExportReport writes the report named by the item's kind. An item without a kind
// is rejected rather than skipped.
func (h *Handlers) ExportReport(ctx context.Context, item *ReportExportItem, store *storage.Store) error {
	if item.Kind == nil {
		return fmt.Errorf("%s: %w", item.JobName, ErrUnknownReportKind)
	}
	path, err := destination(h.Dirs.ReportsPath, item.FileName)
	if err != nil {
		return err
	}
	return item.Kind.Export(ctx, store, item.Start, item.End, path, h.progress(item.JobName))
}

func (h *Handlers) progress(job string) func(int64) {
	if h.Log == nil {
		return nil
	}
	log := h.Log.WithField("job", job)
	return func(n int64) {
		log.WithField("records", n).Debug("exported record")
	}
}

func destination(dir, fileName string) (string, error) {
	if fileName == "" {
		return "", ErrFileNameRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	return filepath.Join(dir, fileName), nil
}
