package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"flightrecorder/internal/metrics"
	"flightrecorder/internal/queue"
	"flightrecorder/internal/storage"
)

// Queue names used in logs and metric labels.
const (
	SightingsQueue = "sightings"
	AirportsQueue  = "airports"
	ReportsQueue   = "reports"
)

// ErrFileNameRequired is returned when a work item is requested without a file name.
var ErrFileNameRequired = errors.New("file name is required")

// Dispatcher owns the three export queues and the processor draining each of them.
type Dispatcher struct {
	sightings *queue.Queue[SightingsExportItem]
	airports  *queue.Queue[AirportsExportItem]
	reports   *queue.Queue[ReportExportItem]

	sightingsProc *queue.Processor[SightingsExportItem, *SightingsExportItem]
	airportsProc  *queue.Processor[AirportsExportItem, *AirportsExportItem]
	reportsProc   *queue.Processor[ReportExportItem, *ReportExportItem]

	log         logrus.FieldLogger
	metrics     *metrics.Collector
	jobsCreated metric.Int64Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DispatcherConfig carries the optional collaborators of a Dispatcher.
type DispatcherConfig struct {
	PollInterval time.Duration
	Log          logrus.FieldLogger
	Metrics      *metrics.Collector
	JobsCreated  metric.Int64Counter
}

// NewDispatcher creates a dispatcher with one processor per work item type.
func NewDispatcher(store *storage.Store, h *Handlers, cfg DispatcherConfig) (*Dispatcher, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	counter := cfg.JobsCreated
	if counter == nil {
		var err error
		counter, err = otel.Meter("flightrecorder").Int64Counter("jobs_created_total")
		if err != nil {
			return nil, err
		}
	}

	opts := []queue.ProcessorOption{
		queue.WithPollInterval(cfg.PollInterval),
		queue.WithLogger(log),
		queue.WithMetrics(cfg.Metrics),
	}

	d := &Dispatcher{
		sightings:   queue.New[SightingsExportItem](),
		airports:    queue.New[AirportsExportItem](),
		reports:     queue.New[ReportExportItem](),
		log:         log.WithField("component", "dispatcher"),
		metrics:     cfg.Metrics,
		jobsCreated: counter,
	}
	d.sightingsProc = queue.NewProcessor[SightingsExportItem](SightingsQueue, d.sightings, store, h.ExportSightings, opts...)
	d.airportsProc = queue.NewProcessor[AirportsExportItem](AirportsQueue, d.airports, store, h.ExportAirports, opts...)
	d.reportsProc = queue.NewProcessor[ReportExportItem](ReportsQueue, d.reports, store, h.ExportReport, opts...)
	return d, nil
}

type runner interface {
	Name() string
	Run(ctx context.Context)
}

// Start launches the processors. They run until Stop is called or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)

	procs := []runner{d.sightingsProc, d.airportsProc, d.reportsProc}
	names := make([]string, len(procs))
	for i, p := range procs {
		names[i] = p.Name()
		d.wg.Add(1)
		go func(p runner) {
			defer d.wg.Done()
			p.Run(ctx)
		}(p)
	}
	d.log.WithField("queues", names).Info("started processors")
}

// Stop signals the processors and waits for any in-flight item to finish.
// Items still queued are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}

	d.log.Info("stopping processors")
	cancel()
	d.wg.Wait()

	if n := d.sightings.Len() + d.airports.Len() + d.reports.Len(); n > 0 {
		d.log.WithField("dropped", n).Warn("work items left on queues at shutdown")
	}
}

// EnqueueSightings queues an export of every sighting to fileName.
func (d *Dispatcher) EnqueueSightings(ctx context.Context, fileName string) (*SightingsExportItem, error) {
	if fileName == "" {
		return nil, ErrFileNameRequired
	}
	item := NewSightingsExportItem(fileName)
	if err := enqueue(ctx, d, SightingsQueue, d.sightings, item); err != nil {
		return nil, err
	}
	return item, nil
}

// EnqueueAirports queues an export of every airport to fileName.
func (d *Dispatcher) EnqueueAirports(ctx context.Context, fileName string) (*AirportsExportItem, error) {
	if fileName == "" {
		return nil, ErrFileNameRequired
	}
	item := NewAirportsExportItem(fileName)
	if err := enqueue(ctx, d, AirportsQueue, d.airports, item); err != nil {
		return nil, err
	}
	return item, nil
}

// EnqueueReport queues an export of the report kind between the optional dates.
func (d *Dispatcher) EnqueueReport(ctx context.Context, kind ReportKind, fileName string, start, end *time.Time) (*ReportExportItem, error) {
	if kind == nil {
		return nil, ErrUnknownReportKind
	}
	if fileName == "" {
		return nil, ErrFileNameRequired
	}
	item := NewReportExportItem(kind, fileName, start, end)
	if err := enqueue(ctx, d, ReportsQueue, d.reports, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ProcessSightings runs a sightings export immediately on the calling goroutine.
func (d *Dispatcher) ProcessSightings(ctx context.Context, item *SightingsExportItem) (*storage.JobStatus, error) {
	return d.sightingsProc.Process(ctx, item)
}

// ProcessAirports runs an airports export immediately on the calling goroutine.
func (d *Dispatcher) ProcessAirports(ctx context.Context, item *AirportsExportItem) (*storage.JobStatus, error) {
	return d.airportsProc.Process(ctx, item)
}

// ProcessReport runs a report export immediately on the calling goroutine.
func (d *Dispatcher) ProcessReport(ctx context.Context, item *ReportExportItem) (*storage.JobStatus, error) {
	return d.reportsProc.Process(ctx, item)
}

func enqueue[T any, PT interface {
	*T
	queue.WorkItem
}](ctx context.Context, d *Dispatcher, name string, q *queue.Queue[T], item PT) error {
	if err := q.Enqueue((*T)(item)); err != nil {
		return err
	}
	d.metrics.Enqueued(name, q.Len())
	d.jobsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", name)))
	d.log.WithFields(logrus.Fields{"queue": name, "item": item.String()}).Info("work item queued")
	return nil
}
