package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flightrecorder/internal/metrics"
	"flightrecorder/internal/storage"
)

// DefaultPollInterval is the delay between polls of an idle queue.
const DefaultPollInterval = 500 * time.Millisecond

// WorkItem is implemented by pointers to queued items.
type WorkItem interface {
	// Name is the job name recorded against the item's status.
	Name() string
	// String renders the parameters recorded against the item's status.
	String() string
}

// Handler runs one work item against a store scoped to that item.
type Handler[T any] func(ctx context.Context, item *T, store *storage.Store) error

// Processor drains one queue, recording a job status row for every item it runs.
type Processor[T any, PT interface {
	*T
	WorkItem
}] struct {
	name         string
	queue        *Queue[T]
	store        *storage.Store
	handler      Handler[T]
	pollInterval time.Duration
	log          logrus.FieldLogger
	metrics      *metrics.Collector
	tracer       trace.Tracer
}

// ProcessorOption customises a Processor.
type ProcessorOption func(*processorOptions)

type processorOptions struct {
	pollInterval time.Duration
	log          logrus.FieldLogger
	metrics      *metrics.Collector
}

// WithPollInterval sets the delay between polls of an idle queue. Non-positive
// values keep DefaultPollInterval.
func WithPollInterval(d time.Duration) ProcessorOption {
	return func(o *processorOptions) { o.pollInterval = d }
}

// WithLogger sets the logger the processor tags with its queue name.
func WithLogger(l logrus.FieldLogger) ProcessorOption {
	return func(o *processorOptions) { o.log = l }
}

// WithMetrics records queue depth and outcomes on c.
func WithMetrics(c *metrics.Collector) ProcessorOption {
	return func(o *processorOptions) { o.metrics = c }
}

// NewProcessor builds a processor for q. name labels its logs and metrics.
func NewProcessor[T any, PT interface {
	*T
	WorkItem
}](name string, q *Queue[T], store *storage.Store, handler Handler[T], opts ...ProcessorOption) *Processor[T, PT] {
	o := processorOptions{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.New()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	return &Processor[T, PT]{
		name:         name,
		queue:        q,
		store:        store,
		handler:      handler,
		pollInterval: o.pollInterval,
		log:          o.log.WithFields(logrus.Fields{"component": "processor", "queue": name}),
		metrics:      o.metrics,
		tracer:       otel.Tracer("flightrecorder/queue"),
	}
}

// Name returns the queue name the processor was built with.
func (p *Processor[T, PT]) Name() string { return p.name }

// Run polls the queue until ctx is cancelled. An item already being processed
// when ctx is cancelled runs to completion before Run returns.
func (p *Processor[T, PT]) Run(ctx context.Context) {
	p.log.Info("starting")
	defer p.log.Info("exiting")

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}

		item := p.queue.Dequeue()
		if item == nil {
			continue
		}
		p.metrics.Depth(p.name, p.queue.Len())
		p.log.WithField("item", PT(item).String()).Debug("dequeued work item")

		if _, err := p.Process(context.WithoutCancel(ctx), item); err != nil {
			p.log.WithError(err).Error("recording job status")
		}
	}
}

// Process runs one item: it records the job start, invokes the handler and records
// the outcome. A handler failure is captured in the returned status rather than
// returned; the error is non-nil only when the status itself could not be stored.
func (p *Processor[T, PT]) Process(ctx context.Context, item *T) (*storage.JobStatus, error) {
	if item == nil {
		return nil, ErrNilWorkItem
	}
	wi := PT(item)
	log := p.log.WithField("job", wi.Name())

	ctx, span := p.tracer.Start(ctx, "process "+wi.Name(), trace.WithAttributes(
		attribute.String("queue", p.name),
		attribute.String("job.name", wi.Name()),
	))
	defer span.End()

	scoped, release, err := p.store.Scope(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return p.recordFailed(ctx, wi, err)
	}
	defer func() {
		if err := release(); err != nil {
			log.WithError(err).Warn("releasing store scope")
		}
	}()

	status, err := scoped.AddJobStatus(ctx, wi.Name(), wi.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("add job status: %w", err)
	}
	span.SetAttributes(attribute.Int64("job.status_id", status.ID))
	log.WithField("status_id", status.ID).Info("processing")

	started := time.Now()
	herr := p.invoke(ctx, item, scoped)
	elapsed := time.Since(started)

	var errText *string
	outcome := metrics.OutcomeSucceeded
	if herr != nil {
		msg := ErrorText(herr)
		errText = &msg
		outcome = metrics.OutcomeFailed
		span.RecordError(herr)
		span.SetStatus(codes.Error, msg)
		log.WithError(herr).WithField("item", wi.String()).Error("work item failed")
	} else {
		log.WithField("elapsed", elapsed).Info("finished")
	}
	p.metrics.Processed(p.name, outcome, elapsed)

	status, err = scoped.UpdateJobStatus(ctx, status.ID, errText)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	return status, nil
}

// recordFailed writes a failed status for an item that could not be run, using
// the unscoped store so the item still leaves a row behind.
func (p *Processor[T, PT]) recordFailed(ctx context.Context, wi PT, cause error) (*storage.JobStatus, error) {
	ctx = context.WithoutCancel(ctx)
	log := p.log.WithField("job", wi.Name())
	log.WithError(cause).WithField("item", wi.String()).Error("work item not run")
	p.metrics.Processed(p.name, metrics.OutcomeFailed, 0)

	status, err := p.store.AddJobStatus(ctx, wi.Name(), wi.String())
	if err != nil {
		return nil, fmt.Errorf("add job status: %w", errors.Join(cause, err))
	}
	msg := ErrorText(cause)
	status, err = p.store.UpdateJobStatus(ctx, status.ID, &msg)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	return status, nil
}

// invoke calls the handler, converting a panic into an error.
func (p *Processor[T, PT]) invoke(ctx context.Context, item *T, store *storage.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, item, store)
}

// ErrorText renders err followed by any wrapped causes whose text it does not
// already contain.
func ErrorText(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	appendCauses(&b, err)
	return b.String()
}

func appendCauses(b *strings.Builder, err error) {
	var causes []error
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		causes = x.Unwrap()
	default:
		if c := errors.Unwrap(err); c != nil {
			causes = []error{c}
		}
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		if text := c.Error(); !strings.Contains(b.String(), text) {
			b.WriteString(" ---> ")
			b.WriteString(text)
		}
		appendCauses(b, c)
	}
}
