package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrecorder/internal/metrics"
	"flightrecorder/internal/storage"
)

type testItem struct {
	name     string
	fail     error
	panics   bool
	producer int
	seq      int
}

func (t *testItem) Name() string   { return "Test " + t.name }
func (t *testItem) String() string { return "JobName = Test " + t.name }

func runTestItem(_ context.Context, item *testItem, _ *storage.Store) error {
	if item.panics {
		panic("exporter exploded")
	}
	return item.fail
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessRecordsSuccess(t *testing.T) {
	store := newStore(t)
	logger, _ := test.NewNullLogger()
	p := NewProcessor[testItem]("test", New[testItem](), store, runTestItem, WithLogger(logger))

	status, err := p.Process(context.Background(), &testItem{name: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "Test ok", status.Name)
	assert.Equal(t, "JobName = Test ok", status.Parameters)
	require.NotNil(t, status.End)
	assert.False(t, status.End.Before(status.Start))
	assert.Nil(t, status.Error)
}

func TestProcessRecordsFailureChain(t *testing.T) {
	store := newStore(t)
	logger, hook := test.NewNullLogger()
	p := NewProcessor[testItem]("test", New[testItem](), store, runTestItem, WithLogger(logger))

	cause := errors.New("disk full")
	status, err := p.Process(context.Background(), &testItem{name: "bad", fail: fmt.Errorf("write out.csv: %w", cause)})
	require.NoError(t, err)
	require.NotNil(t, status.Error)
	assert.Equal(t, "write out.csv: disk full", *status.Error)
	require.NotNil(t, status.End)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "work item failed", entry.Message)
}

func TestProcessRecoversPanic(t *testing.T) {
	store := newStore(t)
	logger, _ := test.NewNullLogger()
	p := NewProcessor[testItem]("test", New[testItem](), store, runTestItem, WithLogger(logger))

	status, err := p.Process(context.Background(), &testItem{name: "panic", panics: true})
	require.NoError(t, err)
	require.NotNil(t, status.Error)
	assert.Equal(t, "panic: exporter exploded", *status.Error)
}

func TestProcessRejectsNil(t *testing.T) {
	p := NewProcessor[testItem]("test", New[testItem](), newStore(t), runTestItem)
	_, err := p.Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilWorkItem)
}

func TestRunDrainsMixedItems(t *testing.T) {
	store := newStore(t)
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	q := New[testItem]()
	items := []*testItem{
		{name: "a", fail: errors.New("no such table")},
		{name: "b"},
		{name: "c", panics: true},
		{name: "d"},
	}
	for _, it := range items {
		require.NoError(t, q.Enqueue(it))
	}

	p := NewProcessor[testItem]("test", q, store, runTestItem,
		WithLogger(logger), WithPollInterval(5*time.Millisecond), WithMetrics(collector))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		statuses, err := store.ListJobStatuses(context.Background(), storage.JobStatusFilter{}, 1, storage.Unbounded)
		if err != nil || len(statuses) != len(items) {
			return false
		}
		for _, s := range statuses {
			if s.End == nil {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}

	assert.Equal(t, 0, q.Len())
	statuses, err := store.ListJobStatuses(context.Background(), storage.JobStatusFilter{}, 1, storage.Unbounded)
	require.NoError(t, err)

	failed := map[string]bool{}
	for _, s := range statuses {
		failed[s.Name] = s.Error != nil
	}
	assert.Equal(t, map[string]bool{"Test a": true, "Test b": false, "Test c": true, "Test d": false}, failed)

	assert.Equal(t, 2.0, processedTotal(t, reg, metrics.OutcomeSucceeded))
	assert.Equal(t, 2.0, processedTotal(t, reg, metrics.OutcomeFailed))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	p := NewProcessor[testItem]("test", New[testItem](), newStore(t), runTestItem, WithPollInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestRunFinishesInFlightItemAfterCancel(t *testing.T) {
	store := newStore(t)
	logger, _ := test.NewNullLogger()
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context, _ *testItem, _ *storage.Store) error {
		close(started)
		<-release
		return ctx.Err()
	}

	q := New[testItem]()
	require.NoError(t, q.Enqueue(&testItem{name: "slow"}))
	p := NewProcessor[testItem]("test", q, store, slow, WithLogger(logger), WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("processor returned while the handler was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}

	statuses, err := store.ListJobStatuses(context.Background(), storage.JobStatusFilter{}, 1, storage.Unbounded)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.NotNil(t, statuses[0].End)
	assert.Nil(t, statuses[0].Error)
}

func TestProcessRecordsItemWhenScopeFails(t *testing.T) {
	store := newStore(t)
	logger, _ := test.NewNullLogger()
	called := false
	handler := func(context.Context, *testItem, *storage.Store) error {
		called = true
		return nil
	}
	p := NewProcessor[testItem]("test", New[testItem](), store, handler, WithLogger(logger))

	// No connection can be acquired under a cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := p.Process(ctx, &testItem{name: "orphan"})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, "Test orphan", status.Name)
	require.NotNil(t, status.End)
	require.NotNil(t, status.Error)
	assert.Contains(t, *status.Error, context.Canceled.Error())
	assert.False(t, status.Succeeded())
}

func TestErrorTextIncludesJoinedCauses(t *testing.T) {
	err := errors.Join(errors.New("first"), fmt.Errorf("second: %w", errors.New("root")))
	assert.Equal(t, "first\nsecond: root", ErrorText(err))

	opaque := fmt.Errorf("export failed: %w", &opaqueErr{cause: errors.New("permission denied")})
	assert.Equal(t, "export failed: opaque ---> permission denied", ErrorText(opaque))
}

type opaqueErr struct{ cause error }

func (e *opaqueErr) Error() string { return "opaque" }
func (e *opaqueErr) Unwrap() error { return e.cause }

// processedTotal reads the processed counter for outcome back out of reg.
func processedTotal(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "flightrecorder_work_items_processed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
