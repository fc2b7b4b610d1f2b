package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrecorder/internal/jobs"
	"flightrecorder/internal/metrics"
	"flightrecorder/internal/storage"
	"flightrecorder/internal/version"
)

type fakeEnqueuer struct {
	reports []*jobs.ReportExportItem
	files   []string
}

func (f *fakeEnqueuer) EnqueueSightings(_ context.Context, fileName string) (*jobs.SightingsExportItem, error) {
	f.files = append(f.files, fileName)
	return jobs.NewSightingsExportItem(fileName), nil
}

func (f *fakeEnqueuer) EnqueueAirports(_ context.Context, fileName string) (*jobs.AirportsExportItem, error) {
	f.files = append(f.files, fileName)
	return jobs.NewAirportsExportItem(fileName), nil
}

func (f *fakeEnqueuer) EnqueueReport(_ context.Context, kind jobs.ReportKind, fileName string, start, end *time.Time) (*jobs.ReportExportItem, error) {
	item := jobs.NewReportExportItem(kind, fileName, start, end)
	f.reports = append(f.reports, item)
	return item, nil
}

func newTestRouter(t *testing.T) (http.Handler, *storage.Store, *fakeEnqueuer) {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger, _ := test.NewNullLogger()
	enq := &fakeEnqueuer{}
	h := &Handler{
		Store:   s,
		Jobs:    enq,
		Metrics: metrics.NewCollector(prometheus.NewRegistry()),
		Log:     logger,
	}
	return NewRouter(h), s, enq
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func TestExportSightingsAccepted(t *testing.T) {
	r, _, enq := newTestRouter(t)

	rw := do(r, http.MethodPost, "/export/sightings", map[string]string{"fileName": "out.csv"})
	if rw.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rw.Code)
	}
	assert.Equal(t, version.Version, rw.Header().Get("X-App-Version"))

	var out acceptedResponse
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&out))
	assert.Equal(t, "Sightings Export", out.JobName)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, []string{"out.csv"}, enq.files)
}

func TestExportValidation(t *testing.T) {
	r, _, enq := newTestRouter(t)

	rw := do(r, http.MethodPost, "/export/airports", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, rw.Body.String(), "fileName")

	rw = do(r, http.MethodPost, "/export/airports", map[string]string{"fileName": "../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	req := httptest.NewRequest(http.MethodPost, "/export/airports", bytes.NewBufferString("{"))
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	assert.Empty(t, enq.files)
}

func TestExportReport(t *testing.T) {
	r, _, enq := newTestRouter(t)

	rw := do(r, http.MethodPost, "/export/reports", map[string]string{
		"type": "JobStatus", "fileName": "jobs.csv", "start": "2024-01-01", "end": "2024-01-31T23:59:59Z",
	})
	require.Equal(t, http.StatusAccepted, rw.Code)
	require.Len(t, enq.reports, 1)
	item := enq.reports[0]
	assert.Equal(t, "Job Status Export", item.JobName)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *item.Start)
	assert.Equal(t, time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC), *item.End)

	rw = do(r, http.MethodPost, "/export/reports", map[string]string{"type": "Weather", "fileName": "w.csv"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)

	rw = do(r, http.MethodPost, "/export/reports", map[string]string{"type": "MyFlights", "fileName": "m.csv", "start": "last week"})
	assert.Equal(t, http.StatusBadRequest, rw.Code)
	assert.Contains(t, rw.Body.String(), "start")
}

func TestListAndGetJobs(t *testing.T) {
	r, s, _ := newTestRouter(t)

	rw := do(r, http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	j, err := s.AddJobStatus(context.Background(), "Sightings Export", "JobName = Sightings Export, FileName = out.csv")
	require.NoError(t, err)

	rw = do(r, http.MethodGet, "/jobs?page=1&size=10", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var list []storage.JobStatus
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, j.ID, list[0].ID)

	rw = do(r, http.MethodGet, "/jobs/"+strconv.FormatInt(j.ID, 10), nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	rw = do(r, http.MethodGet, "/jobs/9999", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)

	rw = do(r, http.MethodGet, "/jobs?size=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestReports(t *testing.T) {
	r, s, _ := newTestRouter(t)

	rw := do(r, http.MethodGet, "/reports/AirlineStatistics", nil)
	assert.Equal(t, http.StatusNoContent, rw.Code)

	manufactured := int64(2001)
	_, err := s.AddSighting(context.Background(), storage.SightingInput{
		FlightNumber: "BA123", Airline: "British Airways", Registration: "G-EUPT", SerialNumber: "1782",
		Manufacturer: "Airbus", Model: "A319", Manufactured: &manufactured, Embarkation: "LHR", Destination: "CDG",
		Altitude: 30000, Date: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), Location: "Heathrow",
	})
	require.NoError(t, err)

	rw = do(r, http.MethodGet, "/reports/AirlineStatistics?start=2024-01-01&end=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var rows []storage.AirlineStatistics
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "British Airways", rows[0].Name)

	rw = do(r, http.MethodGet, "/reports/sightings", nil)
	require.Equal(t, http.StatusOK, rw.Code)
	var st storage.SightingStatistics
	require.NoError(t, json.NewDecoder(rw.Body).Decode(&st))
	assert.Equal(t, 1, st.Sightings)

	rw = do(r, http.MethodGet, "/reports/Weather", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rw := do(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = do(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rw.Code)
}
