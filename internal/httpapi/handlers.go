package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"flightrecorder/internal/jobs"
	"flightrecorder/internal/metrics"
	"flightrecorder/internal/storage"
	"flightrecorder/internal/version"
)

// Enqueuer accepts export and report work items.
type Enqueuer interface {
	EnqueueSightings(ctx context.Context, fileName string) (*jobs.SightingsExportItem, error)
	EnqueueAirports(ctx context.Context, fileName string) (*jobs.AirportsExportItem, error)
	EnqueueReport(ctx context.Context, kind jobs.ReportKind, fileName string, start, end *time.Time) (*jobs.ReportExportItem, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store   *storage.Store
	Jobs    Enqueuer
	Metrics *metrics.Collector
	Log     logrus.FieldLogger
}

// NewRouter builds the HTTP router with routes bound to our handlers.
func NewRouter(h *Handler) http.Handler {
	if h.Log == nil {
		h.Log = logrus.New()
	}
	r := mux.NewRouter()

	r.Use(versionHeaderMiddleware)

	r.HandleFunc("/export/sightings", h.ExportSightings).Methods(http.MethodPost)
	r.HandleFunc("/export/airports", h.ExportAirports).Methods(http.MethodPost)
	r.HandleFunc("/export/reports", h.ExportReport).Methods(http.MethodPost)

	r.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id:[0-9]+}", h.GetJob).Methods(http.MethodGet)

	r.HandleFunc("/reports/sightings", h.SightingStatistics).Methods(http.MethodGet)
	r.HandleFunc("/reports/{kind}", h.Report).Methods(http.MethodGet)

	r.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
	}).Methods(http.MethodGet)
	return r
}

func versionHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Add version header
		w.Header().Set("X-App-Version", version.Version)
		next.ServeHTTP(w, r)
	})
}

type exportRequest struct {
	FileName string `json:"fileName" validate:"required,max=255,excludesall=/\\"`
}

type reportExportRequest struct {
	Type     string `json:"type" validate:"required"`
	FileName string `json:"fileName" validate:"required,max=255,excludesall=/\\"`
	Start    string `json:"start" validate:"omitempty,date"`
	End      string `json:"end" validate:"omitempty,date"`
}

// acceptedResponse acknowledges a queued work item.
type acceptedResponse struct {
	ID       string `json:"id"`
	JobName  string `json:"jobName"`
	FileName string `json:"fileName"`
}

// ExportSightings queues an export of every sighting.
func (h *Handler) ExportSightings(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.Jobs.EnqueueSightings(r.Context(), req.FileName)
	if err != nil {
		h.serverError(w, "enqueue sightings export", err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: item.ID.String(), JobName: item.JobName, FileName: item.FileName})
}

// ExportAirports queues an export of every airport.
func (h *Handler) ExportAirports(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.Jobs.EnqueueAirports(r.Context(), req.FileName)
	if err != nil {
		h.serverError(w, "enqueue airports export", err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: item.ID.String(), JobName: item.JobName, FileName: item.FileName})
}

// ExportReport queues a report export.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	var req reportExportRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := jobs.ParseReportKind(req.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"type": err.Error()})
		return
	}
	// Both were checked by the validator.
	start, _ := parseDate(req.Start)
	end, _ := parseDate(req.End)

	item, err := h.Jobs.EnqueueReport(r.Context(), kind, req.FileName, start, end)
	if err != nil {
		h.serverError(w, "enqueue report export", err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: item.ID.String(), JobName: item.JobName, FileName: item.FileName})
}

// ListJobs returns job statuses, optionally filtered by ?start= and ?end=.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	statuses, err := h.Store.ListJobStatuses(r.Context(), storage.JobStatusFilter{From: q.start, To: q.end}, q.page, q.size)
	if err != nil {
		h.serverError(w, "list job statuses", err)
		return
	}
	if len(statuses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// GetJob returns one job status so clients can poll for completion.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	j, err := h.Store.GetJobStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "get job status", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// Report returns one page of the named report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	kind, err := jobs.ParseReportKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	rows, n, err := kind.Rows(r.Context(), h.Store, q.start, q.end, q.page, q.size)
	if err != nil {
		h.serverError(w, "generate report", err)
		return
	}
	if n == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// SightingStatistics returns whole-database entity counts.
func (h *Handler) SightingStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.SightingStatistics(r.Context())
	if err != nil {
		h.serverError(w, "sighting statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type listQuery struct {
	start, end *time.Time
	page, size int
}

const defaultPageSize = 50

func parseQuery(w http.ResponseWriter, r *http.Request) (listQuery, bool) {
	v := r.URL.Query()
	q := listQuery{page: 1, size: defaultPageSize}
	problems := map[string]string{}

	var err error
	if q.start, err = parseDate(v.Get("start")); err != nil {
		problems["start"] = err.Error()
	}
	if q.end, err = parseDate(v.Get("end")); err != nil {
		problems["end"] = err.Error()
	}
	for name, dst := range map[string]*int{"page": &q.page, "size": &q.size} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			problems[name] = "must be a positive integer"
			continue
		}
		*dst = n
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, problems)
		return q, false
	}
	return q, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	if problems := validateStruct(dst); problems != nil {
		writeJSON(w, http.StatusBadRequest, problems)
		return false
	}
	return true
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.WithField("component", "httpapi").WithError(err).Error(op)
	http.Error(w, "server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
