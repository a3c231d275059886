package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupage-sync/internal/middleware"
	"github.com/noah-isme/edupage-sync/internal/service"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/jobs"
)

type fakeState struct {
	values    map[string]string
	connected bool
	err       error
}

func (f *fakeState) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[key]
	if !ok {
		return nil, appErrors.ErrStateMiss
	}
	return []byte(value), nil
}

func (f *fakeState) Connected(context.Context) bool { return f.connected }

type fakeQueue struct {
	err  error
	busy bool
	jobs []jobs.Job
}

func (f *fakeQueue) TryEnqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Busy() bool { return f.busy }

type fakeReports struct {
	report *service.CycleReport
}

func (f *fakeReports) LastReport() (service.CycleReport, bool) {
	if f.report == nil {
		return service.CycleReport{}, false
	}
	return *f.report, true
}

type fakeExporter struct {
	result *service.ExportResult
	err    error
	format string
}

func (f *fakeExporter) Homework(_ context.Context, format string) (*service.ExportResult, error) {
	f.format = format
	return f.result, f.err
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func serve(t *testing.T, router *gin.Engine, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newStateRouter(state *fakeState) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStateHandler(state)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.GET("/api/v1/state/:key", h.Get)
	r.GET("/widgets/:name", h.Widget)
	return r
}

func TestStateHandlerGetEmbedsJSON(t *testing.T) {
	router := newStateRouter(&fakeState{
		values:    map[string]string{service.KeyHomeworkJSON: `[{"id":"h1"}]`},
		connected: true,
	})

	rec, env := serve(t, router, http.MethodGet, "/api/v1/state/data.homework_json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"data.homework_json","value":[{"id":"h1"}]}`, string(env.Data))
	assert.Equal(t, true, env.Meta["connected"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStateHandlerGetReturnsScalarsAsStrings(t *testing.T) {
	router := newStateRouter(&fakeState{values: map[string]string{service.KeyHomeworkCount: "3"}})

	rec, env := serve(t, router, http.MethodGet, "/api/v1/state/data.homework_count")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"data.homework_count","value":"3"}`, string(env.Data))
	assert.Equal(t, false, env.Meta["connected"])
}

func TestStateHandlerGetUnknownAndMissing(t *testing.T) {
	router := newStateRouter(&fakeState{values: map[string]string{}})

	rec, env := serve(t, router, http.MethodGet, "/api/v1/state/secret.password")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, env.Error.Code)

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/state/info.last_sync")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateHandlerGetStoreFailure(t *testing.T) {
	router := newStateRouter(&fakeState{err: errors.New("redis down")})

	rec, env := serve(t, router, http.MethodGet, "/api/v1/state/info.connection")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInternal.Code, env.Error.Code)
}

func TestStateHandlerWidget(t *testing.T) {
	router := newStateRouter(&fakeState{values: map[string]string{service.KeyHTMLHomework: `<div class="hw"></div>`}})

	rec, _ := serve(t, router, http.MethodGet, "/widgets/homework")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<div class="hw"></div>`, rec.Body.String())

	rec, _ = serve(t, router, http.MethodGet, "/widgets/timetable_next")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, router, http.MethodGet, "/widgets/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthHandlerReadyFollowsConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	state := &fakeState{}
	h := NewHealthHandler(state)
	r := gin.New()
	r.GET("/health", h.Live)
	r.GET("/ready", h.Ready)

	rec, _ := serve(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := serve(t, r, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrNotConnected.Code, env.Error.Code)

	state.connected = true
	rec, _ = serve(t, r, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func newSyncRouter(queue *fakeQueue, reports *fakeReports) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSyncHandler(queue, reports, service.NewMetricsService())
	r := gin.New()
	r.POST("/api/v1/sync", h.Trigger)
	r.GET("/api/v1/sync/status", h.Status)
	return r
}

func TestSyncHandlerTriggerQueuesManualCycle(t *testing.T) {
	queue := &fakeQueue{}
	rec, env := serve(t, newSyncRouter(queue, &fakeReports{}), http.MethodPost, "/api/v1/sync")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, SyncJobType, queue.jobs[0].Type)
	assert.Equal(t, TriggerManual, queue.jobs[0].Payload)
	assert.Contains(t, string(env.Data), queue.jobs[0].ID)
}

func TestSyncHandlerTriggerWhileBusy(t *testing.T) {
	queue := &fakeQueue{err: jobs.ErrBusy}
	rec, env := serve(t, newSyncRouter(queue, &fakeReports{}), http.MethodPost, "/api/v1/sync")

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrSyncBusy.Code, env.Error.Code)
}

func TestSyncHandlerStatus(t *testing.T) {
	report := &service.CycleReport{
		ID:         "cycle-1",
		Trigger:    "schedule",
		Outcome:    service.CycleOutcomeDegraded,
		State:      service.StateIdle,
		StartedAt:  time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 5, 10, 30, 2, 0, time.UTC),
		Slices:     map[string]service.SliceStatus{service.SliceTimetableNext: service.SliceDegraded},
	}
	rec, env := serve(t, newSyncRouter(&fakeQueue{busy: true}, &fakeReports{report: report}), http.MethodGet, "/api/v1/sync/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Busy       bool                `json:"busy"`
		LastReport service.CycleReport `json:"last_report"`
		Metrics    map[string]any      `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Busy)
	assert.Equal(t, "cycle-1", status.LastReport.ID)
	assert.Equal(t, service.SliceDegraded, status.LastReport.Slices[service.SliceTimetableNext])
	assert.Contains(t, status.Metrics, "cycles")
}

func TestExportHandlerHomework(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &fakeExporter{result: &service.ExportResult{
		Filename:    "homework_20240105_0900.pdf",
		ContentType: "application/pdf",
		Payload:     []byte("%PDF-1.3"),
	}}
	r := gin.New()
	r.GET("/api/v1/export/homework", NewExportHandler(exporter).Homework)

	rec, _ := serve(t, r, http.MethodGet, "/api/v1/export/homework?format=pdf")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", exporter.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="homework_20240105_0900.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", rec.Body.String())
}

func TestExportHandlerHomeworkErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &fakeExporter{err: appErrors.Clone(appErrors.ErrValidation, "unsupported format")}
	r := gin.New()
	r.GET("/api/v1/export/homework", NewExportHandler(exporter).Homework)

	rec, env := serve(t, r, http.MethodGet, "/api/v1/export/homework")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ExportFormatCSV, exporter.format)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unsupported format", env.Error.Message)
}

func TestMetricsHandlerServesExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", NewMetricsHandler(service.NewMetricsService()).Prometheus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edupage_connection_up")

	r = gin.New()
	r.GET("/metrics", NewMetricsHandler(nil).Prometheus)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
