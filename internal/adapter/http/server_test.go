package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/eventrank/internal/adapter/http"
	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRuns struct {
	triggerErr error
	triggered  []string
	statuses   map[string]pipeline.RunStatus
}

func (m *mockRuns) Trigger(trigger pipeline.Trigger, source string) (string, error) {
	if m.triggerErr != nil {
		return "", m.triggerErr
	}
	m.triggered = append(m.triggered, string(trigger)+":"+source)
	return "run-42", nil
}

func (m *mockRuns) Status(id string) (pipeline.RunStatus, error) {
	st, ok := m.statuses[id]
	if !ok {
		return pipeline.RunStatus{}, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, id)
	}
	return st, nil
}

func (m *mockRuns) Recent() []pipeline.RunStatus {
	out := make([]pipeline.RunStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, st)
	}
	return out
}

type mockRanker struct {
	gotProfile domain.AudienceProfile
	gotFrom    time.Time
	gotLimit   int
	err        error
}

func (m *mockRanker) Top(_ context.Context, p domain.AudienceProfile, from time.Time, limit int) ([]domain.ScoredRecord, error) {
	m.gotProfile, m.gotFrom, m.gotLimit = p, from, limit
	if m.err != nil {
		return nil, m.err
	}
	return []domain.ScoredRecord{{
		GeoRecord:   domain.GeoRecord{RawRecord: domain.RawRecord{ExternalID: "divadlo-1", Title: "Koncert"}},
		ScoreChild:  88,
		ScoreFamily: 75,
	}}, nil
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestServer(readyErr error, runs *mockRuns, ranker *mockRanker) *httpadapter.Server {
	if runs == nil {
		runs = &mockRuns{}
	}
	var r httpadapter.EventRanker
	if ranker != nil {
		r = ranker
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runs, r,
		clockwork.NewFakeClockAt(testNow), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, srv http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func TestHealthzReturns200(t *testing.T) {
	rec, body := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec, body := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec, body := do(t, newTestServer(errors.New("store unavailable"), nil, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "store unavailable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTriggerRun(t *testing.T) {
	runs := &mockRuns{}
	rec, body := do(t, newTestServer(nil, runs, nil), http.MethodPost, "/runs?source=divadlo")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "run-42", body["run_id"])
	assert.Equal(t, "/runs/run-42", body["status_url"])
	assert.Equal(t, []string{"manual:divadlo"}, runs.triggered)
}

func TestTriggerRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", pipeline.ErrRunInProgress, http.StatusConflict},
		{"unknown source", fmt.Errorf("%w: %q", pipeline.ErrUnknownSource, "x"), http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, newTestServer(nil, &mockRuns{triggerErr: tt.err}, nil), http.MethodPost, "/runs")
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRunStatus(t *testing.T) {
	runs := &mockRuns{statuses: map[string]pipeline.RunStatus{
		"run-1": {ID: "run-1", Trigger: pipeline.TriggerManual, State: pipeline.StateSucceeded, StartedAt: testNow},
	}}
	srv := newTestServer(nil, runs, nil)

	rec, body := do(t, srv, http.MethodGet, "/runs/run-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "succeeded", body["state"])
	assert.Equal(t, "manual", body["trigger"])

	rec, _ = do(t, srv, http.MethodGet, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, srv, http.MethodGet, "/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.IsType(t, []any{}, body["runs"])
	assert.Len(t, body["runs"], 1)
}

func TestEvents(t *testing.T) {
	ranker := &mockRanker{}
	srv := newTestServer(nil, nil, ranker)

	rec, body := do(t, srv, http.MethodGet, "/events?profile=child&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "child", body["profile"])
	assert.Len(t, body["events"], 1)
	assert.Equal(t, domain.ProfileChild, ranker.gotProfile)
	assert.Equal(t, 5, ranker.gotLimit)
	assert.Equal(t, testNow, ranker.gotFrom)

	rec, _ = do(t, srv, http.MethodGet, "/events")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ProfileFamily, ranker.gotProfile)
	assert.Equal(t, 20, ranker.gotLimit)
}

func TestEvents_BadRequest(t *testing.T) {
	srv := newTestServer(nil, nil, &mockRanker{})
	for _, target := range []string{"/events?profile=teen", "/events?limit=0", "/events?limit=500", "/events?limit=ten"} {
		rec, _ := do(t, srv, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestEvents_DisabledWithoutRanker(t *testing.T) {
	rec, _ := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
