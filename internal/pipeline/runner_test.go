package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/eventrank/internal/observability"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

// stubExec stands in for the pipeline. When release is set, Run blocks until
// it is closed or ctx is cancelled.
type stubExec struct {
	sources map[string]bool
	release chan struct{}
	started chan string
	err     error

	mu    sync.Mutex
	calls int
}

func newStubExec() *stubExec {
	return &stubExec{
		sources: map[string]bool{"divadlo": true, "kultura": true},
		started: make(chan string, 8),
	}
}

func (e *stubExec) Run(ctx context.Context, runID, source string) (pipeline.RunReport, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	e.started <- source

	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return pipeline.RunReport{RunID: runID}, ctx.Err()
		}
	}
	return pipeline.RunReport{RunID: runID, Scored: 4, Upserted: 4}, e.err
}

func (e *stubExec) HasSource(name string) bool { return e.sources[name] }

func (e *stubExec) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newRunner(exec pipeline.Executor, clock clockwork.Clock) (*pipeline.Runner, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return pipeline.NewRunner(exec, clock, discardLogger(), metrics), metrics
}

func waitState(t *testing.T, r *pipeline.Runner, id string, want pipeline.RunState) pipeline.RunStatus {
	t.Helper()
	var st pipeline.RunStatus
	require.Eventually(t, func() bool {
		var err error
		st, err = r.Status(id)
		return err == nil && st.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestRunner_RunNow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	r, metrics := newRunner(newStubExec(), clock)

	st, err := r.RunNow(context.Background(), pipeline.TriggerCLI, "")
	require.NoError(t, err)

	assert.NotEmpty(t, st.ID)
	assert.Equal(t, pipeline.StateSucceeded, st.State)
	assert.Equal(t, pipeline.TriggerCLI, st.Trigger)
	assert.Equal(t, now, st.StartedAt)
	require.NotNil(t, st.FinishedAt)
	require.NotNil(t, st.Report)
	assert.Equal(t, st.ID, st.Report.RunID)
	assert.Equal(t, 4, st.Report.Upserted)
	assert.False(t, r.Running())

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("cli", "succeeded")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestRunner_RunNowFailure(t *testing.T) {
	exec := newStubExec()
	exec.err = errors.New("store unreachable")
	r, metrics := newRunner(exec, clockwork.NewFakeClockAt(now))

	st, err := r.RunNow(context.Background(), pipeline.TriggerSchedule, "")
	require.Error(t, err)

	assert.Equal(t, pipeline.StateFailed, st.State)
	assert.Equal(t, "store unreachable", st.Error)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("schedule", "failed")), 0)
}

func TestRunner_TriggerRejectsConcurrentRun(t *testing.T) {
	exec := newStubExec()
	exec.release = make(chan struct{})
	r, metrics := newRunner(exec, clockwork.NewFakeClockAt(now))

	id, err := r.Trigger(pipeline.TriggerManual, "divadlo")
	require.NoError(t, err)
	assert.Equal(t, "divadlo", <-exec.started)
	assert.True(t, r.Running())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRunning), 0)

	running, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateRunning, running.State)
	assert.Nil(t, running.FinishedAt)

	_, err = r.Trigger(pipeline.TriggerManual, "")
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)
	_, err = r.RunNow(context.Background(), pipeline.TriggerSchedule, "")
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)

	close(exec.release)
	st := waitState(t, r, id, pipeline.StateSucceeded)
	assert.Equal(t, "divadlo", st.Source)
	assert.Equal(t, 1, exec.Calls())

	// The lock is free again.
	exec.release = nil
	_, err = r.RunNow(context.Background(), pipeline.TriggerManual, "")
	require.NoError(t, err)
	assert.Equal(t, 2, exec.Calls())
}

func TestRunner_UnknownSource(t *testing.T) {
	exec := newStubExec()
	r, _ := newRunner(exec, clockwork.NewFakeClockAt(now))

	_, err := r.Trigger(pipeline.TriggerManual, "nope")
	require.ErrorIs(t, err, pipeline.ErrUnknownSource)
	assert.Zero(t, exec.Calls())
	assert.Empty(t, r.Recent())
}

func TestRunner_StatusNotFound(t *testing.T) {
	r, _ := newRunner(newStubExec(), clockwork.NewFakeClockAt(now))

	_, err := r.Status("missing")
	require.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestRunner_RecentNewestFirstAndBounded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	r, _ := newRunner(newStubExec(), clock)

	var ids []string
	for range 55 {
		st, err := r.RunNow(context.Background(), pipeline.TriggerManual, "")
		require.NoError(t, err)
		ids = append(ids, st.ID)
		clock.Advance(time.Minute)
	}

	recent := r.Recent()
	require.Len(t, recent, 50)
	assert.Equal(t, ids[54], recent[0].ID)
	assert.Equal(t, ids[5], recent[49].ID)

	_, err := r.Status(ids[0])
	require.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestRunner_ShutdownWaitsForRun(t *testing.T) {
	exec := newStubExec()
	exec.release = make(chan struct{})
	r, _ := newRunner(exec, clockwork.NewFakeClockAt(now))

	id, err := r.Trigger(pipeline.TriggerManual, "")
	require.NoError(t, err)
	<-exec.started

	done := make(chan error, 1)
	go func() { done <- r.Shutdown(context.Background()) }()

	select {
	case <-done:
		t.Fatal("shutdown returned while a run was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(exec.release)
	require.NoError(t, <-done)
	st, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateSucceeded, st.State)
}

func TestRunner_ShutdownCancelsOnTimeout(t *testing.T) {
	exec := newStubExec()
	exec.release = make(chan struct{})
	r, _ := newRunner(exec, clockwork.NewFakeClockAt(now))

	id, err := r.Trigger(pipeline.TriggerManual, "")
	require.NoError(t, err)
	<-exec.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Shutdown(ctx), context.Canceled)

	st, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateFailed, st.State)
	assert.Equal(t, context.Canceled.Error(), st.Error)
}
