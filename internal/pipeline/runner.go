package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eventrank/internal/observability"
)

var (
	// ErrRunInProgress is returned when a run is requested while another
	// holds the run-lock.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
	// ErrRunNotFound is returned for an unknown or evicted run ID.
	ErrRunNotFound = errors.New("run not found")
)

// maxRunHistory is how many finished runs stay queryable.
const maxRunHistory = 50

// Trigger names what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerCLI      Trigger = "cli"
)

// RunState is the lifecycle state of a run.
type RunState string

const (
	StateRunning   RunState = "running"
	StateSucceeded RunState = "succeeded"
	StateFailed    RunState = "failed"
)

// RunStatus is the pollable view of one run.
type RunStatus struct {
	ID         string     `json:"id"`
	Trigger    Trigger    `json:"trigger"`
	Source     string     `json:"source,omitempty"`
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Report     *RunReport `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Executor runs one pipeline pass. *Pipeline implements it.
type Executor interface {
	Run(ctx context.Context, runID, source string) (RunReport, error)
	HasSource(name string) bool
}

// Runner serializes pipeline runs behind a single run-lock and tracks their
// status. Scheduled, manual and CLI runs share the lock.
type Runner struct {
	exec    Executor
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	lock chan struct{}

	mu   sync.Mutex
	runs []*RunStatus // oldest first
	byID map[string]*RunStatus

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewRunner creates a Runner around exec.
func NewRunner(exec Executor, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		exec:    exec,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		lock:    make(chan struct{}, 1),
		byID:    make(map[string]*RunStatus),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Trigger starts a run in the background and returns its ID immediately. An
// empty source runs every source.
func (r *Runner) Trigger(trigger Trigger, source string) (string, error) {
	st, err := r.acquire(trigger, source)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(r.baseCtx, st)
	}()
	return st.ID, nil
}

// RunNow runs synchronously and returns the final status. The error is the
// run's own failure, or an admission error from the run-lock.
func (r *Runner) RunNow(ctx context.Context, trigger Trigger, source string) (RunStatus, error) {
	st, err := r.acquire(trigger, source)
	if err != nil {
		return RunStatus{}, err
	}
	runErr := r.execute(ctx, st)
	status, _ := r.Status(st.ID)
	return status, runErr
}

// Running reports whether a run holds the lock.
func (r *Runner) Running() bool {
	return len(r.lock) == 1
}

// Status returns a snapshot of the run with id.
func (r *Runner) Status(id string) (RunStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[id]
	if !ok {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return *st, nil
}

// Recent returns snapshots of the retained runs, newest first.
func (r *Runner) Recent() []RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunStatus, 0, len(r.runs))
	for i := len(r.runs) - 1; i >= 0; i-- {
		out = append(out, *r.runs[i])
	}
	return out
}

// Shutdown waits for a background run to finish. When ctx expires first the
// run is cancelled and Shutdown returns ctx's error once it has stopped.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.logger.Warn("cancelling in-flight pipeline run")
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) acquire(trigger Trigger, source string) (*RunStatus, error) {
	if source != "" && !r.exec.HasSource(source) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	select {
	case r.lock <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}

	st := &RunStatus{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Source:    source,
		State:     StateRunning,
		StartedAt: r.clock.Now(),
	}
	r.mu.Lock()
	r.runs = append(r.runs, st)
	r.byID[st.ID] = st
	r.evict()
	r.mu.Unlock()
	return st, nil
}

// evict drops the oldest finished runs beyond maxRunHistory. Caller holds mu.
func (r *Runner) evict() {
	for len(r.runs) > maxRunHistory && r.runs[0].State != StateRunning {
		delete(r.byID, r.runs[0].ID)
		r.runs = r.runs[1:]
	}
}

func (r *Runner) execute(ctx context.Context, st *RunStatus) error {
	defer func() { <-r.lock }()

	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	r.logger.Info("run triggered", "run_id", st.ID, "trigger", st.Trigger, "source", st.Source)
	report, err := r.exec.Run(ctx, st.ID, st.Source)

	finished := r.clock.Now()
	outcome := StateSucceeded
	if err != nil {
		outcome = StateFailed
	}
	r.metrics.RunsTotal.WithLabelValues(string(st.Trigger), string(outcome)).Inc()
	r.metrics.RunDuration.Observe(finished.Sub(st.StartedAt).Seconds())

	r.mu.Lock()
	st.State = outcome
	st.FinishedAt = &finished
	st.Report = &report
	if err != nil {
		st.Error = err.Error()
	}
	r.evict()
	r.mu.Unlock()
	return err
}
