package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eventrank/internal/dedup"
	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/geo"
	"github.com/couchcryptid/eventrank/internal/observability"
	"github.com/couchcryptid/eventrank/internal/scoring"
)

var (
	// ErrUnknownSource is returned when a run is scoped to a source that is
	// not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrRunAborted wraps a panic that escaped every stage guard.
	ErrRunAborted = errors.New("pipeline run aborted")
)

// maxErrorText bounds the error text stored in one audit entry.
const maxErrorText = 2000

// Publisher forwards scored records downstream after they are persisted.
type Publisher interface {
	Publish(ctx context.Context, records []domain.ScoredRecord) (int, error)
}

// Deps are the collaborators a run talks to. Weather and Publisher may be nil.
type Deps struct {
	Sources   []domain.Source
	Geocoder  domain.Geocoder
	Weather   domain.WeatherProvider
	Store     domain.Store
	Audit     domain.AuditLog
	Publisher Publisher
}

// Options are the run tunables.
type Options struct {
	Origin         geo.Point
	RadiusKm       float64
	DedupThreshold float64
	ScrapeDelay    time.Duration
	Retention      time.Duration
	Location       *time.Location
}

// Pipeline sequences scrape, dedup, spatial filter, scoring, persistence and
// pruning for one run. Failures inside a stage are logged and audited; they
// never stop the run.
type Pipeline struct {
	sources   []domain.Source
	filter    *geo.Filter
	weather   domain.WeatherProvider
	engine    *scoring.Engine
	store     domain.Store
	audit     domain.AuditLog
	publisher Publisher
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline.
func New(deps Deps, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = dedup.DefaultThreshold
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Pipeline{
		sources:   deps.Sources,
		filter:    geo.NewFilter(deps.Geocoder, opts.Origin, opts.RadiusKm, logger),
		weather:   deps.Weather,
		engine:    scoring.NewEngine(opts.Location),
		store:     deps.Store,
		audit:     deps.Audit,
		publisher: deps.Publisher,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness pings the store when it supports it.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	pinger, ok := p.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

// SourceNames lists the registered sources in run order.
func (p *Pipeline) SourceNames() []string {
	names := make([]string, len(p.sources))
	for i, s := range p.sources {
		names[i] = s.Name()
	}
	return names
}

// HasSource reports whether name is a registered source.
func (p *Pipeline) HasSource(name string) bool {
	for _, s := range p.sources {
		if s.Name() == name {
			return true
		}
	}
	return false
}

// Run executes one pass over every source, or only the named one. The
// returned error is non-nil only for an unknown source, a cancelled context,
// or a panic that escaped the stage guards; the report then holds whatever
// was completed.
func (p *Pipeline) Run(ctx context.Context, runID, source string) (report RunReport, err error) {
	sources, err := p.selectSources(source)
	if err != nil {
		return RunReport{RunID: runID}, err
	}

	start := p.clock.Now()
	rep := &RunReport{RunID: runID}
	p.logger.Info("pipeline run started", "run_id", runID, "sources", len(sources))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRunAborted, r)
			p.logger.Error("pipeline run aborted", "run_id", runID, "panic", r, "stack", string(debug.Stack()))
		}
		rep.DurationMs = p.clock.Since(start).Milliseconds()
		p.recordWorkflow(ctx, *rep, err)
		report = *rep
	}()

	err = p.execute(ctx, runID, sources, rep)
	return *rep, err
}

func (p *Pipeline) selectSources(name string) ([]domain.Source, error) {
	if name == "" {
		return p.sources, nil
	}
	for _, s := range p.sources {
		if s.Name() == name {
			return []domain.Source{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

func (p *Pipeline) execute(ctx context.Context, runID string, sources []domain.Source, rep *RunReport) error {
	raw, err := p.scrape(ctx, runID, sources, rep)
	if err != nil {
		return err
	}
	unique := p.deduplicate(ctx, runID, raw, rep)
	placed := p.place(ctx, runID, unique, rep)
	if err := ctx.Err(); err != nil {
		return err
	}
	forecast := p.forecast(ctx, runID, rep)
	scored := p.score(ctx, runID, placed, forecast, rep)
	p.persist(ctx, runID, scored, rep)
	p.publish(ctx, runID, scored, rep)
	p.prune(ctx, runID, rep)
	return nil
}

// scrape invokes each source in turn with the configured delay between calls.
func (p *Pipeline) scrape(ctx context.Context, runID string, sources []domain.Source, rep *RunReport) ([]domain.RawRecord, error) {
	var all []domain.RawRecord
	for i, src := range sources {
		if i > 0 && !p.sleep(ctx, p.opts.ScrapeDelay) {
			return nil, ctx.Err()
		}

		result := p.scrapeOne(ctx, src)
		checked := p.validate(result)
		valid, errs := checked.Records, checked.Errors
		status := checked.Status()
		invalid := len(result.Records) - len(valid)

		outcome := SourceOutcome{
			Source:     result.Source,
			Status:     status,
			CountFound: len(valid),
			Invalid:    invalid,
			Errors:     errs,
			DurationMs: result.Duration.Milliseconds(),
		}
		rep.Sources = append(rep.Sources, outcome)
		rep.Scraped += len(result.Records)
		rep.Invalid += invalid

		p.metrics.SourceRecords.WithLabelValues(result.Source, string(status)).Add(float64(len(valid)))
		p.metrics.RecordsStage.WithLabelValues("scraped").Add(float64(len(result.Records)))
		p.metrics.RecordsStage.WithLabelValues("invalid").Add(float64(invalid))

		attrs := []any{
			"run_id", runID,
			"source", result.Source,
			"status", status,
			"count_found", len(valid),
			"invalid", invalid,
			"duration_ms", outcome.DurationMs,
		}
		if len(errs) > 0 {
			p.logger.Warn("source scraped with errors", append(attrs, "error", errorText(errs))...)
		} else {
			p.logger.Info("source scraped", attrs...)
		}
		p.record(ctx, domain.AuditEntry{
			RunID:      runID,
			Source:     result.Source,
			Status:     status,
			CountFound: len(valid),
			ErrorText:  errorText(errs),
			Duration:   result.Duration,
		})

		all = append(all, valid...)
	}
	return all, nil
}

// scrapeOne shields the run from a scraper that breaks its never-fail
// contract.
func (p *Pipeline) scrapeOne(ctx context.Context, src domain.Source) (result domain.ScrapeResult) {
	start := p.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			result = domain.ScrapeResult{
				Source:   src.Name(),
				Errors:   []string{fmt.Sprintf("scraper panicked: %v", r)},
				Duration: p.clock.Since(start),
			}
		}
	}()
	result = src.Scrape(ctx)
	if result.Source == "" {
		result.Source = src.Name()
	}
	return result
}

// validate normalizes each record and drops the ones that break record
// invariants. The returned result carries scrape and validation errors together.
func (p *Pipeline) validate(result domain.ScrapeResult) domain.ScrapeResult {
	errs := append([]string(nil), result.Errors...)
	valid := make([]domain.RawRecord, 0, len(result.Records))
	for _, r := range result.Records {
		r = domain.Normalize(r)
		if r.Source == "" {
			r.Source = result.Source
		}
		if err := domain.Validate(r); err != nil {
			errs = append(errs, fmt.Sprintf("record %q: %v", r.ExternalID, err))
			continue
		}
		valid = append(valid, r)
	}
	result.Records, result.Errors = valid, errs
	return result
}

func (p *Pipeline) deduplicate(ctx context.Context, runID string, raw []domain.RawRecord, rep *RunReport) []domain.RawRecord {
	start := p.clock.Now()
	unique := dedup.Deduplicate(raw, p.opts.DedupThreshold)
	rep.Deduplicated = len(unique)
	p.metrics.RecordsStage.WithLabelValues("deduplicated").Add(float64(len(unique)))

	p.logger.Info("records deduplicated",
		"run_id", runID,
		"input", len(raw),
		"count_found", len(unique),
		"merged", len(raw)-len(unique),
	)
	p.record(ctx, domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StageDedup,
		Status:     domain.StatusSuccess,
		CountFound: len(unique),
		Duration:   p.clock.Since(start),
	})
	return unique
}

func (p *Pipeline) place(ctx context.Context, runID string, records []domain.RawRecord, rep *RunReport) []domain.GeoRecord {
	start := p.clock.Now()
	placed, stats := p.filter.Apply(ctx, records)
	rep.Unplaceable = stats.Unplaceable
	rep.OutOfRadius = stats.OutOfRadius
	rep.Unresolved = stats.Unresolved
	p.metrics.RecordsStage.WithLabelValues("placed").Add(float64(stats.Kept))

	status, text := domain.StatusSuccess, ""
	if stats.Unresolved > 0 {
		status = domain.StatusPartial
		text = fmt.Sprintf("%d locations unresolved", stats.Unresolved)
	}
	p.logger.Info("records placed",
		"run_id", runID,
		"count_found", stats.Kept,
		"unplaceable", stats.Unplaceable,
		"out_of_radius", stats.OutOfRadius,
		"unresolved", stats.Unresolved,
	)
	p.record(ctx, domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StageGeocode,
		Status:     status,
		CountFound: stats.Kept,
		ErrorText:  text,
		Duration:   p.clock.Since(start),
	})
	return placed
}

// forecast fetches the multi-day forecast once per run. Without one, every
// record is scored with unknown weather.
func (p *Pipeline) forecast(ctx context.Context, runID string, rep *RunReport) domain.Forecast {
	if p.weather == nil {
		return nil
	}
	start := p.clock.Now()
	days, err := p.weather.Forecast(ctx, p.opts.Origin.Lat, p.opts.Origin.Lon)
	entry := domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StageWeather,
		Status:     domain.StatusSuccess,
		CountFound: len(days),
	}
	if err != nil {
		p.logger.Warn("weather forecast unavailable", "run_id", runID, "error", err)
		entry.Status = domain.StatusError
		entry.ErrorText = err.Error()
		entry.CountFound = 0
		days = nil
	}
	entry.Duration = p.clock.Since(start)
	p.record(ctx, entry)

	rep.WeatherDays = len(days)
	return domain.NewForecast(days)
}

func (p *Pipeline) score(ctx context.Context, runID string, records []domain.GeoRecord, forecast domain.Forecast, rep *RunReport) []domain.ScoredRecord {
	start := p.clock.Now()
	processedAt := p.clock.Now()
	scored := make([]domain.ScoredRecord, len(records))
	for i, r := range records {
		scored[i] = p.engine.ScoreAll(r, forecast, processedAt)
	}
	rep.Scored = len(scored)
	p.metrics.RecordsStage.WithLabelValues("scored").Add(float64(len(scored)))

	p.logger.Info("records scored", "run_id", runID, "count_found", len(scored), "forecast_days", len(forecast))
	p.record(ctx, domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StageScore,
		Status:     domain.StatusSuccess,
		CountFound: len(scored),
		Duration:   p.clock.Since(start),
	})
	return scored
}

// persist upserts every record, continuing past individual failures.
func (p *Pipeline) persist(ctx context.Context, runID string, records []domain.ScoredRecord, rep *RunReport) {
	start := p.clock.Now()
	var errs []string
	for _, r := range records {
		if err := p.store.Upsert(ctx, r); err != nil {
			rep.UpsertFailures++
			p.metrics.UpsertErrors.Inc()
			p.logger.Warn("upsert failed", "run_id", runID, "external_id", r.ExternalID, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", r.ExternalID, err))
			continue
		}
		rep.Upserted++
	}
	p.metrics.RecordsStage.WithLabelValues("upserted").Add(float64(rep.Upserted))

	p.logger.Info("records persisted", "run_id", runID, "count_found", rep.Upserted, "failed", rep.UpsertFailures)
	p.record(ctx, domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StageUpsert,
		Status:     stageStatus(rep.Upserted, len(errs)),
		CountFound: rep.Upserted,
		ErrorText:  errorText(errs),
		Duration:   p.clock.Since(start),
	})
}

func (p *Pipeline) publish(ctx context.Context, runID string, records []domain.ScoredRecord, rep *RunReport) {
	if p.publisher == nil || len(records) == 0 {
		return
	}
	start := p.clock.Now()
	n, err := p.publisher.Publish(ctx, records)
	rep.Published = n
	p.metrics.RecordsStage.WithLabelValues("published").Add(float64(n))

	entry := domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StagePublish,
		Status:     domain.StatusSuccess,
		CountFound: n,
	}
	if err != nil {
		p.logger.Warn("publish failed", "run_id", runID, "published", n, "error", err)
		entry.Status = stageStatus(n, 1)
		entry.ErrorText = err.Error()
	} else {
		p.logger.Info("records published", "run_id", runID, "count_found", n)
	}
	entry.Duration = p.clock.Since(start)
	p.record(ctx, entry)
}

// prune deletes persisted records that started before now minus retention.
func (p *Pipeline) prune(ctx context.Context, runID string, rep *RunReport) {
	if p.opts.Retention <= 0 {
		return
	}
	start := p.clock.Now()
	cutoff := start.Add(-p.opts.Retention)
	n, err := p.store.DeleteOlderThan(ctx, cutoff)

	entry := domain.AuditEntry{
		RunID:      runID,
		Source:     domain.StagePrune,
		Status:     domain.StatusSuccess,
		CountFound: int(n),
	}
	if err != nil {
		p.logger.Warn("prune failed", "run_id", runID, "cutoff", cutoff, "error", err)
		entry.Status = domain.StatusError
		entry.ErrorText = err.Error()
	} else {
		rep.Pruned = n
		p.metrics.RecordsStage.WithLabelValues("pruned").Add(float64(n))
		p.logger.Info("stale records pruned", "run_id", runID, "cutoff", cutoff, "count_found", n)
	}
	entry.Duration = p.clock.Since(start)
	p.record(ctx, entry)
}

func (p *Pipeline) recordWorkflow(ctx context.Context, rep RunReport, err error) {
	entry := domain.AuditEntry{
		RunID:      rep.RunID,
		Source:     domain.WorkflowSource,
		Status:     domain.StatusSuccess,
		CountFound: rep.Upserted,
		Duration:   time.Duration(rep.DurationMs) * time.Millisecond,
	}
	if err != nil {
		entry.Status = domain.StatusError
		entry.ErrorText = truncate(err.Error())
		p.logger.Error("pipeline run failed", "run_id", rep.RunID, "duration_ms", rep.DurationMs, "error", err)
	} else {
		p.logger.Info("pipeline run finished",
			"run_id", rep.RunID,
			"duration_ms", rep.DurationMs,
			"scraped", rep.Scraped,
			"upserted", rep.Upserted,
			"pruned", rep.Pruned,
		)
	}
	p.record(ctx, entry)
}

// record appends to the audit sink. Audit writes outlive a cancelled run so
// the abort itself is recorded.
func (p *Pipeline) record(ctx context.Context, entry domain.AuditEntry) {
	if p.audit == nil {
		return
	}
	entry.CreatedAt = p.clock.Now()
	if err := p.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Warn("audit append failed", "run_id", entry.RunID, "source", entry.Source, "error", err)
	}
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

// stageStatus classifies a stage the same way a scrape result is classified:
// any failure with some output is partial, failure without output is an error.
func stageStatus(ok, failed int) domain.StageStatus {
	switch {
	case failed == 0:
		return domain.StatusSuccess
	case ok > 0:
		return domain.StatusPartial
	default:
		return domain.StatusError
	}
}

func errorText(errs []string) string {
	return truncate(strings.Join(errs, "; "))
}

func truncate(s string) string {
	if len(s) <= maxErrorText {
		return s
	}
	cut := maxErrorText
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
