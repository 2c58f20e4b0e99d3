package pipeline

import "github.com/couchcryptid/eventrank/internal/domain"

// SourceOutcome is the scrape result of one source within a run.
type SourceOutcome struct {
	Source     string             `json:"source"`
	Status     domain.StageStatus `json:"status"`
	CountFound int                `json:"count_found"`
	Invalid    int                `json:"invalid"`
	Errors     []string           `json:"errors,omitempty"`
	DurationMs int64              `json:"duration_ms"`
}

// RunReport summarizes the record counts of every stage of one run.
type RunReport struct {
	RunID          string          `json:"run_id"`
	Sources        []SourceOutcome `json:"sources"`
	Scraped        int             `json:"scraped"`
	Invalid        int             `json:"invalid"`
	Deduplicated   int             `json:"deduplicated"`
	Unplaceable    int             `json:"dropped_unplaceable"`
	OutOfRadius    int             `json:"dropped_out_of_radius"`
	Unresolved     int             `json:"unresolved"`
	WeatherDays    int             `json:"weather_days"`
	Scored         int             `json:"scored"`
	Upserted       int             `json:"upserted"`
	UpsertFailures int             `json:"upsert_failures"`
	Published      int             `json:"published"`
	Pruned         int64           `json:"pruned"`
	DurationMs     int64           `json:"duration_ms"`
}

// FailedSources lists the sources whose scrape ended in error.
func (r RunReport) FailedSources() []string {
	var names []string
	for _, s := range r.Sources {
		if s.Status == domain.StatusError {
			names = append(names, s.Source)
		}
	}
	return names
}
