package domain

import (
	"context"
	"time"
)

// ScrapeResult is what one scraper collaborator returns for a run.
type ScrapeResult struct {
	Source   string
	Records  []RawRecord
	Errors   []string
	Duration time.Duration
}

// Status classifies the result: any records with errors is partial, errors
// without records is an error.
func (r ScrapeResult) Status() StageStatus {
	switch {
	case len(r.Errors) == 0:
		return StatusSuccess
	case len(r.Records) > 0:
		return StatusPartial
	default:
		return StatusError
	}
}

// Source is a scraper collaborator. Scrape never fails; problems surface in
// ScrapeResult.Errors.
type Source interface {
	Name() string
	Scrape(ctx context.Context) ScrapeResult
}
