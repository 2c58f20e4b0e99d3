package domain

import (
	"context"
	"time"
)

// StageStatus is the outcome recorded for a source or stage.
type StageStatus string

const (
	StatusSuccess StageStatus = "success"
	StatusPartial StageStatus = "partial"
	StatusError   StageStatus = "error"
)

// WorkflowSource is the audit source name used for run-level entries.
const WorkflowSource = "workflow"

// Audit source names for pipeline stages that are not scrapers.
const (
	StageDedup   = "dedup"
	StageGeocode = "geocode"
	StageWeather = "weather"
	StageScore   = "score"
	StageUpsert  = "upsert"
	StagePublish = "publish"
	StagePrune   = "prune"
)

// AuditEntry is one append-only outcome record.
type AuditEntry struct {
	RunID      string
	Source     string
	Status     StageStatus
	CountFound int
	ErrorText  string
	Duration   time.Duration
	CreatedAt  time.Time
}

// AuditLog is the append-only audit sink.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
}
