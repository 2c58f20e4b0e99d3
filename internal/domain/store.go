package domain

import (
	"context"
	"time"
)

// Store is the persistence collaborator. Both operations may fail per call.
type Store interface {
	Upsert(ctx context.Context, record ScoredRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
