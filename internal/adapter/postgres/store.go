// Package postgres persists scored records and audit entries through GORM.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// Store implements domain.Store and domain.AuditLog on PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Options tunes connection start-up. The wait between attempts starts at
// RetryInterval and doubles up to MaxRetryInterval.
type Options struct {
	ConnectAttempts  int
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

// Open connects to dsn, retrying while the database comes up, and migrates
// the schema.
func Open(ctx context.Context, dsn string, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 10
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.MaxRetryInterval < opts.RetryInterval {
		opts.MaxRetryInterval = 8 * opts.RetryInterval
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	s := &Store{db: db, logger: logger}
	backoff := opts.RetryInterval
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		if err = s.Ping(ctx); err == nil {
			break
		}
		logger.Warn("database not ready", "attempt", attempt, "retry_in", backoff, "error", err)
		if attempt == opts.ConnectAttempts {
			break
		}
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, opts.MaxRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after %d attempts: %w", opts.ConnectAttempts, err)
	}

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&eventRow{}, &scrapeLogRow{})
}

// Upsert inserts the record or overwrites every column of the row with the
// same external ID.
func (s *Store) Upsert(ctx context.Context, record domain.ScoredRecord) error {
	row := toRow(record)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", record.ExternalID, err)
	}
	return nil
}

// DeleteOlderThan removes events that started before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("start_date_time < ?", cutoff).Delete(&eventRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete events before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}

// Append writes one audit entry to the scrape log.
func (s *Store) Append(ctx context.Context, entry domain.AuditEntry) error {
	row := toLogRow(entry)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append scrape log: %w", err)
	}
	return nil
}

// Get loads one event by external ID.
func (s *Store) Get(ctx context.Context, externalID string) (domain.ScoredRecord, error) {
	var row eventRow
	if err := s.db.WithContext(ctx).First(&row, "external_id = ?", externalID).Error; err != nil {
		return domain.ScoredRecord{}, fmt.Errorf("get %s: %w", externalID, err)
	}
	return fromRow(row), nil
}

// Top returns the highest-scoring upcoming events for a profile.
func (s *Store) Top(ctx context.Context, p domain.AudienceProfile, from time.Time, limit int) ([]domain.ScoredRecord, error) {
	var rows []eventRow
	err := s.db.WithContext(ctx).
		Where("start_date_time >= ?", from).
		Order(clause.OrderByColumn{Column: clause.Column{Name: scoreColumn(p)}, Desc: true}).
		Order("start_date_time").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top %s events: %w", p, err)
	}
	out := make([]domain.ScoredRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func scoreColumn(p domain.AudienceProfile) string {
	return "score_" + p.String()
}
