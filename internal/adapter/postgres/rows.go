package postgres

import (
	"time"

	"github.com/lib/pq"

	"github.com/couchcryptid/eventrank/internal/dedup"
	"github.com/couchcryptid/eventrank/internal/domain"
)

// eventRow is the events table. Sources holds the individual source names of
// a merged record so the presentation layer can filter with ANY().
type eventRow struct {
	ExternalID         string         `gorm:"primaryKey;column:external_id"`
	Source             string         `gorm:"not null"`
	Sources            pq.StringArray `gorm:"type:text[]"`
	Title              string         `gorm:"not null"`
	Description        string
	StartDateTime      time.Time `gorm:"not null;index"`
	EndDateTime        *time.Time
	LocationName       string
	Address            string
	Category           string
	AgeMin             *int
	AgeMax             *int
	AdultPrice         *float64
	ChildPrice         *float64
	FamilyPrice        *float64
	IsOutdoor          *bool
	DurationMinutes    *int
	ImageURL           string
	BookingURL         string
	Latitude           *float64
	Longitude          *float64
	DistanceFromOrigin *float64
	ScoreInfant        int       `gorm:"not null;index"`
	ScoreChild         int       `gorm:"not null;index"`
	ScoreFamily        int       `gorm:"not null;index"`
	ProcessedAt        time.Time `gorm:"not null"`
	UpdatedAt          time.Time
}

func (eventRow) TableName() string { return "events" }

// scrapeLogRow is the append-only audit table.
type scrapeLogRow struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	Source     string `gorm:"not null;index"`
	Status     string `gorm:"not null"`
	CountFound int
	ErrorText  string
	DurationMs int64
	CreatedAt  time.Time `gorm:"index"`
}

func (scrapeLogRow) TableName() string { return "scrape_logs" }

func toRow(r domain.ScoredRecord) eventRow {
	return eventRow{
		ExternalID:         r.ExternalID,
		Source:             r.Source,
		Sources:            pq.StringArray(dedup.Sources(r.Source)),
		Title:              r.Title,
		Description:        r.Description,
		StartDateTime:      r.StartDateTime,
		EndDateTime:        r.EndDateTime,
		LocationName:       r.LocationName,
		Address:            r.Address,
		Category:           r.Category,
		AgeMin:             r.AgeMin,
		AgeMax:             r.AgeMax,
		AdultPrice:         r.AdultPrice,
		ChildPrice:         r.ChildPrice,
		FamilyPrice:        r.FamilyPrice,
		IsOutdoor:          r.IsOutdoor,
		DurationMinutes:    r.DurationMinutes,
		ImageURL:           r.ImageURL,
		BookingURL:         r.BookingURL,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		DistanceFromOrigin: r.DistanceFromOrigin,
		ScoreInfant:        r.ScoreInfant,
		ScoreChild:         r.ScoreChild,
		ScoreFamily:        r.ScoreFamily,
		ProcessedAt:        r.ProcessedAt,
	}
}

func fromRow(row eventRow) domain.ScoredRecord {
	return domain.ScoredRecord{
		GeoRecord: domain.GeoRecord{
			RawRecord: domain.RawRecord{
				ExternalID:      row.ExternalID,
				Source:          row.Source,
				Title:           row.Title,
				Description:     row.Description,
				StartDateTime:   row.StartDateTime,
				EndDateTime:     row.EndDateTime,
				LocationName:    row.LocationName,
				Address:         row.Address,
				Category:        row.Category,
				AgeMin:          row.AgeMin,
				AgeMax:          row.AgeMax,
				AdultPrice:      row.AdultPrice,
				ChildPrice:      row.ChildPrice,
				FamilyPrice:     row.FamilyPrice,
				IsOutdoor:       row.IsOutdoor,
				DurationMinutes: row.DurationMinutes,
				ImageURL:        row.ImageURL,
				BookingURL:      row.BookingURL,
			},
			Latitude:           row.Latitude,
			Longitude:          row.Longitude,
			DistanceFromOrigin: row.DistanceFromOrigin,
		},
		ScoreInfant: row.ScoreInfant,
		ScoreChild:  row.ScoreChild,
		ScoreFamily: row.ScoreFamily,
		ProcessedAt: row.ProcessedAt,
	}
}

func toLogRow(e domain.AuditEntry) scrapeLogRow {
	return scrapeLogRow{
		RunID:      e.RunID,
		Source:     e.Source,
		Status:     string(e.Status),
		CountFound: e.CountFound,
		ErrorText:  e.ErrorText,
		DurationMs: e.Duration.Milliseconds(),
		CreatedAt:  e.CreatedAt,
	}
}
