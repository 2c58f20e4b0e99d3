package scraper

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/couchcryptid/eventrank/internal/domain"
)

//go:embed event_feed.schema.json
var eventFeedSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// feedItem is one validated entry of a JSON event feed.
type feedItem struct {
	ID              itemID   `json:"id"`
	Title           string   `json:"title"`
	Description     *string  `json:"description"`
	Start           string   `json:"start"`
	End             *string  `json:"end"`
	Venue           *string  `json:"venue"`
	Address         *string  `json:"address"`
	Category        *string  `json:"category"`
	AgeMin          *int     `json:"age_min"`
	AgeMax          *int     `json:"age_max"`
	PriceAdult      *float64 `json:"price_adult"`
	PriceChild      *float64 `json:"price_child"`
	PriceFamily     *float64 `json:"price_family"`
	Outdoor         *bool    `json:"outdoor"`
	DurationMinutes *int     `json:"duration_minutes"`
	ImageURL        *string  `json:"image_url"`
	URL             *string  `json:"url"`
}

// itemID accepts both string and integer identifiers.
type itemID string

func (id *itemID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = itemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or integer")
	}
	*id = itemID(n.String())
	return nil
}

// JSONSource reads a JSON feed of events: either a top-level array or an
// object with an "events" array. Each item is checked against the embedded
// schema; invalid items are reported in the result's errors and skipped.
type JSONSource struct {
	name    string
	url     string
	fetcher Fetcher
}

// NewJSONSource creates a feed scraper.
func NewJSONSource(name, url string, fetcher Fetcher) *JSONSource {
	return &JSONSource{name: name, url: url, fetcher: fetcher}
}

func (s *JSONSource) Name() string { return s.name }

// Scrape fetches and decodes the feed. It never returns an error; failures
// are collected in ScrapeResult.Errors.
func (s *JSONSource) Scrape(ctx context.Context) domain.ScrapeResult {
	start := time.Now()
	result := domain.ScrapeResult{Source: s.name}

	body, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch feed: %v", err))
		result.Duration = time.Since(start)
		return result
	}

	result.Records, result.Errors = DecodeFeed(s.name, body)
	result.Duration = time.Since(start)
	return result
}

// DecodeFeed parses a feed body for source name. Items that fail the schema
// are skipped and reported in errs.
func DecodeFeed(name string, body []byte) (records []domain.RawRecord, errs []string) {
	items, err := splitFeed(body)
	if err != nil {
		return nil, []string{fmt.Sprintf("decode feed: %v", err)}
	}
	for i, raw := range items {
		rec, err := parseItem(name, raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func splitFeed(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var wrapped struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Events, nil
}

func parseItem(name string, raw json.RawMessage) (domain.RawRecord, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("decode item JSON: %w", err)
	}
	schema, err := loadSchema()
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return domain.RawRecord{}, fmt.Errorf("schema validation failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var item feedItem
	if err := dec.Decode(&item); err != nil {
		return domain.RawRecord{}, fmt.Errorf("unmarshal item: %w", err)
	}
	return toRecord(name, item)
}

func toRecord(name string, item feedItem) (domain.RawRecord, error) {
	start, err := time.Parse(time.RFC3339, item.Start)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("start must be RFC3339: %w", err)
	}
	rec := domain.RawRecord{
		ExternalID:      name + "-" + strings.TrimSpace(string(item.ID)),
		Source:          name,
		Title:           item.Title,
		Description:     deref(item.Description),
		StartDateTime:   start,
		LocationName:    deref(item.Venue),
		Address:         deref(item.Address),
		Category:        deref(item.Category),
		AgeMin:          item.AgeMin,
		AgeMax:          item.AgeMax,
		AdultPrice:      item.PriceAdult,
		ChildPrice:      item.PriceChild,
		FamilyPrice:     item.PriceFamily,
		IsOutdoor:       item.Outdoor,
		DurationMinutes: item.DurationMinutes,
		ImageURL:        deref(item.ImageURL),
		BookingURL:      deref(item.URL),
	}
	if item.End != nil {
		end, err := time.Parse(time.RFC3339, *item.End)
		if err != nil {
			return domain.RawRecord{}, fmt.Errorf("end must be RFC3339: %w", err)
		}
		rec.EndDateTime = &end
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("event_feed.schema.json", strings.NewReader(eventFeedSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("event_feed.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("item is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("item contains trailing content")
	}
	return value, nil
}
