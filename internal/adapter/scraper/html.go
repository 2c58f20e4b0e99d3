package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// Selectors maps listing fields to CSS selectors relative to one Item.
// A selector may end in "@attr" to read an attribute instead of the text,
// e.g. "img@src".
type Selectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Date        string `yaml:"date"`
	EndDate     string `yaml:"end_date"`
	Location    string `yaml:"location"`
	Address     string `yaml:"address"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Age         string `yaml:"age"`
	Duration    string `yaml:"duration"`
	Image       string `yaml:"image"`
	Link        string `yaml:"link"`
}

// HTMLSource scrapes an event listing page with CSS selectors.
type HTMLSource struct {
	name    string
	pageURL string
	sel     Selectors
	fetcher Fetcher
	loc     *time.Location
	outdoor *bool
}

// NewHTMLSource creates a listing-page scraper. Dates without a zone are read
// in loc. outdoor, when set, marks every record from this source.
func NewHTMLSource(name, pageURL string, sel Selectors, fetcher Fetcher, loc *time.Location, outdoor *bool) *HTMLSource {
	return &HTMLSource{name: name, pageURL: pageURL, sel: sel, fetcher: fetcher, loc: loc, outdoor: outdoor}
}

func (s *HTMLSource) Name() string { return s.name }

// Scrape fetches the listing page and extracts one record per item. It never
// returns an error; failures are collected in ScrapeResult.Errors.
func (s *HTMLSource) Scrape(ctx context.Context) domain.ScrapeResult {
	start := time.Now()
	result := domain.ScrapeResult{Source: s.name}

	body, err := s.fetcher.Fetch(ctx, s.pageURL)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch page: %v", err))
		result.Duration = time.Since(start)
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("parse page: %v", err))
		result.Duration = time.Since(start)
		return result
	}

	items := doc.Find(s.sel.Item)
	if items.Length() == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("no items match %q", s.sel.Item))
	}
	items.Each(func(i int, item *goquery.Selection) {
		rec, err := s.parseItem(item)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, err))
			return
		}
		result.Records = append(result.Records, rec)
	})

	result.Duration = time.Since(start)
	return result
}

func (s *HTMLSource) parseItem(item *goquery.Selection) (domain.RawRecord, error) {
	title := extract(item, s.sel.Title)
	if title == "" {
		return domain.RawRecord{}, fmt.Errorf("missing title")
	}
	dateText := extract(item, s.sel.Date)
	start, err := ParseDate(dateText, s.loc)
	if err != nil {
		return domain.RawRecord{}, err
	}

	link := s.resolve(extract(item, s.sel.Link))
	rec := domain.RawRecord{
		ExternalID:    s.externalID(link, title, dateText),
		Source:        s.name,
		Title:         title,
		Description:   extract(item, s.sel.Description),
		StartDateTime: start,
		LocationName:  extract(item, s.sel.Location),
		Address:       extract(item, s.sel.Address),
		Category:      extract(item, s.sel.Category),
		ImageURL:      s.resolve(extract(item, s.sel.Image)),
		BookingURL:    link,
		IsOutdoor:     s.outdoor,
	}
	if endText := extract(item, s.sel.EndDate); endText != "" {
		if end, err := ParseDate(endText, s.loc); err == nil && !end.Before(start) {
			rec.EndDateTime = &end
		}
	}
	rec.AdultPrice, rec.ChildPrice, rec.FamilyPrice = ParsePrices(extract(item, s.sel.Price))
	rec.AgeMin, rec.AgeMax = ParseAges(extract(item, s.sel.Age))
	rec.DurationMinutes = ParseDuration(extract(item, s.sel.Duration))
	return rec, nil
}

// externalID derives a stable ID from the detail link, or from title and
// date when the listing has no link.
func (s *HTMLSource) externalID(link, title, date string) string {
	key := link
	if key == "" {
		key = title + "|" + date
	}
	return s.name + "-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.name+"|"+key)).String()
}

func (s *HTMLSource) resolve(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(s.pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// extract returns the trimmed text or attribute addressed by selector.
func extract(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	sel, attr, hasAttr := strings.Cut(selector, "@")
	node := item
	if sel != "" {
		node = item.Find(sel).First()
	}
	if hasAttr {
		v, _ := node.Attr(attr)
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(node.Text()), " ")
}
