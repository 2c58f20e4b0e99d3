package scraper

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// Source kinds accepted in the registry file.
const (
	KindHTML = "html"
	KindJSON = "json"
)

// SourceSpec describes one scraper collaborator in sources.yaml.
type SourceSpec struct {
	Name      string    `yaml:"name"`
	Kind      string    `yaml:"type"`
	URL       string    `yaml:"url"`
	Render    bool      `yaml:"render"`
	Outdoor   *bool     `yaml:"outdoor"`
	Disabled  bool      `yaml:"disabled"`
	Selectors Selectors `yaml:"selectors"`
}

// Registry is the parsed sources.yaml file.
type Registry struct {
	Sources []SourceSpec `yaml:"sources"`
}

// BuildOptions configures the fetchers shared by registry sources.
type BuildOptions struct {
	Timeout      time.Duration
	UserAgent    string
	ChromePath   string
	RenderSettle time.Duration
	Location     *time.Location
}

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) validate() error {
	seen := make(map[string]bool, len(r.Sources))
	var errs []error
	for i, s := range r.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("source %d: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("source %q: duplicate name", s.Name))
		}
		seen[s.Name] = true
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("source %q: url is required", s.Name))
		}
		switch s.Kind {
		case KindJSON:
		case KindHTML:
			if s.Selectors.Item == "" || s.Selectors.Title == "" || s.Selectors.Date == "" {
				errs = append(errs, fmt.Errorf("source %q: html sources need item, title and date selectors", s.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("source %q: type must be %q or %q, got %q", s.Name, KindHTML, KindJSON, s.Kind))
		}
	}
	return errors.Join(errs...)
}

// Build turns the enabled registry entries into scraper collaborators.
func (r *Registry) Build(opts BuildOptions) []domain.Source {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	plain := NewHTTPFetcher(opts.Timeout, opts.UserAgent)
	var rendered Fetcher

	sources := make([]domain.Source, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.Disabled {
			continue
		}
		var fetcher Fetcher = plain
		if s.Render {
			if rendered == nil {
				rendered = NewChromeFetcher(opts.ChromePath, opts.Timeout, opts.RenderSettle)
			}
			fetcher = rendered
		}
		switch s.Kind {
		case KindJSON:
			sources = append(sources, NewJSONSource(s.Name, s.URL, fetcher))
		case KindHTML:
			sources = append(sources, NewHTMLSource(s.Name, s.URL, s.Selectors, fetcher, loc, s.Outdoor))
		}
	}
	return sources
}
