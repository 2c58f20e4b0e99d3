// Command validate checks a sources registry and JSON feed fixtures before
// they are deployed or committed. It verifies the registry entries, decodes
// every feed against the item schema, re-checks record invariants and
// previews how many records the dedup stage would merge.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -sources sources.yaml \
//	  divadlo=data/mock/divadlo_feed.json \
//	  kultura=data/mock/kultura_feed.json
//
// Feed items rejected by the schema are reported as warnings, since the
// pipeline skips them. Any other problem fails the run.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/eventrank/internal/adapter/scraper"
	"github.com/couchcryptid/eventrank/internal/dedup"
	"github.com/couchcryptid/eventrank/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// feedFile is one name=path argument.
type feedFile struct {
	name string
	path string
}

func main() {
	sources := flag.String("sources", "", "path to a sources registry YAML file")
	threshold := flag.Float64("threshold", dedup.DefaultThreshold, "dedup threshold for the merge preview")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: validate [-sources file] [-threshold n] [name=feed.json ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	feeds, err := parseFeedArgs(flag.Args())
	if err != nil || (*sources == "" && len(feeds) == 0) {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *sources, feeds, *threshold); code != 0 {
		os.Exit(code)
	}
}

func parseFeedArgs(args []string) ([]feedFile, error) {
	feeds := make([]feedFile, 0, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("feed argument %q: want name=path", arg)
		}
		feeds = append(feeds, feedFile{name: name, path: path})
	}
	return feeds, nil
}

func run(w io.Writer, sourcesPath string, feeds []feedFile, threshold float64) int {
	fmt.Fprintln(w, "=== Event Source Validation ===")
	fmt.Fprintln(w)

	var phases []*phase
	if sourcesPath != "" {
		phases = append(phases, validateRegistry(sourcesPath))
	}

	var records []domain.RawRecord
	if len(feeds) > 0 {
		decoded, p := validateFeeds(feeds)
		records = decoded
		phases = append(phases, p, validateRecords(records))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-30s %s\n", p.name, status)
	}

	if len(feeds) > 0 {
		merged := dedup.Deduplicate(records, threshold)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Records: %d decoded, %d after dedup at %.2f\n", len(records), len(merged), threshold)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(w, "  ERROR %s\n", e)
		}
		for _, warn := range p.warnings {
			fmt.Fprintf(w, "  WARN  %s\n", warn)
		}
	}

	fmt.Fprintln(w)
	if !allPassed {
		fmt.Fprintln(w, "RESULT: FAIL")
		return 1
	}
	fmt.Fprintln(w, "RESULT: PASS")
	return 0
}

func validateRegistry(path string) *phase {
	p := &phase{name: "Sources registry"}
	reg, err := scraper.LoadRegistry(path)
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			p.errorf("%s", line)
		}
		return p
	}
	for _, s := range reg.Sources {
		if s.Disabled {
			p.warnf("%s: disabled", s.Name)
		}
		if s.Render && s.Kind != scraper.KindHTML {
			p.warnf("%s: render is ignored for %s sources", s.Name, s.Kind)
		}
	}
	return p
}

func validateFeeds(feeds []feedFile) ([]domain.RawRecord, *phase) {
	p := &phase{name: "Feed schema"}
	var records []domain.RawRecord
	for _, f := range feeds {
		body, err := os.ReadFile(f.path)
		if err != nil {
			p.errorf("%s: %v", f.name, err)
			continue
		}
		recs, errs := scraper.DecodeFeed(f.name, body)
		if len(recs) == 0 && len(errs) > 0 && strings.HasPrefix(errs[0], "decode feed") {
			p.errorf("%s: %s", f.name, errs[0])
			continue
		}
		for _, e := range errs {
			p.warnf("%s: %s", f.name, e)
		}
		for _, r := range recs {
			records = append(records, domain.Normalize(r))
		}
	}
	return records, p
}

func validateRecords(records []domain.RawRecord) *phase {
	p := &phase{name: "Record invariants"}
	seen := make(map[string]int, len(records))
	for _, r := range records {
		if err := domain.Validate(r); err != nil {
			p.errorf("%s: %v", r.ExternalID, err)
		}
		seen[r.ExternalID]++
		if r.PlaceQuery() == "" {
			p.warnf("%s: no address or venue, cannot be geocoded", r.ExternalID)
		}
	}

	dups := make([]string, 0)
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, fmt.Sprintf("%s appears %d times", id, n))
		}
	}
	sort.Strings(dups)
	for _, d := range dups {
		p.errorf("duplicate external_id: %s", d)
	}
	return p
}
