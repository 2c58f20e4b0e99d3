package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/eventrank/internal/domain"
	"github.com/couchcryptid/eventrank/internal/scoring"
)

type profileScore struct {
	Score   int             `json:"score"`
	Factors scoring.Factors `json:"factors"`
}

type scoreOutput struct {
	ExternalID string                  `json:"external_id"`
	Title      string                  `json:"title"`
	Scores     map[string]profileScore `json:"scores"`
}

// score reads one GeoRecord as JSON and writes its per-profile scores.
func score(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	file := fs.String("file", "", `path to a JSON record, or "-" for stdin`)
	tz := fs.String("tz", sharedcfg.EnvOrDefault("TIMEZONE", "Europe/Prague"), "time zone for timing and seasonality")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("invalid time zone %q: %w", *tz, err)
	}

	in := stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var rec domain.GeoRecord
	if err := json.NewDecoder(in).Decode(&rec); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := domain.Validate(rec.RawRecord); err != nil {
		return err
	}

	engine := scoring.NewEngine(loc)
	out := scoreOutput{
		ExternalID: rec.ExternalID,
		Title:      rec.Title,
		Scores:     make(map[string]profileScore, len(domain.Profiles)),
	}
	for _, p := range domain.Profiles {
		s, factors := engine.Score(rec, p, nil)
		out.Scores[p.String()] = profileScore{Score: s, Factors: factors}
	}
	return writeJSON(stdout, out)
}
