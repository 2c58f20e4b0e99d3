// Command eventrank scrapes family event listings, deduplicates and places
// them around a fixed origin, and ranks them for infant, child and family
// audiences.
//
// Usage:
//
//	eventrank [-env file] serve
//	eventrank [-env file] run-once [-source name]
//	eventrank [-env file] score [-tz zone] -file record.json
//
// serve runs the daily scheduler and the admin HTTP server until SIGINT or
// SIGTERM. run-once performs one pipeline run and prints its report as JSON.
// score prints the three profile scores, with their factor breakdown, for a
// single geolocated record read from a file ("-" for stdin).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/eventrank/internal/adapter/http"
	"github.com/couchcryptid/eventrank/internal/config"
	"github.com/couchcryptid/eventrank/internal/observability"
	"github.com/couchcryptid/eventrank/internal/pipeline"
)

func main() {
	fs := flag.NewFlagSet("eventrank", flag.ExitOnError)
	envFile := fs.String("env", "", "load environment variables from this file before reading config")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: eventrank [-env file] serve | run-once [-source name] | score [-tz zone] -file record.json")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Error("failed to load env file", "path", *envFile, "error", err)
			os.Exit(1)
		}
	}

	cmd, args := "serve", fs.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "run-once":
		err = runOnce(args)
	case "score":
		err = score(args, os.Stdin, os.Stdout)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, clock, logger, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	runner := pipeline.NewRunner(a.pipeline, clock, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, runner, a.ranker, clock, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Start daily schedule.
	if cfg.ScheduleEnabled {
		hour, minute, _ := cfg.ScheduleClock()
		sched := pipeline.NewScheduler(runner, hour, minute, cfg.Location, clock, logger)
		g.Go(func() error { return sched.Run(gctx) })
	} else {
		logger.Info("daily schedule disabled")
	}

	<-gctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error("pipeline run did not finish before shutdown timeout", "error", err)
	}
	err = g.Wait()

	logger.Info("shutdown complete")
	return err
}

func runOnce(args []string) error {
	fs := flag.NewFlagSet("run-once", flag.ExitOnError)
	source := fs.String("source", "", "run a single registered source")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewCLILogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, clock, logger, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	runner := pipeline.NewRunner(a.pipeline, clock, logger, metrics)
	status, runErr := runner.RunNow(ctx, pipeline.TriggerCLI, *source)
	if status.ID != "" {
		if err := writeJSON(os.Stdout, status); err != nil {
			return err
		}
	}
	return runErr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
