// Command vocalis-validate runs synthesis-to-recognition round trips over the
// configured sentence banks and reports word match statistics per language.
//
// It wires the same engines and language profiles as the server, so a passing
// run means the deployed model files actually understand their own voice.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/vocalis/internal/app"
	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/internal/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	langFlag := flag.String("lang", "", "comma-separated language codes to validate (default: all enabled)")
	samples := flag.Int("samples", 0, "sentences per language (default: validation.sample_size)")
	concurrency := flag.Int("concurrency", 0, "round trips in flight at once (default: validation.concurrency)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalis-validate: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalis-validate: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	// ── Build the speech stack ────────────────────────────────────────────────
	reg := config.NewRegistry()
	app.RegisterBuiltinEngines(reg)

	engines, err := app.BuildEngines(cfg, reg)
	if err != nil {
		slog.Error("failed to build speech engines", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, engines)
	if err != nil {
		slog.Error("failed to initialise application", "error", err)
		return 1
	}

	// ── Run the suites ────────────────────────────────────────────────────────
	codes := cfg.Languages.Enabled
	if *langFlag != "" {
		codes = nil
		for _, code := range strings.Split(*langFlag, ",") {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
	}

	sampleSize := cfg.Validation.SampleSize
	if *samples > 0 {
		sampleSize = *samples
	}
	workers := cfg.Validation.Concurrency
	if *concurrency > 0 {
		workers = *concurrency
	}

	harness := validate.NewHarness(application.Registry(), application.Store(),
		validate.WithConcurrency(workers))

	exitCode := 0
	for _, code := range codes {
		report, err := harness.RunSuite(ctx, code, sampleSize)
		if err != nil {
			slog.Error("validation failed", "language", code, "error", err)
			exitCode = 1
			continue
		}
		printReport(report)
	}

	// ── Teardown ──────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "error", err)
	}

	return exitCode
}

func printReport(r validate.Report) {
	fmt.Printf("\n=== %s ===\n", r.Language)
	if r.Skipped {
		fmt.Printf("skipped: %s\n", r.SkipReason)
		return
	}

	for i, rt := range r.Results {
		fmt.Printf("%3d. %6.2f%%  %q\n", i+1, rt.Score, rt.Original)
		fmt.Printf("     heard:   %q (similarity %.2f)\n", rt.Transcribed, rt.Similarity)
	}

	fmt.Printf("\nsamples: %d\n", len(r.Results))
	fmt.Printf("mean:    %.2f%%\n", r.Mean)
	fmt.Printf("stddev:  %.2f\n", r.StdDev)
	fmt.Printf("min:     %.2f%%\n", r.Min)
	fmt.Printf("max:     %.2f%%\n", r.Max)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
