package validate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/language"
)

// RoundTrip is the outcome of one synthesize-then-transcribe pass over a
// single sentence.
type RoundTrip struct {
	Original    string
	Transcribed string
	// Score is the ordered word-match percentage from 0 to 100.
	Score float64
	// Similarity is the Jaro-Winkler distance between the normalized
	// texts, from 0 to 1. It is a diagnostic: near-miss transcriptions
	// score low on word match but high here.
	Similarity float64
}

// Report summarizes a suite run for one language. A skipped report carries
// no results and no statistics; Skipped runs are not errors, they mean the
// language cannot be validated because it has no speech recognition.
type Report struct {
	Language   string
	Skipped    bool
	SkipReason string
	Results    []RoundTrip
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
}

// Harness drives validation suites against registered languages. Synthesis
// artifacts created during a run are removed before the run returns.
type Harness struct {
	registry    *language.Registry
	store       *artifact.Store
	concurrency int
}

// Option configures a Harness.
type Option func(*Harness)

// WithConcurrency sets how many round trips may run at once. The default of
// one exercises the engines the way interactive use does; higher values
// stress them.
func WithConcurrency(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// NewHarness returns a harness that validates languages from registry and
// cleans its synthesis artifacts out of store.
func NewHarness(registry *language.Registry, store *artifact.Store, opts ...Option) *Harness {
	h := &Harness{
		registry:    registry,
		store:       store,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunSuite round-trips up to sampleSize sentences drawn without replacement
// from the language's bank and reports per-sentence scores plus summary
// statistics. Languages without speech recognition, including those
// downgraded because their recognition model failed to load, produce a
// skipped report and a nil error. A sample size larger than the bank is
// clamped to the bank with a warning. The first failed round trip aborts
// the run.
func (h *Harness) RunSuite(ctx context.Context, code string, sampleSize int) (Report, error) {
	report := Report{Language: code}

	profile, err := h.registry.Get(code)
	if err != nil {
		return report, err
	}
	if sampleSize <= 0 {
		return report, fmt.Errorf("validate: sample size must be positive, got %d", sampleSize)
	}

	if !profile.HasASR() {
		report.Skipped = true
		report.SkipReason = fmt.Sprintf("speech recognition not available for %s", profile.Name())
		slog.Info("validation suite skipped", "language", code, "reason", report.SkipReason)
		return report, nil
	}
	if err := profile.EnsureLoaded(ctx); err != nil {
		return report, fmt.Errorf("validate: load %q: %w", code, err)
	}
	// Loading may have downgraded the language to synthesis only.
	if !profile.HasASR() {
		report.Skipped = true
		report.SkipReason = fmt.Sprintf("speech recognition failed to load for %s", profile.Name())
		slog.Info("validation suite skipped", "language", code, "reason", report.SkipReason)
		return report, nil
	}

	bank := profile.Sentences()
	if len(bank) == 0 {
		return report, fmt.Errorf("validate: %q: %w", code, language.ErrNoSentences)
	}
	if sampleSize > len(bank) {
		slog.Warn("sentence bank smaller than requested sample, testing all of it",
			"language", code, "requested", sampleSize, "available", len(bank))
		sampleSize = len(bank)
	}

	picks := rand.Perm(len(bank))[:sampleSize]
	results := make([]RoundTrip, sampleSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, idx := range picks {
		sentence := bank[idx]
		g.Go(func() error {
			rt, err := h.roundTrip(gctx, profile, sentence)
			if err != nil {
				return err
			}
			results[i] = rt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Results = results
	report.Mean, report.StdDev, report.Min, report.Max = summarize(results)
	slog.Info("validation suite finished", "language", code, "samples", len(results),
		"mean", report.Mean, "min", report.Min, "max", report.Max)
	return report, nil
}

func (h *Harness) roundTrip(ctx context.Context, profile *language.Profile, sentence string) (RoundTrip, error) {
	art, err := profile.Synthesize(ctx, sentence)
	if err != nil {
		return RoundTrip{}, fmt.Errorf("validate: synthesize %q: %w", sentence, err)
	}
	defer func() {
		if err := h.store.Remove(art); err != nil {
			slog.Warn("synthesis artifact not removed", "path", art.Path, "error", err)
		}
	}()

	f, err := os.Open(art.Path)
	if err != nil {
		return RoundTrip{}, fmt.Errorf("validate: open synthesis %q: %w", art.Name, err)
	}
	defer f.Close()

	transcribed, err := profile.Transcribe(ctx, f)
	if err != nil {
		return RoundTrip{}, fmt.Errorf("validate: transcribe %q: %w", sentence, err)
	}
	transcribed = strings.TrimSpace(transcribed)

	rt := RoundTrip{
		Original:    sentence,
		Transcribed: transcribed,
		Score:       WordMatchPercent(sentence, transcribed),
		Similarity:  matchr.JaroWinkler(NormalizeText(sentence), NormalizeText(transcribed), false),
	}
	slog.Debug("round trip scored",
		"language", profile.Code(), "score", rt.Score, "similarity", rt.Similarity)
	return rt, nil
}

func summarize(results []RoundTrip) (mean, stddev, min, max float64) {
	if len(results) == 0 {
		return 0, 0, 0, 0
	}
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean = sum / float64(len(scores))

	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(scores)))

	return mean, stddev, slices.Min(scores), slices.Max(scores)
}
