// Package whisper provides whisper.cpp-backed implementations of asr.Engine.
//
// Two variants exist:
//
//   - Engine (New) loads ggml model files in-process through the whisper.cpp
//     CGO bindings, eliminating HTTP overhead entirely. The static library
//     (libwhisper.a) and headers (whisper.h) must be available at link time
//     via LIBRARY_PATH and C_INCLUDE_PATH environment variables.
//
//   - ServerEngine (NewServer) talks to a running whisper-server binary over
//     its REST API (POST /inference) and needs no CGO. The server decides
//     which weights to use; the engine only forwards the language hint.
//
// Both variants recognise from mono float32 PCM at asr.SampleRate. Each
// in-process transcription runs on a fresh whisper context because contexts
// are not thread-safe, while the underlying model can be shared.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/vocalis/pkg/provider/asr"
)

// Name is the engine identifier used in configuration.
const Name = "whisper"

// DefaultModels maps a language code to the ggml model file loaded for it
// when no override is configured. English uses the English-only base model;
// Vietnamese needs the multilingual small model for usable accuracy.
var DefaultModels = map[string]string{
	"en": "ggml-base.en.bin",
	"vi": "ggml-small.bin",
}

// Compile-time assertion that Engine satisfies asr.Engine.
var _ asr.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithModelOverrides replaces the model file for individual language codes.
// Values are file names resolved against the models directory, or absolute
// paths used as-is. Languages absent from DefaultModels become loadable by
// appearing here.
func WithModelOverrides(overrides map[string]string) Option {
	return func(e *Engine) {
		for lang, file := range overrides {
			e.models[lang] = file
		}
	}
}

// Engine implements asr.Engine by loading ggml models from a local directory
// through the whisper.cpp CGO bindings.
type Engine struct {
	modelsDir string
	models    map[string]string
}

// New creates an Engine that loads ggml model files from modelsDir. The
// directory is not touched until LoadModel; a missing directory surfaces as
// a load failure for whichever language is requested first.
func New(modelsDir string, opts ...Option) (*Engine, error) {
	if modelsDir == "" {
		return nil, errors.New("whisper: modelsDir must not be empty")
	}
	e := &Engine{
		modelsDir: modelsDir,
		models:    make(map[string]string, len(DefaultModels)),
	}
	for lang, file := range DefaultModels {
		e.models[lang] = file
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name returns "whisper".
func (e *Engine) Name() string { return Name }

// Languages returns the codes with a configured model file, sorted.
func (e *Engine) Languages() []string {
	langs := make([]string, 0, len(e.models))
	for lang := range e.models {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// ModelPath returns the resolved model file path for lang and whether the
// language is configured at all.
func (e *Engine) ModelPath(lang string) (string, bool) {
	file, ok := e.models[lang]
	if !ok {
		return "", false
	}
	if filepath.IsAbs(file) {
		return file, true
	}
	return filepath.Join(e.modelsDir, file), true
}

// LoadModel maps the ggml weights for lang into memory. This is a slow call
// (hundreds of megabytes of disk reads); callers cache the returned Model.
func (e *Engine) LoadModel(ctx context.Context, lang string) (asr.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	path, ok := e.ModelPath(lang)
	if !ok {
		return nil, fmt.Errorf("whisper: no model configured for language %q", lang)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("whisper: model file %q: %w", path, err)
	}

	model, err := whisperlib.New(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", path, err)
	}
	slog.Info("whisper model loaded", "language", lang, "path", path)

	return &Model{model: model, language: lang}, nil
}

// Compile-time assertion that Model satisfies asr.Model.
var _ asr.Model = (*Model)(nil)

// Model is a loaded whisper.cpp model bound to one language.
type Model struct {
	model    whisperlib.Model
	language string
}

// Transcribe converts the samples to text. Each call creates a fresh whisper
// context because contexts are NOT thread-safe; the model itself can be
// shared across goroutines.
func (m *Model) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(m.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", m.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	// Collect segments.
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Close releases the native model weights. Calling Close more than once is
// safe and returns nil.
func (m *Model) Close() error {
	if m.model != nil {
		err := m.model.Close()
		m.model = nil
		return err
	}
	return nil
}
