// Package piper provides a piper-backed implementation of tts.Engine.
//
// piper is a compact offline synthesizer distributed as a standalone binary
// plus per-voice ONNX assets. The engine runs the binary as a subprocess for
// each utterance: text goes in on stdin, raw s16le mono PCM comes out on
// stdout (--output-raw). LoadVoice verifies the assets exist on disk and
// reads the voice's native sample rate from its JSON config, so a missing
// download surfaces at load time rather than as a garbled first utterance.
//
// Typical usage:
//
//	e, err := piper.New("models/piper")
//	voice, err := e.LoadVoice(ctx, "en")
//	clip, err := voice.Synthesize(ctx, "The quick brown fox jumps over the lazy dog.")
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
)

// Name is the engine identifier used in configuration.
const Name = "piper"

const (
	defaultBinary     = "piper"
	defaultTimeout    = 30 * time.Second
	defaultSampleRate = 22050
)

// VoiceSpec names a piper voice and where its assets can be downloaded from.
// Assets are a <Name>.onnx model plus a <Name>.onnx.json config side file.
type VoiceSpec struct {
	Name    string
	OnnxURL string
	JSONURL string
}

// DefaultVoices maps a language code to the voice used for it when no
// override is configured.
var DefaultVoices = map[string]VoiceSpec{
	"en": {
		Name:    "en_US-lessac-medium",
		OnnxURL: "https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx",
		JSONURL: "https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx.json",
	},
	"vi": {
		Name:    "vi_VN-25hours_single-low",
		OnnxURL: "https://huggingface.co/rhasspy/piper-voices/resolve/main/vi/vi_VN/25hours_single/low/vi_VN-25hours_single-low.onnx",
		JSONURL: "https://huggingface.co/rhasspy/piper-voices/resolve/main/vi/vi_VN/25hours_single/low/vi_VN-25hours_single-low.onnx.json",
	},
}

// Compile-time interface assertion.
var _ tts.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithBinary sets the piper executable. A bare name is resolved against PATH
// at load time; an absolute path is used as-is. Defaults to "piper".
func WithBinary(binary string) Option {
	return func(e *Engine) {
		e.binary = binary
	}
}

// WithVoiceOverrides replaces the voice name for individual language codes.
// An overridden voice has no download URLs; its assets must already exist in
// the voices directory. Languages absent from DefaultVoices become loadable
// by appearing here.
func WithVoiceOverrides(overrides map[string]string) Option {
	return func(e *Engine) {
		for lang, name := range overrides {
			e.voices[lang] = VoiceSpec{Name: name}
		}
	}
}

// WithTimeout bounds each synthesis subprocess independently of the caller's
// context. Defaults to 30 s; 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// Engine implements tts.Engine by shelling out to the piper binary.
type Engine struct {
	binary    string
	voicesDir string
	voices    map[string]VoiceSpec
	timeout   time.Duration
}

// New creates an Engine that loads voice assets from voicesDir. The
// directory is not touched until LoadVoice.
func New(voicesDir string, opts ...Option) (*Engine, error) {
	if voicesDir == "" {
		return nil, errors.New("piper: voicesDir must not be empty")
	}
	e := &Engine{
		binary:    defaultBinary,
		voicesDir: voicesDir,
		voices:    make(map[string]VoiceSpec, len(DefaultVoices)),
		timeout:   defaultTimeout,
	}
	for lang, spec := range DefaultVoices {
		e.voices[lang] = spec
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name returns "piper".
func (e *Engine) Name() string { return Name }

// Languages returns the codes with a configured voice, sorted.
func (e *Engine) Languages() []string {
	langs := make([]string, 0, len(e.voices))
	for lang := range e.voices {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// Voice returns the VoiceSpec configured for lang and whether the language
// is configured at all.
func (e *Engine) Voice(lang string) (VoiceSpec, bool) {
	spec, ok := e.voices[lang]
	return spec, ok
}

// VoicePaths returns the on-disk asset paths for lang's voice.
func (e *Engine) VoicePaths(lang string) (onnxPath, jsonPath string, ok bool) {
	spec, ok := e.voices[lang]
	if !ok {
		return "", "", false
	}
	onnxPath = filepath.Join(e.voicesDir, spec.Name+".onnx")
	jsonPath = filepath.Join(e.voicesDir, spec.Name+".onnx.json")
	return onnxPath, jsonPath, true
}

// voiceConfig is the subset of the piper JSON side file the engine needs.
type voiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// LoadVoice verifies the voice assets for lang and resolves the piper
// binary. Both .onnx and .onnx.json must exist; the native sample rate is
// taken from the JSON config.
func (e *Engine) LoadVoice(ctx context.Context, lang string) (tts.Voice, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("piper: context already cancelled: %w", err)
	}

	spec, ok := e.voices[lang]
	if !ok {
		return nil, fmt.Errorf("piper: no voice configured for language %q", lang)
	}
	onnxPath, jsonPath, _ := e.VoicePaths(lang)

	if _, err := os.Stat(onnxPath); err != nil {
		return nil, fmt.Errorf("piper: voice model %q: %w", onnxPath, err)
	}
	cfgData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("piper: voice config %q: %w", jsonPath, err)
	}
	var cfg voiceConfig
	if err := json.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("piper: parse voice config %q: %w", jsonPath, err)
	}
	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		slog.Warn("piper: voice config missing sample rate, assuming default",
			"voice", spec.Name, "sampleRate", defaultSampleRate)
		sampleRate = defaultSampleRate
	}

	binary, err := exec.LookPath(e.binary)
	if err != nil {
		return nil, fmt.Errorf("piper: binary %q not found: %w", e.binary, err)
	}

	slog.Info("piper voice ready", "language", lang, "voice", spec.Name, "sampleRate", sampleRate)

	return &Voice{
		binary:     binary,
		modelPath:  onnxPath,
		configPath: jsonPath,
		sampleRate: sampleRate,
		timeout:    e.timeout,
	}, nil
}

// Compile-time interface assertion.
var _ tts.Voice = (*Voice)(nil)

// Voice is a loaded piper voice. Each Synthesize call is an independent
// subprocess, so concurrent calls are safe.
type Voice struct {
	binary     string
	modelPath  string
	configPath string
	sampleRate int
	timeout    time.Duration
}

// SampleRate returns the voice's native output rate in Hz.
func (v *Voice) SampleRate() int { return v.sampleRate }

// Synthesize pipes text into piper via stdin and returns the raw PCM output
// as a mono clip at the voice's native sample rate.
func (v *Voice) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, errors.New("piper: text must not be empty")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, v.binary,
		"--model", v.modelPath,
		"--config", v.configPath,
		"--output-raw",
	)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return audio.Clip{}, fmt.Errorf("piper: run %q: %w (stderr: %s)",
			v.binary, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return audio.Clip{}, errors.New("piper: synthesis produced no audio")
	}

	return audio.Clip{Data: pcm, SampleRate: v.sampleRate, Channels: 1}, nil
}

// Close is a no-op; each synthesis subprocess terminates on its own.
func (v *Voice) Close() error { return nil }
