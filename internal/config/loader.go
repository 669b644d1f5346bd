package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEngineNames lists known engine names per capability.
// Used by [Validate] to warn about unrecognised engine names.
var ValidEngineNames = map[string][]string{
	"tts": {"piper", "coqui"},
	"asr": {"whisper", "whisper-server"},
}

// ValidLanguageCodes lists the language codes with built-in profiles.
var ValidLanguageCodes = []string{"en", "vi"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with the documented defaults. An entirely
// empty config yields a runnable piper + whisper setup for English and
// Vietnamese.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "static/temp_audio"
	}
	if cfg.Artifacts.URLPrefix == "" {
		cfg.Artifacts.URLPrefix = "static/temp_audio"
	}
	if cfg.Artifacts.MaxAgeMinutes == 0 {
		cfg.Artifacts.MaxAgeMinutes = 60
	}
	if cfg.Speech.DefaultLanguage == "" {
		cfg.Speech.DefaultLanguage = "en"
	}
	if cfg.Speech.TTS.Engine == "" {
		cfg.Speech.TTS.Engine = "piper"
	}
	if cfg.Speech.TTS.ModelsDir == "" {
		cfg.Speech.TTS.ModelsDir = "models/piper"
	}
	if cfg.Speech.TTS.Binary == "" {
		cfg.Speech.TTS.Binary = "piper"
	}
	if cfg.Speech.ASR.Engine == "" {
		cfg.Speech.ASR.Engine = "whisper"
	}
	if cfg.Speech.ASR.ModelsDir == "" {
		cfg.Speech.ASR.ModelsDir = "models/whisper"
	}
	if len(cfg.Languages.Enabled) == 0 {
		cfg.Languages.Enabled = slices.Clone(ValidLanguageCodes)
	}
	if cfg.Languages.SentencesDir == "" {
		cfg.Languages.SentencesDir = "sentences"
	}
	if cfg.Validation.SampleSize == 0 {
		cfg.Validation.SampleSize = 5
	}
	if cfg.Validation.Concurrency == 0 {
		cfg.Validation.Concurrency = 1
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Artifacts
	if cfg.Artifacts.MaxAgeMinutes < 0 {
		errs = append(errs, fmt.Errorf("artifacts.max_age_minutes %d is negative", cfg.Artifacts.MaxAgeMinutes))
	}

	// Unknown engine names warn here; resolution fails typed later.
	validateEngineName("tts", cfg.Speech.TTS.Engine)
	validateEngineName("asr", cfg.Speech.ASR.Engine)

	// Engine ↔ endpoint cross-validation
	if cfg.Speech.TTS.Engine == "coqui" && cfg.Speech.TTS.BaseURL == "" {
		errs = append(errs, errors.New("speech.tts.base_url is required when engine is coqui"))
	}
	if cfg.Speech.ASR.Engine == "whisper-server" && cfg.Speech.ASR.BaseURL == "" {
		errs = append(errs, errors.New("speech.asr.base_url is required when engine is whisper-server"))
	}
	if cfg.Speech.TTS.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("speech.tts.timeout_seconds %d is negative", cfg.Speech.TTS.TimeoutSeconds))
	}
	if cfg.Speech.ASR.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("speech.asr.timeout_seconds %d is negative", cfg.Speech.ASR.TimeoutSeconds))
	}

	// Languages: duplicate and unknown code detection
	codesSeen := make(map[string]int, len(cfg.Languages.Enabled))
	for i, code := range cfg.Languages.Enabled {
		prefix := fmt.Sprintf("languages.enabled[%d]", i)
		if code == "" {
			errs = append(errs, fmt.Errorf("%s is empty", prefix))
			continue
		}
		if prev, ok := codesSeen[code]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of languages.enabled[%d]", prefix, code, prev))
		}
		codesSeen[code] = i
		if !slices.Contains(ValidLanguageCodes, code) {
			errs = append(errs, fmt.Errorf("%s %q is not a supported language; valid values: en, vi", prefix, code))
		}
	}
	if _, ok := codesSeen[cfg.Speech.DefaultLanguage]; !ok {
		errs = append(errs, fmt.Errorf("speech.default_language %q is not in languages.enabled", cfg.Speech.DefaultLanguage))
	}

	// Model overrides for disabled languages are legal but almost certainly
	// a typo.
	for code := range cfg.Speech.TTS.ModelOverrides {
		if _, ok := codesSeen[code]; !ok {
			slog.Warn("speech.tts.model_overrides names a language that is not enabled", "language", code)
		}
	}
	for code := range cfg.Speech.ASR.ModelOverrides {
		if _, ok := codesSeen[code]; !ok {
			slog.Warn("speech.asr.model_overrides names a language that is not enabled", "language", code)
		}
	}

	// Validation harness
	if cfg.Validation.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("validation.sample_size %d is negative", cfg.Validation.SampleSize))
	}
	if cfg.Validation.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("validation.concurrency %d is negative", cfg.Validation.Concurrency))
	}

	return errors.Join(errs...)
}

// validateEngineName logs a warning if name is non-empty and not found in
// the [ValidEngineNames] list for the given capability.
func validateEngineName(capability, name string) {
	if name == "" {
		return
	}
	known, ok := ValidEngineNames[capability]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown engine name, creation will fail unless a factory is registered for it",
		"capability", capability,
		"name", name,
		"known", known,
	)
}
