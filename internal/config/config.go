// Package config provides the configuration schema, loader, and engine registry
// for the Vocalis dictation service.
package config

// LogLevel controls log verbosity for the Vocalis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vocalis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Speech     SpeechConfig     `yaml:"speech"`
	Languages  LanguagesConfig  `yaml:"languages"`
	Validation ValidationConfig `yaml:"validation"`
}

// ServerConfig holds network and logging settings for the Vocalis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ArtifactsConfig controls the directory of transient audio files.
type ArtifactsConfig struct {
	// Dir is the directory uploads and synthesized audio are written to.
	// Created on startup if absent.
	Dir string `yaml:"dir"`

	// URLPrefix is the URL path under which artifacts are served
	// (e.g., "static/temp_audio" yields "/static/temp_audio/<name>").
	URLPrefix string `yaml:"url_prefix"`

	// MaxAgeMinutes is the age threshold for the startup sweep: WAV files
	// older than this are deleted. Defaults to 60.
	MaxAgeMinutes int `yaml:"max_age_minutes"`
}

// SpeechConfig selects the speech engines and the default practice language.
type SpeechConfig struct {
	// DefaultLanguage is the language code new sessions start with.
	DefaultLanguage string `yaml:"default_language"`

	// TTS configures the synthesis engine.
	TTS EngineEntry `yaml:"tts"`

	// ASR configures the transcription engine.
	ASR EngineEntry `yaml:"asr"`
}

// EngineEntry is the common configuration block shared by all speech engines.
// The Engine field is used to look up the constructor in the [Registry];
// engines ignore the fields that do not apply to them.
type EngineEntry struct {
	// Engine selects the registered engine implementation
	// (e.g., "piper", "whisper").
	Engine string `yaml:"engine"`

	// ModelsDir is the directory holding model files for local engines.
	ModelsDir string `yaml:"models_dir"`

	// Binary is the executable invoked by subprocess engines such as piper.
	// Resolved via PATH when not an absolute path. Ignored by other engines.
	Binary string `yaml:"binary"`

	// AutoDownload enables fetching missing voice assets at startup.
	// Only honoured by the piper engine.
	AutoDownload bool `yaml:"auto_download"`

	// BaseURL is the endpoint of server-backed engines
	// (e.g., "http://localhost:5002" for coqui). Ignored by local engines.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds a single synthesis or transcription call.
	// Zero means the engine's built-in default.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// ModelOverrides maps a language code to an engine-specific model name,
	// replacing the engine's built-in default for that language.
	ModelOverrides map[string]string `yaml:"model_overrides"`
}

// LanguagesConfig selects which practice languages are offered.
type LanguagesConfig struct {
	// Enabled lists the language codes to register (e.g., [en, vi]).
	Enabled []string `yaml:"enabled"`

	// SentencesDir is the directory holding per-language sentence banks as
	// <code>.txt files. Missing files fall back to the embedded defaults.
	SentencesDir string `yaml:"sentences_dir"`
}

// ValidationConfig tunes the round-trip validation harness.
type ValidationConfig struct {
	// SampleSize is the number of sentences exercised per run.
	SampleSize int `yaml:"sample_size"`

	// Concurrency bounds the number of round trips in flight at once.
	Concurrency int `yaml:"concurrency"`
}
