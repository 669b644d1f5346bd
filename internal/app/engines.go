package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/pkg/provider/asr"
	"github.com/MrWong99/vocalis/pkg/provider/asr/whisper"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
	"github.com/MrWong99/vocalis/pkg/provider/tts/coqui"
	"github.com/MrWong99/vocalis/pkg/provider/tts/piper"
)

// RegisterBuiltinEngines wires the engine factories that ship with Vocalis
// into reg. Each factory builds its engine from the [config.EngineEntry]
// fields that apply to it and ignores the rest.
func RegisterBuiltinEngines(reg *config.Registry) {
	// ── TTS ──────────────────────────────────────────────────────────────

	reg.RegisterTTS(piper.Name, func(entry config.EngineEntry) (tts.Engine, error) {
		var opts []piper.Option
		if entry.Binary != "" {
			opts = append(opts, piper.WithBinary(entry.Binary))
		}
		if len(entry.ModelOverrides) > 0 {
			opts = append(opts, piper.WithVoiceOverrides(entry.ModelOverrides))
		}
		if entry.TimeoutSeconds > 0 {
			opts = append(opts, piper.WithTimeout(time.Duration(entry.TimeoutSeconds)*time.Second))
		}
		return piper.New(entry.ModelsDir, opts...)
	})

	reg.RegisterTTS(coqui.Name, func(entry config.EngineEntry) (tts.Engine, error) {
		var opts []coqui.Option
		if entry.TimeoutSeconds > 0 {
			opts = append(opts, coqui.WithTimeout(time.Duration(entry.TimeoutSeconds)*time.Second))
		}
		if len(entry.ModelOverrides) > 0 {
			// For coqui the per-language override selects the speaker id.
			opts = append(opts, coqui.WithSpeakers(entry.ModelOverrides))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── ASR ──────────────────────────────────────────────────────────────

	reg.RegisterASR(whisper.Name, func(entry config.EngineEntry) (asr.Engine, error) {
		var opts []whisper.Option
		if len(entry.ModelOverrides) > 0 {
			opts = append(opts, whisper.WithModelOverrides(entry.ModelOverrides))
		}
		return whisper.New(entry.ModelsDir, opts...)
	})

	reg.RegisterASR(whisper.ServerName, func(entry config.EngineEntry) (asr.Engine, error) {
		var opts []whisper.ServerOption
		if entry.TimeoutSeconds > 0 {
			opts = append(opts, whisper.WithServerTimeout(time.Duration(entry.TimeoutSeconds)*time.Second))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})
}

// BuildEngines instantiates the engines named in cfg through reg and returns
// them in an [Engines] struct for New to consume. Both capabilities are
// required; an unregistered or misconfigured engine is a hard error.
func BuildEngines(cfg *config.Config, reg *config.Registry) (*Engines, error) {
	ttsEngine, err := reg.CreateTTS(cfg.Speech.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts engine %q: %w", cfg.Speech.TTS.Engine, err)
	}
	slog.Info("speech engine created",
		"capability", "tts",
		"name", ttsEngine.Name(),
		"languages", ttsEngine.Languages())

	asrEngine, err := reg.CreateASR(cfg.Speech.ASR)
	if err != nil {
		return nil, fmt.Errorf("create asr engine %q: %w", cfg.Speech.ASR.Engine, err)
	}
	slog.Info("speech engine created",
		"capability", "asr",
		"name", asrEngine.Name(),
		"languages", asrEngine.Languages())

	return &Engines{TTS: ttsEngine, ASR: asrEngine}, nil
}
