package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/language"
	"github.com/MrWong99/vocalis/internal/pipeline"
	"github.com/MrWong99/vocalis/internal/speech"
	"github.com/MrWong99/vocalis/pkg/audio"
	asrmock "github.com/MrWong99/vocalis/pkg/provider/asr/mock"
	ttsmock "github.com/MrWong99/vocalis/pkg/provider/tts/mock"
)

// ── helpers ──

type fixture struct {
	asrEng   *asrmock.Engine
	ttsEng   *ttsmock.Engine
	registry *language.Registry
	pipeline *pipeline.Pipeline
}

// newFixture builds a two-language pipeline: English with ASR, Vietnamese
// synthesis-only.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	f := &fixture{
		asrEng:   &asrmock.Engine{LanguagesValue: []string{"en"}},
		ttsEng:   &ttsmock.Engine{LanguagesValue: []string{"en", "vi"}},
		registry: language.NewRegistry(),
	}
	asrMgr := speech.NewASRManager(f.asrEng, store)
	ttsMgr := speech.NewTTSManager(f.ttsEng, store)

	banks := map[string][]string{
		"en": {"the quick brown fox", "she sells seashells"},
		"vi": {"con mèo trèo cây cau"},
	}
	for _, code := range []string{"en", "vi"} {
		p, err := language.NewProfile(code, banks[code], asrMgr, ttsMgr)
		if err != nil {
			t.Fatalf("NewProfile(%s): %v", code, err)
		}
		if err := f.registry.Register(p); err != nil {
			t.Fatalf("Register(%s): %v", code, err)
		}
	}

	f.pipeline, err = pipeline.New(f.registry, "en")
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return f
}

func wavUpload() *bytes.Reader {
	return bytes.NewReader(audio.EncodeWAV(audio.Clip{
		Data:       []byte{1, 0, 2, 0},
		SampleRate: 16000,
		Channels:   1,
	}))
}

// ── construction ──

func TestNew_UnknownDefaultLanguage(t *testing.T) {
	t.Parallel()
	reg := language.NewRegistry()

	_, err := pipeline.New(reg, "xx")
	if !errors.Is(err, language.ErrUnknownLanguage) {
		t.Fatalf("New = %v, want ErrUnknownLanguage", err)
	}
}

func TestNewSession_StartsOnDefault(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	sess := f.pipeline.NewSession()
	if got := sess.Language(); got != "en" {
		t.Errorf("Language() = %q, want en", got)
	}
	if got := f.pipeline.DefaultLanguage(); got != "en" {
		t.Errorf("DefaultLanguage() = %q, want en", got)
	}
}

// ── selection ──

func TestSelect_UnknownLanguage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	_, err := sess.Select(context.Background(), "fr")
	if !errors.Is(err, language.ErrUnknownLanguage) {
		t.Fatalf("Select(fr) = %v, want ErrUnknownLanguage", err)
	}

	// No model work may happen for an unknown code.
	if n := len(f.asrEng.LoadModelCalls) + len(f.ttsEng.LoadVoiceCalls); n != 0 {
		t.Errorf("engine loads = %d, want 0", n)
	}
	if got := sess.Language(); got != "en" {
		t.Errorf("session moved to %q on failed select", got)
	}
}

func TestSelect_LoadsAndReturnsSentence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	res, err := sess.Select(context.Background(), "en")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Sentence != "the quick brown fox" && res.Sentence != "she sells seashells" {
		t.Errorf("Sentence = %q, not from the en bank", res.Sentence)
	}
	if !res.HasASR {
		t.Error("HasASR = false, want true for en")
	}

	// Selection loads eagerly.
	if got := len(f.asrEng.LoadModelCalls); got != 1 {
		t.Errorf("asr loads = %d, want 1", got)
	}
	if got := len(f.ttsEng.LoadVoiceCalls); got != 1 {
		t.Errorf("tts loads = %d, want 1", got)
	}
}

func TestSelect_SynthesisOnlyLanguage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	res, err := sess.Select(context.Background(), "vi")
	if err != nil {
		t.Fatalf("Select(vi): %v", err)
	}
	if res.HasASR {
		t.Error("HasASR = true for asr-less language")
	}
	if res.Sentence != "con mèo trèo cây cau" {
		t.Errorf("Sentence = %q", res.Sentence)
	}
	if got := sess.Language(); got != "vi" {
		t.Errorf("Language() = %q, want vi", got)
	}
}

func TestSelect_KeepsPreviousLanguageOnLoadFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ttsEng.LoadVoiceErr = errors.New("voice missing")
	sess := f.pipeline.NewSession()

	_, err := sess.Select(context.Background(), "vi")
	if !errors.Is(err, speech.ErrLoadFailed) {
		t.Fatalf("Select = %v, want ErrLoadFailed", err)
	}
	if got := sess.Language(); got != "en" {
		t.Errorf("Language() = %q after failed select, want en", got)
	}
}

// ── operations ──

func TestSentence_NoModelsNeeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	sentence, err := sess.Sentence()
	if err != nil {
		t.Fatalf("Sentence: %v", err)
	}
	if sentence == "" {
		t.Error("Sentence returned an empty string")
	}
	if n := len(f.asrEng.LoadModelCalls) + len(f.ttsEng.LoadVoiceCalls); n != 0 {
		t.Errorf("Sentence triggered %d loads, want 0", n)
	}
}

func TestTranscribe_AutoLoads(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.asrEng.Model = &asrmock.Model{Text: "the quick brown fox"}
	sess := f.pipeline.NewSession()

	text, err := sess.Transcribe(context.Background(), wavUpload())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "the quick brown fox" {
		t.Errorf("text = %q", text)
	}
	if got := len(f.asrEng.LoadModelCalls); got != 1 {
		t.Errorf("asr loads = %d, want 1 on-demand load", got)
	}
}

func TestTranscribe_ASRlessLanguage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	if _, err := sess.Select(context.Background(), "vi"); err != nil {
		t.Fatalf("Select(vi): %v", err)
	}
	_, err := sess.Transcribe(context.Background(), wavUpload())
	if !errors.Is(err, language.ErrASRUnavailable) {
		t.Fatalf("Transcribe = %v, want ErrASRUnavailable", err)
	}
}

func TestSynthesize_AutoLoads(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.pipeline.NewSession()

	art, err := sess.Synthesize(context.Background(), "peter piper picked a peck")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Errorf("artifact not on disk: %v", err)
	}
	if got := len(f.ttsEng.LoadVoiceCalls); got != 1 {
		t.Errorf("tts loads = %d, want 1 on-demand load", got)
	}
}
