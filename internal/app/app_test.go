package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/vocalis/internal/app"
	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/internal/language"
	asrmock "github.com/MrWong99/vocalis/pkg/provider/asr/mock"
	"github.com/MrWong99/vocalis/pkg/provider/tts/piper"
	ttsmock "github.com/MrWong99/vocalis/pkg/provider/tts/mock"
)

// testConfig returns the default config pointed at temp directories, with the
// listen address left to the kernel.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Speech.TTS.ModelsDir = t.TempDir()
	cfg.Speech.ASR.ModelsDir = t.TempDir()
	cfg.Languages.SentencesDir = t.TempDir()
	return cfg
}

func testEngines() *app.Engines {
	return &app.Engines{
		TTS: &ttsmock.Engine{LanguagesValue: []string{"en", "vi"}},
		ASR: &asrmock.Engine{LanguagesValue: []string{"en"}},
	}
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_WiresEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(ctx)

	h := a.Handler()
	if rec := do(t, h, httptest.NewRequest("GET", "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest("GET", "/readyz", nil)); rec.Code != http.StatusOK {
		t.Errorf("readyz: status = %d", rec.Code)
	}

	// The default language serves from the embedded sentence bank.
	rec := do(t, h, httptest.NewRequest("GET", "/api/sentence", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sentence: status = %d, body %s", rec.Code, rec.Body)
	}
	var res struct {
		Sentence string `json:"sentence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Sentence == "" {
		t.Error("sentence is empty")
	}
}

func TestNew_ServesPracticeFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(ctx)
	h := a.Handler()

	req := httptest.NewRequest("POST", "/api/language", strings.NewReader(`{"language":"en"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status = %d, body %s", rec.Code, rec.Body)
	}
	var sel struct {
		HasASR bool `json:"has_asr"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sel.HasASR {
		t.Error("has_asr = false, want recognition for en")
	}

	req = httptest.NewRequest("POST", "/api/synthesize", strings.NewReader(`{"text":"good morning"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("synthesize: status = %d, body %s", rec.Code, rec.Body)
	}
	var syn struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&syn); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec := do(t, h, httptest.NewRequest("GET", syn.AudioURL, nil)); rec.Code != http.StatusOK {
		t.Errorf("GET %s: status = %d", syn.AudioURL, rec.Code)
	}
}

func TestNew_SweepsStaleArtifacts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	stale := filepath.Join(cfg.Artifacts.Dir, "tts_stale.wav")
	if err := os.WriteFile(stale, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("age stale: %v", err)
	}
	fresh := filepath.Join(cfg.Artifacts.Dir, "tts_fresh.wav")
	if err := os.WriteFile(fresh, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write fresh: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(ctx)

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale artifact survived the startup sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh artifact was swept: %v", err)
	}
}

func TestNew_RequiresEngines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(t)

	if _, err := app.New(ctx, cfg, nil); err == nil {
		t.Error("New(nil engines) succeeded")
	}
	if _, err := app.New(ctx, cfg, &app.Engines{ASR: &asrmock.Engine{}}); err == nil || !strings.Contains(err.Error(), "tts") {
		t.Errorf("missing tts: err = %v", err)
	}
	if _, err := app.New(ctx, cfg, &app.Engines{TTS: &ttsmock.Engine{}}); err == nil || !strings.Contains(err.Error(), "asr") {
		t.Errorf("missing asr: err = %v", err)
	}
}

func TestNew_RejectsUnknownDefaultLanguage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Speech.DefaultLanguage = "xx"

	_, err := app.New(context.Background(), cfg, testEngines())
	if !errors.Is(err, language.ErrUnknownLanguage) {
		t.Fatalf("err = %v, want ErrUnknownLanguage", err)
	}
}

func TestNew_AutoDownloadSkipsNonPiper(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Speech.TTS.AutoDownload = true

	// The mock engine has no download URLs to offer, so New just warns.
	a, err := app.New(context.Background(), cfg, testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	a.Shutdown(context.Background())
}

func TestNew_AutoDownloadWithLocalVoices(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Speech.TTS.AutoDownload = true
	cfg.Speech.TTS.ModelOverrides = map[string]string{"en": "local-en", "vi": "local-vi"}

	// Overridden voices have no URLs. Nothing is fetched, New must not fail
	// on the missing assets; loading fails later instead.
	eng, err := piper.New(cfg.Speech.TTS.ModelsDir,
		piper.WithVoiceOverrides(cfg.Speech.TTS.ModelOverrides))
	if err != nil {
		t.Fatalf("piper.New: %v", err)
	}
	engines := testEngines()
	engines.TTS = eng

	a, err := app.New(context.Background(), cfg, engines)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(context.Background())

	entries, err := os.ReadDir(cfg.Speech.TTS.ModelsDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("voice dir has %d entries, want none fetched", len(entries))
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	// Give Run a moment to bring the listener up.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), testEngines())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() error: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}
