// Package coqui provides a Coqui TTS server-backed implementation of
// tts.Engine.
//
// It targets the standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu):
// synthesis is performed via GET /api/tts with URL query parameters, and the
// hosted model is described by GET /details. The server runs exactly one
// model, which may be multilingual and multi-speaker; LoadVoice verifies the
// server is reachable once and binds the language id (and optional speaker
// id) forwarded with every request.
//
// Typical usage:
//
//	e, err := coqui.New("http://localhost:5002",
//	    coqui.WithTimeout(15*time.Second),
//	)
//	voice, err := e.LoadVoice(ctx, "en")
//	clip, err := voice.Synthesize(ctx, "She sells seashells by the seashore.")
package coqui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
)

// Name is the engine identifier used in configuration.
const Name = "coqui"

const (
	defaultTimeout  = 30 * time.Second
	apiTTSEndpoint  = "/api/tts"
	detailsEndpoint = "/details"
)

// defaultLanguages lists the codes the engine accepts when no override is
// configured. The standard multilingual models cover both.
var defaultLanguages = []string{"en", "vi"}

// Compile-time interface assertion.
var _ tts.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.httpClient.Timeout = d
	}
}

// WithLanguages replaces the accepted language codes. The hosted model must
// actually speak them; the engine cannot verify that beyond what /details
// reports.
func WithLanguages(langs []string) Option {
	return func(e *Engine) {
		e.languages = langs
	}
}

// WithSpeakers sets the speaker id forwarded for individual language codes.
// Only needed for multi-speaker models; single-speaker models ignore it.
func WithSpeakers(speakers map[string]string) Option {
	return func(e *Engine) {
		e.speakers = speakers
	}
}

// Engine implements tts.Engine backed by a locally-running Coqui TTS server.
// It is safe for concurrent use; multiple voices may synthesise in parallel.
type Engine struct {
	serverURL  string
	languages  []string
	speakers   map[string]string
	httpClient *http.Client
}

// New creates an Engine that targets the TTS server at serverURL (e.g.,
// "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Engine, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	e := &Engine{
		serverURL: strings.TrimRight(serverURL, "/"),
		languages: defaultLanguages,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name returns "coqui".
func (e *Engine) Name() string { return Name }

// Languages returns the accepted language codes, sorted.
func (e *Engine) Languages() []string {
	langs := make([]string, len(e.languages))
	copy(langs, e.languages)
	slices.Sort(langs)
	return langs
}

// detailsResponse is the JSON body returned by GET /details. Speakers is nil
// for single-speaker models and non-nil for multi-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// LoadVoice fetches the server's model details and returns a handle bound to
// lang. The server owns the actual weights, so "loading" verifies
// reachability and that any configured speaker id exists in the model's
// speaker list.
func (e *Engine) LoadVoice(ctx context.Context, lang string) (tts.Voice, error) {
	if !slices.Contains(e.languages, lang) {
		return nil, fmt.Errorf("coqui: no voice configured for language %q", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create details request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}

	speaker := e.speakers[lang]
	if speaker != "" && len(details.Speakers) > 0 && !slices.Contains(details.Speakers, speaker) {
		return nil, fmt.Errorf("coqui: speaker %q not available for model %q", speaker, details.ModelName)
	}

	slog.Info("coqui voice ready", "language", lang, "model", details.ModelName, "speaker", speaker)

	return &Voice{
		serverURL:  e.serverURL,
		language:   lang,
		speaker:    speaker,
		httpClient: e.httpClient,
	}, nil
}

// Compile-time interface assertion.
var _ tts.Voice = (*Voice)(nil)

// Voice is a loaded Coqui voice bound to one language id.
type Voice struct {
	serverURL  string
	language   string
	speaker    string
	httpClient *http.Client
}

// Synthesize performs a single GET /api/tts request using URL query
// parameters and decodes the WAV response into a PCM clip.
func (v *Voice) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, errors.New("coqui: text must not be empty")
	}

	params := url.Values{}
	params.Set("text", text)
	if v.speaker != "" {
		params.Set("speaker_id", v.speaker)
	}
	if v.language != "" {
		params.Set("language_id", v.language)
	}

	reqURL := v.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audio.Clip{}, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("coqui: decode WAV response: %w", err)
	}
	return clip, nil
}

// Close is a no-op; the server owns the model lifecycle.
func (v *Voice) Close() error { return nil }
