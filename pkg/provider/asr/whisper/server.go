// This file contains the ServerEngine implementation backed by a running
// whisper-server binary. It exposes the same batch interface as the native
// engine but needs no CGO, which makes it the right choice when the service
// and the model host are separate machines.

package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/asr"
)

// ServerName is the engine identifier for the HTTP variant.
const ServerName = "whisper-server"

const (
	defaultServerTimeout = 30 * time.Second
	inferenceEndpoint    = "/inference"
	healthEndpoint       = "/health"
)

// defaultServerLanguages lists the codes the server engine accepts when no
// overrides are configured. whisper-server runs a single multilingual model,
// so this is a policy choice rather than a capability probe.
var defaultServerLanguages = []string{"en", "vi"}

// Compile-time assertion that ServerEngine satisfies asr.Engine.
var _ asr.Engine = (*ServerEngine)(nil)

// ServerOption is a functional option for configuring a ServerEngine.
type ServerOption func(*ServerEngine)

// WithServerTimeout sets the per-request HTTP timeout for calls to the
// whisper-server. Defaults to 30 s.
func WithServerTimeout(d time.Duration) ServerOption {
	return func(e *ServerEngine) {
		e.httpClient.Timeout = d
	}
}

// WithServerLanguages replaces the accepted language codes. The server is
// multilingual; this only bounds what LoadModel will agree to.
func WithServerLanguages(langs []string) ServerOption {
	return func(e *ServerEngine) {
		e.languages = langs
	}
}

// ServerEngine implements asr.Engine against a whisper-server REST API.
type ServerEngine struct {
	serverURL  string
	languages  []string
	httpClient *http.Client
}

// NewServer creates a ServerEngine that targets the whisper-server at
// serverURL (e.g., "http://localhost:8081"). serverURL must be non-empty.
func NewServer(serverURL string, opts ...ServerOption) (*ServerEngine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &ServerEngine{
		serverURL:  serverURL,
		languages:  defaultServerLanguages,
		httpClient: &http.Client{Timeout: defaultServerTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name returns "whisper-server".
func (e *ServerEngine) Name() string { return ServerName }

// Languages returns the accepted language codes, sorted.
func (e *ServerEngine) Languages() []string {
	langs := make([]string, len(e.languages))
	copy(langs, e.languages)
	slices.Sort(langs)
	return langs
}

// LoadModel probes the server's /health endpoint and returns a handle bound
// to lang. The server owns the actual weights, so "loading" only verifies
// reachability; a down server surfaces here instead of on the first request.
func (e *ServerEngine) LoadModel(ctx context.Context, lang string) (asr.Model, error) {
	if !slices.Contains(e.languages, lang) {
		return nil, fmt.Errorf("whisper: no model configured for language %q", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL+healthEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: GET %s: %w", healthEndpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: GET %s returned status %d", healthEndpoint, resp.StatusCode)
	}

	return &remoteModel{
		serverURL:  e.serverURL,
		language:   lang,
		httpClient: e.httpClient,
	}, nil
}

// remoteModel implements asr.Model by forwarding inference to whisper-server.
type remoteModel struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// Transcribe encodes the samples as a 16 kHz mono WAV file and POSTs it to
// the /inference endpoint as multipart/form-data.
func (m *remoteModel) Transcribe(ctx context.Context, samples []float32) (string, error) {
	wav := audio.EncodeWAV(audio.Clip{
		Data:       audio.PCM16Mono(samples),
		SampleRate: asr.SampleRate,
		Channels:   1,
	})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Primary audio field.
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	if m.language != "" {
		if err := mw.WriteField("language", m.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.serverURL+inferenceEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// Close is a no-op; the server owns the model lifecycle.
func (m *remoteModel) Close() error { return nil }
