package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/health"
	"github.com/MrWong99/vocalis/internal/language"
	"github.com/MrWong99/vocalis/internal/pipeline"
	"github.com/MrWong99/vocalis/internal/speech"
	"github.com/MrWong99/vocalis/pkg/audio"
	asrmock "github.com/MrWong99/vocalis/pkg/provider/asr/mock"
	ttsmock "github.com/MrWong99/vocalis/pkg/provider/tts/mock"
)

// ── fixture ──

type testServer struct {
	srv     *Server
	handler http.Handler
	store   *artifact.Store
	asrEng  *asrmock.Engine
	ttsEng  *ttsmock.Engine
}

// newTestServer wires the full stack behind the router: English with speech
// recognition, Vietnamese synthesis-only, English as the default language.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	asrEng := &asrmock.Engine{LanguagesValue: []string{"en"}}
	ttsEng := &ttsmock.Engine{LanguagesValue: []string{"en", "vi"}}
	asrMgr := speech.NewASRManager(asrEng, store)
	ttsMgr := speech.NewTTSManager(ttsEng, store)

	registry := language.NewRegistry()
	for code, bank := range map[string][]string{
		"en": {"the quick brown fox"},
		"vi": {"con mèo trèo cây cau"},
	} {
		p, err := language.NewProfile(code, bank, asrMgr, ttsMgr)
		if err != nil {
			t.Fatalf("NewProfile(%q): %v", code, err)
		}
		if err := registry.Register(p); err != nil {
			t.Fatalf("Register(%q): %v", code, err)
		}
	}

	p, err := pipeline.New(registry, "en")
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	checks := health.New(health.ArtifactDir(store), health.Languages(registry))
	srv := NewServer(p, store, checks)
	return &testServer{
		srv:     srv,
		handler: srv.Routes(),
		store:   store,
		asrEng:  asrEng,
		ttsEng:  ttsEng,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "recording.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func wavBytes() []byte {
	return audio.EncodeWAV(audio.Clip{
		Data:       []byte{1, 0, 2, 0, 3, 0, 4, 0},
		SampleRate: 16000,
		Channels:   1,
	})
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func sessionCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// ── language selection ──

func TestSelectLanguage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{Language: "vi"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	res := decodeBody[selectLanguageResponse](t, rec)
	if res.Sentence != "con mèo trèo cây cau" {
		t.Errorf("sentence = %q", res.Sentence)
	}
	if res.HasASR {
		t.Error("has_asr = true for a synthesis-only language")
	}

	c := sessionCookieOf(t, rec)
	if !c.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
}

func TestSelectLanguage_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{Language: "xx"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	res := decodeBody[errorResponse](t, rec)
	if !strings.Contains(res.Error, "xx") {
		t.Errorf("error = %q, does not name the language", res.Error)
	}
	if got := len(ts.ttsEng.LoadVoiceCalls); got != 0 {
		t.Errorf("voice loads = %d, want 0 for an unknown language", got)
	}
}

func TestSelectLanguage_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty language: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/language", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	if rec := ts.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed json: status = %d, want 400", rec.Code)
	}
}

func TestSelectLanguage_LoadFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.ttsEng.LoadVoiceErr = errors.New("voice assets missing")

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{Language: "en"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

// ── sentences ──

func TestSentence(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest("GET", "/api/sentence", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decodeBody[sentenceResponse](t, rec)
	if res.Sentence != "the quick brown fox" {
		t.Errorf("sentence = %q, want the default language bank", res.Sentence)
	}
	// Serving sentences does not load any models.
	if got := len(ts.ttsEng.LoadVoiceCalls); got != 0 {
		t.Errorf("voice loads = %d, want 0", got)
	}
}

// ── transcription ──

func TestTranscribe(t *testing.T) {
	ts := newTestServer(t)
	ts.asrEng.Model = &asrmock.Model{Text: "she sells seashells"}

	rec := ts.do(uploadRequest(t, "audio_data", wavBytes()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decodeBody[transcribeResponse](t, rec)
	if res.Transcription != "she sells seashells" {
		t.Errorf("transcription = %q", res.Transcription)
	}
	if got := len(ts.asrEng.LoadModelCalls); got != 1 {
		t.Errorf("model loads = %d, want 1 on-demand load", got)
	}

	// The upload artifact does not outlive the request.
	entries, err := os.ReadDir(ts.store.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("artifacts left behind = %d, want 0", len(entries))
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(uploadRequest(t, "wrong_field", wavBytes()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	res := decodeBody[errorResponse](t, rec)
	if res.Error != "no audio file provided" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestTranscribe_InvalidWAV(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(uploadRequest(t, "audio_data", []byte("definitely not a wav")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an undecodable upload", rec.Code)
	}
}

func TestTranscribe_ASRlessLanguage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{Language: "vi"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("select vi: status = %d", rec.Code)
	}
	cookie := sessionCookieOf(t, rec)

	req := uploadRequest(t, "audio_data", wavBytes())
	req.AddCookie(cookie)
	rec = ts.do(req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

// ── synthesis ──

func TestSynthesize(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/synthesize", synthesizeRequest{Text: "hello world"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decodeBody[synthesizeResponse](t, rec)
	if !strings.HasPrefix(res.AudioURL, "/static/temp_audio/") {
		t.Errorf("audio_url = %q, want the static prefix", res.AudioURL)
	}
	if !strings.HasSuffix(res.AudioURL, ".wav") {
		t.Errorf("audio_url = %q, want *.wav", res.AudioURL)
	}

	// The URL serves the synthesized WAV.
	rec = ts.do(httptest.NewRequest("GET", res.AudioURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: status = %d", res.AudioURL, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")) {
		t.Error("served body is not a WAV file")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/synthesize", synthesizeRequest{Text: "   "}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	res := decodeBody[errorResponse](t, rec)
	if res.Error != "no text provided" {
		t.Errorf("error = %q", res.Error)
	}
}

// ── artifact serving ──

func TestArtifact_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest("GET", "/static/temp_audio/missing.wav", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestArtifact_TraversalRefused(t *testing.T) {
	ts := newTestServer(t)

	// An escaped traversal lands in the name segment; the store refuses it.
	rec := ts.do(httptest.NewRequest("GET", "/static/temp_audio/..%2fsecret.wav", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// ── operational endpoints ──

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(httptest.NewRequest("GET", "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d", rec.Code)
	}
	if rec := ts.do(httptest.NewRequest("GET", "/readyz", nil)); rec.Code != http.StatusOK {
		t.Errorf("readyz: status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics body is empty")
	}
}
