package coqui_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/tts/coqui"
)

// newDetailsServer returns an httptest server answering GET /details with
// the given model description and delegating /api/tts to synth.
func newDetailsServer(t *testing.T, speakers []string, synth http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/details":
			json.NewEncoder(w).Encode(map[string]any{
				"model_name": "tts_models/multilingual/multi-dataset/xtts_v2",
				"language":   "",
				"speakers":   speakers,
			})
		case "/api/tts":
			if synth == nil {
				t.Error("unexpected /api/tts request")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			synth(w, r)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestNew_EmptyURL_ReturnsError(t *testing.T) {
	_, err := coqui.New("")
	if err == nil {
		t.Fatal("expected error for empty server URL, got nil")
	}
}

func TestLanguages(t *testing.T) {
	e, err := coqui.New("http://localhost:5002", coqui.WithLanguages([]string{"vi", "en"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.Languages()
	want := []string{"en", "vi"}
	if !slices.Equal(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}
}

func TestLoadVoice(t *testing.T) {
	srv := newDetailsServer(t, nil, nil)
	defer srv.Close()

	e, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := e.LoadVoice(context.Background(), "en")
	if err != nil {
		t.Fatalf("LoadVoice: %v", err)
	}
	if err := v.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLoadVoice_UnknownLanguage_ReturnsError(t *testing.T) {
	e, err := coqui.New("http://localhost:5002")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.LoadVoice(context.Background(), "fr"); err == nil {
		t.Fatal("expected error for unconfigured language, got nil")
	}
}

func TestLoadVoice_ServerDown_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.LoadVoice(context.Background(), "en"); err == nil {
		t.Fatal("expected error for unavailable server, got nil")
	}
}

func TestLoadVoice_UnknownSpeaker_ReturnsError(t *testing.T) {
	srv := newDetailsServer(t, []string{"Ana Florence", "Claribel Dervla"}, nil)
	defer srv.Close()

	e, err := coqui.New(srv.URL, coqui.WithSpeakers(map[string]string{"en": "Nonexistent"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.LoadVoice(context.Background(), "en"); err == nil {
		t.Fatal("expected error for unknown speaker, got nil")
	}
}

func TestSynthesize(t *testing.T) {
	clip := audio.Clip{
		Data:       []byte{0x01, 0x02, 0x03, 0x04},
		SampleRate: 22050,
		Channels:   1,
	}
	srv := newDetailsServer(t, []string{"Ana Florence"}, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("text"); got != "hello there" {
			t.Errorf("text param = %q, want %q", got, "hello there")
		}
		if got := q.Get("language_id"); got != "en" {
			t.Errorf("language_id param = %q, want %q", got, "en")
		}
		if got := q.Get("speaker_id"); got != "Ana Florence" {
			t.Errorf("speaker_id param = %q, want %q", got, "Ana Florence")
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(audio.EncodeWAV(clip))
	})
	defer srv.Close()

	e, err := coqui.New(srv.URL, coqui.WithSpeakers(map[string]string{"en": "Ana Florence"}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := e.LoadVoice(context.Background(), "en")
	if err != nil {
		t.Fatalf("LoadVoice: %v", err)
	}

	got, err := v.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got.SampleRate != 22050 || got.Channels != 1 {
		t.Errorf("clip format: %dHz %dch, want 22050Hz 1ch", got.SampleRate, got.Channels)
	}
	if len(got.Data) != len(clip.Data) {
		t.Errorf("clip data length = %d, want %d", len(got.Data), len(clip.Data))
	}
}

func TestSynthesize_EmptyText_ReturnsError(t *testing.T) {
	srv := newDetailsServer(t, nil, nil)
	defer srv.Close()

	e, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := e.LoadVoice(context.Background(), "en")
	if err != nil {
		t.Fatalf("LoadVoice: %v", err)
	}
	if _, err := v.Synthesize(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty text, got nil")
	}
}

func TestSynthesize_BadWAV_ReturnsError(t *testing.T) {
	srv := newDetailsServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a wav file"))
	})
	defer srv.Close()

	e, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, err := e.LoadVoice(context.Background(), "en")
	if err != nil {
		t.Fatalf("LoadVoice: %v", err)
	}
	if _, err := v.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for malformed WAV response, got nil")
	}
}
