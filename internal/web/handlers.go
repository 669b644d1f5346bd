package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/language"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/pkg/audio"
)

// maxUploadBytes caps a transcription upload's multipart form.
const maxUploadBytes = 32 << 20

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

type selectLanguageRequest struct {
	Language string `json:"language"`
}

type selectLanguageResponse struct {
	Sentence string `json:"sentence"`
	HasASR   bool   `json:"has_asr"`
}

type sentenceResponse struct {
	Sentence string `json:"sentence"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSelectLanguage switches the caller's session to the requested
// language, loading its models, and returns a first practice sentence.
func (s *Server) handleSelectLanguage(w http.ResponseWriter, r *http.Request) {
	var req selectLanguageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if req.Language == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no language provided"})
		return
	}

	sess := s.sessions.resolve(w, r)
	res, err := sess.Select(r.Context(), req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectLanguageResponse{Sentence: res.Sentence, HasASR: res.HasASR})
}

// handleSentence returns a fresh practice sentence in the session's current
// language.
func (s *Server) handleSentence(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.resolve(w, r)
	text, err := sess.Sentence()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sentenceResponse{Sentence: text})
}

// handleTranscribe accepts a recorded WAV as the multipart field
// "audio_data" and returns its transcription.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("audio_data")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no audio file provided"})
		return
	}
	defer file.Close()

	sess := s.sessions.resolve(w, r)
	text, err := sess.Transcribe(r.Context(), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcription: text})
}

// handleSynthesize turns the posted text into speech and returns the URL of
// the resulting WAV.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no text provided"})
		return
	}

	sess := s.sessions.resolve(w, r)
	art, err := sess.Synthesize(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, synthesizeResponse{AudioURL: art.URL})
}

// handleArtifact serves a synthesized WAV by its bare filename. The store
// refuses names that reach outside its directory.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := s.store.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// statusForError maps domain errors onto HTTP status codes. Unclassified
// errors are server faults.
func statusForError(err error) int {
	switch {
	case errors.Is(err, language.ErrUnknownLanguage), errors.Is(err, audio.ErrInvalidWAV):
		return http.StatusBadRequest
	case errors.Is(err, language.ErrNoSentences), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, language.ErrASRUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "error", err, "status", status)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
