// Package server exposes the speech-cache service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-cache/internal/core"
	"github.com/book-expert/speech-cache/internal/speech"
	"github.com/google/uuid"
)

// Routes.
const (
	SpeechPath = "/v1/speech"
	AudioPath  = "/v1/audio/"
	HealthPath = "/healthz"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// speechRequest is the wire form of a speech resolution request.
type speechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
	Locale  string `json:"locale"`
	Mode    string `json:"mode"`
}

type speechResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Server routes HTTP requests to the speech resolution service and serves
// stored audio objects back to the public URLs the service hands out.
type Server struct {
	service   *speech.Service
	store     core.ObjectStore
	connected func() bool
	log       *logger.Logger
}

// New creates a Server. connected reports bus connectivity for the health
// endpoint; a nil func means always healthy.
func New(service *speech.Service, store core.ObjectStore, connected func() bool, log *logger.Logger) *Server {
	if connected == nil {
		connected = func() bool { return true }
	}

	return &Server{
		service:   service,
		store:     store,
		connected: connected,
		log:       log,
	}
}

// Handler builds the HTTP route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SpeechPath, s.handleSpeech)
	mux.HandleFunc(AudioPath, s.handleAudio)
	mux.HandleFunc(HealthPath, s.handleHealth)

	return mux
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")

		return
	}

	requestID := uuid.NewString()

	var req speechRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.log.Warn("[%s] Malformed speech request body: %v", requestID, err)
		s.writeError(w, http.StatusBadRequest, "malformed request body")

		return
	}

	url, err := s.service.ResolveAudioURL(r.Context(), core.SpeechRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		Locale:  req.Locale,
		Mode:    req.Mode,
	})
	if err != nil {
		s.writeResolutionError(w, requestID, err)

		return
	}

	s.writeJSON(w, http.StatusOK, speechResponse{URL: url})
}

// writeResolutionError maps the orchestrator's error kinds to status codes.
// Internal detail is logged server-side only; the response body carries the
// kind's public message.
func (s *Server) writeResolutionError(w http.ResponseWriter, requestID string, err error) {
	if errors.Is(err, speech.ErrValidation) {
		s.log.Info("[%s] Rejected speech request: %v", requestID, err)
		s.writeError(w, http.StatusBadRequest, speech.PublicMessage(err))

		return
	}

	s.log.Error("[%s] Speech request failed: %v", requestID, err)
	s.writeError(w, http.StatusInternalServerError, speech.PublicMessage(err))
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")

		return
	}

	key := strings.TrimPrefix(r.URL.Path, AudioPath)
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		s.writeError(w, http.StatusNotFound, "audio object not found")

		return
	}

	data, found, err := s.store.TryGet(r.Context(), key)
	if err != nil {
		s.log.Error("Failed to fetch audio object '%s': %v", key, err)
		s.writeError(w, http.StatusInternalServerError, "audio storage failed")

		return
	}

	if !found {
		s.writeError(w, http.StatusNotFound, "audio object not found")

		return
	}

	w.Header().Set(headerContentType, contentTypeMPEG)
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(data)
	if err != nil {
		s.log.Warn("Failed to write audio response for '%s': %v", key, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.connected() {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})

		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.log.Warn("Failed to encode response body: %v", err)
	}
}
