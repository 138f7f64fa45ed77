// Package server exposes the transcription service over HTTP: a
// one-shot multipart endpoint, a WebSocket streaming endpoint, health,
// and stored-transcript retrieval.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voicemark/sidecar/internal/audio"
	"github.com/voicemark/sidecar/internal/bus"
	"github.com/voicemark/sidecar/internal/config"
	"github.com/voicemark/sidecar/internal/store"
	"github.com/voicemark/sidecar/internal/stt"
	"github.com/voicemark/sidecar/internal/work"
)

// maxUploadBytes bounds one-shot request bodies.
const maxUploadBytes = 64 << 20

type Server struct {
	cfg      config.Config
	log      *slog.Logger
	engine   stt.Engine
	pool     *work.Pool
	store    *store.Store
	bus      *bus.Client
	conv     *audio.Converter
	archiver *audio.Archiver
	metrics  *serverMetrics
	clock    func() time.Time
}

func New(cfg config.Config, log *slog.Logger, engine stt.Engine, pool *work.Pool, st *store.Store, busClient *bus.Client, conv *audio.Converter, archiver *audio.Archiver) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		pool:     pool,
		store:    st,
		bus:      busClient,
		conv:     conv,
		archiver: archiver,
		metrics:  newServerMetrics(),
		clock:    time.Now,
	}
}

// Routes builds the HTTP handler. metricsHandler may be nil when no
// metrics exporter is configured.
func (s *Server) Routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /sessions/{id}/transcripts", s.handleSessionTranscripts)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return corsMiddleware(mux)
}

// corsMiddleware allows browser clients from any origin, matching the
// development posture of the original sidecar.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	OK          bool `json:"ok"`
	ModelLoaded bool `json:"model_loaded"`
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Segments int    `json:"segments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, ModelLoaded: s.engine != nil})
}

// handleTranscribe is the one-shot path: full audio blob in, full
// transcript out.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	audioBytes, err := extractAudioFile(r)
	if err != nil {
		s.log.Error("failed to extract audio file", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.log.Info("received audio for transcription", slog.Int("bytes", len(audioBytes)))

	wavBytes, err := s.conv.ConvertToWAV(r.Context(), audioBytes)
	if err != nil {
		s.log.Error("audio conversion failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "audio conversion failed: " + err.Error()})
		return
	}

	samples, err := audio.ExtractWAVSamples(wavBytes)
	if err != nil {
		s.log.Error("failed to read wav samples", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read audio: " + err.Error()})
		return
	}

	opts := stt.Options{Language: s.cfg.STT.Language, Translate: s.cfg.STT.Translate}
	var result stt.Result
	var terr error
	start := s.clock()
	if err := s.pool.Do(r.Context(), func() {
		result, terr = s.engine.Transcribe(r.Context(), samples, opts)
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "transcription cancelled: " + err.Error()})
		return
	}
	s.metrics.recordCall(r.Context(), "oneshot", s.clock().Sub(start), terr != nil)
	if terr != nil {
		s.log.Error("transcription failed", slog.String("error", terr.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "transcription failed: " + terr.Error()})
		return
	}

	s.log.Info("transcription successful",
		slog.Int("text_len", len(result.Text)),
		slog.Int("segments", result.Segments))

	sessionID := uuid.NewString()
	if s.store != nil && result.Text != "" {
		if err := s.store.AppendSession(r.Context(), sessionID, "oneshot"); err != nil {
			s.log.Warn("failed to record session", slog.String("error", err.Error()))
		} else if err := s.store.AppendTranscript(r.Context(), store.Transcript{
			SessionID: sessionID,
			Text:      result.Text,
			Segments:  result.Segments,
		}); err != nil {
			s.log.Warn("failed to record transcript", slog.String("error", err.Error()))
		}
	}

	writeJSON(w, http.StatusOK, transcribeResponse{Text: result.Text, Segments: result.Segments})
}

func (s *Server) handleSessionTranscripts(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var transcripts []store.Transcript
	var err error
	if s.store != nil {
		transcripts, err = s.store.ListSessionTranscripts(r.Context(), sessionID, 500)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	type line struct {
		Text      string    `json:"text"`
		Segments  int       `json:"segments"`
		CreatedAt time.Time `json:"created_at"`
	}
	lines := make([]line, 0, len(transcripts))
	for _, t := range transcripts {
		lines = append(lines, line{Text: t.Text, Segments: t.Segments, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "transcripts": lines})
}

// extractAudioFile pulls the bytes of the multipart field named "file".
func extractAudioFile(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFileField
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return data, nil
}

var errNoFileField = &fieldError{msg: "no 'file' field found in multipart form"}

type fieldError struct{ msg string }

func (e *fieldError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
