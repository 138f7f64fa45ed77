package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicemark/sidecar/internal/audio"
	"github.com/voicemark/sidecar/internal/bus"
	"github.com/voicemark/sidecar/internal/protocol"
	"github.com/voicemark/sidecar/internal/session"
	"github.com/voicemark/sidecar/internal/store"
	"github.com/voicemark/sidecar/internal/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// Browser clients connect cross-origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades the connection and runs the transport loop:
// read a frame, drive the session, send at most one reply, repeat
// until the channel closes or errors.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.log.With(slog.String("component", "stream"), slog.String("session_id", sessionID))
	log.Info("new streaming connection established")

	ctx := r.Context()
	s.metrics.sessionStarted(ctx)
	defer s.metrics.sessionEnded(context.Background())

	sess := session.New(session.Config{
		ChunkSamples: int(float64(s.cfg.Stream.SampleRate) * s.cfg.Stream.ChunkSeconds),
		PartialEvery: time.Duration(s.cfg.Stream.PartialEveryMS) * time.Millisecond,
		MinSamples:   s.cfg.Stream.SampleRate * s.cfg.Stream.MinAudioMS / 1000,
	})

	if s.store != nil {
		if err := s.store.AppendSession(ctx, sessionID, "stream"); err != nil {
			log.Warn("failed to record session", slog.String("error", err.Error()))
		}
	}

	if !s.send(conn, protocol.Ready("Streaming transcription ready"), log) {
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("client closed connection")
			} else {
				log.Error("websocket error", slog.String("error", err.Error()))
			}
			break
		}

		var reply *protocol.ServerMessage
		switch msgType {
		case websocket.TextMessage:
			reply = s.handleTextFrame(ctx, sess, sessionID, data, log)
		case websocket.BinaryMessage:
			// Raw little-endian 16-bit PCM at the service rate.
			reply = s.handlePCM(ctx, sess, sessionID, data, log)
		default:
			continue
		}

		if reply != nil && !s.send(conn, *reply, log) {
			break
		}
	}

	log.Info("streaming connection closed")
}

func (s *Server) send(conn *websocket.Conn, msg protocol.ServerMessage, log *slog.Logger) bool {
	data, err := msg.Encode()
	if err != nil {
		log.Error("failed to encode server message", slog.String("error", err.Error()))
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Error("websocket write failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// handleTextFrame decodes a tagged client message and dispatches it.
// Malformed frames produce an Error reply and leave the session alone.
func (s *Server) handleTextFrame(ctx context.Context, sess *session.Session, sessionID string, data []byte, log *slog.Logger) *protocol.ServerMessage {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		log.Warn("failed to parse client message", slog.String("error", err.Error()))
		reply := protocol.Error(err.Error())
		return &reply
	}

	switch msg.Type {
	case protocol.TypeAudio:
		if msg.SampleRate != s.cfg.Stream.SampleRate {
			reply := protocol.Error(formatSampleRateError(s.cfg.Stream.SampleRate, msg.SampleRate))
			return &reply
		}
		pcm, err := msg.AudioBytes()
		if err != nil {
			reply := protocol.Error("failed to decode audio: " + err.Error())
			return &reply
		}
		return s.handlePCM(ctx, sess, sessionID, pcm, log)

	case protocol.TypeEnd:
		inv, invoke := sess.Finalize()
		if !invoke {
			reply := protocol.Final("", s.clock())
			return &reply
		}
		return s.runInvocation(ctx, sess, sessionID, inv, log)

	case protocol.TypeReset:
		sess.Reset()
		reply := protocol.Ready("Session reset")
		return &reply
	}
	return nil
}

// handlePCM normalizes raw PCM bytes, feeds the session, and runs any
// transcription the policy triggers. Throttled audio produces no reply.
func (s *Server) handlePCM(ctx context.Context, sess *session.Session, sessionID string, pcm []byte, log *slog.Logger) *protocol.ServerMessage {
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		reply := protocol.Error("failed to decode audio: " + err.Error())
		return &reply
	}

	inv, invoke := sess.Ingest(samples)
	log.Debug("samples buffered", slog.Int("added", len(samples)), slog.Bool("invoke", invoke))
	if !invoke {
		return nil
	}
	return s.runInvocation(ctx, sess, sessionID, inv, log)
}

// runInvocation offloads one engine call to the worker pool, awaits it,
// applies the result to the session, and builds the reply. A failed
// call still advances the session so it cannot wedge.
func (s *Server) runInvocation(ctx context.Context, sess *session.Session, sessionID string, inv session.Invocation, log *slog.Logger) *protocol.ServerMessage {
	opts := stt.Options{Language: s.cfg.STT.Language, Translate: s.cfg.STT.Translate}

	var result stt.Result
	var terr error
	start := s.clock()
	err := s.pool.Do(ctx, func() {
		result, terr = s.engine.Transcribe(ctx, inv.Samples, opts)
	})
	sess.ApplyResult(inv.Final)

	if err != nil {
		// Transport context ended while the call was queued or running;
		// the loop is exiting and the result is discarded.
		log.Warn("transcription abandoned", slog.String("error", err.Error()))
		return nil
	}

	kind := "partial"
	if inv.Final {
		kind = "final"
	}
	s.metrics.recordCall(ctx, kind, s.clock().Sub(start), terr != nil)

	if terr != nil {
		log.Error("transcription error", slog.String("error", terr.Error()))
		reply := protocol.Error("transcription failed: " + terr.Error())
		return &reply
	}

	now := s.clock()
	if !inv.Final {
		reply := protocol.Partial(result.Text, now)
		return &reply
	}

	log.Info("chunk committed",
		slog.Int("samples", len(inv.Samples)),
		slog.Int("segments", result.Segments))

	s.archiver.Save(sessionID, inv.Seq, inv.Samples)
	if result.Text != "" {
		if s.store != nil {
			if err := s.store.AppendTranscript(ctx, store.Transcript{
				SessionID: sessionID,
				Text:      result.Text,
				Segments:  result.Segments,
			}); err != nil {
				log.Warn("failed to record transcript", slog.String("error", err.Error()))
			}
		}
		s.bus.PublishFinal(bus.TranscriptEvent{
			SessionID: sessionID,
			Text:      result.Text,
			Segments:  result.Segments,
			Timestamp: now.UTC(),
		})
	}

	reply := protocol.Final(result.Text, now)
	return &reply
}

func formatSampleRateError(want, got int) string {
	return fmt.Sprintf("expected sample rate %d, got %d", want, got)
}
