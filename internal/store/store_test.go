package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/voicemark/sidecar/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Writes are no-ops, reads are empty.
	if err := s.AppendTranscript(context.Background(), Transcript{SessionID: "x", Text: "hi"}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
	lines, err := s.ListSessionTranscripts(context.Background(), "x", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("ephemeral store must not retain, got %d", len(lines))
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.AppendSession(context.Background(), sessionID, "stream"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendTranscript(context.Background(), Transcript{SessionID: sessionID, Text: "hello world", Segments: 2}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
	if err := s.AppendTranscript(context.Background(), Transcript{SessionID: sessionID, Text: "second line", Segments: 1}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	lines, err := s.ListSessionTranscripts(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(lines))
	}
	if lines[0].Text != "hello world" || lines[0].Segments != 2 {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Text != "second line" {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "old-session", "stream"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendTranscript(context.Background(), Transcript{SessionID: "old-session", Text: "stale"}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "new-session", "stream"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	lines, err := s.ListSessionTranscripts(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected old session pruned, got %d lines", len(lines))
	}
}
