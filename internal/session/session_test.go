package session

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		ChunkSamples: 100,
		PartialEvery: 500 * time.Millisecond,
		MinSamples:   10,
	}
}

func fixedClock(s *Session) *time.Time {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }
	return &now
}

func samples(n int) []float32 {
	return make([]float32, n)
}

func TestAddSamplesReportsChunkReady(t *testing.T) {
	s := New(testConfig())
	if s.AddSamples(samples(50)) {
		t.Fatal("half a chunk should not be ready")
	}
	if !s.AddSamples(samples(50)) {
		t.Fatal("full chunk should be ready")
	}
}

func TestIngestCommitsFullChunkAsFinal(t *testing.T) {
	s := New(testConfig())
	inv, ok := s.Ingest(samples(100))
	if !ok {
		t.Fatal("expected invocation for full chunk")
	}
	if !inv.Final {
		t.Fatal("full chunk must commit as final")
	}
	if len(inv.Samples) != 100 {
		t.Fatalf("expected snapshot of 100 samples, got %d", len(inv.Samples))
	}
	if s.Buffered() != 0 {
		t.Fatalf("buffer should be cleared after commit, got %d", s.Buffered())
	}
	if !s.Inflight() {
		t.Fatal("commit should mark a call in flight")
	}
}

func TestIngestEmitsThrottledPartials(t *testing.T) {
	s := New(testConfig())
	now := fixedClock(s)

	inv, ok := s.Ingest(samples(50))
	if !ok || inv.Final {
		t.Fatalf("expected partial invocation, got ok=%v final=%v", ok, inv.Final)
	}
	if s.Buffered() != 50 {
		t.Fatalf("partial must not consume the buffer, got %d", s.Buffered())
	}
	s.ApplyResult(false)

	// Inside the throttle window: buffer only.
	*now = now.Add(100 * time.Millisecond)
	if _, ok := s.Ingest(samples(10)); ok {
		t.Fatal("expected throttled ingest to trigger nothing")
	}

	// Past the window: next partial may start.
	*now = now.Add(500 * time.Millisecond)
	inv, ok = s.Ingest(samples(10))
	if !ok || inv.Final {
		t.Fatalf("expected partial after throttle window, got ok=%v final=%v", ok, inv.Final)
	}
	if len(inv.Samples) != 70 {
		t.Fatalf("partial should snapshot the whole buffer, got %d", len(inv.Samples))
	}
}

func TestIngestSkipsBelowMinimumAudio(t *testing.T) {
	s := New(testConfig())
	if _, ok := s.Ingest(samples(5)); ok {
		t.Fatal("expected no invocation below the minimum audio floor")
	}
}

func TestNoOverlappingInvocations(t *testing.T) {
	s := New(testConfig())

	if _, ok := s.Ingest(samples(50)); !ok {
		t.Fatal("expected first invocation")
	}

	// A chunk-filling message while a call is outstanding is accepted
	// and queued, but starts nothing.
	inv, ok := s.Ingest(samples(100))
	if ok {
		t.Fatalf("expected no invocation while in flight, got final=%v", inv.Final)
	}
	if s.Buffered() != 150 {
		t.Fatalf("queued samples must be kept, got %d", s.Buffered())
	}

	// Once the call completes, the oversized chunk commits on the next
	// message.
	s.ApplyResult(false)
	inv, ok = s.Ingest(nil)
	if !ok || !inv.Final {
		t.Fatalf("expected deferred commit, got ok=%v final=%v", ok, inv.Final)
	}
	if len(inv.Samples) != 150 {
		t.Fatalf("expected full queued buffer, got %d", len(inv.Samples))
	}
}

func TestSnapshotIsIsolatedFromLiveBuffer(t *testing.T) {
	s := New(testConfig())
	inv, ok := s.Ingest(samples(50))
	if !ok {
		t.Fatal("expected invocation")
	}
	s.Ingest(samples(20))
	if len(inv.Samples) != 50 {
		t.Fatalf("snapshot must not observe later appends, got %d", len(inv.Samples))
	}
}

func TestFinalizeEmptySessionSkipsEngine(t *testing.T) {
	s := New(testConfig())
	inv, invoke := s.Finalize()
	if invoke {
		t.Fatal("empty session must not invoke the engine")
	}
	if !inv.Final {
		t.Fatal("finalize result must be final")
	}
}

func TestFinalizeConsumesAndResets(t *testing.T) {
	s := New(testConfig())
	s.Ingest(samples(30))
	s.ApplyResult(false)

	inv, invoke := s.Finalize()
	if !invoke || !inv.Final {
		t.Fatalf("expected final invocation, got invoke=%v final=%v", invoke, inv.Final)
	}
	if len(inv.Samples) != 30 {
		t.Fatalf("expected remaining buffer, got %d", len(inv.Samples))
	}
	if s.Buffered() != 0 || s.Inflight() {
		t.Fatal("finalize must reset the session")
	}
	if !s.ShouldInvoke() {
		t.Fatal("finalized session should behave like a fresh one")
	}
}

func TestResetMatchesFreshSession(t *testing.T) {
	s := New(testConfig())
	s.Ingest(samples(100))
	s.ApplyResult(true)
	s.Ingest(samples(50))

	s.Reset()

	fresh := New(testConfig())
	if s.Buffered() != fresh.Buffered() {
		t.Fatalf("buffer mismatch: %d vs %d", s.Buffered(), fresh.Buffered())
	}
	if s.Inflight() != fresh.Inflight() {
		t.Fatal("inflight mismatch")
	}
	if s.ShouldInvoke() != fresh.ShouldInvoke() {
		t.Fatal("throttle state mismatch")
	}

	// Sequence numbering restarts as well.
	inv, ok := s.Ingest(samples(100))
	if !ok || inv.Seq != 0 {
		t.Fatalf("expected seq 0 after reset, got ok=%v seq=%d", ok, inv.Seq)
	}
}

func TestApplyResultFinalClearsThrottle(t *testing.T) {
	s := New(testConfig())
	now := fixedClock(s)

	s.Ingest(samples(100))
	s.ApplyResult(true)

	// Immediately after a final commit a new partial is permitted.
	*now = now.Add(1 * time.Millisecond)
	if !s.ShouldInvoke() {
		t.Fatal("expected throttle cleared after final commit")
	}
}
