// Package session holds the per-connection streaming state machine.
//
// Policy: fixed-chunk auto-commit. Audio accumulates until a target
// chunk duration is reached, at which point the whole chunk is
// committed: transcribed once and reported as a final result, and the
// buffer starts over. Below the chunk target, partial results are
// emitted opportunistically, throttled to a minimum spacing between
// engine invocations and to a minimum amount of buffered audio.
//
// At most one transcription invocation is in flight per session. The
// in-flight flag, not the mutex, covers the (slow) engine call: audio
// arriving while a call is outstanding is accepted and buffered, and
// triggers nothing until the call completes.
package session

import (
	"sync"
	"time"
)

// Config sizes the buffering policy. All fields must be positive
// except MinSamples, which may be zero.
type Config struct {
	// ChunkSamples is the auto-commit threshold.
	ChunkSamples int
	// PartialEvery is the minimum spacing between engine invocations
	// for partial results.
	PartialEvery time.Duration
	// MinSamples is the least buffered audio worth transcribing.
	MinSamples int
}

// Invocation describes one transcription call the session has decided
// to run. Samples is a snapshot: the live buffer is free to grow while
// the call is outstanding.
type Invocation struct {
	Samples []float32
	Final   bool
	Seq     int
}

// Session accumulates normalized samples and decides when to invoke
// the transcription engine. Safe for concurrent use; the lock is held
// only across synchronous state mutations, never across an engine call.
type Session struct {
	mu         sync.Mutex
	cfg        Config
	chunk      []float32
	lastInvoke time.Time
	inflight   bool
	seq        int
	clock      func() time.Time
}

func New(cfg Config) *Session {
	return &Session{
		cfg:   cfg,
		chunk: make([]float32, 0, cfg.ChunkSamples),
		clock: time.Now,
	}
}

// AddSamples appends already-normalized samples and reports whether the
// chunk has reached the auto-commit threshold.
func (s *Session) AddSamples(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunk = append(s.chunk, samples...)
	return len(s.chunk) >= s.cfg.ChunkSamples
}

// ShouldInvoke reports whether the throttle permits a new engine call:
// none in flight, and enough time since the last invocation.
func (s *Session) ShouldInvoke() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldInvokeLocked()
}

func (s *Session) shouldInvokeLocked() bool {
	if s.inflight {
		return false
	}
	if s.lastInvoke.IsZero() {
		return true
	}
	return s.clock().Sub(s.lastInvoke) >= s.cfg.PartialEvery
}

// Ingest appends samples and decides in one step whether to start a
// transcription. A full chunk is committed as final (buffer cleared);
// otherwise a throttled partial over a copy of the buffer may start.
// While a call is in flight nothing starts, even on a full chunk: the
// commit happens on a later message, after the call completes.
func (s *Session) Ingest(samples []float32) (Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunk = append(s.chunk, samples...)

	if len(s.chunk) >= s.cfg.ChunkSamples && !s.inflight {
		inv := Invocation{Samples: s.takeChunkLocked(), Final: true, Seq: s.seq}
		s.seq++
		s.inflight = true
		return inv, true
	}

	if s.shouldInvokeLocked() && len(s.chunk) >= s.cfg.MinSamples && len(s.chunk) > 0 {
		inv := Invocation{Samples: s.snapshotLocked(), Final: false, Seq: s.seq}
		s.inflight = true
		return inv, true
	}

	return Invocation{}, false
}

// Finalize consumes the remaining buffer for an explicit end-of-stream
// and resets the session. The second return is false when there was
// nothing buffered, in which case no engine call is needed.
func (s *Session) Finalize() (Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunk) == 0 {
		s.resetLocked()
		return Invocation{Final: true}, false
	}
	inv := Invocation{Samples: s.takeChunkLocked(), Final: true, Seq: s.seq}
	s.resetLocked()
	return inv, true
}

// ApplyResult records completion of an engine call: the in-flight flag
// clears, and the invocation time advances for partial throttling. A
// final commit returns the policy clock to its initial state.
func (s *Session) ApplyResult(final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	if final {
		s.lastInvoke = time.Time{}
	} else {
		s.lastInvoke = s.clock()
	}
}

// Reset unconditionally returns the session to the state of a freshly
// created one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Buffered reports the current buffer length in samples.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunk)
}

// Inflight reports whether an engine call is outstanding.
func (s *Session) Inflight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

func (s *Session) snapshotLocked() []float32 {
	snap := make([]float32, len(s.chunk))
	copy(snap, s.chunk)
	return snap
}

func (s *Session) takeChunkLocked() []float32 {
	snap := s.snapshotLocked()
	s.chunk = s.chunk[:0]
	return snap
}

func (s *Session) resetLocked() {
	s.chunk = s.chunk[:0]
	s.lastInvoke = time.Time{}
	s.inflight = false
	s.seq = 0
}
