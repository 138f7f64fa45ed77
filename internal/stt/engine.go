// Package stt is the boundary to the speech-to-text engine. Engines
// take normalized float32 samples at 16 kHz mono and produce text; the
// call is CPU-bound and blocking, so callers are expected to run it off
// their message-servicing goroutine.
package stt

import (
	"context"
)

// Options carry per-call transcription hints.
type Options struct {
	// Language code (e.g. "en"). Empty means engine default.
	Language string
	// Translate requests translation to English.
	Translate bool
}

// Result is the outcome of one transcription call.
type Result struct {
	Text     string
	Segments int
}

// Engine abstracts transcription backends. Implementations must allow
// concurrent calls from different sessions; each call gets its own
// lightweight decode state.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error)
	Close() error
}
