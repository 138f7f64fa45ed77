package stt

import (
	"context"
	"fmt"
)

type mockEngine struct{}

// NewMockEngine returns a deterministic engine for tests and local
// development without a model file.
func NewMockEngine() Engine {
	return &mockEngine{}
}

func (m *mockEngine) Transcribe(_ context.Context, samples []float32, _ Options) (Result, error) {
	if len(samples) == 0 {
		return Result{}, nil
	}
	return Result{
		Text:     fmt.Sprintf("[transcript samples=%d]", len(samples)),
		Segments: 1,
	}, nil
}

func (m *mockEngine) Close() error {
	return nil
}
