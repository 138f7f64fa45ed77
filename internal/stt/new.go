package stt

import (
	"fmt"
	"log/slog"

	"github.com/voicemark/sidecar/internal/config"
)

// New constructs the configured engine. A failure here is a startup
// error: the service must not accept connections without an engine.
func New(cfg config.STTConfig, sampleRate int, log *slog.Logger) (Engine, error) {
	switch cfg.Mode {
	case "whisper":
		return NewWhisperEngine(cfg.ModelPath, cfg.Language, log)
	case "exec":
		return NewExecEngine(cfg.Command, cfg.ModelPath, cfg.Language, sampleRate)
	case "mock":
		return NewMockEngine(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
