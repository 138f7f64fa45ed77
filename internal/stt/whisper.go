package stt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperEngine runs whisper.cpp in-process. The model is loaded once;
// every Transcribe call creates its own whisper context, so calls from
// different sessions may run concurrently.
type whisperEngine struct {
	model    whisper.Model
	language string
	log      *slog.Logger
}

func NewWhisperEngine(modelPath, language string, log *slog.Logger) (Engine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf(
			"whisper model not found at %q (download: curl -L -o %s https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin): %w",
			modelPath, modelPath, err)
	}

	log.Info("loading whisper model", slog.String("path", modelPath))
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	log.Info("whisper model loaded", slog.Bool("multilingual", model.IsMultilingual()))

	return &whisperEngine{model: model, language: language, log: log}, nil
}

func (e *whisperEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("create whisper context: %w", err)
	}

	language := opts.Language
	if language == "" {
		language = e.language
	}
	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			e.log.Warn("failed to set language", slog.String("language", language), slog.String("error", err.Error()))
		}
	}
	wctx.SetTranslate(opts.Translate)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	var text strings.Builder
	segments := 0
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("get segment: %w", err)
		}
		text.WriteString(segment.Text)
		segments++
	}

	return Result{Text: strings.TrimSpace(text.String()), Segments: segments}, nil
}

func (e *whisperEngine) Close() error {
	return e.model.Close()
}
