package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/voicemark/sidecar/internal/audio"
)

// execEngine delegates transcription to an external command. The
// command receives a temp WAV via --audio and must print a JSON object
// {"text": ..., "segments": ...} on stdout.
type execEngine struct {
	cmd        []string
	modelPath  string
	language   string
	sampleRate int
}

type execResult struct {
	Text     string `json:"text"`
	Segments int    `json:"segments"`
}

func NewExecEngine(command, modelPath, language string, sampleRate int) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &execEngine{cmd: args, modelPath: modelPath, language: language, sampleRate: sampleRate}, nil
}

func (e *execEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	file, err := os.CreateTemp("", "voicemark_stt_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.WriteWAVFile(file, samples, e.sampleRate); err != nil {
		return Result{}, err
	}

	args := append([]string{}, e.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if e.modelPath != "" {
		cmdArgs = append(cmdArgs, "--model", e.modelPath)
	}
	language := opts.Language
	if language == "" {
		language = e.language
	}
	if language != "" {
		cmdArgs = append(cmdArgs, "--language", language)
	}
	if opts.Translate {
		cmdArgs = append(cmdArgs, "--translate")
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("stt command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode stt response: %w", err)
	}
	return Result{Text: resp.Text, Segments: resp.Segments}, nil
}

func (e *execEngine) Close() error {
	return nil
}
