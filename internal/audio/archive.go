package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver optionally dumps committed audio chunks as WAV files for
// debugging and corpus collection. A nil Archiver or empty directory
// disables archiving.
type Archiver struct {
	dir        string
	sampleRate int
	log        *slog.Logger
	clock      func() time.Time
}

func NewArchiver(dir string, sampleRate int, log *slog.Logger) (*Archiver, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archiver{dir: dir, sampleRate: sampleRate, log: log, clock: time.Now}, nil
}

// Save writes one committed chunk. Failures are logged, not returned:
// archiving must never fail a transcription.
func (a *Archiver) Save(sessionID string, seq int, samples []float32) {
	if a == nil || len(samples) == 0 {
		return
	}
	name := fmt.Sprintf("%s_%04d_%d.wav", sessionID, seq, a.clock().UnixMilli())
	file, err := os.Create(filepath.Join(a.dir, name))
	if err != nil {
		a.log.Warn("archive create failed", slog.String("error", err.Error()))
		return
	}
	defer file.Close()
	if err := WriteWAVFile(file, samples, a.sampleRate); err != nil {
		a.log.Warn("archive write failed", slog.String("error", err.Error()))
	}
}
