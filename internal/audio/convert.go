package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Converter shells out to ffmpeg to turn arbitrary compressed audio
// (WebM/Opus from browser recorders, MP3, ...) into the fixed WAV
// format the engine expects: 16 kHz mono 16-bit PCM.
type Converter struct {
	ffmpegPath string
	sampleRate int
}

func NewConverter(ffmpegPath string, sampleRate int) *Converter {
	return &Converter{ffmpegPath: ffmpegPath, sampleRate: sampleRate}
}

// Check verifies the ffmpeg binary can be resolved. Called at startup
// so a missing converter fails the process, not the first request.
func (c *Converter) Check() error {
	if _, err := exec.LookPath(c.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", c.ffmpegPath, err)
	}
	return nil
}

// ConvertToWAV converts compressed audio bytes to WAV bytes.
func (c *Converter) ConvertToWAV(ctx context.Context, input []byte) ([]byte, error) {
	inFile, err := os.CreateTemp("", "voicemark_in_*")
	if err != nil {
		return nil, fmt.Errorf("temp input file: %w", err)
	}
	defer os.Remove(inFile.Name())
	defer inFile.Close()

	outFile, err := os.CreateTemp("", "voicemark_out_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp output file: %w", err)
	}
	defer os.Remove(outFile.Name())
	defer outFile.Close()

	if _, err := inFile.Write(input); err != nil {
		return nil, fmt.Errorf("write input audio: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath,
		"-y",
		"-i", inFile.Name(),
		"-ar", fmt.Sprintf("%d", c.sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outFile.Name(),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, stderr.String())
	}

	wavBytes, err := os.ReadFile(outFile.Name())
	if err != nil {
		return nil, fmt.Errorf("read converted wav: %w", err)
	}
	return wavBytes, nil
}

// ExtractWAVSamples locates the data chunk of a WAV payload and decodes
// its 16-bit PCM content to normalized float32 samples.
func ExtractWAVSamples(wavBytes []byte) ([]float32, error) {
	if len(wavBytes) < 44 {
		return nil, fmt.Errorf("wav payload too small: %d bytes", len(wavBytes))
	}
	start, err := findDataChunk(wavBytes)
	if err != nil {
		return nil, err
	}
	return DecodePCM16(wavBytes[start:])
}

// findDataChunk scans for the "data" marker and skips the marker plus
// the 4-byte chunk size.
func findDataChunk(wavBytes []byte) (int, error) {
	marker := []byte("data")
	for i := 0; i+8 <= len(wavBytes); i++ {
		if bytes.Equal(wavBytes[i:i+4], marker) {
			return i + 8, nil
		}
	}
	return 0, fmt.Errorf("could not find data chunk in wav payload")
}
