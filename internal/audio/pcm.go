// Package audio converts between the wire formats audio arrives in and
// the normalized float32 samples the transcription engine consumes.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodePCM16 converts little-endian 16-bit PCM bytes into float32
// samples in [-1.0, 1.0]. The byte length must be a multiple of 2.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("invalid audio data length %d: must be multiple of 2", len(data))
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 quantizes float32 samples back to little-endian 16-bit PCM.
// Values outside [-1.0, 1.0] are clamped.
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}

// WriteWAVFile encodes samples as a 16-bit mono WAV file.
func WriteWAVFile(file *os.File, samples []float32, sampleRate int) error {
	buffer := &gaudio.IntBuffer{Format: &gaudio.Format{NumChannels: 1, SampleRate: sampleRate}}
	ints := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		ints[i] = int(int16(v))
	}
	buffer.Data = ints

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
