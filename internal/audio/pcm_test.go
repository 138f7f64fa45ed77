package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodePCM16KnownValues(t *testing.T) {
	// 0x0000 -> 0.0, 0x7FFF -> ~0.99997
	samples, err := DecodePCM16([]byte{0x00, 0x00, 0xFF, 0x7F})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if math.Abs(float64(samples[0])) > 0.001 {
		t.Fatalf("expected 0.0, got %v", samples[0])
	}
	if math.Abs(float64(samples[1])-0.99997) > 0.001 {
		t.Fatalf("expected ~0.99997, got %v", samples[1])
	}
}

func TestDecodePCM16RejectsOddLength(t *testing.T) {
	if _, err := DecodePCM16([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for odd-length input")
	}
}

func TestDecodePCM16NegativeValues(t *testing.T) {
	// 0x8000 is -32768 -> -1.0
	samples, err := DecodePCM16([]byte{0x00, 0x80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if samples[0] != -1.0 {
		t.Fatalf("expected -1.0, got %v", samples[0])
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	original := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0x34, 0x12}
	samples, err := DecodePCM16(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encoded := EncodePCM16(samples)
	if len(encoded) != len(original) {
		t.Fatalf("length mismatch: %d vs %d", len(encoded), len(original))
	}
	for i := range original {
		if encoded[i] != original[i] {
			t.Fatalf("byte %d mismatch: %#x vs %#x", i, encoded[i], original[i])
		}
	}
}

func TestFindDataChunk(t *testing.T) {
	fake := append([]byte("RIFFxxxxWAVEfmt ................"), []byte("data\x08\x00\x00\x00\x01\x02\x03\x04\x05\x06\x07\x08")...)
	start, err := findDataChunk(fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake[start] != 0x01 {
		t.Fatalf("expected data to start at first pcm byte, got %#x", fake[start])
	}
}

func TestFindDataChunkMissing(t *testing.T) {
	if _, err := findDataChunk([]byte("RIFFxxxxWAVEfmt nothing here")); err == nil {
		t.Fatal("expected error when data chunk is absent")
	}
}

func TestExtractWAVSamplesTooSmall(t *testing.T) {
	if _, err := ExtractWAVSamples([]byte("tiny")); err == nil {
		t.Fatal("expected error for undersized payload")
	}
}

func TestWriteWAVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	defer file.Close()

	want := []float32{0, 0.25, -0.25, 0.5, -0.5}
	if err := WriteWAVFile(file, want, 16000); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	wavBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	got, err := ExtractWAVSamples(wavBytes)
	if err != nil {
		t.Fatalf("extract samples: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1.0/32768.0 {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
