package audio

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestValidateStemCount(t *testing.T) {
	if err := ValidateStemCount(0); !errors.Is(err, ErrNoStems) {
		t.Errorf("Expected ErrNoStems, got %v", err)
	}
	for n := 1; n <= MaxStems; n++ {
		if err := ValidateStemCount(n); err != nil {
			t.Errorf("Expected %d stems to be valid, got %v", n, err)
		}
	}
	if err := ValidateStemCount(MaxStems + 1); !errors.Is(err, ErrTooManyStems) {
		t.Errorf("Expected ErrTooManyStems, got %v", err)
	}
}

func TestToStereo(t *testing.T) {
	mono := toStereo([]float32{0.1, 0.2}, 1)
	if len(mono) != 4 || mono[0] != 0.1 || mono[1] != 0.1 || mono[3] != 0.2 {
		t.Errorf("Expected duplicated mono, got %v", mono)
	}

	quad := toStereo([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 4)
	if len(quad) != 4 || quad[0] != 1 || quad[1] != 2 || quad[2] != 5 || quad[3] != 6 {
		t.Errorf("Expected first two channels, got %v", quad)
	}
}

func TestResample(t *testing.T) {
	src := make([]float32, 2*100)
	for i := 0; i < 100; i++ {
		src[2*i] = float32(i)
		src[2*i+1] = float32(i)
	}

	out := resample(src, 1000, 2000)
	if len(out) != 2*200 {
		t.Fatalf("Expected 200 frames, got %d", len(out)/2)
	}
	if out[2] != 0.5 {
		t.Errorf("Expected interpolated 0.5, got %v", out[2])
	}

	same := resample(src, 48000, 48000)
	if &same[0] != &src[0] {
		t.Error("Expected equal rates to return the input unchanged")
	}
}

func TestWriteAndDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	samples := make([]float32, 2*441)
	for i := 0; i < 441; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*float64(i)/44.1))
		samples[2*i] = v
		samples[2*i+1] = -v
	}
	if err := WriteWAV(path, samples, 44100); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	stem, err := DecodeFile(path, 44100)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if stem.Name != "tone" {
		t.Errorf("Expected stem name tone, got %s", stem.Name)
	}
	if stem.Frames() != 441 {
		t.Fatalf("Expected 441 frames, got %d", stem.Frames())
	}
	for i := range samples {
		if math.Abs(float64(stem.Samples[i]-samples[i])) > 1e-3 {
			t.Fatalf("Sample %d: expected %v, got %v", i, samples[i], stem.Samples[i])
		}
	}

	resampled, err := DecodeFile(path, 88200)
	if err != nil {
		t.Fatalf("DecodeFile with resample failed: %v", err)
	}
	if resampled.Frames() != 882 {
		t.Errorf("Expected 882 frames after resample, got %d", resampled.Frames())
	}
}

func TestDecodeFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := DecodeFile(filepath.Join(dir, "missing.wav"), 48000); err == nil {
		t.Error("Expected error for missing file")
	}

	flac := filepath.Join(dir, "stem.flac")
	if err := os.WriteFile(flac, []byte("fLaC"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(flac, 48000); err == nil {
		t.Error("Expected error for unsupported format")
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(bad, 48000); err == nil {
		t.Error("Expected error for invalid WAV")
	}
}

func TestDecodeUnsigned8BitWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lofi.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 8000, 8, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           []int{128, 192, 64, 128},
		SourceBitDepth: 8,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	stem, err := DecodeFile(path, 8000)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	expected := []float32{0, 0.5, -0.5, 0}
	if stem.Frames() != int64(len(expected)) {
		t.Fatalf("Expected %d frames, got %d", len(expected), stem.Frames())
	}
	for i, want := range expected {
		// mono is duplicated to both channels
		if got := stem.Samples[2*i]; math.Abs(float64(got-want)) > 1e-6 {
			t.Errorf("Frame %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestReadDecoded(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2}, 40000)

	raw, err := readDecoded(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Expected clean read, got %v", err)
	}
	if !bytes.Equal(raw, data) {
		t.Errorf("Expected %d bytes, got %d", len(data), len(raw))
	}

	corrupt := io.MultiReader(bytes.NewReader(data[:1000]), iotest.ErrReader(errors.New("bad frame header")))
	if _, err := readDecoded(corrupt, 0); err == nil {
		t.Error("Expected error for a stream failing mid-way")
	}
}
