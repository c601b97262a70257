package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// MaxStems is the largest number of stems a song may have
const MaxStems = 8

// ChannelCount is the channel layout every stem is converted to
const ChannelCount = 2

var (
	ErrNoStems      = errors.New("song has no stems")
	ErrTooManyStems = fmt.Errorf("song has more than %d stems", MaxStems)
)

// Stem is one decoded audio source of a song, interleaved stereo float32 at the
// engine sample rate
type Stem struct {
	Name       string
	Path       string
	SampleRate int
	Samples    []float32
}

// Frames returns the number of stereo frames
func (s *Stem) Frames() int64 {
	return int64(len(s.Samples) / ChannelCount)
}

// Duration returns the playback length
func (s *Stem) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// ValidateStemCount enforces 1..MaxStems
func ValidateStemCount(n int) error {
	if n == 0 {
		return ErrNoStems
	}
	if n > MaxStems {
		return fmt.Errorf("%w: got %d", ErrTooManyStems, n)
	}
	return nil
}

// DecodeFile reads a WAV or MP3 file into a stereo stem at sampleRate
func DecodeFile(path string, sampleRate int) (*Stem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stem %s: %w", path, err)
	}
	defer f.Close()

	var (
		samples  []float32
		srcRate  int
		channels int
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, srcRate, channels, err = decodeWAV(f)
	case ".mp3":
		samples, srcRate, channels, err = decodeMP3(f)
	default:
		return nil, fmt.Errorf("unsupported stem format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	samples = toStereo(samples, channels)
	if srcRate != sampleRate {
		samples = resample(samples, srcRate, sampleRate)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Stem{Name: name, Path: path, SampleRate: sampleRate, Samples: samples}, nil
}

func decodeWAV(f *os.File) ([]float32, int, int, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		return nil, 0, 0, fmt.Errorf("unknown bit depth")
	}
	factor := math.Pow(2, float64(bitDepth-1))
	// 8-bit PCM is unsigned with silence at 128
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(float64(v-offset) / factor)
	}
	return out, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

func decodeMP3(f *os.File) ([]float32, int, int, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, 0, err
	}

	// go-mp3 always produces 16-bit little-endian stereo
	raw, err := readDecoded(decoder, decoder.Length())
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	out := make([]float32, len(raw)/2)
	for i := range out {
		sample := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		out[i] = float32(sample) / 32768
	}
	return out, decoder.SampleRate(), 2, nil
}

// readDecoded drains r until EOF. Any other read error means the stream is
// truncated or corrupt.
func readDecoded(r io.Reader, sizeHint int64) ([]byte, error) {
	raw := make([]byte, 0, max(sizeHint, 0))
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		raw = append(raw, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// toStereo duplicates mono and keeps the first two channels of wider layouts
func toStereo(samples []float32, channels int) []float32 {
	switch {
	case channels == 2:
		return samples
	case channels <= 1:
		out := make([]float32, len(samples)*2)
		for i, v := range samples {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out
	default:
		frames := len(samples) / channels
		out := make([]float32, frames*2)
		for i := 0; i < frames; i++ {
			out[2*i] = samples[i*channels]
			out[2*i+1] = samples[i*channels+1]
		}
		return out
	}
}

// resample converts interleaved stereo between rates with linear interpolation
func resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to {
		return samples
	}
	frames := len(samples) / 2
	if frames == 0 {
		return samples
	}
	outFrames := int(int64(frames) * int64(to) / int64(from))
	out := make([]float32, outFrames*2)
	ratio := float64(from) / float64(to)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		k := j + 1
		if k >= frames {
			k = frames - 1
		}
		for c := 0; c < 2; c++ {
			a := samples[2*j+c]
			b := samples[2*k+c]
			out[2*i+c] = a + (b-a)*frac
		}
	}
	return out
}

// WriteWAV encodes interleaved stereo float samples as 16-bit PCM
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, ChannelCount, 1)

	data := make([]int, len(samples))
	for i, v := range samples {
		v = float32(math.Max(-1, math.Min(1, float64(v))))
		data[i] = int(v * math.MaxInt16)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: ChannelCount,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
