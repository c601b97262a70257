package mix

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/config"
	"github.com/audiolibrelab/stemtouch/internal/console"
)

// renderFrames is the block size of the offline render
const renderFrames = 4096

// Options overrides the profile mix for one bounce
type Options struct {
	Gains  map[string]float64 // stem name to fader value
	Mutes  map[string]bool    // stem name to mute flag
	Output string             // output file, "" writes next to the song
}

type Mixer struct {
	cfg     *config.Config
	library *catalog.Library
}

func New(cfg *config.Config, library *catalog.Library) *Mixer {
	return &Mixer{cfg: cfg, library: library}
}

// Mix renders the song with the profile's stem values into a stereo WAV file
// and returns its path
func (m *Mixer) Mix(ctx context.Context, songName string) (string, error) {
	return m.MixWithOptions(ctx, songName, Options{})
}

// MixWithOptions is Mix with per-stem overrides
func (m *Mixer) MixWithOptions(ctx context.Context, songName string, opts Options) (string, error) {
	song, err := m.library.Find(songName)
	if err != nil {
		return "", err
	}

	stems, err := catalog.Load(ctx, song, m.cfg.Audio.SampleRate)
	if err != nil {
		return "", err
	}

	bank, _, err := console.BuildMix(m.cfg, stems)
	if err != nil {
		return "", err
	}
	for i, s := range stems {
		if v, ok := lookup(opts.Gains, s.Name); ok {
			bank.SetValue(i, v)
		}
		if muted, ok := lookup(opts.Mutes, s.Name); ok {
			bank.SetMuted(i, muted)
		}
	}

	samples, err := Render(ctx, stems, bank.Gains(), m.cfg.Audio.SampleRate)
	if err != nil {
		return "", err
	}

	outputFile := opts.Output
	if outputFile == "" {
		// the library root is not scanned for stems
		outputFile = filepath.Join(m.library.Dir(), m.cleanFileName(song.Name)+"_mix.wav")
	}
	os.Remove(outputFile)

	if err := audio.WriteWAV(outputFile, samples, m.cfg.Audio.SampleRate); err != nil {
		return "", err
	}

	slog.Info("Mixed audio file saved to", "file", outputFile, "stems", len(stems))
	return outputFile, nil
}

// Render plays stems through an offline mixer clock with the given gains and
// returns the interleaved stereo mixdown, as long as the longest stem
func Render(ctx context.Context, stems []*audio.Stem, gains []float64, sampleRate int) ([]float32, error) {
	engine := audio.NewMixerEngine(sampleRate)
	transport := audio.NewTransport(engine, 0)
	defer transport.Close()

	if err := transport.Load(stems); err != nil {
		return nil, err
	}
	transport.SetGains(gains)
	if err := transport.Play(ctx); err != nil {
		return nil, fmt.Errorf("offline render failed to start: %w", err)
	}

	var length int64
	for _, s := range stems {
		length = max(length, s.Frames())
	}

	out := make([]float32, 0, length*audio.ChannelCount)
	block := make([]float32, renderFrames*audio.ChannelCount)
	for !engine.Ended() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := engine.Render(block)
		out = append(out, block[:n*audio.ChannelCount]...)
	}

	if int64(len(out)) > length*audio.ChannelCount {
		out = out[:length*audio.ChannelCount]
	}
	return out, nil
}

func lookup[V any](m map[string]V, name string) (V, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (m *Mixer) cleanFileName(name string) string {
	// Remove special characters and replace spaces with underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9 _-]`)
	cleaned := reg.ReplaceAllString(name, "")
	return strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "_")
}
