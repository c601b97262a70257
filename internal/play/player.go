package play

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/config"
	"github.com/audiolibrelab/stemtouch/internal/console"
)

// Progress receives the playback position on every poll
type Progress func(position, length time.Duration)

// Player plays every stem of a song together without the interactive console
type Player struct {
	cfg       *config.Config
	library   *catalog.Library
	transport *audio.Transport
	interval  time.Duration
}

func New(cfg *config.Config, library *catalog.Library, engine audio.Engine) *Player {
	interval := cfg.UI.Tick
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Player{
		cfg:       cfg,
		library:   library,
		transport: audio.NewTransport(engine, cfg.Audio.StartTimeout),
		interval:  interval,
	}
}

// Play loads songName with the profile's stem values and blocks until the
// song ends or ctx is done. Cancelling stops and rewinds every stem.
func (p *Player) Play(ctx context.Context, songName string, progress Progress) error {
	song, err := p.library.Find(songName)
	if err != nil {
		return err
	}

	stems, err := catalog.Load(ctx, song, p.cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	bank, _, err := console.BuildMix(p.cfg, stems)
	if err != nil {
		return err
	}

	if err := p.transport.Load(stems); err != nil {
		return err
	}
	defer p.transport.Unload()
	p.transport.SetGains(bank.Gains())

	if err := p.transport.Play(ctx); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	slog.Info("Playing song", "song", song.Name, "stems", len(stems), "length", p.transport.Length().Round(time.Second))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.transport.Stop()
			return ctx.Err()
		case <-ticker.C:
			if progress != nil {
				progress(p.transport.Position(), p.transport.Length())
			}
			if p.transport.Refresh() || p.transport.State() != audio.StatePlaying {
				return nil
			}
		}
	}
}

// Close releases the audio engine
func (p *Player) Close() error {
	return p.transport.Close()
}
