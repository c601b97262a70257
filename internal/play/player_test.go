package play

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/config"
)

func testLibrary(t *testing.T, frames int) *catalog.Library {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Blues")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"bass", "drums"} {
		samples := make([]float32, frames*audio.ChannelCount)
		if err := audio.WriteWAV(filepath.Join(dir, name+".wav"), samples, 48000); err != nil {
			t.Fatalf("Failed to write stem: %v", err)
		}
	}
	return catalog.New(root, []string{"wav"})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UI.Tick = 5 * time.Millisecond
	return cfg
}

// pull drains the engine the way an audio device would
func pull(ctx context.Context, engine *audio.MixerEngine) {
	buf := make([]float32, 1024*audio.ChannelCount)
	for ctx.Err() == nil {
		engine.Render(buf)
		time.Sleep(time.Millisecond)
	}
}

func TestPlayRunsToEnd(t *testing.T) {
	engine := audio.NewMixerEngine(48000)
	p := New(testConfig(), testLibrary(t, 9600), engine)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go pull(ctx, engine)

	var updates int
	err := p.Play(ctx, "Blues", func(position, length time.Duration) {
		updates++
		if length != 200*time.Millisecond {
			t.Errorf("Expected length 200ms, got %s", length)
		}
	})
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if updates == 0 {
		t.Error("Expected progress updates")
	}
	if engine.Position() != 0 {
		t.Errorf("Expected the clock rewound after the song ended, at %s", engine.Position())
	}
}

func TestPlayCancelStops(t *testing.T) {
	engine := audio.NewMixerEngine(48000)
	p := New(testConfig(), testLibrary(t, 48000), engine)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := p.Play(ctx, "Blues", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if engine.Position() != 0 {
		t.Errorf("Expected rewind on cancel, got %s", engine.Position())
	}
}

func TestPlayUnknownSong(t *testing.T) {
	p := New(testConfig(), testLibrary(t, 10), audio.NewMixerEngine(48000))
	if err := p.Play(context.Background(), "Missing", nil); !errors.Is(err, catalog.ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound, got %v", err)
	}
}
