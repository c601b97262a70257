package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/play"
)

var playCmd = &cobra.Command{
	Use:   "play [song-name]",
	Short: "Play every stem of a song together",
	Long: `Play all stems of a song in sync with the active profile's stem gains and
mutes, without the interactive console. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		songName := args[0]

		engine, err := audio.NewEngine(cfg.Audio.Engine, cfg.Audio.SampleRate, cfg.BufferSize())
		if err != nil {
			return fmt.Errorf("audio engine: %w", err)
		}

		player := play.New(cfg, newLibrary(), engine)
		defer player.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("▶️  Playing song: %s\n", songName)

		err = player.Play(ctx, songName, func(position, length time.Duration) {
			fmt.Printf("\r⏱️  %s / %s", position.Round(time.Second), length.Round(time.Second))
		})
		fmt.Println()

		if errors.Is(err, context.Canceled) {
			fmt.Println("⏹️  Stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		fmt.Println("✅ Playback completed")
		return nil
	},
}
