package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/config"
	"github.com/audiolibrelab/stemtouch/internal/confine"
	"github.com/audiolibrelab/stemtouch/internal/console"
	"github.com/audiolibrelab/stemtouch/internal/touch"
	"github.com/audiolibrelab/stemtouch/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run [song-name]",
	Short: "Open the interactive mixing console",
	Long: `Open the mixing console. Pick a song, then drag fingers in the trackpad
zones to move the stem faders while every stem plays in sync.

The pointer is confined to the console while mixing. Press ctrl+r, send
SIGINT/SIGTERM, or stop redrawing for longer than confine.liveness_timeout
and the pointer is released immediately.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The terminal belongs to the UI from here on
		if logFile, err := openLogFile(); err != nil {
			slog.Warn("Could not open log file, logging to stderr", "error", err)
		} else {
			defer logFile.Close()
		}

		engine, err := audio.NewEngine(cfg.Audio.Engine, cfg.Audio.SampleRate, cfg.BufferSize())
		if err != nil {
			return fmt.Errorf("audio engine: %w", err)
		}
		transport := audio.NewTransport(engine, cfg.Audio.StartTimeout)

		interceptor, closeInterceptor := openInterceptor()
		defer closeInterceptor()

		lock, err := newLockController(cfg, interceptor)
		if err != nil {
			return err
		}
		defer confine.RecoverRelease(lock)

		monitor := touch.NewMonitor(touch.Options{
			Device:         cfg.Touch.Device,
			Grab:           cfg.GrabDevice(),
			HoverThreshold: cfg.Touch.HoverThreshold,
			DoubleClick:    cfg.Touch.DoubleClick,
		}, nil)

		con := console.New(cfg, newLibrary(), transport, monitor, lock)
		defer con.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		model := ui.NewModel(ctx, con, nil, cfg.UI.Tick)
		program := tea.NewProgram(model, tea.WithAltScreen())

		confine.Guard(ctx, lock, func(sig os.Signal) {
			slog.Info("Quitting on signal", "signal", sig)
			program.Quit()
		})

		go func() {
			defer confine.RecoverRelease(lock)
			if err := con.Run(ctx); err != nil {
				slog.Error("Console stopped", "error", err)
			}
		}()

		if len(args) == 1 {
			load := model.Load(args[0])
			go func() {
				program.Send(load())
			}()
		}

		if _, err := program.Run(); err != nil {
			lock.EmergencyRelease("ui error")
			return fmt.Errorf("console failed: %w", err)
		}
		return nil
	},
}

func newLibrary() *catalog.Library {
	return catalog.New(cfg.Library.Directory, config.GetSupportedAudioExtensions(cfgFile))
}

func newLockController(cfg *config.Config, ic confine.Interceptor) (*confine.Controller, error) {
	bounds, err := confine.ParseBounds(cfg.Confine.Bounds)
	if err != nil {
		return nil, fmt.Errorf("confine.bounds: %w", err)
	}
	return confine.NewController(ic, confine.Options{
		Enabled:         cfg.ConfineEnabled(),
		Bounds:          bounds,
		RestorePosition: cfg.RestorePointer(),
	}), nil
}

// openInterceptor connects to the X server. Without one the console still
// works, only the cursor lock reports itself unavailable.
func openInterceptor() (confine.Interceptor, func()) {
	if !cfg.ConfineEnabled() {
		return confine.Unavailable(fmt.Errorf("disabled in configuration")), func() {}
	}

	x, err := confine.OpenX11("")
	if err != nil {
		slog.Warn("Cursor confinement unavailable", "error", err)
		return confine.Unavailable(err), func() {}
	}
	return x, func() {
		if err := x.Close(); err != nil {
			slog.Debug("Failed to close X connection", "error", err)
		}
	}
}
