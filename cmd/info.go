package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/catalog"
	"github.com/audiolibrelab/stemtouch/internal/console"
)

var infoCmd = &cobra.Command{
	Use:   "info [song-name]",
	Short: "Show resolved configuration and zone layout for a song",
	Long:  `Display the stems of a song with their durations, the zone each stem gets on the trackpad, and the resolved configuration with inheritance indicators. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		song, err := newLibrary().Find(args[0])
		if err != nil {
			return err
		}

		stems, err := catalog.Load(cmd.Context(), song, cfg.Audio.SampleRate)
		if err != nil {
			return err
		}
		bank, layout, err := console.BuildMix(cfg, stems)
		if err != nil {
			return err
		}

		// Display stems and their zones
		fmt.Printf("=== SONG ===\n")
		fmt.Printf("name: %s\n", song.Name)
		fmt.Printf("path: %s\n", song.Path)

		fmt.Printf("\n=== ZONES (axis %s) ===\n", layout.Axis)
		faders := bank.Snapshot()
		for i, z := range layout.Zones() {
			f := faders[i]
			muted := ""
			if f.Muted {
				muted = " muted"
			}
			fmt.Printf("%d. %-12s [%.3f, %.3f)  %s  %s  value=%.2f%s\n",
				i+1, f.Label, z.Start, z.End,
				stems[i].Duration().Round(time.Millisecond), song.Stems[i].SizeHuman, f.Value, muted)
		}

		// Display resolved configuration with inheritance indicators
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Library]\n")
		printSetting("directory", cfg.Library.Directory, "library.directory")

		fmt.Printf("\n[Audio]\n")
		printSetting("engine", cfg.Audio.Engine, "audio.engine")
		printSetting("sample_rate", cfg.Audio.SampleRate, "audio.sample_rate")
		printSetting("buffer_ms", cfg.Audio.BufferMs, "audio.buffer_ms")
		printSetting("start_timeout", cfg.Audio.StartTimeout, "audio.start_timeout")

		fmt.Printf("\n[Touch]\n")
		printSetting("device", orAuto(cfg.Touch.Device), "touch.device")
		printSetting("grab", cfg.GrabDevice(), "touch.grab")
		printSetting("hover_threshold", cfg.Touch.HoverThreshold, "touch.hover_threshold")
		printSetting("double_click", cfg.Touch.DoubleClick, "touch.double_click")

		fmt.Printf("\n[Zones]\n")
		printSetting("axis", cfg.Zones.Axis, "zones.axis")
		printSetting("weights", cfg.Zones.Weights, "zones.weights")

		fmt.Printf("\n[Faders]\n")
		printSetting("range", fmt.Sprintf("%.2f..%.2f", cfg.Faders.Min, cfg.Faders.Max), "faders.range")
		printSetting("default", cfg.FaderDefault(), "faders.default")
		printSetting("sensitivity", cfg.Faders.Sensitivity, "faders.sensitivity")
		printSetting("scroll_step", cfg.Faders.ScrollStep, "faders.scroll_step")

		fmt.Printf("\n[Confine]\n")
		printSetting("enabled", cfg.ConfineEnabled(), "confine.enabled")
		printSetting("bounds", orAuto(cfg.Confine.Bounds), "confine.bounds")
		printSetting("restore_position", cfg.RestorePointer(), "confine.restore_position")
		printSetting("liveness_timeout", cfg.Confine.LivenessTimeout, "confine.liveness_timeout")
		printSetting("check_interval", cfg.Confine.CheckInterval, "confine.check_interval")

		fmt.Printf("\n[Stems]\n")
		if len(cfg.Stems) == 0 {
			fmt.Printf("none %s\n", getInheritanceIndicator(cfg.Inheritance.Source("stems")))
		}
		for _, s := range cfg.Stems {
			gain := "default"
			if s.Gain != nil {
				gain = fmt.Sprintf("%.2f", *s.Gain)
			}
			fmt.Printf("%s: gain=%s muted=%t %s\n", s.Name, gain, s.Muted, getInheritanceIndicator(cfg.Inheritance.Source("stems")))
		}

		return nil
	},
}

func printSetting(name string, value any, key string) {
	fmt.Printf("%s: %v %s\n", name, value, getInheritanceIndicator(cfg.Inheritance.Source(key)))
}

func orAuto(s string) string {
	if s == "" {
		return "auto"
	}
	return s
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[built-in]"
	}
}
