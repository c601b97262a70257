package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/audio"
	"github.com/audiolibrelab/stemtouch/internal/touch"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices and audio engines",
	Long:  `List the input devices that can drive the console, flagging the multi-touch capable ones, and the audio engines built into this binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🖐️  Input Devices (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		if err := listTouchDevices(); err != nil {
			return err
		}
		listEngines()
		return nil
	},
}

// listTouchDevices lists evdev nodes, multi-touch ones first
func listTouchDevices() error {
	devices, err := touch.ListDevices()
	if err != nil {
		return fmt.Errorf("failed to get input devices: %w", err)
	}

	var multi, other []touch.DeviceInfo
	for _, d := range devices {
		if d.MultiTouch {
			multi = append(multi, d)
		} else {
			other = append(other, d)
		}
	}

	fmt.Printf("📋 MULTI-TOUCH (%d found):\n", len(multi))
	for i, d := range multi {
		fmt.Printf("  %d. %s  %s\n", i+1, d.Path, d.Name)
	}
	if len(multi) == 0 {
		fmt.Printf("  none, check read permission on /dev/input (input group)\n")
	}

	fmt.Printf("\n📋 OTHER (%d found):\n", len(other))
	for _, d := range other {
		fmt.Printf("  • %s  %s\n", d.Path, d.Name)
	}

	fmt.Printf("\n💡 Usage:\n")
	fmt.Printf("  • Leave touch.device empty to use the first multi-touch device\n")
	fmt.Printf("  • Example: touch.device: \"/dev/input/event7\"\n")
	if cfg != nil && cfg.Touch.Device != "" {
		fmt.Printf("  • Configured: %s\n", cfg.Touch.Device)
	}
	fmt.Println()
	return nil
}

func listEngines() {
	fmt.Printf("🔊 AUDIO ENGINES:\n")
	for _, e := range audio.GetAvailableEngines() {
		marker := ""
		if cfg != nil && audio.EngineType(cfg.Audio.Engine) == e {
			marker = " (configured)"
		}
		fmt.Printf("  • %s%s\n", e, marker)
	}
}
