package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/mix"
)

var bounceCmd = &cobra.Command{
	Use:     "bounce [song-name]",
	Aliases: []string{"mix"},
	Short:   "Render the stems into a stereo WAV mixdown",
	Long: `Mix all stems of a song offline with the active profile's stem gains and
mutes and write a 16-bit stereo WAV file. Individual stems can be overridden
with --gain and --mute.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		songName := args[0]

		gainFlags, _ := cmd.Flags().GetStringToString("gain")
		muteFlags, _ := cmd.Flags().GetStringSlice("mute")
		output, _ := cmd.Flags().GetString("output")

		opts := mix.Options{
			Gains:  make(map[string]float64, len(gainFlags)),
			Mutes:  make(map[string]bool, len(muteFlags)),
			Output: output,
		}
		for stem, value := range gainFlags {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid gain for stem %s: %w", stem, err)
			}
			opts.Gains[stem] = v
		}
		for _, stem := range muteFlags {
			opts.Mutes[stem] = true
		}

		fmt.Printf("🎚️  Mixing song: %s\n", songName)
		for stem, v := range opts.Gains {
			fmt.Printf("   %s gain: %.2f\n", stem, v)
		}
		for stem := range opts.Mutes {
			fmt.Printf("   %s muted\n", stem)
		}

		mixer := mix.New(cfg, newLibrary())
		outputFile, err := mixer.MixWithOptions(cmd.Context(), songName, opts)
		if err != nil {
			return fmt.Errorf("mixing failed: %w", err)
		}

		fmt.Printf("✅ Mix written to %s\n", outputFile)
		return nil
	},
}

func init() {
	bounceCmd.Flags().StringToStringP("gain", "g", nil, "stem fader value, e.g. --gain drums=0.5 (overrides config)")
	bounceCmd.Flags().StringSliceP("mute", "m", nil, "stems to mute (overrides config)")
	bounceCmd.Flags().StringP("output", "o", "", "output file (default <library>/<song>_mix.wav)")
}
