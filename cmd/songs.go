package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/stemtouch/internal/audio"
)

var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "List the songs in the library",
	Long:  `List every song directory of the library with its stems. The last song opened in the console is marked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		library := newLibrary()
		songs, err := library.List()
		if err != nil {
			return err
		}

		fmt.Printf("🎵 Songs in %s (%d found)\n", library.Dir(), len(songs))
		fmt.Printf("═══════════════════════════════════════\n\n")

		for _, song := range songs {
			marker := "  "
			if song.IsSelected {
				marker = "▶ "
			}
			fmt.Printf("%s%s  (%d stems, %s)\n", marker, song.Name, len(song.Stems), song.ModTimeHuman)
			if !song.Playable() {
				fmt.Printf("    ⚠️  more than %d stems, cannot be mixed\n", audio.MaxStems)
				continue
			}
			for _, stem := range song.Stems {
				fmt.Printf("    • %-20s %8s  %s\n", stem.Name, stem.SizeHuman, stem.Extension)
			}
		}
		return nil
	},
}
