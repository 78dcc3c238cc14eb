package main

import (
	"github.com/spf13/cobra"

	"github.com/mwhitlock/clavier-go/internal/barlane"
	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/notation"
	"github.com/mwhitlock/clavier-go/internal/playback"
	"github.com/mwhitlock/clavier-go/internal/score"
	"github.com/mwhitlock/clavier-go/internal/smfscore"
	"github.com/mwhitlock/clavier-go/internal/ui"
)

func init() {
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <score.mid>",
	Short: "Play a MIDI file in the full UI",
	Long: `Opens the playback window: 88-key keyboard, falling note bars with
chord overlay, paged engraved notation and chord strip.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(args[0])
	},
}

func runPlay(path string) error {
	log := newLogger()
	data, err := smfscore.Load(path)
	if err != nil {
		return err
	}

	model := score.NewModel(score.WithLogger(log))
	keys := keyboard.NewLayout()
	lane := barlane.New(model, keys, barlane.WithLogger(log))
	loader := notation.NewLoader(func() (notation.Renderer, error) {
		return ui.NotationRenderer(), nil
	})
	// Width is provisional; the app re-layouts on its first frame.
	view := notation.NewView(model, loader, 760, log)
	ctrl := playback.New(model, keys, lane, view, playback.WithLogger(log))
	defer ctrl.Close()

	if err := model.Load(data); err != nil {
		return err
	}
	return ui.New(ctrl, data.Title).Run()
}
