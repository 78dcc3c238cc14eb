package main

import (
	"github.com/spf13/cobra"

	"github.com/mwhitlock/clavier-go/internal/analyzer"
	"github.com/mwhitlock/clavier-go/internal/score"
	"github.com/mwhitlock/clavier-go/internal/smfscore"
	"github.com/mwhitlock/clavier-go/internal/web"
)

var (
	serveAddr  string
	serveMode  string
	serveScore string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveMode, "mode", "singing", "initial analyzer mode: singing|guitar|voice-training")
	serveCmd.Flags().StringVar(&serveScore, "score", "", "MIDI file to expose on /api/score")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer and score over HTTP",
	Long: `Starts the HTTP API: POST /api/analyze runs spectral peaks through the
note/key/guitar analyzer, GET /api/score returns the loaded score.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	log := newLogger()

	model := score.NewModel(score.WithLogger(log))
	if serveScore != "" {
		data, err := smfscore.Load(serveScore)
		if err != nil {
			return err
		}
		if err := model.Load(data); err != nil {
			return err
		}
	}

	an, err := analyzer.New(analyzer.Mode(serveMode), analyzer.WithLogger(log))
	if err != nil {
		return err
	}

	log.Info("listening", "addr", serveAddr)
	return web.NewServer(model, an, log).ListenAndServe(serveAddr)
}
