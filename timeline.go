package clavier

import (
	"log/slog"

	"github.com/mwhitlock/clavier-go/internal/barlane"
	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/notation"
	"github.com/mwhitlock/clavier-go/internal/playback"
	intscore "github.com/mwhitlock/clavier-go/internal/score"
)

// Frame is one snapshot of an offline timeline run.
type Frame struct {
	Time      float64 // ms since the run started
	Position  float64 // seconds of score time
	Tempo     float64
	Playing   []int // MIDI numbers sounding
	BarCount  int
	PageStart float64
	PageEnd   float64
	Events    []Event // events fired during this frame's tick
}

// TimelineConfig sizes the offline run. Zero values take the defaults.
type TimelineConfig struct {
	FPS        float64 // frames per second, default 60
	MaxSeconds float64 // wall-time cap, default 120
	Width      float64 // notation width in px, default 760
}

// RunTimeline plays a score headlessly under a manual clock and records a
// frame per tick. All the view layers run for real (keyboard highlights,
// bar lane, pager, engraver); only drawing is skipped. The run ends when
// playback stops past the last note, or at the wall-time cap.
func RunTimeline(data intscore.Data, cfg TimelineConfig) ([]Frame, error) {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = 120
	}
	if cfg.Width <= 0 {
		cfg.Width = 760
	}

	nowMs := 0.0
	clock := func() float64 { return nowMs }
	log := slog.Default()

	model := intscore.NewModel(intscore.WithClock(clock), intscore.WithLogger(log))
	keys := keyboard.NewLayout()
	keys.Resize(keyboard.Rect{X: 0, Y: 500, W: 1040, H: 110})
	lane := barlane.New(model, keys, barlane.WithLogger(log))
	lane.SetBounds(keyboard.Rect{X: 0, Y: 0, W: 1040, H: 500})
	view := notation.NewView(model, notation.ResolvedLoader(notation.NewVectorRenderer()), cfg.Width, log)
	ctrl := playback.New(model, keys, lane, view, playback.WithClock(clock), playback.WithLogger(log))
	defer ctrl.Close()

	var pending []Event
	for _, kind := range []EventKind{
		EventLoaded, EventPlay, EventPause, EventStop,
		EventPositionChange, EventTempoChange,
	} {
		token, err := model.Subscribe(kind, func(ev Event) {
			pending = append(pending, ev)
		})
		if err != nil {
			return nil, err
		}
		defer model.Unsubscribe(token)
	}

	if err := model.Load(data); err != nil {
		return nil, err
	}
	pending = nil
	model.Play()

	stepMs := 1000 / cfg.FPS
	var frames []Frame
	for nowMs < cfg.MaxSeconds*1000 {
		nowMs += stepMs
		ctrl.Tick()

		f := Frame{
			Time:     nowMs,
			Position: model.Position(),
			Tempo:    model.Tempo(),
			BarCount: len(lane.Bars()),
			Events:   pending,
		}
		pending = nil
		for _, n := range model.CurrentlyPlaying() {
			f.Playing = append(f.Playing, n.NoteNumber)
		}
		if p := view.Page(); p != nil {
			f.PageStart, f.PageEnd = p.Start, p.End
		}
		frames = append(frames, f)

		if !model.IsPlaying() {
			break
		}
	}
	return frames, nil
}
