// Package barlane maintains the falling note bars and chord blocks anchored
// to the keyboard. Each frame runs in two phases: compute every element's
// placement, then swap the computed state in as one batch.
package barlane

import (
	"fmt"
	"log/slog"

	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/score"
)

const (
	// LookAhead is how far into the future bars materialize.
	LookAhead = 4.0
	// trailing is how long a finished bar stays visible below the playhead.
	trailing = 0.5
	// retireSlack: a bar is destroyed once its end drops this far behind
	// the window start.
	retireSlack = 1.0
	// resetThreshold: a playhead this close to 0 with bars alive means a
	// fresh run; everything is rebuilt.
	resetThreshold = 0.1

	minBarHeight      = 8.0
	staccatoHeight    = 0.7
	accentOpacity     = 0.95
	passedOpacityPeak = 0.5
)

// BarState is the vertical-placement regime a bar is in.
type BarState int

const (
	BarUpcoming BarState = iota
	BarPlaying
	BarPassed
)

// Bar is one falling note bar. Rect is recomputed every frame from the
// key's live bounding box, so bars survive resizes.
type Bar struct {
	ID        string
	Note      score.Note
	Rect      keyboard.Rect
	State     BarState
	Opacity   float64
	Black     bool
	RightHand bool
}

// Lane owns the falling elements over the keyboard.
type Lane struct {
	model  *score.Model
	keys   *keyboard.Layout
	bounds keyboard.Rect

	lookAhead float64
	bars      map[string]*Bar
	chords    map[string]*ChordBlock
	log       *slog.Logger
}

type Option func(*Lane)

// WithLookAhead overrides the default 4 s window.
func WithLookAhead(seconds float64) Option {
	return func(l *Lane) { l.lookAhead = seconds }
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Lane) { l.log = lg }
}

func New(model *score.Model, keys *keyboard.Layout, opts ...Option) *Lane {
	l := &Lane{
		model:     model,
		keys:      keys,
		lookAhead: LookAhead,
		bars:      make(map[string]*Bar),
		chords:    make(map[string]*ChordBlock),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetBounds positions the lane. The playhead line is the lane's bottom
// edge; time flows downward.
func (l *Lane) SetBounds(r keyboard.Rect) { l.bounds = r }

func (l *Lane) Bounds() keyboard.Rect { return l.bounds }

// Reset destroys every bar and chord block.
func (l *Lane) Reset() {
	clear(l.bars)
	clear(l.chords)
}

// barID is stable per (note, occurrence): id plus start to six decimals.
func barID(n score.Note) string {
	return fmt.Sprintf("%s-%.6f", n.ID, n.Start)
}

// Refresh advances the lane to score time now. Phase one computes all
// placements; phase two applies them in a single batch.
func (l *Lane) Refresh(now float64) {
	if now < resetThreshold && len(l.bars) > 0 {
		l.Reset()
	}

	windowStart := now - trailing
	windowEnd := now + l.lookAhead
	visible := l.model.VisibleNotes(windowStart, windowEnd)

	// Phase one: compute.
	next := make(map[string]*Bar, len(visible))
	for _, n := range visible {
		id := barID(n)
		bar := l.bars[id]
		if bar == nil {
			bar = &Bar{
				ID:        id,
				Note:      n,
				Black:     keyboard.IsBlack(n.NoteNumber),
				RightHand: n.RightHand(),
			}
		}
		if placed := l.place(bar, now); placed {
			next[id] = bar
		}
	}
	// Carry bars in their fade-out tail; VisibleNotes no longer returns
	// them once the playhead passes their end.
	for id, bar := range l.bars {
		if _, ok := next[id]; ok {
			continue
		}
		if bar.Note.Start+bar.Note.LayoutDuration() < windowStart-retireSlack {
			continue // retired
		}
		if placed := l.place(bar, now); placed {
			next[id] = bar
		}
	}

	// Phase two: apply.
	l.bars = next

	l.refreshChords(now, visible, windowStart)
}

// place computes a bar's rect, state and opacity at score time t. It
// returns false when the bar has no on-screen representation.
func (l *Lane) place(bar *Bar, t float64) bool {
	key, ok := l.keys.KeyRect(bar.Note.NoteNumber)
	if !ok {
		return false
	}
	h := l.bounds.H
	ratio := h / l.lookAhead

	start := bar.Note.Start
	dur := bar.Note.LayoutDuration()
	end := start + dur

	barH := dur * ratio
	if barH < minBarHeight {
		barH = minBarHeight
	}
	if bar.Note.Staccato {
		barH *= staccatoHeight
	}

	var top, opacity float64
	var state BarState
	switch {
	case start <= t && t < end:
		state = BarPlaying
		top = h - (end-t)*ratio
		opacity = 1
	case t < start && start <= t+l.lookAhead:
		state = BarUpcoming
		top = h - (start-t)*ratio - barH
		opacity = 1
	case end <= t && t < end+trailing:
		state = BarPassed
		top = h
		opacity = passedOpacityPeak * (1 - (t-end)/trailing)
	default:
		return false
	}
	if bar.Note.Accent && opacity > accentOpacity {
		opacity = accentOpacity
	}

	bar.State = state
	bar.Opacity = opacity
	bar.Rect = keyboard.Rect{
		X: key.X,
		Y: l.bounds.Y + top,
		W: key.W,
		H: barH,
	}
	return true
}

// Bars returns the live bars. The slice is rebuilt per call; callers must
// not retain it across frames.
func (l *Lane) Bars() []*Bar {
	out := make([]*Bar, 0, len(l.bars))
	for _, b := range l.bars {
		out = append(out, b)
	}
	return out
}
