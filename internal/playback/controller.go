// Package playback wires the playhead model to the visual components and
// owns the per-frame tick order: advance the playhead, refresh the falling
// bars and chords, update key highlights, then re-engrave the notation page
// when it is due.
package playback

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/mwhitlock/clavier-go/internal/barlane"
	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/notation"
	"github.com/mwhitlock/clavier-go/internal/score"
)

const (
	// toggleLatchMs ignores play/pause toggles landing within this window,
	// so a held key does not bounce the transport.
	toggleLatchMs = 300.0
	// engraveMinGapMs spaces notation re-engraves.
	engraveMinGapMs = 500.0

	seekStep  = 5.0 // seconds
	tempoStep = 5.0 // BPM
)

// Controller drives one score session frame by frame. Not synchronized;
// callers serialize through the session facade.
type Controller struct {
	log   *slog.Logger
	clock score.Clock
	model *score.Model
	keys  *keyboard.Layout
	lane  *barlane.Lane
	view  *notation.View

	lastToggle  float64
	lastEngrave float64
	subs        []uuid.UUID
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c score.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

func New(model *score.Model, keys *keyboard.Layout, lane *barlane.Lane, view *notation.View, opts ...Option) *Controller {
	c := &Controller{
		log:         slog.Default(),
		clock:       score.WallClock,
		model:       model,
		keys:        keys,
		lane:        lane,
		view:        view,
		lastToggle:  math.Inf(-1),
		lastEngrave: math.Inf(-1),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Seeks re-base the notation page; stop and a fresh load clear
	// everything back to the top.
	c.subscribe(score.EventPositionChange, func(e score.Event) {
		c.view.OnSeek(e.Position, e.PreviousPosition)
	})
	c.subscribe(score.EventStop, func(score.Event) { c.reset() })
	c.subscribe(score.EventLoaded, func(score.Event) { c.reset() })
	return c
}

func (c *Controller) subscribe(kind score.EventKind, fn func(score.Event)) {
	token, err := c.model.Subscribe(kind, fn)
	if err != nil {
		c.log.Error("subscribe failed", "kind", kind, "error", err)
		return
	}
	c.subs = append(c.subs, token)
}

// Close detaches the controller from the model's event bus.
func (c *Controller) Close() {
	for _, token := range c.subs {
		c.model.Unsubscribe(token)
	}
	c.subs = nil
}

func (c *Controller) reset() {
	c.lane.Reset()
	c.keys.SetHighlights(nil)
	c.view.Reset()
	c.lastEngrave = math.Inf(-1)
}

// Tick runs one frame: playhead first, then the components that read it.
func (c *Controller) Tick() {
	nowMs := c.clock()
	c.model.Tick(nowMs)
	pos := c.model.Position()

	c.lane.Refresh(pos)
	c.highlight()

	// Flip detection runs every frame; a moved page engraves immediately,
	// everything else waits out the engrave spacing.
	moved := c.view.Advance(pos)
	if moved || nowMs-c.lastEngrave >= engraveMinGapMs {
		if c.view.Tick(pos) {
			c.lastEngrave = nowMs
		}
	}
}

func (c *Controller) highlight() {
	playing := c.model.CurrentlyPlaying()
	midis := make([]int, 0, len(playing))
	for _, n := range playing {
		midis = append(midis, n.NoteNumber)
	}
	c.keys.SetHighlights(midis)
}

// TogglePlay starts or pauses playback. Toggles within the latch window are
// dropped.
func (c *Controller) TogglePlay() {
	now := c.clock()
	if now-c.lastToggle < toggleLatchMs {
		return
	}
	c.lastToggle = now
	if c.model.IsPlaying() {
		c.model.Pause()
	} else {
		c.model.Play()
	}
}

func (c *Controller) Stop() { c.model.Stop() }

func (c *Controller) SeekForward()  { c.model.Seek(c.model.Position() + seekStep) }
func (c *Controller) SeekBackward() { c.model.Seek(c.model.Position() - seekStep) }

// Home rewinds to the top without stopping playback.
func (c *Controller) Home() { c.model.Seek(0) }

func (c *Controller) TempoUp()   { c.model.SetTempo(c.model.Tempo() + tempoStep) }
func (c *Controller) TempoDown() { c.model.SetTempo(c.model.Tempo() - tempoStep) }

// Layout propagates a container resize to every component. The notation
// page re-engraves on the next due tick.
func (c *Controller) Layout(keys, lane keyboard.Rect, notationWidth float64) {
	c.keys.Resize(keys)
	c.lane.SetBounds(lane)
	c.view.Resize(notationWidth)
}

// StripBlocks aligns the lane's detected chords onto the engraved measures.
func (c *Controller) StripBlocks() []notation.StripBlock {
	blocks := c.lane.ChordBlocks()
	spans := make([]notation.ChordSpan, 0, len(blocks))
	for _, b := range blocks {
		spans = append(spans, notation.ChordSpan{
			Name:      b.Name,
			TypeTag:   b.TypeTag,
			Start:     b.Start,
			End:       b.End,
			RightHand: b.RightHand,
		})
	}
	return c.view.Strip(spans, c.model.Position())
}

// Indicator returns the notation position-indicator x for the playhead.
func (c *Controller) Indicator() (float64, bool) {
	return c.view.Indicator(c.model.Position())
}

// Accessors for the draw path.
func (c *Controller) Score() *score.Model    { return c.model }
func (c *Controller) Keys() *keyboard.Layout { return c.keys }
func (c *Controller) Lane() *barlane.Lane    { return c.lane }
func (c *Controller) View() *notation.View   { return c.view }
