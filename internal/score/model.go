package score

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Clock returns wall time in milliseconds. Injectable for tests and for
// the offline timeline.
type Clock func() float64

// WallClock is the default Clock.
func WallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}

// endOfScoreGrace is how far past the last note end the playhead may run
// before playback stops.
const endOfScoreGrace = 2.0

// Model owns a loaded score and its playhead. It is not synchronized: all
// mutation happens on the single cooperative tick/input path (see the
// playback controller); concurrent callers must go through the Session
// facade.
type Model struct {
	data       Data
	maxNoteEnd float64
	loaded     bool

	currentPosition  float64
	previousPosition float64
	isPlaying        bool
	bpm              float64

	// Anchor: currentPosition = anchorPos + (now-anchorReal)/1000 * rate,
	// where rate = bpm / notated tempo at the anchor. Re-anchoring at
	// every tempo boundary, seek and setTempo keeps position continuous.
	anchorPos  float64
	anchorReal float64 // ms
	rate       float64
	pauseTime  float64 // ms, 0 when not paused

	clock Clock
	bus   *bus
	log   *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithClock replaces the wall clock.
func WithClock(c Clock) ModelOption {
	return func(m *Model) { m.clock = c }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) ModelOption {
	return func(m *Model) { m.log = l }
}

func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		clock: WallClock,
		bus:   newBus(),
		rate:  1,
		bpm:   120,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers a listener for one event kind. Unknown kinds are
// rejected. The returned token is passed to Unsubscribe.
func (m *Model) Subscribe(kind EventKind, fn func(Event)) (uuid.UUID, error) {
	return m.bus.subscribe(kind, fn)
}

func (m *Model) Unsubscribe(token uuid.UUID) { m.bus.unsubscribe(token) }

// Load replaces the score data, resets the playhead to 0 and fires loaded.
// The data is validated first; a failed load leaves the previous score in
// place.
func (m *Model) Load(data Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	m.data = data
	m.maxNoteEnd = data.MaxNoteEnd()
	m.loaded = true
	m.currentPosition = 0
	m.previousPosition = 0
	m.isPlaying = false
	m.pauseTime = 0
	m.bpm = m.notatedTempoAt(0)
	m.rate = 1
	m.bus.emit(Event{Kind: EventLoaded, Title: data.Title})
	return nil
}

func (m *Model) Data() *Data         { return &m.data }
func (m *Model) Loaded() bool        { return m.loaded }
func (m *Model) IsPlaying() bool     { return m.isPlaying }
func (m *Model) Position() float64   { return m.currentPosition }
func (m *Model) Previous() float64   { return m.previousPosition }
func (m *Model) Tempo() float64      { return m.bpm }
func (m *Model) MaxNoteEnd() float64 { return m.maxNoteEnd }

func (m *Model) notatedTempoAt(pos float64) float64 {
	tempo := 120.0
	for _, tc := range m.data.TempoChanges {
		if tc.Position > pos {
			break
		}
		tempo = tc.Tempo
	}
	return ClampTempo(tempo)
}

func (m *Model) reanchor(now float64) {
	m.anchorPos = m.currentPosition
	m.anchorReal = now
	m.rate = m.bpm / m.notatedTempoAt(m.currentPosition)
}

// Play starts or resumes playback. Already playing is a no-op.
func (m *Model) Play() {
	if m.isPlaying {
		return
	}
	now := m.clock()
	m.reanchor(now)
	m.pauseTime = 0
	m.isPlaying = true
	m.bus.emit(Event{Kind: EventPlay, Position: m.currentPosition})
}

// Pause freezes the playhead at its current position.
func (m *Model) Pause() {
	if !m.isPlaying {
		return
	}
	m.pauseTime = m.clock()
	m.isPlaying = false
	m.bus.emit(Event{Kind: EventPause, Position: m.currentPosition})
}

// Stop halts playback and rewinds to 0. Fires stop then positionchange.
func (m *Model) Stop() {
	prev := m.currentPosition
	m.isPlaying = false
	m.pauseTime = 0
	m.currentPosition = 0
	m.previousPosition = prev
	m.anchorPos = 0
	m.bus.emit(Event{Kind: EventStop, Position: 0})
	m.bus.emit(Event{Kind: EventPositionChange, Position: 0, PreviousPosition: prev})
}

// Seek moves the playhead. Negative positions clamp to 0. Seeking while
// paused does not resume playback. The playback tempo is untouched: an
// override set by SetTempo keeps holding until a tick crosses a notated
// boundary.
func (m *Model) Seek(pos float64) {
	if pos < 0 {
		pos = 0
	}
	prev := m.currentPosition
	m.previousPosition = prev
	m.currentPosition = pos
	if m.isPlaying {
		m.reanchor(m.clock())
	} else {
		m.rate = m.bpm / m.notatedTempoAt(pos)
	}
	m.bus.emit(Event{Kind: EventPositionChange, Position: pos, PreviousPosition: prev})
}

// SetTempo overrides the playback tempo, clamped to [40, 240]. The override
// holds until the playhead crosses the next notated tempo boundary.
func (m *Model) SetTempo(bpm float64) {
	bpm = ClampTempo(bpm)
	old := m.bpm
	if m.isPlaying {
		m.reanchor(m.clock())
	}
	m.bpm = bpm
	m.rate = bpm / m.notatedTempoAt(m.currentPosition)
	m.bus.emit(Event{Kind: EventTempoChange, Tempo: bpm, OldTempo: old, Position: m.currentPosition})
}

// Tick advances the playhead to wall time now (ms). Tempo boundaries
// crossed since the last tick are reconciled in order so score time is
// continuous across each change. Fires positionchange, then tempochange
// for each crossed boundary; calls Stop past end of score.
func (m *Model) Tick(now float64) {
	if !m.isPlaying {
		return
	}
	m.previousPosition = m.currentPosition
	pos := m.anchorPos + (now-m.anchorReal)/1000*m.rate

	var crossed []Event
	for _, tc := range m.data.TempoChanges {
		if tc.Position <= m.previousPosition || tc.Position > pos {
			continue
		}
		// Real time spent reaching the boundary under the old rate; the
		// remainder accrues under the new tempo.
		boundaryReal := m.anchorReal + (tc.Position-m.anchorPos)*1000/m.rate
		newTempo := ClampTempo(tc.Tempo)
		crossed = append(crossed, Event{
			Kind: EventTempoChange, Tempo: newTempo, OldTempo: m.bpm, Position: tc.Position,
		})
		m.anchorPos = tc.Position
		m.anchorReal = boundaryReal
		m.bpm = newTempo
		m.rate = 1
		pos = m.anchorPos + (now-m.anchorReal)/1000*m.rate
	}
	m.currentPosition = pos

	m.bus.emit(Event{Kind: EventPositionChange, Position: pos, PreviousPosition: m.previousPosition})
	for _, ev := range crossed {
		m.bus.emit(ev)
	}

	if m.loaded && pos > m.maxNoteEnd+endOfScoreGrace {
		m.log.Debug("end of score reached", "position", pos, "lastNoteEnd", m.maxNoteEnd)
		m.Stop()
	}
}

// VisibleNotes returns the notes intersecting [startT, endT]: starting in
// the window, still sounding at its start, or enclosing it.
func (m *Model) VisibleNotes(startT, endT float64) []Note {
	var out []Note
	for _, n := range m.data.Notes {
		if n.Start < endT && n.End() > startT {
			out = append(out, n)
		}
	}
	return out
}

// CurrentlyPlaying returns the notes sounding at the playhead, excluding
// tied continuations (their audible time is folded into the tied-from
// note).
func (m *Model) CurrentlyPlaying() []Note {
	now := m.currentPosition
	var out []Note
	for _, n := range m.data.Notes {
		if n.IsTiedFromPrevious {
			continue
		}
		if n.Start <= now && now < n.End() {
			out = append(out, n)
		}
	}
	return out
}

// CurrentMeasure returns the latest measure starting at or before the
// playhead, or nil on an empty score.
func (m *Model) CurrentMeasure() *Measure {
	return m.MeasureAt(m.currentPosition)
}

// MeasureAt returns the latest measure with StartPosition <= t.
func (m *Model) MeasureAt(t float64) *Measure {
	ms := m.data.Measures
	if len(ms) == 0 || t < ms[0].StartPosition {
		return nil
	}
	i := sort.Search(len(ms), func(i int) bool { return ms[i].StartPosition > t })
	return &ms[i-1]
}

// TimeSignatureAt returns the effective time signature at t. Scores with no
// signature entries get 4/4.
func (m *Model) TimeSignatureAt(t float64) TimeSignature {
	sig := TimeSignature{Numerator: 4, Denominator: 4}
	for _, ts := range m.data.TimeSignatures {
		if ts.Position > t {
			break
		}
		sig = ts
	}
	return sig
}
