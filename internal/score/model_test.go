package score

import (
	"math"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

// manualClock is a settable millisecond clock.
type manualClock struct{ ms float64 }

func (c *manualClock) now() float64      { return c.ms }
func (c *manualClock) advance(s float64) { c.ms += s * 1000 }

func quarterNotes(midis []int, starts []float64, dur float64) []Note {
	names := map[int]string{60: "C", 62: "D", 64: "E", 65: "F", 67: "G", 69: "A", 71: "B"}
	notes := make([]Note, len(midis))
	for i, midi := range midis {
		notes[i] = Note{
			ID:         "n" + string(rune('0'+i)),
			Start:      starts[i],
			Duration:   dur,
			Step:       names[midi],
			Octave:     4,
			NoteNumber: midi,
		}
	}
	return notes
}

func linearScore() Data {
	return Data{
		Title: "Linear",
		Notes: quarterNotes([]int{60, 62, 64, 65}, []float64{0, 0.5, 1.0, 1.5}, 0.5),
		Measures: []Measure{
			{Index: 0, StartPosition: 0, DurationSeconds: 2},
		},
		TimeSignatures: []TimeSignature{{Position: 0, Numerator: 4, Denominator: 4}},
		TempoChanges:   []TempoChange{{Position: 0, Tempo: 120}},
	}
}

func newTestModel(t *testing.T, data Data) (*Model, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	m := NewModel(WithClock(clock.now))
	if err := m.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	return m, clock
}

func TestLoadRejectsNonMonotonicArrays(t *testing.T) {
	bad := linearScore()
	bad.TempoChanges = append(bad.TempoChanges, TempoChange{Position: 0, Tempo: 100})
	m := NewModel()
	err := m.Load(bad)
	if err == nil {
		t.Fatal("non-monotonic tempo changes accepted")
	}
	if ftag.Get(err) != TagInvalidScore {
		t.Fatalf("tag = %q, want %q", ftag.Get(err), TagInvalidScore)
	}
}

func TestLoadRejectsInconsistentNoteNumber(t *testing.T) {
	bad := linearScore()
	bad.Notes[0].NoteNumber = 61
	if err := NewModel().Load(bad); err == nil {
		t.Fatal("inconsistent note number accepted")
	}
}

func TestLinearPlayback(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	m.Play()
	clock.advance(1.1)
	m.Tick(clock.now())

	if math.Abs(m.Position()-1.1) > 1e-9 {
		t.Fatalf("position = %v, want 1.1", m.Position())
	}
	playing := m.CurrentlyPlaying()
	if len(playing) != 1 || playing[0].NoteNumber != 64 {
		t.Fatalf("currentlyPlaying = %+v, want [E4]", playing)
	}
}

func TestMonotonePlayheadTracksRealTime(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	m.Play()
	last := 0.0
	for i := 0; i < 60; i++ {
		clock.advance(1.0 / 60)
		m.Tick(clock.now())
		if m.Position() < last {
			t.Fatalf("playhead went backwards: %v -> %v", last, m.Position())
		}
		last = m.Position()
	}
	// Over 1 s of ticks at constant tempo, score and real time agree.
	if math.Abs(last-1.0) > 0.005 {
		t.Fatalf("drift: position %v after 1 s", last)
	}
}

func TestSeekIdempotentAndPausedSeekStaysPaused(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	m.Play()
	clock.advance(0.8)
	m.Tick(clock.now())
	m.Pause()

	m.Seek(1.5)
	first := m.Position()
	m.Seek(1.5)
	if m.Position() != first {
		t.Fatalf("second seek moved the playhead: %v -> %v", first, m.Position())
	}
	if m.IsPlaying() {
		t.Fatal("seek while paused resumed playback")
	}
	if m.Position() != 1.5 {
		t.Fatalf("position = %v, want 1.5", m.Position())
	}
}

func TestSeekClampsNegative(t *testing.T) {
	m, _ := newTestModel(t, linearScore())
	m.Seek(-3)
	if m.Position() != 0 {
		t.Fatalf("position = %v, want 0", m.Position())
	}
}

func TestSeekWhilePlayingReanchors(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	var got []Event
	if _, err := m.Subscribe(EventPositionChange, func(ev Event) { got = append(got, ev) }); err != nil {
		t.Fatal(err)
	}
	m.Play()
	clock.advance(0.8)
	m.Tick(clock.now())
	m.Seek(2.0)

	last := got[len(got)-1]
	if last.Position != 2.0 || math.Abs(last.PreviousPosition-0.8) > 1e-9 {
		t.Fatalf("positionchange = %+v, want {2.0, 0.8}", last)
	}
	if len(m.CurrentlyPlaying()) != 0 {
		t.Fatal("notes still playing past the score")
	}

	clock.advance(0.25)
	m.Tick(clock.now())
	if math.Abs(m.Position()-2.25) > 1e-9 {
		t.Fatalf("position after seek+tick = %v, want 2.25", m.Position())
	}
}

func TestSeekKeepsTempoOverride(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	var tempoEvents int
	if _, err := m.Subscribe(EventTempoChange, func(Event) { tempoEvents++ }); err != nil {
		t.Fatal(err)
	}
	m.Play()
	m.SetTempo(240) // notated 120 -> double speed
	tempoEvents = 0

	m.Seek(1.0)
	if m.Tempo() != 240 {
		t.Fatalf("tempo after seek = %v, want 240", m.Tempo())
	}
	if tempoEvents != 0 {
		t.Fatalf("seek fired %d tempochange events, want 0", tempoEvents)
	}
	clock.advance(0.25)
	m.Tick(clock.now())
	if math.Abs(m.Position()-1.5) > 1e-9 {
		t.Fatalf("position = %v, want 1.5 (override still doubling)", m.Position())
	}

	// Pausing, seeking and resuming keeps the override too.
	m.Pause()
	m.Seek(0.5)
	m.Play()
	clock.advance(0.25)
	m.Tick(clock.now())
	if math.Abs(m.Position()-1.0) > 1e-9 {
		t.Fatalf("position after paused seek = %v, want 1.0", m.Position())
	}
}

func TestTickTempoBoundaryContinuity(t *testing.T) {
	data := linearScore()
	data.Notes = quarterNotes([]int{60, 62, 64, 65}, []float64{0, 1, 2, 3}, 1)
	data.TempoChanges = []TempoChange{{Position: 0, Tempo: 60}, {Position: 2, Tempo: 120}}
	m, clock := newTestModel(t, data)

	var tempoEvents []Event
	if _, err := m.Subscribe(EventTempoChange, func(ev Event) { tempoEvents = append(tempoEvents, ev) }); err != nil {
		t.Fatal(err)
	}

	m.Play()
	prev := 0.0
	for i := 0; i < 150; i++ { // 2.5 s in 60 fps steps
		clock.advance(1.0 / 60)
		m.Tick(clock.now())
		if jump := m.Position() - prev; jump < 0 || jump > 0.05 {
			t.Fatalf("discontinuity at tick %d: %v -> %v", i, prev, m.Position())
		}
		prev = m.Position()
	}
	if math.Abs(m.Position()-2.5) > 1e-6 {
		t.Fatalf("position = %v, want 2.5", m.Position())
	}
	if len(tempoEvents) != 1 {
		t.Fatalf("tempochange fired %d times, want 1", len(tempoEvents))
	}
	ev := tempoEvents[0]
	if ev.Tempo != 120 || ev.OldTempo != 60 || ev.Position != 2 {
		t.Fatalf("tempochange = %+v, want {120, 60, 2}", ev)
	}
}

func TestTempoBoundaryCrossedInOneLargeTick(t *testing.T) {
	data := linearScore()
	data.Notes = quarterNotes([]int{60}, []float64{0}, 6)
	data.TempoChanges = []TempoChange{
		{Position: 0, Tempo: 60},
		{Position: 1, Tempo: 80},
		{Position: 2, Tempo: 120},
	}
	m, clock := newTestModel(t, data)
	m.Play()
	clock.advance(3)
	m.Tick(clock.now())
	// All boundaries reconciled in one tick; position is continuous real time.
	if math.Abs(m.Position()-3.0) > 1e-6 {
		t.Fatalf("position = %v, want 3.0", m.Position())
	}
	if m.Tempo() != 120 {
		t.Fatalf("tempo = %v, want 120", m.Tempo())
	}
}

func TestSetTempoRescalesAdvanceRate(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	m.Play()
	clock.advance(0.5)
	m.Tick(clock.now())

	m.SetTempo(240) // notated 120 -> double speed
	before := m.Position()
	clock.advance(0.5)
	m.Tick(clock.now())
	gain := m.Position() - before
	if math.Abs(gain-1.0) > 1e-6 {
		t.Fatalf("advanced %v score-seconds in 0.5 real seconds, want 1.0", gain)
	}
}

func TestSetTempoClamps(t *testing.T) {
	m, _ := newTestModel(t, linearScore())
	m.SetTempo(500)
	if m.Tempo() != 240 {
		t.Fatalf("tempo = %v, want 240", m.Tempo())
	}
	m.SetTempo(10)
	if m.Tempo() != 40 {
		t.Fatalf("tempo = %v, want 40", m.Tempo())
	}
}

func TestEndOfScoreStops(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	var stops, posChanges int
	if _, err := m.Subscribe(EventStop, func(Event) { stops++ }); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Subscribe(EventPositionChange, func(Event) { posChanges++ }); err != nil {
		t.Fatal(err)
	}
	m.Play()
	clock.advance(5) // maxNoteEnd = 2.0, grace 2.0
	m.Tick(clock.now())
	if m.IsPlaying() {
		t.Fatal("still playing past end of score")
	}
	if stops != 1 {
		t.Fatalf("stop fired %d times, want 1", stops)
	}
	if m.Position() != 0 {
		t.Fatalf("position = %v, want 0 after stop", m.Position())
	}
	if posChanges < 2 {
		t.Fatal("stop did not fire positionchange")
	}
}

func TestVisibleNotesWindow(t *testing.T) {
	m, _ := newTestModel(t, linearScore())
	// Window [0.6, 1.2]: D4 still sounding at start, E4 starts inside.
	got := m.VisibleNotes(0.6, 1.2)
	if len(got) != 2 || got[0].NoteNumber != 62 || got[1].NoteNumber != 64 {
		t.Fatalf("visibleNotes = %+v", got)
	}
	if got := m.VisibleNotes(10, 20); len(got) != 0 {
		t.Fatalf("expected empty window, got %d", len(got))
	}
}

func TestCurrentlyPlayingExcludesTiedContinuations(t *testing.T) {
	data := linearScore()
	data.Notes[1].IsTiedFromPrevious = true
	m, clock := newTestModel(t, data)
	m.Play()
	clock.advance(0.6)
	m.Tick(clock.now())
	for _, n := range m.CurrentlyPlaying() {
		if n.IsTiedFromPrevious {
			t.Fatal("tied continuation reported as playing")
		}
	}
}

func TestEmptyScoreQueries(t *testing.T) {
	m, clock := newTestModel(t, Data{Title: "Empty"})
	if m.CurrentMeasure() != nil {
		t.Fatal("measure on empty score")
	}
	if len(m.VisibleNotes(0, 10)) != 0 || len(m.CurrentlyPlaying()) != 0 {
		t.Fatal("notes on empty score")
	}
	m.Play()
	clock.advance(0.01)
	m.Tick(clock.now()) // must not panic
}

func TestSubscribeUnknownKindRejected(t *testing.T) {
	m := NewModel()
	if _, err := m.Subscribe(EventKind("bogus"), func(Event) {}); err == nil {
		t.Fatal("unknown event kind accepted")
	}
}

func TestListenerAddedDuringDispatchRunsNextDispatch(t *testing.T) {
	m, _ := newTestModel(t, linearScore())
	var lateCalls int
	if _, err := m.Subscribe(EventPositionChange, func(Event) {
		if lateCalls == 0 {
			if _, err := m.Subscribe(EventPositionChange, func(Event) { lateCalls++ }); err != nil {
				t.Error(err)
			}
		}
	}); err != nil {
		t.Fatal(err)
	}
	m.Seek(1)
	if lateCalls != 0 {
		t.Fatal("listener registered during dispatch ran in the same dispatch")
	}
	m.Seek(1.2)
	if lateCalls != 1 {
		t.Fatalf("late listener ran %d times, want 1", lateCalls)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m, _ := newTestModel(t, linearScore())
	calls := 0
	token, err := m.Subscribe(EventPositionChange, func(Event) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	m.Seek(1)
	m.Unsubscribe(token)
	m.Seek(2)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPauseResumeKeepsPosition(t *testing.T) {
	m, clock := newTestModel(t, linearScore())
	m.Play()
	clock.advance(0.7)
	m.Tick(clock.now())
	m.Pause()
	clock.advance(5) // wall time passes while paused
	m.Play()
	clock.advance(0.1)
	m.Tick(clock.now())
	if math.Abs(m.Position()-0.8) > 1e-9 {
		t.Fatalf("position = %v, want 0.8 (pause interval excluded)", m.Position())
	}
}
