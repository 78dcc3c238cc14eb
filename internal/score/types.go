// Package score holds the immutable score data model and the playhead that
// advances over it. The model is loaded once and thereafter read-only; the
// playhead is the only mutable state and is driven by the playback
// controller's tick.
package score

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Error tags for callers to branch on via ftag.Get.
const (
	TagInvalidScore ftag.Kind = "invalid_score"
)

// Note is one notated note. Times are seconds from the score origin.
type Note struct {
	ID             string  `json:"id"`
	Start          float64 `json:"start"`
	Duration       float64 `json:"duration"`
	VisualDuration float64 `json:"visualDuration,omitempty"` // preferred for layout when > 0
	Step           string  `json:"step"`                     // C D E F G A B
	Alter          int     `json:"alter"`                    // -1, 0, +1
	Octave         int     `json:"octave"`
	NoteNumber     int     `json:"noteNumber"` // MIDI 21-108
	Staff          int     `json:"staff"`      // 1, 2, or 0 when unset
	Voice          int     `json:"voice"`
	PartID         string  `json:"partId"`

	Staccato           bool `json:"staccato,omitempty"`
	Accent             bool `json:"accent,omitempty"`
	Tenuto             bool `json:"tenuto,omitempty"`
	Fermata            bool `json:"fermata,omitempty"`
	HasTie             bool `json:"hasTie,omitempty"`
	IsTiedFromPrevious bool `json:"isTiedFromPrevious,omitempty"`
}

// End returns the audible end time.
func (n Note) End() float64 { return n.Start + n.Duration }

// LayoutDuration returns the duration preferred for visual layout.
func (n Note) LayoutDuration() float64 {
	if n.VisualDuration > 0 {
		return n.VisualDuration
	}
	return n.Duration
}

// RightHand reports whether the note belongs to the right hand: staff 1, or
// staff unset with MIDI >= 60.
func (n Note) RightHand() bool {
	if n.Staff == 1 {
		return true
	}
	return n.Staff == 0 && n.NoteNumber >= 60
}

// Measure is one bar. Consecutive measures abut: the next measure starts
// where the previous one ends.
type Measure struct {
	Index           int     `json:"index"`
	StartPosition   float64 `json:"startPosition"`
	DurationSeconds float64 `json:"durationSeconds"`
	HasTimeChange   bool    `json:"hasTimeChange"`
}

func (m Measure) End() float64 { return m.StartPosition + m.DurationSeconds }

// TimeSignature is effective from Position until the next entry.
type TimeSignature struct {
	Position    float64 `json:"position"`
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
}

// TempoChange is effective from Position until the next entry. The first
// entry applies at position 0.
type TempoChange struct {
	Position float64 `json:"position"`
	Tempo    float64 `json:"tempo"` // BPM
}

const (
	MinTempo = 40.0
	MaxTempo = 240.0
)

// ClampTempo bounds a BPM value to the supported range.
func ClampTempo(bpm float64) float64 {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

// Data is a fully parsed score as delivered by the external parser.
type Data struct {
	Title          string          `json:"title"`
	Composer       string          `json:"composer"`
	Notes          []Note          `json:"notes"`
	Measures       []Measure       `json:"measures"`
	TimeSignatures []TimeSignature `json:"timeSignatures"`
	TempoChanges   []TempoChange   `json:"tempoChanges"`
}

// Validate checks the load invariants: sorted non-overlapping time-indexed
// lists, non-negative durations, and note numbers consistent with
// (step, alter, octave).
func (d *Data) Validate() error {
	for i, n := range d.Notes {
		if n.Start < 0 || n.Duration < 0 {
			return invalidScore(fmt.Sprintf("note %d: negative time (start=%v duration=%v)", i, n.Start, n.Duration))
		}
		if want := noteNumberOf(n.Step, n.Alter, n.Octave); want != n.NoteNumber {
			return invalidScore(fmt.Sprintf("note %d: noteNumber %d does not match %s%+d oct %d (want %d)",
				i, n.NoteNumber, n.Step, n.Alter, n.Octave, want))
		}
	}
	for i := 1; i < len(d.Measures); i++ {
		if d.Measures[i].StartPosition < d.Measures[i-1].End()-1e-6 {
			return invalidScore(fmt.Sprintf("measure %d overlaps its predecessor", i))
		}
	}
	for i := 1; i < len(d.TimeSignatures); i++ {
		if d.TimeSignatures[i].Position <= d.TimeSignatures[i-1].Position {
			return invalidScore(fmt.Sprintf("time signature %d out of order", i))
		}
	}
	for i := 1; i < len(d.TempoChanges); i++ {
		if d.TempoChanges[i].Position <= d.TempoChanges[i-1].Position {
			return invalidScore(fmt.Sprintf("tempo change %d out of order", i))
		}
	}
	return nil
}

func invalidScore(msg string) error {
	return fault.New(msg, fmsg.With("score rejected"), ftag.With(TagInvalidScore))
}

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

func noteNumberOf(step string, alter, octave int) int {
	return 12*(octave+1) + stepSemitones[step] + alter
}

// MaxNoteEnd returns the latest audible end among all notes, 0 when empty.
func (d *Data) MaxNoteEnd() float64 {
	end := 0.0
	for _, n := range d.Notes {
		if e := n.End(); e > end {
			end = e
		}
	}
	return end
}
