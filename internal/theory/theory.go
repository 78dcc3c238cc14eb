// Package theory provides the pure music-theory layer: frequency to note
// conversion, chord template matching, key scoring and guitar string lookup.
// Everything here is stateless; tables are built once at init.
package theory

import (
	"math"
	"sort"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// idealNote is one entry of the 12x9 reference table (octaves 0-8).
type idealNote struct {
	name      string
	octave    int
	midi      int
	frequency float64
}

var idealNotes []idealNote

func init() {
	idealNotes = make([]idealNote, 0, 12*9)
	for octave := 0; octave <= 8; octave++ {
		for pc := 0; pc < 12; pc++ {
			midi := 12*(octave+1) + pc
			idealNotes = append(idealNotes, idealNote{
				name:      noteNames[pc],
				octave:    octave,
				midi:      midi,
				frequency: MIDIToFrequency(midi),
			})
		}
	}
}

// MIDIToFrequency returns the equal-temperament frequency for a MIDI note
// number (A4 = 69 = 440 Hz).
func MIDIToFrequency(midi int) float64 {
	return 440.0 * math.Pow(2, float64(midi-69)/12.0)
}

// NoteNameToMIDI converts a step letter, alteration and octave to a MIDI
// note number: 12*(octave+1) + semitone(step, alter).
func NoteNameToMIDI(step string, alter int, octave int) int {
	return 12*(octave+1) + stepSemitones[step] + alter
}

// MIDINoteToName returns the sharp-spelled pitch class name and octave for a
// MIDI note number.
func MIDINoteToName(midi int) (string, int) {
	pc := midi % 12
	if pc < 0 {
		pc += 12
	}
	return noteNames[pc], midi/12 - 1
}

// Cents returns the deviation of f from ref in cents: 1200*log2(f/ref).
func Cents(f, ref float64) float64 {
	return 1200 * math.Log2(f/ref)
}

// Note is a frequency identified against the reference table.
type Note struct {
	Name           string
	Octave         int
	MIDI           int
	ExactFrequency float64 // the table frequency, not the input
	CentsDeviation float64
	Confidence     float64 // 1 - |cents|/50
	Magnitude      float64 // set by DetectNotes, 0 otherwise
}

// adaptiveTolerance is the worst acceptable relative deviation from the
// nearest ideal frequency. Low frequencies get a wider net because FFT bin
// resolution is coarser there.
func adaptiveTolerance(f float64) float64 {
	switch {
	case f < 100:
		return 0.15
	case f < 200:
		return 0.10
	case f < 500:
		return 0.08
	case f < 1000:
		return 0.05
	default:
		return 0.03
	}
}

// FrequencyToNote identifies f against the 12x9 ideal table. It returns nil
// when f falls outside the adaptive tolerance of the nearest note or more
// than 50 cents away from it.
func FrequencyToNote(f float64) *Note {
	if f <= 0 {
		return nil
	}
	best := -1
	bestDiff := math.MaxFloat64
	for i := range idealNotes {
		diff := math.Abs(f - idealNotes[i].frequency)
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	ideal := idealNotes[best]
	if bestDiff/ideal.frequency > adaptiveTolerance(f) {
		return nil
	}
	cents := Cents(f, ideal.frequency)
	if math.Abs(cents) > 50 {
		return nil
	}
	return &Note{
		Name:           ideal.name,
		Octave:         ideal.octave,
		MIDI:           ideal.midi,
		ExactFrequency: ideal.frequency,
		CentsDeviation: cents,
		Confidence:     1 - math.Abs(cents)/50,
	}
}

// Peak is one spectral peak from the external mic front-end.
type Peak struct {
	Frequency     float64 `json:"frequency"`
	Magnitude     float64 `json:"magnitude"`
	IsFundamental bool    `json:"isFundamental,omitempty"`
	IsHarmonic    bool    `json:"isHarmonic,omitempty"`
}

const (
	minPeakMagnitude = 20.0
	minPeakFrequency = 15.0
	maxPeakFrequency = 8000.0
)

// DetectNotes maps peaks through FrequencyToNote, dropping peaks below the
// magnitude floor or outside the usable band, and dedupes by (name, octave)
// keeping the strongest magnitude. Result is sorted by magnitude descending.
func DetectNotes(peaks []Peak) []Note {
	byKey := make(map[int]Note)
	for _, p := range peaks {
		if p.Magnitude < minPeakMagnitude {
			continue
		}
		if p.Frequency < minPeakFrequency || p.Frequency > maxPeakFrequency {
			continue
		}
		n := FrequencyToNote(p.Frequency)
		if n == nil {
			continue
		}
		n.Magnitude = p.Magnitude
		if prev, ok := byKey[n.MIDI]; !ok || p.Magnitude > prev.Magnitude {
			byKey[n.MIDI] = *n
		}
	}
	out := make([]Note, 0, len(byKey))
	for _, n := range byKey {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Magnitude != out[j].Magnitude {
			return out[i].Magnitude > out[j].Magnitude
		}
		return out[i].MIDI < out[j].MIDI
	})
	return out
}
