package theory

import (
	"math"
	"testing"
)

func TestNoteNameMIDIRoundTrip(t *testing.T) {
	for midi := 21; midi <= 108; midi++ {
		name, octave := MIDINoteToName(midi)
		back := NoteNameToMIDI(string(name[0]), len(name)-1, octave)
		if back != midi {
			t.Fatalf("midi %d -> %s%d -> %d", midi, name, octave, back)
		}
	}
	if got := NoteNameToMIDI("C", 0, 4); got != 60 {
		t.Fatalf("C4 = %d, want 60", got)
	}
	if got := NoteNameToMIDI("A", 0, 4); got != 69 {
		t.Fatalf("A4 = %d, want 69", got)
	}
}

func TestFrequencyToNoteIdentifiesA4(t *testing.T) {
	n := FrequencyToNote(441)
	if n == nil {
		t.Fatal("441 Hz not identified")
	}
	if n.Name != "A" || n.Octave != 4 {
		t.Fatalf("got %s%d, want A4", n.Name, n.Octave)
	}
	if math.Abs(n.CentsDeviation-3.93) > 0.1 {
		t.Fatalf("cents = %.2f, want ~+3.93", n.CentsDeviation)
	}
	if math.Abs(n.Confidence-0.92) > 0.01 {
		t.Fatalf("confidence = %.3f, want ~0.92", n.Confidence)
	}
}

func TestFrequencyToNoteRejectsQuarterTone(t *testing.T) {
	// Halfway between A4 and A#4 is past the 50-cent acceptance limit for
	// one of them but FrequencyToNote snaps to the nearest; a frequency
	// beyond tolerance of everything must return nil.
	if n := FrequencyToNote(0); n != nil {
		t.Fatal("zero frequency identified")
	}
	// 1500 Hz sits between F#6 (1479.98) and G6 (1567.98); nearest is F#6
	// at +23 cents which is inside the 3% band, so it identifies.
	if n := FrequencyToNote(1500); n == nil || n.Name != "F#" {
		t.Fatalf("1500 Hz: got %+v, want F#6", n)
	}
}

func TestDetectNotesDedupesAndFloors(t *testing.T) {
	peaks := []Peak{
		{Frequency: 440, Magnitude: 80},
		{Frequency: 441, Magnitude: 120}, // same note, stronger
		{Frequency: 261.63, Magnitude: 60},
		{Frequency: 329.63, Magnitude: 10}, // below floor
		{Frequency: 9000, Magnitude: 90},   // out of band
	}
	notes := DetectNotes(peaks)
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2: %+v", len(notes), notes)
	}
	if notes[0].Name != "A" || notes[0].Magnitude != 120 {
		t.Fatalf("strongest = %+v, want A4 @120", notes[0])
	}
	if notes[1].Name != "C" || notes[1].Octave != 4 {
		t.Fatalf("second = %+v, want C4", notes[1])
	}
}

func notesFromMIDI(midis ...int) []Note {
	out := make([]Note, 0, len(midis))
	for _, m := range midis {
		name, octave := MIDINoteToName(m)
		out = append(out, Note{Name: name, Octave: octave, MIDI: m, Magnitude: 50})
	}
	return out
}

func TestDetectChordMajorTriad(t *testing.T) {
	c := DetectChord(notesFromMIDI(60, 64, 67)) // C4 E4 G4
	if c == nil {
		t.Fatal("no chord detected")
	}
	if c.Name != "Cmaj" || c.Root != "C" || c.Type != "maj" {
		t.Fatalf("got %q (%s/%s)", c.Name, c.Root, c.Type)
	}
	if math.Abs(c.Confidence-1.0) > 1e-9 {
		t.Fatalf("confidence = %v, want 1", c.Confidence)
	}
}

func TestDetectChordVariants(t *testing.T) {
	cases := []struct {
		midis []int
		want  string
	}{
		{[]int{57, 60, 64}, "Amin"},       // A C E
		{[]int{60, 64, 67, 70}, "C7"},     // C E G Bb
		{[]int{60, 64, 67, 71}, "Cmaj7"},  // C E G B
		{[]int{62, 65, 69, 72}, "Dmin7"},  // D F A C
		{[]int{60, 63, 66}, "Cdim"},       // C Eb Gb
		{[]int{60, 65, 67}, "Csus4"},      // C F G
		{[]int{64, 67, 71}, "Emin"},       // E G B
	}
	for _, tc := range cases {
		c := DetectChord(notesFromMIDI(tc.midis...))
		if c == nil {
			t.Fatalf("%v: no chord", tc.midis)
		}
		if c.Name != tc.want {
			t.Fatalf("%v: got %q, want %q", tc.midis, c.Name, tc.want)
		}
	}
}

func TestDetectChordRejections(t *testing.T) {
	if c := DetectChord(notesFromMIDI(60)); c != nil {
		t.Fatalf("single note produced %q", c.Name)
	}
	// Tritone alone: best template keeps only 2 of 3 intervals, score
	// 10*2-5*1 = 15 for dim without the third... root+6 matches dim as
	// {0,6}: match 2, missing 1, extra 0 -> 15, which passes. A cluster of
	// adjacent semitones however matches nothing.
	if c := DetectChord(notesFromMIDI(60, 61)); c != nil {
		t.Fatalf("semitone cluster produced %q", c.Name)
	}
}

func TestDetectChordScoreMonotone(t *testing.T) {
	base := DetectChord(notesFromMIDI(60, 64, 67))
	withDouble := DetectChord(notesFromMIDI(60, 64, 67, 72)) // adds C5, in pattern
	if withDouble == nil || withDouble.Confidence < base.Confidence {
		t.Fatalf("doubling a pattern note lowered confidence: %v -> %v",
			base.Confidence, withDouble)
	}
	withExtra := DetectChord(notesFromMIDI(60, 64, 67, 61)) // Db outside pattern
	if withExtra == nil {
		t.Fatal("extra note killed detection entirely")
	}
	// Extra interval costs exactly 2: 30 -> 28.
	if math.Abs(withExtra.Confidence-28.0/30.0) > 1e-9 {
		t.Fatalf("confidence with extra = %v, want 28/30", withExtra.Confidence)
	}
}

func TestAnalyzeMusicalKeyCMajor(t *testing.T) {
	// C major scale notes, tonic strongest.
	notes := notesFromMIDI(60, 62, 64, 65, 67, 69, 71)
	notes[0].Magnitude = 200
	k := AnalyzeMusicalKey(notes)
	if k == nil {
		t.Fatal("no key detected")
	}
	if k.Name != "C major" {
		t.Fatalf("got %q, want C major", k.Name)
	}
	if k.Confidence < 0.5 || k.Confidence > 0.95 {
		t.Fatalf("confidence %v out of [0.5, 0.95]", k.Confidence)
	}
}

func TestAnalyzeMusicalKeyEmpty(t *testing.T) {
	if k := AnalyzeMusicalKey(nil); k != nil {
		t.Fatalf("empty input produced %+v", k)
	}
}

func TestAnalyzeGuitarString(t *testing.T) {
	m := AnalyzeGuitarString(110.0)
	if m == nil || m.Name != "A2" || !m.InTune {
		t.Fatalf("110 Hz: %+v", m)
	}
	m = AnalyzeGuitarString(108.0)
	if m == nil || m.Name != "A2" || m.InTune || !m.TuneUp {
		t.Fatalf("flat A2: %+v", m)
	}
	if m := AnalyzeGuitarString(441); m != nil {
		t.Fatalf("441 Hz matched %q, want nil (out of band)", m.Name)
	}
	if m := AnalyzeGuitarString(50); m != nil {
		t.Fatalf("50 Hz matched %q, want nil", m.Name)
	}
}
