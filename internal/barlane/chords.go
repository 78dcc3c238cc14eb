package barlane

import (
	"fmt"
	"math"
	"regexp"

	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/score"
	"github.com/mwhitlock/clavier-go/internal/theory"
)

// chordBucket groups simultaneous starts: notes within the same 50 ms
// bucket and hand form one candidate group.
const chordBucket = 0.05

// ChordBlock is one detected chord rendered across the full lane width.
type ChordBlock struct {
	ID        string
	Name      string
	TypeTag   string
	Start     float64
	End       float64
	RightHand bool
	Rect      keyboard.Rect
	Opacity   float64
}

// chordTypePriority maps a chord name to its style tag; first match wins.
var chordTypePriority = []struct {
	tag string
	re  *regexp.Regexp
}{
	{"maj13", regexp.MustCompile(`maj13`)},
	{"13", regexp.MustCompile(`13`)},
	{"maj11", regexp.MustCompile(`maj11`)},
	{"11", regexp.MustCompile(`11`)},
	{"maj9", regexp.MustCompile(`maj9`)},
	{"9", regexp.MustCompile(`9`)},
	{"maj7b5", regexp.MustCompile(`maj7b5`)},
	{"7aug", regexp.MustCompile(`7aug|aug7`)},
	{"7b5", regexp.MustCompile(`7b5`)},
	{"maj7aug", regexp.MustCompile(`maj7aug`)},
	{"maj7", regexp.MustCompile(`maj7`)},
	{"min7b5", regexp.MustCompile(`min7b5`)},
	{"min7", regexp.MustCompile(`min7`)},
	{"7sus4", regexp.MustCompile(`7sus4`)},
	{"7", regexp.MustCompile(`7`)},
	{"dim7", regexp.MustCompile(`dim7`)},
	{"dim", regexp.MustCompile(`dim`)},
	{"aug", regexp.MustCompile(`aug`)},
	{"sus2", regexp.MustCompile(`sus2`)},
	{"sus4", regexp.MustCompile(`sus4`)},
	{"minor", regexp.MustCompile(`min`)},
	{"major", regexp.MustCompile(`maj`)},
	{"add", regexp.MustCompile(`add`)},
	{"6", regexp.MustCompile(`6`)},
}

// ChordTypeTag classifies a chord name for styling.
func ChordTypeTag(name string) string {
	for _, entry := range chordTypePriority {
		if entry.re.MatchString(name) {
			return entry.tag
		}
	}
	return "other"
}

type chordGroup struct {
	bucket    int64
	rightHand bool
	notes     []score.Note
}

func (l *Lane) refreshChords(now float64, visible []score.Note, windowStart float64) {
	groups := make(map[string]*chordGroup)
	for _, n := range visible {
		if n.IsTiedFromPrevious {
			continue
		}
		bucket := int64(math.Round(n.Start / chordBucket))
		key := fmt.Sprintf("%d-%t", bucket, n.RightHand())
		g := groups[key]
		if g == nil {
			g = &chordGroup{bucket: bucket, rightHand: n.RightHand()}
			groups[key] = g
		}
		g.notes = append(g.notes, n)
	}

	for _, g := range groups {
		if len(g.notes) < 2 {
			continue
		}
		detected := theory.DetectChord(toTheoryNotes(g.notes))
		if detected == nil {
			continue
		}
		// The block spans the earliest start plus the longest duration, so
		// slightly staggered starts inside the bucket do not stretch it.
		start, longest := g.notes[0].Start, 0.0
		for _, n := range g.notes {
			if n.Start < start {
				start = n.Start
			}
			if d := n.LayoutDuration(); d > longest {
				longest = d
			}
		}
		end := start + longest
		if l.dupChord(start, g.rightHand) {
			continue
		}
		id := fmt.Sprintf("chord-%d-%t", g.bucket, g.rightHand)
		l.chords[id] = &ChordBlock{
			ID:        id,
			Name:      detected.Name,
			TypeTag:   ChordTypeTag(detected.Name),
			Start:     start,
			End:       end,
			RightHand: g.rightHand,
		}
	}

	// Same lifecycle as bars: place, fade, retire.
	for id, c := range l.chords {
		if c.End < windowStart-retireSlack {
			delete(l.chords, id)
			continue
		}
		if !l.placeChord(c, now) {
			delete(l.chords, id)
		}
	}
}

// dupChord reports an existing block of the same hand within the 50 ms
// dedupe distance.
func (l *Lane) dupChord(start float64, rightHand bool) bool {
	for _, c := range l.chords {
		if c.RightHand == rightHand && math.Abs(c.Start-start) < chordBucket {
			return true
		}
	}
	return false
}

func (l *Lane) placeChord(c *ChordBlock, t float64) bool {
	h := l.bounds.H
	ratio := h / l.lookAhead

	switch {
	case c.Start <= t && t < c.End:
		c.Opacity = 1
	case t < c.Start && c.Start <= t+l.lookAhead:
		c.Opacity = 1
	case c.End <= t && t < c.End+trailing:
		c.Opacity = passedOpacityPeak * (1 - (t-c.End)/trailing)
	default:
		return false
	}

	top := h - (c.End-t)*ratio
	blockH := (c.End - c.Start) * ratio
	if top < 0 { // clip to the lane
		blockH += top
		top = 0
	}
	if top+blockH > h {
		blockH = h - top
	}
	if blockH < 0 {
		blockH = 0
	}
	c.Rect = keyboard.Rect{
		X: l.bounds.X,
		Y: l.bounds.Y + top,
		W: l.bounds.W,
		H: blockH,
	}
	return true
}

// ChordBlocks returns the live chord blocks; rebuilt per call.
func (l *Lane) ChordBlocks() []*ChordBlock {
	out := make([]*ChordBlock, 0, len(l.chords))
	for _, c := range l.chords {
		out = append(out, c)
	}
	return out
}

func toTheoryNotes(notes []score.Note) []theory.Note {
	out := make([]theory.Note, len(notes))
	for i, n := range notes {
		name, octave := theory.MIDINoteToName(n.NoteNumber)
		out[i] = theory.Note{Name: name, Octave: octave, MIDI: n.NoteNumber, Magnitude: 50}
	}
	return out
}
