package notation

import (
	"fmt"
	"sort"

	"github.com/mwhitlock/clavier-go/internal/score"
)

// FallbackEntry is one line of the textual fallback view.
type FallbackEntry struct {
	Label   string
	Playing bool
}

// FallbackList renders the textual stand-in for the engraved page: every
// note intersecting [pageStart, pageEnd] with its timing, marked playing
// while the playhead is inside it.
func FallbackList(m *score.Model, pageStart, pageEnd, now float64) []FallbackEntry {
	notes := m.VisibleNotes(pageStart, pageEnd)
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].NoteNumber < notes[j].NoteNumber
	})
	out := make([]FallbackEntry, 0, len(notes))
	for _, n := range notes {
		playing := n.Start <= now && now < n.End()
		label := fmt.Sprintf("%s%d  %.2fs +%.2fs", spelled(n), n.Octave, n.Start, n.Duration)
		if playing {
			label += "  > playing"
		}
		out = append(out, FallbackEntry{Label: label, Playing: playing})
	}
	return out
}

func spelled(n score.Note) string {
	switch n.Alter {
	case 1:
		return n.Step + "#"
	case -1:
		return n.Step + "b"
	}
	return n.Step
}
