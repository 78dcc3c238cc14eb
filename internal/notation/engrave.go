package notation

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/mwhitlock/clavier-go/internal/score"
)

const (
	TagEngraverUnavailable ftag.Kind = "engraver_unavailable"
	TagRenderFault         ftag.Kind = "render_fault"
)

// Layout constants. Stave geometry is fixed; horizontal space flexes with
// the container.
const (
	staffLineGap  = 8.0   // distance between the five stave lines
	staffHeight   = 4 * staffLineGap
	staveDistance = 120.0 // treble top line to bass top line
	systemAdvance = staveDistance + staffHeight + 48
	topMargin     = 24.0
	sideMargin    = 16.0

	minStaveWidth   = 70.0
	measureSlotPx   = 180.0
	measureHeaderPx = 34.0 // room for clef / time signature

	// Chord heads within a stave merge when starts differ by less than
	// this.
	chordMergeTolerance = 0.020
	minBeatDuration     = 0.01
)

// DurationSymbol is a notated value.
type DurationSymbol int

const (
	Whole DurationSymbol = iota
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
)

// symbolForBeats maps a beat duration to its notated value.
func symbolForBeats(beats float64) (sym DurationSymbol, dotted bool, ok bool) {
	switch {
	case beats < minBeatDuration:
		return 0, false, false
	case beats >= 4:
		return Whole, false, true
	case beats >= 3:
		return Half, true, true
	case beats >= 2:
		return Half, false, true
	case beats >= 1.5:
		return Quarter, true, true
	case beats >= 1:
		return Quarter, false, true
	case beats >= 0.75:
		return Eighth, true, true
	case beats >= 0.5:
		return Eighth, false, true
	case beats >= 0.25:
		return Sixteenth, false, true
	default:
		return ThirtySecond, false, true
	}
}

// Filled reports whether the head is solid.
func (d DurationSymbol) Filled() bool { return d >= Quarter }

// Flags returns the number of stem flags.
func (d DurationSymbol) Flags() int {
	switch d {
	case Eighth:
		return 1
	case Sixteenth:
		return 2
	case ThirtySecond:
		return 3
	}
	return 0
}

// EngravedNote is one rendered chord group head stack.
type EngravedNote struct {
	X         float64
	StartTime float64
	Treble    bool
	Symbol    DurationSymbol
	Dotted    bool
	// One Y per head, top to bottom, plus its accidental (-1/0/+1).
	HeadYs      []float64
	Accidentals []int
	Staccato    bool
	Accent      bool
	Tenuto      bool
	Fermata     bool
}

// EngravedMeasure is one measure's geometry on the page.
type EngravedMeasure struct {
	Index     int
	X         float64
	Y         float64 // top line of the treble stave
	Width     float64
	StartTime float64
	EndTime   float64
	LineStart bool
	ShowClef  bool
	ShowTime  bool
	TimeSig   score.TimeSignature
	Notes     []EngravedNote
}

// Page is a fully laid out notation page.
type Page struct {
	Start    float64
	End      float64
	Width    float64
	Measures []EngravedMeasure
}

// Engraver lays out pages. It is stateless between calls.
type Engraver struct {
	log *slog.Logger
}

func NewEngraver(log *slog.Logger) *Engraver {
	if log == nil {
		log = slog.Default()
	}
	return &Engraver{log: log}
}

// Engrave lays out every measure intersecting [pageStart, pageEnd] into
// lines sized for containerWidth.
func (e *Engraver) Engrave(m *score.Model, pageStart, pageEnd, containerWidth float64) *Page {
	page := &Page{Start: pageStart, End: pageEnd, Width: containerWidth}

	var visible []score.Measure
	for _, ms := range m.Data().Measures {
		if ms.StartPosition < pageEnd && ms.End() > pageStart {
			visible = append(visible, ms)
		}
	}
	if len(visible) == 0 {
		return page
	}

	perLine := int(containerWidth / measureSlotPx)
	if perLine < 2 {
		perLine = 2
	}

	usable := containerWidth - 2*sideMargin
	y := topMargin
	for lineStart := 0; lineStart < len(visible); lineStart += perLine {
		lineEnd := lineStart + perLine
		if lineEnd > len(visible) {
			lineEnd = len(visible)
		}
		line := visible[lineStart:lineEnd]
		e.layoutLine(m, page, line, sideMargin, y, usable)
		y += systemAdvance
	}
	return page
}

// layoutLine distributes one line of measures: width proportional to note
// density, rescaled to fill, floored at the minimum stave width.
func (e *Engraver) layoutLine(m *score.Model, page *Page, line []score.Measure, x, y, usable float64) {
	counts := make([]int, len(line))
	total := 0
	for i, ms := range line {
		counts[i] = len(m.VisibleNotes(ms.StartPosition, ms.End()))
		total += counts[i]
	}
	avg := float64(total) / float64(len(line))
	if avg <= 0 {
		avg = 1
	}

	weights := make([]float64, len(line))
	sum := 0.0
	for i := range line {
		weights[i] = 0.9 + 0.2*(float64(counts[i])/avg)
		sum += weights[i]
	}

	cursor := x
	for i, ms := range line {
		width := usable * weights[i] / sum
		if width < minStaveWidth {
			width = minStaveWidth
		}
		em := EngravedMeasure{
			Index:     ms.Index,
			X:         cursor,
			Y:         y,
			Width:     width,
			StartTime: ms.StartPosition,
			EndTime:   ms.End(),
			LineStart: i == 0,
			ShowClef:  i == 0,
			TimeSig:   m.TimeSignatureAt(ms.StartPosition),
		}
		em.ShowTime = i == 0 || ms.HasTimeChange
		e.layoutMeasureNotes(m, &em)
		page.Measures = append(page.Measures, em)
		cursor += width
	}
}

// layoutMeasureNotes builds the chord-group head stacks for one measure.
// A panicking group is logged and skipped; the rest of the measure still
// renders.
func (e *Engraver) layoutMeasureNotes(m *score.Model, em *EngravedMeasure) {
	notes := m.VisibleNotes(em.StartTime, em.EndTime)
	treble := make([]score.Note, 0, len(notes))
	bass := make([]score.Note, 0, len(notes))
	for _, n := range notes {
		if n.IsTiedFromPrevious {
			continue
		}
		if n.Start < em.StartTime { // head belongs to the earlier measure
			continue
		}
		if n.RightHand() {
			treble = append(treble, n)
		} else {
			bass = append(bass, n)
		}
	}
	em.Notes = append(em.Notes, e.layoutVoice(em, treble, true)...)
	em.Notes = append(em.Notes, e.layoutVoice(em, bass, false)...)
	sort.Slice(em.Notes, func(i, j int) bool { return em.Notes[i].X < em.Notes[j].X })
}

func (e *Engraver) layoutVoice(em *EngravedMeasure, notes []score.Note, treble bool) (out []EngravedNote) {
	defer func() {
		if r := recover(); r != nil {
			err := fault.New(fmt.Sprint(r), fmsg.With("voice layout failed"), ftag.With(TagRenderFault))
			e.log.Warn("skipping voice", "measure", em.Index, "treble", treble, "err", err)
			out = nil
		}
	}()

	// Group by rounded start, then merge adjacent groups under the chord
	// tolerance.
	byStart := make(map[string][]score.Note)
	for _, n := range notes {
		byStart[fmt.Sprintf("%.3f", n.Start)] = append(byStart[fmt.Sprintf("%.3f", n.Start)], n)
	}
	type group struct {
		start float64
		notes []score.Note
	}
	groups := make([]group, 0, len(byStart))
	for _, g := range byStart {
		groups = append(groups, group{start: g[0].Start, notes: g})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].start < groups[j].start })
	merged := make([]group, 0, len(groups))
	for _, g := range groups {
		if len(merged) > 0 && g.start-merged[len(merged)-1].start < chordMergeTolerance {
			last := &merged[len(merged)-1]
			last.notes = append(last.notes, g.notes...)
			continue
		}
		merged = append(merged, g)
	}

	measureDur := em.EndTime - em.StartTime
	beatsPerMeasure := float64(em.TimeSig.Numerator)
	for _, g := range merged {
		longest := 0.0
		for _, n := range g.notes {
			if d := n.LayoutDuration(); d > longest {
				longest = d
			}
		}
		beatPos := (g.start - em.StartTime) / measureDur * beatsPerMeasure
		beatDur := longest / measureDur * beatsPerMeasure
		sym, dotted, ok := symbolForBeats(beatDur)
		if !ok {
			continue
		}

		noteArea := em.Width - measureHeaderPx - 8
		if noteArea < 10 {
			noteArea = 10
		}
		en := EngravedNote{
			X:         em.X + measureHeaderPx + beatPos/beatsPerMeasure*noteArea,
			StartTime: g.start,
			Treble:    treble,
			Symbol:    sym,
			Dotted:    dotted,
		}
		sort.Slice(g.notes, func(i, j int) bool { return g.notes[i].NoteNumber > g.notes[j].NoteNumber })
		for _, n := range g.notes {
			en.HeadYs = append(en.HeadYs, e.headY(em, n, treble))
			en.Accidentals = append(en.Accidentals, n.Alter)
			en.Staccato = en.Staccato || n.Staccato
			en.Accent = en.Accent || n.Accent
			en.Tenuto = en.Tenuto || n.Tenuto
			en.Fermata = en.Fermata || n.Fermata
		}
		out = append(out, en)
	}
	return out
}

var diatonicIndex = map[string]int{"C": 0, "D": 1, "E": 2, "F": 3, "G": 4, "A": 5, "B": 6}

// headY places a note head on its stave: half a line gap per diatonic step
// from the stave's bottom line (E4 treble, G2 bass).
func (e *Engraver) headY(em *EngravedMeasure, n score.Note, treble bool) float64 {
	staffTop := em.Y
	if !treble {
		staffTop += staveDistance
	}
	bottomLine := staffTop + staffHeight

	refOctave, refStep := 4, 2 // E4
	if !treble {
		refOctave, refStep = 2, 4 // G2
	}
	steps := (n.Octave-refOctave)*7 + diatonicIndex[n.Step] - refStep
	return bottomLine - float64(steps)*staffLineGap/2
}

// MeasureAtTime returns the engraved measure containing t, or nil.
func (p *Page) MeasureAtTime(t float64) *EngravedMeasure {
	for i := range p.Measures {
		m := &p.Measures[i]
		if m.StartTime <= t && t < m.EndTime {
			return m
		}
	}
	return nil
}

// Indicator returns the position-indicator x for time t, or false when no
// measure on the page contains t.
func (p *Page) Indicator(t float64) (float64, bool) {
	m := p.MeasureAtTime(t)
	if m == nil {
		return 0, false
	}
	progress := (t - m.StartTime) / (m.EndTime - m.StartTime)
	return m.X + m.Width*progress, true
}

// nearestMeasure clamps t onto the page: the measure containing t, else the
// closest one.
func (p *Page) nearestMeasure(t float64) *EngravedMeasure {
	if m := p.MeasureAtTime(t); m != nil {
		return m
	}
	var best *EngravedMeasure
	bestDist := math.MaxFloat64
	for i := range p.Measures {
		m := &p.Measures[i]
		d := math.Min(math.Abs(t-m.StartTime), math.Abs(t-m.EndTime))
		if d < bestDist {
			bestDist = d
			best = m
		}
	}
	return best
}
