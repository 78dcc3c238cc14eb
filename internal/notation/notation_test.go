package notation

import (
	"errors"
	"image/color"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mwhitlock/clavier-go/internal/score"
)

func mkNote(step string, alter, octave int, midi int, start, dur float64, staff int) score.Note {
	return score.Note{
		Start:      start,
		Duration:   dur,
		Step:       step,
		Alter:      alter,
		Octave:     octave,
		NoteNumber: midi,
		Staff:      staff,
	}
}

// fourMeasureModel: four 2-second measures at 120 BPM in 4/4, one quarter
// note per beat in the first measure and a sparse bass line after.
func fourMeasureModel(t *testing.T) *score.Model {
	t.Helper()
	data := score.Data{
		Title: "layout fixture",
		Notes: []score.Note{
			mkNote("C", 0, 4, 60, 0.0, 0.5, 1),
			mkNote("E", 0, 4, 64, 0.5, 0.5, 1),
			mkNote("G", 0, 4, 67, 1.0, 0.5, 1),
			mkNote("C", 0, 5, 72, 1.5, 0.5, 1),
			mkNote("C", 0, 3, 48, 2.0, 2.0, 2),
			mkNote("G", 0, 2, 43, 4.0, 1.0, 2),
			mkNote("E", 0, 4, 64, 6.0, 0.5, 1),
		},
		Measures: []score.Measure{
			{Index: 0, StartPosition: 0, DurationSeconds: 2},
			{Index: 1, StartPosition: 2, DurationSeconds: 2},
			{Index: 2, StartPosition: 4, DurationSeconds: 2},
			{Index: 3, StartPosition: 6, DurationSeconds: 2},
		},
		TimeSignatures: []score.TimeSignature{{Position: 0, Numerator: 4, Denominator: 4}},
		TempoChanges:   []score.TempoChange{{Position: 0, Tempo: 120}},
	}
	m := score.NewModel()
	if err := m.Load(data); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return m
}

func TestPagerFirstTickRenders(t *testing.T) {
	p := NewPager(8)
	if !p.Tick(0) {
		t.Fatal("first tick must render")
	}
	start, end := p.Page()
	if start != 0 || end != 8 {
		t.Fatalf("page = [%v, %v], want [0, 8]", start, end)
	}
	if p.Tick(1.0) {
		t.Fatal("no re-render while inside the page")
	}
}

func TestPagerFlipsAtThreeQuarters(t *testing.T) {
	p := NewPager(8)
	p.Tick(0)
	if p.Tick(5.9) {
		t.Fatal("5.9s is before the flip point")
	}
	if !p.Tick(6.1) {
		t.Fatal("6.1s is past 75% of the page")
	}
	start, end := p.Page()
	if start != 6.1 || end != 14.1 {
		t.Fatalf("flipped page = [%v, %v], want [6.1, 14.1]", start, end)
	}
}

func TestPagerSeek(t *testing.T) {
	p := NewPager(8)
	p.Tick(0)

	// Small jumps stay on the current page.
	p.OnSeek(0.8, 0.2)
	if p.Tick(0.8) {
		t.Fatal("seek under the refresh delta must not re-render")
	}

	p.OnSeek(20, 0.8)
	if !p.Tick(20) {
		t.Fatal("large seek must re-render")
	}
	start, end := p.Page()
	if start != 20 || end != 28 {
		t.Fatalf("page after seek = [%v, %v], want [20, 28]", start, end)
	}
}

func TestPagerReset(t *testing.T) {
	p := NewPager(8)
	p.Tick(10)
	p.Reset()
	if !p.Tick(0) {
		t.Fatal("tick after reset must render")
	}
	if start, _ := p.Page(); start != 0 {
		t.Fatalf("page start after reset = %v, want 0", start)
	}
}

func TestSymbolForBeats(t *testing.T) {
	cases := []struct {
		beats  float64
		sym    DurationSymbol
		dotted bool
		ok     bool
	}{
		{4.0, Whole, false, true},
		{3.0, Half, true, true},
		{2.0, Half, false, true},
		{1.5, Quarter, true, true},
		{1.0, Quarter, false, true},
		{0.75, Eighth, true, true},
		{0.5, Eighth, false, true},
		{0.25, Sixteenth, false, true},
		{0.1, ThirtySecond, false, true},
		{0.005, 0, false, false},
	}
	for _, c := range cases {
		sym, dotted, ok := symbolForBeats(c.beats)
		if sym != c.sym || dotted != c.dotted || ok != c.ok {
			t.Errorf("symbolForBeats(%v) = (%v, %v, %v), want (%v, %v, %v)",
				c.beats, sym, dotted, ok, c.sym, c.dotted, c.ok)
		}
	}
}

func TestEngraveLayout(t *testing.T) {
	m := fourMeasureModel(t)
	e := NewEngraver(nil)
	page := e.Engrave(m, 0, 8, 760)

	if len(page.Measures) != 4 {
		t.Fatalf("measures on page = %d, want 4", len(page.Measures))
	}
	if !page.Measures[0].LineStart || !page.Measures[0].ShowClef || !page.Measures[0].ShowTime {
		t.Fatal("first measure must open the line with clef and time signature")
	}
	for i := 1; i < 4; i++ {
		if page.Measures[i].LineStart || page.Measures[i].ShowClef {
			t.Errorf("measure %d must not repeat the clef mid-line", i)
		}
	}
	for i, em := range page.Measures {
		if em.Width < minStaveWidth {
			t.Errorf("measure %d width %v below minimum", i, em.Width)
		}
		if em.Y != topMargin {
			t.Errorf("measure %d y = %v, want one line at %v", i, em.Y, topMargin)
		}
		if i > 0 {
			prev := page.Measures[i-1]
			if math.Abs(em.X-(prev.X+prev.Width)) > 1e-9 {
				t.Errorf("measure %d does not abut its predecessor", i)
			}
		}
	}
	last := page.Measures[3]
	if got := last.X + last.Width; math.Abs(got-(760-sideMargin)) > 1e-9 {
		t.Errorf("line ends at %v, want %v", got, 760-sideMargin)
	}
}

func TestEngraveDenseMeasureIsWider(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)
	// Measure 0 holds four notes, measure 3 one.
	if page.Measures[0].Width <= page.Measures[3].Width {
		t.Fatalf("dense measure width %v must exceed sparse %v",
			page.Measures[0].Width, page.Measures[3].Width)
	}
}

func TestEngraveSplitsStaves(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)
	for _, n := range page.Measures[0].Notes {
		if !n.Treble {
			t.Errorf("staff-1 note at %v placed on the bass stave", n.StartTime)
		}
	}
	if len(page.Measures[1].Notes) != 1 || page.Measures[1].Notes[0].Treble {
		t.Fatal("staff-2 note must land on the bass stave")
	}
	// 2 seconds over a 2-second 4/4 measure is four beats: a whole note.
	if sym := page.Measures[1].Notes[0].Symbol; sym != Whole {
		t.Errorf("sustained bass note symbol = %v, want whole", sym)
	}
}

func TestEngraveHeadPlacement(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)

	// E4 sits on the treble bottom line; C4 two diatonic steps below it.
	em := page.Measures[0]
	bottomLine := em.Y + staffHeight
	var c4, e4 *EngravedNote
	for i := range em.Notes {
		switch em.Notes[i].StartTime {
		case 0.0:
			c4 = &em.Notes[i]
		case 0.5:
			e4 = &em.Notes[i]
		}
	}
	if c4 == nil || e4 == nil {
		t.Fatal("missing engraved notes in measure 0")
	}
	if got := e4.HeadYs[0]; got != bottomLine {
		t.Errorf("E4 head y = %v, want bottom line %v", got, bottomLine)
	}
	if got := c4.HeadYs[0]; got != bottomLine+staffLineGap {
		t.Errorf("C4 head y = %v, want %v", got, bottomLine+staffLineGap)
	}
}

func TestEngraveMergesChordHeads(t *testing.T) {
	data := score.Data{
		Notes: []score.Note{
			mkNote("C", 0, 4, 60, 1.0, 0.5, 1),
			mkNote("E", 0, 4, 64, 1.01, 0.5, 1),
			mkNote("G", 0, 4, 67, 1.5, 0.5, 1),
		},
		Measures:       []score.Measure{{Index: 0, StartPosition: 0, DurationSeconds: 2}},
		TimeSignatures: []score.TimeSignature{{Position: 0, Numerator: 4, Denominator: 4}},
		TempoChanges:   []score.TempoChange{{Position: 0, Tempo: 120}},
	}
	m := score.NewModel()
	if err := m.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)
	notes := page.Measures[0].Notes
	if len(notes) != 2 {
		t.Fatalf("engraved groups = %d, want 2 (10ms apart merges)", len(notes))
	}
	chord := notes[0]
	if len(chord.HeadYs) != 2 {
		t.Fatalf("chord heads = %d, want 2", len(chord.HeadYs))
	}
	// Heads stack highest pitch first.
	if chord.HeadYs[0] >= chord.HeadYs[1] {
		t.Error("head stack must run top down")
	}
}

func TestIndicatorTracksMeasureProgress(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)

	em := page.Measures[0]
	x, ok := page.Indicator(1.1)
	if !ok {
		t.Fatal("playhead inside the page must have an indicator")
	}
	want := em.X + em.Width*0.55
	if math.Abs(x-want) > 1e-9 {
		t.Errorf("indicator x = %v, want %v", x, want)
	}
	if _, ok := page.Indicator(9.0); ok {
		t.Error("no indicator for a time off the page")
	}
}

func TestFallbackList(t *testing.T) {
	m := fourMeasureModel(t)
	entries := FallbackList(m, 0, 8, 1.1)
	if len(entries) != 7 {
		t.Fatalf("entries = %d, want 7", len(entries))
	}
	if !strings.HasPrefix(entries[0].Label, "C4  0.00s +0.50s") {
		t.Errorf("first label = %q", entries[0].Label)
	}
	// 1.1s is inside the G4 at 1.0.
	var playing []string
	for _, e := range entries {
		if e.Playing {
			playing = append(playing, e.Label)
		}
	}
	if len(playing) != 1 || !strings.Contains(playing[0], "G4") {
		t.Errorf("playing entries = %v, want just G4", playing)
	}
	if !strings.Contains(playing[0], "> playing") {
		t.Errorf("playing label %q missing marker", playing[0])
	}
}

func TestBuildStrip(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)
	em := page.Measures[0]

	spans := []ChordSpan{
		{Name: "Cmaj", TypeTag: "major", Start: 0.5, End: 1.5, RightHand: true},
		{Name: "Cmin", TypeTag: "minor", Start: 0.9, End: 0.95, RightHand: false},
		{Name: "G7", TypeTag: "dominant", Start: 30, End: 31, RightHand: true},
	}
	blocks := BuildStrip(page, spans, 1.0)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2 (off-page span dropped)", len(blocks))
	}

	b := blocks[0]
	wantX := em.X + em.Width*0.25
	wantW := em.Width * 0.5
	if math.Abs(b.X-wantX) > 1e-9 || math.Abs(b.Width-wantW) > 1e-9 {
		t.Errorf("block geometry = (%v, %v), want (%v, %v)", b.X, b.Width, wantX, wantW)
	}
	if b.Y != em.Y-stripAboveGap {
		t.Errorf("right-hand block y = %v, want above the treble stave", b.Y)
	}
	if !b.Current {
		t.Error("span containing the playhead must be current")
	}

	lh := blocks[1]
	if lh.Width != stripMinWidth {
		t.Errorf("short span width = %v, want floor %v", lh.Width, stripMinWidth)
	}
	if lh.Y != em.Y+staveDistance+staffHeight+stripBelowGap {
		t.Errorf("left-hand block y = %v, want below the bass stave", lh.Y)
	}
	if lh.Current {
		t.Error("span not containing the playhead must not be current")
	}
}

// recordingSurface counts draw calls.
type recordingSurface struct {
	lines, rects, heads, texts int
}

func (s *recordingSurface) Line(x1, y1, x2, y2, w float64, c color.Color) { s.lines++ }
func (s *recordingSurface) FillRect(x, y, w, h float64, c color.Color) { s.rects++ }
func (s *recordingSurface) NoteHead(x, y, rx, ry float64, filled bool, c color.Color) {
	s.heads++
}
func (s *recordingSurface) Text(str string, x, y float64, c color.Color) { s.texts++ }

func TestVectorRendererDraws(t *testing.T) {
	m := fourMeasureModel(t)
	page := NewEngraver(nil).Engrave(m, 0, 8, 760)
	s := &recordingSurface{}
	if err := NewVectorRenderer().Render(page, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	// Ten stave lines per measure, plus barlines and stems.
	if s.lines < 40 {
		t.Errorf("stave lines drawn = %d, want at least 40", s.lines)
	}
	if s.heads != 7 {
		t.Errorf("note heads drawn = %d, want 7", s.heads)
	}
	if s.texts == 0 {
		t.Error("clef and time signature glyphs missing")
	}
}

func TestViewQueuesEngraveUntilRendererResolves(t *testing.T) {
	m := fourMeasureModel(t)
	release := make(chan struct{})
	loader := NewLoader(func() (Renderer, error) {
		<-release
		return NewVectorRenderer(), nil
	})
	v := NewView(m, loader, 760, nil)

	if v.Tick(0) {
		t.Fatal("no page before the renderer resolves")
	}
	if !v.FallbackActive() {
		t.Fatal("fallback must be active while loading")
	}
	if entries := v.Fallback(0); len(entries) == 0 {
		t.Fatal("fallback listing must cover the pending page window")
	}
	if v.Strip([]ChordSpan{{Name: "Cmaj", Start: 0, End: 1, RightHand: true}}, 0) != nil {
		t.Fatal("strip must be empty in fallback mode")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for !v.Tick(0.016) {
		if time.Now().After(deadline) {
			t.Fatal("renderer never resolved")
		}
		time.Sleep(time.Millisecond)
	}
	if v.FallbackActive() {
		t.Fatal("fallback must clear once the renderer resolves")
	}
	if v.Page() == nil || len(v.Page().Measures) != 4 {
		t.Fatal("queued engrave must run after resolution")
	}
	if _, ok := v.Indicator(1.0); !ok {
		t.Fatal("indicator must be available on the engraved page")
	}
}

func TestViewStaysOnFallbackAfterLoadFailure(t *testing.T) {
	m := fourMeasureModel(t)
	loader := NewLoader(func() (Renderer, error) {
		return nil, errors.New("no engraving backend")
	})
	v := NewView(m, loader, 760, nil)

	deadline := time.Now().Add(2 * time.Second)
	for {
		v.Tick(0.016)
		if _, err := loader.Renderer(); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("load failure never surfaced")
		}
		time.Sleep(time.Millisecond)
	}
	v.Tick(0.032)
	if !v.FallbackActive() {
		t.Fatal("fallback must stay active after a load failure")
	}
	if v.Page() != nil {
		t.Fatal("no engraved page after a load failure")
	}
	if entries := v.Fallback(0.032); len(entries) == 0 {
		t.Fatal("fallback listing must still work")
	}
}

func TestViewSeekAndReset(t *testing.T) {
	m := fourMeasureModel(t)
	v := NewView(m, nil, 760, nil)
	if !v.Tick(0) {
		t.Fatal("first tick engraves")
	}
	v.OnSeek(20, 0)
	if !v.Tick(20) {
		t.Fatal("large seek must re-engrave")
	}
	if p := v.Page(); p.Start != 20 {
		t.Fatalf("page start after seek = %v, want 20", p.Start)
	}
	v.Reset()
	if v.Page() != nil {
		t.Fatal("reset clears the page")
	}
	if !v.Tick(0) {
		t.Fatal("tick after reset engraves from the top")
	}
}
