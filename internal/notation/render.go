package notation

import (
	"image/color"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Renderer draws an engraved page onto a surface. The concrete renderer is
// loaded asynchronously (see Loader); until it resolves the view uses the
// textual fallback.
type Renderer interface {
	Render(p *Page, s Surface) error
}

// VectorRenderer is the built-in stave renderer.
type VectorRenderer struct {
	Ink       color.Color
	Highlight color.Color
}

func NewVectorRenderer() *VectorRenderer {
	return &VectorRenderer{
		Ink:       color.RGBA{30, 30, 36, 255},
		Highlight: color.RGBA{0, 0, 128, 255},
	}
}

func (r *VectorRenderer) Render(p *Page, s Surface) error {
	if p == nil {
		return fault.New("no page", fmsg.With("render skipped"), ftag.With(TagRenderFault))
	}
	for i := range p.Measures {
		r.renderMeasure(&p.Measures[i], s)
	}
	return nil
}

func (r *VectorRenderer) renderMeasure(m *EngravedMeasure, s Surface) {
	ink := r.Ink

	// Both staves: five lines each.
	for staff := 0; staff < 2; staff++ {
		top := m.Y + float64(staff)*staveDistance
		for line := 0; line < 5; line++ {
			y := top + float64(line)*staffLineGap
			s.Line(m.X, y, m.X+m.Width, y, 1, ink)
		}
	}
	bassBottom := m.Y + staveDistance + staffHeight

	// Thin barlines at both ends; a brace joins the staves at line start.
	s.Line(m.X, m.Y, m.X, bassBottom, 1, ink)
	s.Line(m.X+m.Width, m.Y, m.X+m.Width, bassBottom, 1, ink)
	if m.LineStart {
		s.Line(m.X-4, m.Y, m.X-4, bassBottom, 3, ink)
	}

	if m.ShowClef {
		s.Text("𝄞", m.X+4, m.Y+staffHeight-2, ink)
		s.Text("𝄢", m.X+4, m.Y+staveDistance+staffHeight-6, ink)
	}
	if m.ShowTime {
		x := m.X + measureHeaderPx - 14
		r.renderTimeSig(m, x, s)
	}

	for i := range m.Notes {
		r.renderNote(&m.Notes[i], s)
	}
}

func (r *VectorRenderer) renderTimeSig(m *EngravedMeasure, x float64, s Surface) {
	for staff := 0; staff < 2; staff++ {
		top := m.Y + float64(staff)*staveDistance
		s.Text(itoa(m.TimeSig.Numerator), x, top+staffLineGap*1.5, r.Ink)
		s.Text(itoa(m.TimeSig.Denominator), x, top+staffLineGap*3.5, r.Ink)
	}
}

func (r *VectorRenderer) renderNote(n *EngravedNote, s Surface) {
	ink := r.Ink
	rx, ry := staffLineGap*0.62, staffLineGap*0.48

	topY := n.HeadYs[0]
	bottomY := n.HeadYs[len(n.HeadYs)-1]

	for i, y := range n.HeadYs {
		s.NoteHead(n.X, y, rx, ry, n.Symbol.Filled(), ink)
		switch n.Accidentals[i] {
		case 1:
			s.Text("#", n.X-rx*2.6, y+ry, ink)
		case -1:
			s.Text("b", n.X-rx*2.6, y+ry, ink)
		}
		if n.Dotted {
			s.FillRect(n.X+rx+3, y-1.5, 3, 3, ink)
		}
	}

	// Stem on everything shorter than a whole, flags per value.
	if n.Symbol != Whole {
		stemX := n.X + rx
		stemTop := topY - 3.5*staffLineGap
		s.Line(stemX, stemTop, stemX, bottomY, 1, ink)
		for f := 0; f < n.Symbol.Flags(); f++ {
			y := stemTop + float64(f)*4
			s.Line(stemX, y, stemX+6, y+6, 1.5, ink)
		}
	}

	if n.Staccato {
		s.FillRect(n.X-1.5, topY-staffLineGap*1.2, 3, 3, ink)
	}
	if n.Accent {
		s.Text(">", n.X-3, topY-staffLineGap*1.6, ink)
	}
	if n.Tenuto {
		s.FillRect(n.X-rx, topY-staffLineGap*1.4, rx*2, 2, ink)
	}
	if n.Fermata {
		s.Text("𝄐", n.X-3, topY-staffLineGap*2.2, ink)
	}
}

func itoa(v int) string {
	if v < 0 || v > 99 {
		return "?"
	}
	if v < 10 {
		return string(rune('0' + v))
	}
	return string(rune('0'+v/10)) + string(rune('0'+v%10))
}
