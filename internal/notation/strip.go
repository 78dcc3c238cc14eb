package notation

// ChordSpan is a detected chord handed to the strip; the controller adapts
// the falling overlay's blocks into spans.
type ChordSpan struct {
	Name      string
	TypeTag   string
	Start     float64
	End       float64
	RightHand bool
}

// StripBlock is one chord block aligned to the engraved measures.
type StripBlock struct {
	Name      string
	TypeTag   string
	X         float64
	Y         float64
	Width     float64
	RightHand bool
	Current   bool
}

const (
	stripMinWidth = 30.0
	stripAboveGap = 28.0
	stripBelowGap = 16.0
)

// BuildStrip aligns chord spans to the engraved page. Spans wholly outside
// the page clamp to the nearest measure; blocks sit above the treble stave
// for the right hand and below the bass stave for the left.
func BuildStrip(p *Page, spans []ChordSpan, now float64) []StripBlock {
	if p == nil || len(p.Measures) == 0 {
		return nil
	}
	out := make([]StripBlock, 0, len(spans))
	for _, span := range spans {
		if span.End < p.Start || span.Start > p.End {
			continue
		}
		mStart := p.nearestMeasure(span.Start)
		mEnd := p.nearestMeasure(span.End)
		if mStart == nil || mEnd == nil {
			continue
		}
		left := mStart.X + mStart.Width*measureProgress(mStart, span.Start)
		right := mEnd.X + mEnd.Width*measureProgress(mEnd, span.End)
		width := right - left
		if width < stripMinWidth {
			width = stripMinWidth
		}
		y := mStart.Y - stripAboveGap
		if !span.RightHand {
			y = mStart.Y + staveDistance + staffHeight + stripBelowGap
		}
		out = append(out, StripBlock{
			Name:      span.Name,
			TypeTag:   span.TypeTag,
			X:         left,
			Y:         y,
			Width:     width,
			RightHand: span.RightHand,
			Current:   span.Start <= now && now < span.End,
		})
	}
	return out
}

func measureProgress(m *EngravedMeasure, t float64) float64 {
	dur := m.EndTime - m.StartTime
	if dur <= 0 {
		return 0
	}
	return clamp01((t - m.StartTime) / dur)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
