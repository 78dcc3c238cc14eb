// Package notation renders the paged score view: a sliding 8-second window
// engraved as two-stave systems, a position indicator, a measure-aligned
// chord strip, and a textual fallback when the engraving renderer is
// unavailable.
package notation

import "image/color"

// Surface is the seam between layout and pixels. The ui package adapts it
// onto an ebiten image; tests record calls.
type Surface interface {
	Line(x1, y1, x2, y2, width float64, col color.Color)
	FillRect(x, y, w, h float64, col color.Color)
	// NoteHead draws an ellipse head centered at (x, y); filled heads are
	// quarter-or-shorter values.
	NoteHead(x, y, rx, ry float64, filled bool, col color.Color)
	Text(s string, x, y float64, col color.Color)
}
