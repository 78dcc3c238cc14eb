package ui

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// drawSurface adapts an ebiten image to the notation drawing seam.
type drawSurface struct {
	app *App
	dst *ebiten.Image
	// ox/oy translate page coordinates into the notation panel.
	ox, oy float64
}

func (s *drawSurface) Line(x1, y1, x2, y2, width float64, col color.Color) {
	x1, y1 = x1+s.ox, y1+s.oy
	x2, y2 = x2+s.ox, y2+s.oy
	if width < 1 {
		width = 1
	}
	switch {
	case math.Abs(x1-x2) < 0.5:
		top := math.Min(y1, y2)
		ebitenutil.DrawRect(s.dst, x1-width/2, top, width, math.Abs(y2-y1), col)
	case math.Abs(y1-y2) < 0.5:
		left := math.Min(x1, x2)
		ebitenutil.DrawRect(s.dst, left, y1-width/2, math.Abs(x2-x1), width, col)
	default:
		ebitenutil.DrawLine(s.dst, x1, y1, x2, y2, col)
	}
}

func (s *drawSurface) FillRect(x, y, w, h float64, col color.Color) {
	ebitenutil.DrawRect(s.dst, x+s.ox, y+s.oy, w, h, col)
}

// NoteHead scan-fills an ellipse; open heads get a two-pixel rim only.
func (s *drawSurface) NoteHead(x, y, rx, ry float64, filled bool, col color.Color) {
	x, y = x+s.ox, y+s.oy
	rows := int(ry)
	if rows < 1 {
		rows = 1
	}
	for iy := -rows; iy <= rows; iy++ {
		fy := float64(iy)
		hw := rx * math.Sqrt(math.Max(0, 1-(fy/ry)*(fy/ry)))
		if hw < 0.5 {
			hw = 0.5
		}
		if filled || iy == -rows || iy == rows {
			ebitenutil.DrawRect(s.dst, x-hw, y+fy, hw*2, 1, col)
			continue
		}
		ebitenutil.DrawRect(s.dst, x-hw, y+fy, 1.5, 1, col)
		ebitenutil.DrawRect(s.dst, x+hw-1.5, y+fy, 1.5, 1, col)
	}
}

func (s *drawSurface) Text(str string, x, y float64, col color.Color) {
	s.app.drawGlyph(s.dst, str, int(x+s.ox), int(y+s.oy), col)
}
