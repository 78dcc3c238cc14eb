package ui

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/mwhitlock/clavier-go/internal/barlane"
	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/notation"
	"github.com/mwhitlock/clavier-go/internal/score"
)

var (
	rightHandBar = color.RGBA{80, 200, 255, 255}
	leftHandBar  = color.RGBA{130, 220, 150, 255}
	passedBar    = color.RGBA{150, 150, 160, 255}
	chordFill    = color.RGBA{200, 170, 60, 255}
)

// NotationRenderer builds the stave renderer with inks suited to the dark
// notation panel.
func NotationRenderer() notation.Renderer {
	return &notation.VectorRenderer{Ink: notationInk, Highlight: accentColor}
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	l := a.layoutRects()

	a.drawDarkPanel(screen, l.notation)
	a.drawLanePanel(screen, l.lane)
	a.drawKeyboard(screen, l.keys)
	a.drawNotation(screen, l.notation)
	a.drawButton(screen, l.play, a.playButtonLabel())
	a.drawButton(screen, l.stop, "Stop")
	a.drawTempoSlider(screen, l.tempo)
	a.drawStatus(screen, l.status)
}

func (a *App) playButtonLabel() string {
	if a.ctrl.Score().IsPlaying() {
		return "Pause"
	}
	return "Play"
}

func (a *App) drawNotation(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)

	view := a.ctrl.View()
	if view.FallbackActive() {
		a.drawFallback(screen, inner)
		return
	}

	s := &drawSurface{app: a, dst: screen, ox: float64(inner.Min.X), oy: float64(inner.Min.Y)}
	if err := view.Draw(s); err != nil {
		a.setError(err.Error())
		return
	}

	// Chord strip blocks ride on the engraved measures.
	for _, b := range a.ctrl.StripBlocks() {
		col := chordFill
		if b.Current {
			col = accentColor
		}
		s.FillRect(b.X, b.Y, b.Width, 14, col)
		a.drawGlyph(screen, b.Name, inner.Min.X+int(b.X)+2, inner.Min.Y+int(b.Y)+2, color.White)
	}

	if x, ok := a.ctrl.Indicator(); ok {
		ebitenutil.DrawRect(screen, float64(inner.Min.X)+x-1, float64(inner.Min.Y), 2,
			float64(inner.Dy()), accentColor)
	}
}

func (a *App) drawFallback(screen *ebiten.Image, rect image.Rectangle) {
	entries := a.ctrl.View().Fallback(a.ctrl.Score().Position())
	a.drawText(screen, "Notation unavailable", rect.Min.X+4, rect.Min.Y+4)
	top := rect.Min.Y + 4 + lineH + 6
	maxLines := (rect.Dy() - lineH - 10) / lineH
	for i, e := range entries {
		if i >= maxLines {
			break
		}
		y := top + i*lineH
		if e.Playing {
			ebitenutil.DrawRect(screen, float64(rect.Min.X+2), float64(y-2),
				float64(rect.Dx()-4), float64(lineH), accentColor)
		}
		a.drawText(screen, e.Label, rect.Min.X+4, y)
	}
}

func (a *App) drawLanePanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), laneBg)
	drawSunkenBorder(screen, rect)

	for _, c := range a.ctrl.Lane().ChordBlocks() {
		col := chordFill
		col.A = uint8(70 * c.Opacity)
		ebitenutil.DrawRect(screen, c.Rect.X, c.Rect.Y, c.Rect.W, c.Rect.H, col)
		label := c.Name
		if c.RightHand {
			a.drawGlyph(screen, label, int(c.Rect.X)+4, int(c.Rect.Y)+2, color.White)
		} else {
			a.drawGlyph(screen, label, int(c.Rect.X+c.Rect.W)-len(label)*7-4, int(c.Rect.Y)+2, color.White)
		}
	}

	for _, b := range a.ctrl.Lane().Bars() {
		col := barColor(b)
		col.A = uint8(255 * b.Opacity)
		ebitenutil.DrawRect(screen, b.Rect.X, b.Rect.Y, b.Rect.W, b.Rect.H, col)
	}

	// Playhead line along the lane's bottom edge.
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Max.Y-2),
		float64(rect.Dx()), 2, accentColor)
}

func barColor(b *barlane.Bar) color.RGBA {
	if b.State == barlane.BarPassed {
		return passedBar
	}
	col := rightHandBar
	if !b.RightHand {
		col = leftHandBar
	}
	if b.Black {
		col.R = uint8(float64(col.R) * 0.7)
		col.G = uint8(float64(col.G) * 0.7)
		col.B = uint8(float64(col.B) * 0.7)
	}
	return col
}

func (a *App) drawKeyboard(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), sunkenBg)
	drawSunkenBorder(screen, rect)

	// Whites first, then blacks on top; the layout iterates in that order.
	keys := a.ctrl.Keys()
	keys.Keys(func(midi int, r keyboard.Rect, black bool) {
		fill := whiteKeyFill
		if black {
			fill = blackKeyFill
		}
		if keys.Highlighted(midi) {
			fill = accentColor
		}
		ebitenutil.DrawRect(screen, r.X, r.Y, r.W, r.H, fill)
		if !black {
			ebitenutil.DrawRect(screen, r.X+r.W-1, r.Y, 1, r.H, borderColor)
		}
	})
}

func (a *App) drawTempoSlider(screen *ebiten.Image, rect image.Rectangle) {
	a.drawPanel(screen, rect)
	bpm := a.ctrl.Score().Tempo()
	a.drawText(screen, fmt.Sprintf("Tempo %3.0f", bpm), rect.Min.X+8, rect.Min.Y+8)

	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)

	frac := clamp((bpm-score.MinTempo)/(score.MaxTempo-score.MinTempo), 0, 1)
	fillW := int(float64(trackW) * frac)
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, accentColor)
	}
	knobX := trackX + fillW - 5
	if knobX < trackX-5 {
		knobX = trackX - 5
	}
	if knobX > trackX+trackW-5 {
		knobX = trackX + trackW - 5
	}
	knobRect := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y),
		float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
	drawBorder(screen, knobRect)
}

func (a *App) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	a.drawSunkenPanel(screen, rect)
	msg := "Status: " + a.statusMsg
	if a.statusIsErr {
		msg = "Status: ERROR - " + a.statusMsg
	}
	a.drawText(screen, msg, rect.Min.X+8, rect.Min.Y+6)

	m := a.ctrl.Score()
	right := fmt.Sprintf("%s  %.1fs  %.0f BPM", m.Data().Title, m.Position(), m.Tempo())
	a.drawText(screen, right, rect.Max.X-8-len(right)*charW, rect.Min.Y+6)
}

func (a *App) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (a *App) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), sunkenBg)
	drawSunkenBorder(screen, rect)
}

func (a *App) drawDarkPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), color.RGBA{0, 0, 0, 255})
	drawSunkenBorder(screen, rect)
}

func (a *App) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()), buttonColor)
	drawBorder(screen, rect)
	labelW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-labelW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	a.drawText(screen, label, x, y)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow
// bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight
// bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

// drawText renders embossed UI text at textScale through the cache.
func (a *App) drawText(screen *ebiten.Image, msg string, x, y int) {
	if msg == "" {
		return
	}
	img := a.textImage(msg)
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

// drawGlyph renders unscaled tinted text; the notation surface uses it for
// clefs, accidentals and chord labels.
func (a *App) drawGlyph(dst *ebiten.Image, msg string, x, y int, col color.Color) {
	if msg == "" {
		return
	}
	img := a.textImage(msg)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	r, g, b, _ := col.RGBA()
	op.ColorScale.Scale(float32(r)/0xffff, float32(g)/0xffff, float32(b)/0xffff, 1)
	dst.DrawImage(img, op)
}

func (a *App) textImage(msg string) *ebiten.Image {
	img := a.textCache[msg]
	if img == nil {
		w := len([]rune(msg)) * 7
		if w < 1 {
			w = 1
		}
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(a.textCache) > 3000 {
			a.textCache = make(map[string]*ebiten.Image, 1024)
		}
		a.textCache[msg] = img
	}
	return img
}
