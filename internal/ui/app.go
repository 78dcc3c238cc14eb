// Package ui is the desktop front-end: an ebiten game loop hosting the
// keyboard view, the falling bar lane with its chord overlay, the paged
// notation panel with the chord strip, and the transport controls.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/mwhitlock/clavier-go/internal/keyboard"
	"github.com/mwhitlock/clavier-go/internal/playback"
	"github.com/mwhitlock/clavier-go/internal/score"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 980
	minWindowH = 680

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	bgColor      = color.RGBA{192, 192, 192, 255}
	panelColor   = color.RGBA{192, 192, 192, 255}
	borderColor  = color.RGBA{128, 128, 128, 255}
	buttonColor  = color.RGBA{192, 192, 192, 255}
	accentColor  = color.RGBA{0, 0, 128, 255}
	notationInk  = color.RGBA{255, 255, 255, 255}
	sunkenBg     = color.RGBA{24, 24, 32, 255}
	laneBg       = color.RGBA{14, 16, 22, 255}
	whiteKeyFill = color.RGBA{236, 236, 228, 255}
	blackKeyFill = color.RGBA{28, 28, 34, 255}

	// 3D bevel colors for the embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}
)

// App owns the window. All mutation happens on the ebiten update goroutine;
// the resize debouncer only flips an atomic flag.
type App struct {
	ctrl  *playback.Controller
	title string

	viewW int
	viewH int

	draggingBPM bool
	statusMsg   string
	statusIsErr bool
	appliedW    int
	appliedH    int
	relayout    atomic.Bool
	debounceFn  func(func())
	textCache   map[string]*ebiten.Image
}

func New(ctrl *playback.Controller, title string) *App {
	a := &App{
		ctrl:       ctrl,
		title:      title,
		viewW:      windowW,
		viewH:      windowH,
		statusMsg:  "Ready",
		debounceFn: debounce.New(120 * time.Millisecond),
		textCache:  make(map[string]*ebiten.Image, 1024),
	}
	a.appliedW, a.appliedH = a.viewW, a.viewH
	a.applyLayout()
	return a
}

// Run opens the window and blocks until it closes.
func (a *App) Run() error {
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle(a.title)
	return ebiten.RunGame(a)
}

func (a *App) Update() error {
	if a.appliedW != a.viewW || a.appliedH != a.viewH {
		a.appliedW, a.appliedH = a.viewW, a.viewH
		a.debounceFn(func() { a.relayout.Store(true) })
	}
	if a.relayout.CompareAndSwap(true, false) {
		a.applyLayout()
	}
	a.handleKeys()
	a.handleMouse()
	a.ctrl.Tick()
	return nil
}

func (a *App) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	a.viewW = outsideW
	a.viewH = outsideH
	return outsideW, outsideH
}

type uiLayout struct {
	notation, lane, keys image.Rectangle
	play, stop, tempo    image.Rectangle
	status               image.Rectangle
}

func (a *App) layoutRects() uiLayout {
	w := a.viewW
	h := a.viewH
	if w < minWindowW {
		w = minWindowW
	}
	if h < minWindowH {
		h = minWindowH
	}

	pad := 20
	rowH := 44
	statusH := 40
	keysH := 110

	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	keysTop := controlsTop - 12 - keysH

	contentH := keysTop - pad - 12
	notationH := int(float64(contentH) * 0.42)
	if notationH < 220 {
		notationH = 220
	}

	notationRect := image.Rect(pad, pad, w-pad, pad+notationH)
	laneRect := image.Rect(pad, notationRect.Max.Y+12, w-pad, keysTop)
	keysRect := image.Rect(pad, keysTop, w-pad, keysTop+keysH)

	playRect := image.Rect(pad, controlsTop, pad+130, controlsTop+rowH)
	stopRect := image.Rect(pad+142, controlsTop, pad+272, controlsTop+rowH)
	tempoRect := image.Rect(pad+284, controlsTop, w-pad, controlsTop+rowH)
	statusRect := image.Rect(pad, statusTop, w-pad, statusTop+statusH)

	return uiLayout{
		notation: notationRect, lane: laneRect, keys: keysRect,
		play: playRect, stop: stopRect, tempo: tempoRect, status: statusRect,
	}
}

// applyLayout pushes the current geometry into the components. The lane and
// keyboard share a coordinate space: bars fall through the lane rect onto
// the keys below it.
func (a *App) applyLayout() {
	l := a.layoutRects()
	a.ctrl.Layout(
		rectOf(l.keys),
		rectOf(l.lane),
		float64(l.notation.Dx()-16),
	)
}

func rectOf(r image.Rectangle) keyboard.Rect {
	return keyboard.Rect{
		X: float64(r.Min.X), Y: float64(r.Min.Y),
		W: float64(r.Dx()), H: float64(r.Dy()),
	}
}

func (a *App) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		a.ctrl.TogglePlay()
		a.setStatus(a.transportLabel())
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		a.ctrl.Stop()
		a.setStatus("Stopped")
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowRight):
		a.ctrl.SeekForward()
		a.setStatus(fmt.Sprintf("Position: %.1fs", a.ctrl.Score().Position()))
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft):
		a.ctrl.SeekBackward()
		a.setStatus(fmt.Sprintf("Position: %.1fs", a.ctrl.Score().Position()))
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		a.ctrl.Home()
		a.setStatus("Position: 0.0s")
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual),
		inpututil.IsKeyJustPressed(ebiten.KeyKPAdd):
		a.ctrl.TempoUp()
		a.setStatus(fmt.Sprintf("Tempo: %.0f BPM", a.ctrl.Score().Tempo()))
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus),
		inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract):
		a.ctrl.TempoDown()
		a.setStatus(fmt.Sprintf("Tempo: %.0f BPM", a.ctrl.Score().Tempo()))
	}
}

func (a *App) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := a.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			a.ctrl.TogglePlay()
			a.setStatus(a.transportLabel())
			return
		case pointInRect(mx, my, l.stop):
			a.ctrl.Stop()
			a.setStatus("Stopped")
			return
		case pointInRect(mx, my, l.tempo):
			a.draggingBPM = true
			a.updateTempoFromMouse(mx, l.tempo)
			return
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		a.draggingBPM = false
	}
	if a.draggingBPM {
		a.updateTempoFromMouse(mx, l.tempo)
	}
}

func (a *App) updateTempoFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	if trackW <= 0 {
		return
	}
	frac := clamp(float64(mx-trackX)/float64(trackW), 0, 1)
	bpm := score.MinTempo + frac*(score.MaxTempo-score.MinTempo)
	a.ctrl.Score().SetTempo(bpm)
	a.setStatus(fmt.Sprintf("Tempo: %.0f BPM", a.ctrl.Score().Tempo()))
}

func (a *App) transportLabel() string {
	if a.ctrl.Score().IsPlaying() {
		return "Playing"
	}
	return "Paused"
}

func (a *App) setStatus(msg string) {
	a.statusMsg = msg
	a.statusIsErr = false
}

func (a *App) setError(msg string) {
	a.statusMsg = msg
	a.statusIsErr = true
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}
