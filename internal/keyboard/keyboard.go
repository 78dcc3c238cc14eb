// Package keyboard models the 88-key piano layout: per-key bounding boxes
// recomputed on resize, and the highlight set fed from the currently
// playing notes. Drawing happens in the ui package.
package keyboard

const (
	// MIDI range of a standard 88-key piano, A0..C8.
	LowestKey  = 21
	HighestKey = 108

	blackWidthRatio  = 0.62
	blackHeightRatio = 0.62
)

// Rect is an axis-aligned box in pixels.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) CenterX() float64 { return r.X + r.W/2 }

var blackPitchClass = map[int]bool{1: true, 3: true, 6: true, 8: true, 10: true}

// IsBlack reports whether a MIDI note lands on a black key.
func IsBlack(midi int) bool {
	pc := midi % 12
	if pc < 0 {
		pc += 12
	}
	return blackPitchClass[pc]
}

// whiteIndex returns how many white keys lie strictly below midi within the
// 88-key range.
func whiteIndex(midi int) int {
	idx := 0
	for k := LowestKey; k < midi; k++ {
		if !IsBlack(k) {
			idx++
		}
	}
	return idx
}

// Layout holds the current key geometry. Resize recomputes every bounding
// box; callers re-read rects each frame so bars track live resizes.
type Layout struct {
	bounds     Rect
	whiteCount int
	rects      map[int]Rect
	highlights map[int]bool
}

func NewLayout() *Layout {
	count := 0
	for k := LowestKey; k <= HighestKey; k++ {
		if !IsBlack(k) {
			count++
		}
	}
	return &Layout{
		whiteCount: count,
		rects:      make(map[int]Rect, HighestKey-LowestKey+1),
		highlights: make(map[int]bool),
	}
}

// Resize lays the keyboard out inside bounds.
func (l *Layout) Resize(bounds Rect) {
	l.bounds = bounds
	whiteW := bounds.W / float64(l.whiteCount)
	blackW := whiteW * blackWidthRatio
	for k := LowestKey; k <= HighestKey; k++ {
		if IsBlack(k) {
			// A black key straddles the boundary after its lower white
			// neighbour.
			boundary := bounds.X + float64(whiteIndex(k))*whiteW
			l.rects[k] = Rect{
				X: boundary - blackW/2,
				Y: bounds.Y,
				W: blackW,
				H: bounds.H * blackHeightRatio,
			}
			continue
		}
		l.rects[k] = Rect{
			X: bounds.X + float64(whiteIndex(k))*whiteW,
			Y: bounds.Y,
			W: whiteW,
			H: bounds.H,
		}
	}
}

func (l *Layout) Bounds() Rect { return l.bounds }

// KeyRect returns the current bounding box for a MIDI note.
func (l *Layout) KeyRect(midi int) (Rect, bool) {
	r, ok := l.rects[midi]
	return r, ok
}

// SetHighlights replaces the highlighted key set.
func (l *Layout) SetHighlights(midis []int) {
	clear(l.highlights)
	for _, m := range midis {
		l.highlights[m] = true
	}
}

func (l *Layout) Highlighted(midi int) bool { return l.highlights[midi] }

// Keys iterates white keys first so black keys draw on top.
func (l *Layout) Keys(fn func(midi int, r Rect, black bool)) {
	for k := LowestKey; k <= HighestKey; k++ {
		if !IsBlack(k) {
			fn(k, l.rects[k], false)
		}
	}
	for k := LowestKey; k <= HighestKey; k++ {
		if IsBlack(k) {
			fn(k, l.rects[k], true)
		}
	}
}
