package notation

import (
	"log/slog"

	"github.com/mwhitlock/clavier-go/internal/score"
)

// View owns the paged notation state: it runs the flip machine, re-engraves
// when the page moves and falls back to the textual listing while the
// renderer is unavailable.
type View struct {
	log      *slog.Logger
	model    *score.Model
	pager    *Pager
	engraver *Engraver
	loader   *Loader

	width float64
	page  *Page

	// pending coalesces engrave requests that arrive before the renderer
	// resolves; only the latest page is engraved once it does.
	pending bool
	// due carries a re-engrave owed by an earlier Advance until a Tick
	// performs it.
	due          bool
	failed       error
	failedLogged bool
}

func NewView(m *score.Model, loader *Loader, width float64, log *slog.Logger) *View {
	if log == nil {
		log = slog.Default()
	}
	if loader == nil {
		loader = ResolvedLoader(NewVectorRenderer())
	}
	return &View{
		log:      log,
		model:    m,
		pager:    NewPager(PageWindow),
		engraver: NewEngraver(log),
		loader:   loader,
		width:    width,
	}
}

// Resize updates the container width and re-engraves on the next tick.
func (v *View) Resize(width float64) {
	if width == v.width {
		return
	}
	v.width = width
	v.pager.MarkRefresh()
}

// OnSeek forwards playhead jumps to the flip machine.
func (v *View) OnSeek(position, previous float64) { v.pager.OnSeek(position, previous) }

// Reset clears the page back to the top of the score, as on stop.
func (v *View) Reset() {
	v.pager.Reset()
	v.page = nil
	v.pending = false
	v.due = false
}

// Advance runs the flip machine for this frame and reports whether the page
// window moved: a flip or the first page. Moves engrave immediately;
// refreshes of an unmoved window may wait for the caller's engrave spacing,
// carried in due until a Tick performs them.
func (v *View) Advance(now float64) bool {
	prevStart, prevEnd := v.pager.Page()
	if v.pager.Tick(now) {
		v.due = true
	}
	start, end := v.pager.Page()
	return v.due && (start != prevStart || end != prevEnd)
}

// Tick polls the renderer loader and advances the flip machine. It reports
// whether the engraved page changed.
func (v *View) Tick(now float64) bool {
	v.loader.Poll()
	r, err := v.loader.Renderer()
	if err != nil && v.failed == nil {
		v.failed = err
		if !v.failedLogged {
			v.log.Warn("notation renderer unavailable, using fallback view", "error", err)
			v.failedLogged = true
		}
	}

	if v.pager.Tick(now) {
		v.due = true
	}
	if !v.due && !v.pending {
		return false
	}
	if r == nil {
		// Not resolved yet (or failed): remember that a page is owed.
		v.pending = v.failed == nil
		v.due = false
		return false
	}
	start, end := v.pager.Page()
	v.page = v.engraver.Engrave(v.model, start, end, v.width)
	v.pending = false
	v.due = false
	return true
}

// FallbackActive reports whether the textual listing should be shown instead
// of the engraved page.
func (v *View) FallbackActive() bool {
	if v.failed != nil {
		return true
	}
	r, _ := v.loader.Renderer()
	return r == nil
}

// Fallback returns the textual listing for the current page window.
func (v *View) Fallback(now float64) []FallbackEntry {
	start, end := v.pager.Page()
	if end <= start {
		start, end = now, now+PageWindow
	}
	return FallbackList(v.model, start, end, now)
}

// Page returns the current engraved page, nil before the first engrave or in
// fallback mode.
func (v *View) Page() *Page { return v.page }

// Indicator returns the position-indicator x for the playhead, when the
// current page contains it.
func (v *View) Indicator(now float64) (float64, bool) {
	if v.page == nil {
		return 0, false
	}
	return v.page.Indicator(now)
}

// Strip aligns detected chord spans to the engraved measures. It is empty in
// fallback mode since there is no geometry to align against.
func (v *View) Strip(spans []ChordSpan, now float64) []StripBlock {
	if v.page == nil || v.FallbackActive() {
		return nil
	}
	return BuildStrip(v.page, spans, now)
}

// Draw renders the engraved page onto the surface.
func (v *View) Draw(s Surface) error {
	if v.page == nil {
		return nil
	}
	r, err := v.loader.Renderer()
	if r == nil || err != nil {
		return nil
	}
	return r.Render(v.page, s)
}
