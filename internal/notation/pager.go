package notation

// PageWindow is the engraved time window in seconds.
const PageWindow = 8.0

// flipFraction: the page flips once the playhead passes this share of it.
const flipFraction = 0.75

// seekRefreshDelta: seeks larger than this force a page refresh.
const seekRefreshDelta = 1.0

// Pager is the page-flip state machine. It only tracks the [pageStart,
// pageEnd] interval; engraving is the View's job.
type Pager struct {
	window        float64
	pageStart     float64
	pageEnd       float64
	refreshNeeded bool
	renderedOnce  bool
}

func NewPager(window float64) *Pager {
	if window <= 0 {
		window = PageWindow
	}
	return &Pager{window: window, refreshNeeded: true}
}

func (p *Pager) Page() (start, end float64) { return p.pageStart, p.pageEnd }

// MarkRefresh forces a re-render on the next tick without moving the page.
func (p *Pager) MarkRefresh() { p.refreshNeeded = true }

// OnSeek marks a refresh for large jumps and re-bases the page at the new
// position.
func (p *Pager) OnSeek(position, previous float64) {
	delta := position - previous
	if delta < 0 {
		delta = -delta
	}
	if delta > seekRefreshDelta {
		p.pageStart = position
		p.refreshNeeded = true
	}
}

// Reset re-bases the page at 0, as on stop.
func (p *Pager) Reset() {
	p.pageStart = 0
	p.pageEnd = 0
	p.refreshNeeded = true
	p.renderedOnce = false
}

// Tick advances the flip machine and reports whether the page must be
// re-rendered now.
func (p *Pager) Tick(now float64) bool {
	if p.pageEnd-p.pageStart > 0 && now > p.pageStart+flipFraction*(p.pageEnd-p.pageStart) {
		p.pageStart = now
		p.refreshNeeded = true
	}
	if !p.renderedOnce {
		p.refreshNeeded = true
	}
	if !p.refreshNeeded {
		return false
	}
	if now < p.pageStart || now > p.pageStart+p.window {
		p.pageStart = now
	}
	p.pageEnd = p.pageStart + p.window
	p.refreshNeeded = false
	p.renderedOnce = true
	return true
}
