package notation

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// LoadFunc produces a renderer. The real one builds the vector renderer;
// tests substitute failures.
type LoadFunc func() (Renderer, error)

type loadResult struct {
	r   Renderer
	err error
}

// Loader resolves the renderer capability off the tick path. The tick polls
// Poll(); engrave requests made before resolution are queued by the View
// and coalesced into the first render after resolution.
type Loader struct {
	ch     chan loadResult
	ready  bool
	failed error
	r      Renderer
}

func NewLoader(load LoadFunc) *Loader {
	l := &Loader{ch: make(chan loadResult, 1)}
	go func() {
		r, err := load()
		l.ch <- loadResult{r: r, err: err}
	}()
	return l
}

// resolvedLoader is used when the renderer needs no async work.
func ResolvedLoader(r Renderer) *Loader {
	return &Loader{ready: true, r: r}
}

// Poll consumes a pending resolution, if any. Non-blocking; called once per
// tick.
func (l *Loader) Poll() {
	if l.ready || l.failed != nil {
		return
	}
	select {
	case res := <-l.ch:
		if res.err != nil {
			l.failed = fault.Wrap(res.err,
				fmsg.With("engraving renderer failed to load"),
				ftag.With(TagEngraverUnavailable))
			return
		}
		l.r = res.r
		l.ready = true
	default:
	}
}

// Renderer returns the resolved renderer, or an error tagged
// TagEngraverUnavailable when loading failed. (nil, nil) means still
// loading.
func (l *Loader) Renderer() (Renderer, error) {
	if l.failed != nil {
		return nil, l.failed
	}
	if !l.ready {
		return nil, nil
	}
	return l.r, nil
}
