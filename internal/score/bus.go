package score

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/google/uuid"
)

// EventKind identifies playback lifecycle events.
type EventKind string

const (
	EventLoaded         EventKind = "loaded"
	EventPlay           EventKind = "play"
	EventPause          EventKind = "pause"
	EventStop           EventKind = "stop"
	EventPositionChange EventKind = "positionchange"
	EventTempoChange    EventKind = "tempochange"
)

var knownKinds = map[EventKind]bool{
	EventLoaded: true, EventPlay: true, EventPause: true,
	EventStop: true, EventPositionChange: true, EventTempoChange: true,
}

// Event carries one playback event. Only the fields relevant to its Kind
// are set.
type Event struct {
	Kind             EventKind
	Title            string
	Position         float64
	PreviousPosition float64
	Tempo            float64
	OldTempo         float64
}

type listener struct {
	id uuid.UUID
	fn func(Event)
}

// bus is a typed dispatcher with the six playback event kinds. Listeners
// registered during a dispatch take effect on the next dispatch, never the
// current one.
type bus struct {
	listeners map[EventKind][]listener
}

func newBus() *bus {
	return &bus{listeners: make(map[EventKind][]listener)}
}

func (b *bus) subscribe(kind EventKind, fn func(Event)) (uuid.UUID, error) {
	if !knownKinds[kind] {
		return uuid.Nil, fault.New("unknown event kind: "+string(kind),
			fmsg.With("event subscription rejected"))
	}
	id := uuid.New()
	// Copy-on-write so an in-flight emit keeps iterating its own snapshot.
	prev := b.listeners[kind]
	next := make([]listener, len(prev), len(prev)+1)
	copy(next, prev)
	b.listeners[kind] = append(next, listener{id: id, fn: fn})
	return id, nil
}

func (b *bus) unsubscribe(id uuid.UUID) {
	for kind, ls := range b.listeners {
		for i, l := range ls {
			if l.id == id {
				next := make([]listener, 0, len(ls)-1)
				next = append(next, ls[:i]...)
				next = append(next, ls[i+1:]...)
				b.listeners[kind] = next
				return
			}
		}
	}
}

func (b *bus) emit(ev Event) {
	for _, l := range b.listeners[ev.Kind] {
		l.fn(ev)
	}
}
