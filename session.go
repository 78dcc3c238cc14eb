// Package clavier is a score playback engine: it loads Standard MIDI
// Files, advances a tempo-aware playhead over the notes, and exposes the
// state the UI layers render (keyboard highlights, falling bars, engraved
// notation, chord strip).
//
// The Session type is the concurrency-safe entry point; the packages
// under internal/ assume single-threaded access from the tick loop.
package clavier

import (
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/google/uuid"

	intscore "github.com/mwhitlock/clavier-go/internal/score"
	intsmf "github.com/mwhitlock/clavier-go/internal/smfscore"
)

// Event carries playback lifecycle events from Watch(). See the EventKind
// constants for the kinds delivered.
type Event = intscore.Event

type EventKind = intscore.EventKind

const (
	EventLoaded         = intscore.EventLoaded
	EventPlay           = intscore.EventPlay
	EventPause          = intscore.EventPause
	EventStop           = intscore.EventStop
	EventPositionChange = intscore.EventPositionChange
	EventTempoChange    = intscore.EventTempoChange
)

// Tempo bounds enforced by SetTempo.
const (
	MinTempo = intscore.MinTempo
	MaxTempo = intscore.MaxTempo
)

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	clock  intscore.Clock
	logger *slog.Logger
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{clock: intscore.WallClock, logger: slog.Default()}
}

// WithClock replaces the wall clock used by Tick. Injectable for tests
// and offline runs; the clock returns milliseconds.
func WithClock(c intscore.Clock) SessionOption {
	return func(cfg *sessionConfig) { cfg.clock = c }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) { cfg.logger = l }
}

// Session wraps the score model behind a mutex so it can be driven from
// any goroutine. Events fired by the model are forwarded to the most
// recent Watch() channel.
type Session struct {
	mu    sync.Mutex
	model *intscore.Model
	clock intscore.Clock
	log   *slog.Logger
	subs  []uuid.UUID
	done  chan struct{}

	eventCh   chan Event
	eventChMu sync.Mutex
}

func NewSession(opts ...SessionOption) *Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		model: intscore.NewModel(intscore.WithClock(cfg.clock), intscore.WithLogger(cfg.logger)),
		clock: cfg.clock,
		log:   cfg.logger,
	}
	for _, kind := range []EventKind{
		EventLoaded, EventPlay, EventPause, EventStop,
		EventPositionChange, EventTempoChange,
	} {
		token, _ := s.model.Subscribe(kind, s.forward)
		s.subs = append(s.subs, token)
	}
	return s
}

// forward runs inside model emits, which always happen under s.mu (every
// mutating Session method holds it).
func (s *Session) forward(ev Event) {
	s.sendEvent(ev)
	if ev.Kind == EventStop {
		s.signalDone()
	}
}

func (s *Session) sendEvent(ev Event) {
	s.eventChMu.Lock()
	ch := s.eventCh
	s.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (s *Session) signalDone() {
	done := s.done
	s.done = nil
	if done != nil {
		close(done)
	}
}

// LoadSMF parses a Standard MIDI File from disk and loads it. The
// previous score stays in place when the file is rejected.
func (s *Session) LoadSMF(path string) error {
	data, err := intsmf.Load(path)
	if err != nil {
		return err
	}
	return s.LoadScore(data)
}

// ParseSMF parses raw Standard MIDI File bytes into score data without
// loading it.
func ParseSMF(raw []byte, name string) (intscore.Data, error) {
	return intsmf.Parse(raw, name)
}

// LoadScore validates and loads already-parsed score data, resetting the
// playhead to 0.
func (s *Session) LoadScore(data intscore.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Load(data)
}

// Play starts or resumes playback from the current position.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.model.Loaded() {
		return fault.New("no score loaded", fmsg.With("load a score before playing"))
	}
	// Signal any existing Wait() that the previous playback was replaced
	if s.done != nil {
		close(s.done)
	}
	s.done = make(chan struct{})
	s.model.Play()
	return nil
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Pause()
}

// Stop halts playback and rewinds to 0. Wait() callers are released.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Stop()
	s.signalDone()
}

// Seek moves the playhead. Positions are clamped to the score.
func (s *Session) Seek(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Seek(position)
}

// SetTempo sets the playback tempo in BPM, clamped to [MinTempo, MaxTempo].
func (s *Session) SetTempo(bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.SetTempo(bpm)
}

// Tick advances the playhead to the session clock's current time. Call it
// once per frame; playback past the end of the score stops itself.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.Tick(s.clock())
}

func (s *Session) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Position()
}

func (s *Session) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Tempo()
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.IsPlaying()
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Loaded()
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Data().Title
}

// Duration returns the audible end of the last note in seconds.
func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.MaxNoteEnd()
}

// PlayingNotes returns the MIDI numbers sounding at the playhead.
func (s *Session) PlayingNotes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.model.CurrentlyPlaying()
	out := make([]int, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.NoteNumber)
	}
	return out
}

// Wait blocks until the current playback stops, either by reaching the
// end of the score or by an explicit Stop. Returns immediately when no
// playback is active.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events: loaded, play,
// pause, stop, positionchange (every tick while playing) and tempochange.
//
// The channel is buffered (cap 8); receive in a goroutine to avoid losing
// events. Only the most recent Watch() channel receives events.
func (s *Session) Watch() <-chan Event {
	ch := make(chan Event, 8)
	s.eventChMu.Lock()
	s.eventCh = ch
	s.eventChMu.Unlock()
	return ch
}

// Model exposes the underlying score model for wiring the UI layers.
// Callers that use it directly must provide their own synchronization.
func (s *Session) Model() *intscore.Model {
	return s.model
}

// Close detaches the session from its model. The session is unusable
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.subs {
		s.model.Unsubscribe(token)
	}
	s.subs = nil
	s.signalDone()
}
