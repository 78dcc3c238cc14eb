// Package analyzer turns periodic mic peak payloads into display-ready
// results: detected notes ranked by magnitude, the inferred musical key, the
// nearest guitar string, or a voice-register classification against a
// calibrated range. It holds no tick source of its own; the host feeds it on
// every mic event.
package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/mwhitlock/clavier-go/internal/theory"
)

// Mode selects what Process derives beyond the raw note list.
type Mode string

const (
	ModeSinging       Mode = "singing"
	ModeGuitar        Mode = "guitar"
	ModeVoiceTraining Mode = "voice-training"
)

func validMode(m Mode) bool {
	switch m {
	case ModeSinging, ModeGuitar, ModeVoiceTraining:
		return true
	}
	return false
}

// Register is a band of the calibrated vocal range.
type Register string

const (
	RegisterChest    Register = "chest"
	RegisterMixed    Register = "mixed"
	RegisterHead     Register = "head"
	RegisterFalsetto Register = "falsetto"
)

// calibrationStability: the (min, max) extrema must survive this many
// consecutive payloads unchanged before calibration completes.
const calibrationStability = 10

// VoiceStatus is the voice-training slice of a Result.
type VoiceStatus struct {
	Calibrating bool
	Calibrated  bool
	MinMIDI     int
	MaxMIDI     int
	// Register is empty while calibrating or when the pitch falls outside
	// every band.
	Register Register
	Note     *theory.Note
}

// Result is what one payload produced. Fields irrelevant to the active mode
// stay zero; a nil Key/String/Voice.Note means "nothing recognized" and the
// UI shows its neutral placeholder.
type Result struct {
	Notes  []theory.Note
	Key    *theory.Key
	String *theory.StringMatch
	Voice  *VoiceStatus
}

// Analyzer dispatches payloads to the active mode. Not synchronized; feed it
// from one goroutine.
type Analyzer struct {
	log  *slog.Logger
	mode Mode

	calibrating bool
	calibrated  bool
	minMIDI     int
	maxMIDI     int
	stable      int
}

type Option func(*Analyzer)

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

func New(mode Mode, opts ...Option) (*Analyzer, error) {
	if !validMode(mode) {
		return nil, fault.New(fmt.Sprintf("unknown analyzer mode %q", mode))
	}
	a := &Analyzer{log: slog.Default(), mode: mode}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Analyzer) Mode() Mode { return a.mode }

// SetMode switches modes and discards any voice calibration in progress.
func (a *Analyzer) SetMode(mode Mode) error {
	if !validMode(mode) {
		return fault.New(fmt.Sprintf("unknown analyzer mode %q", mode))
	}
	if mode != a.mode {
		a.resetCalibration()
	}
	a.mode = mode
	return nil
}

func (a *Analyzer) resetCalibration() {
	a.calibrating = false
	a.calibrated = false
	a.minMIDI = 0
	a.maxMIDI = 0
	a.stable = 0
}

// StartCalibration begins tracking the vocal range. Any previous range is
// discarded.
func (a *Analyzer) StartCalibration() {
	a.resetCalibration()
	a.calibrating = true
}

// Calibration exposes the tracked range so the host can persist it.
func (a *Analyzer) Calibration() (minMIDI, maxMIDI int, done bool) {
	return a.minMIDI, a.maxMIDI, a.calibrated
}

// SetCalibration restores a host-persisted range and skips the calibration
// phase. Inverted or empty ranges are rejected.
func (a *Analyzer) SetCalibration(minMIDI, maxMIDI int) error {
	if minMIDI <= 0 || maxMIDI <= minMIDI {
		return fault.New("calibration range must be a positive span",
			fmsg.WithDesc("bad range", "The calibrated vocal range is invalid."))
	}
	a.resetCalibration()
	a.minMIDI = minMIDI
	a.maxMIDI = maxMIDI
	a.calibrated = true
	return nil
}

// Process runs one payload through the active mode.
func (a *Analyzer) Process(peaks []theory.Peak) Result {
	notes := theory.DetectNotes(peaks)
	res := Result{Notes: notes}

	switch a.mode {
	case ModeSinging:
		res.Key = theory.AnalyzeMusicalKey(notes)
	case ModeGuitar:
		if p := strongestPeak(peaks); p != nil {
			res.String = theory.AnalyzeGuitarString(p.Frequency)
		}
	case ModeVoiceTraining:
		res.Voice = a.processVoice(notes)
	}
	return res
}

// strongestPeak picks the loudest usable peak, preferring marked
// fundamentals over harmonics at equal magnitude.
func strongestPeak(peaks []theory.Peak) *theory.Peak {
	var best *theory.Peak
	for i := range peaks {
		p := &peaks[i]
		if p.Magnitude < 20 || p.Frequency < 15 || p.Frequency > 8000 {
			continue
		}
		if best == nil || p.Magnitude > best.Magnitude ||
			(p.Magnitude == best.Magnitude && p.IsFundamental && !best.IsFundamental) {
			best = p
		}
	}
	return best
}

func (a *Analyzer) processVoice(notes []theory.Note) *VoiceStatus {
	st := &VoiceStatus{
		Calibrating: a.calibrating,
		Calibrated:  a.calibrated,
		MinMIDI:     a.minMIDI,
		MaxMIDI:     a.maxMIDI,
	}
	if len(notes) == 0 {
		return st
	}
	pitch := notes[0]
	st.Note = &pitch

	if a.calibrating {
		changed := false
		if a.minMIDI == 0 || pitch.MIDI < a.minMIDI {
			a.minMIDI = pitch.MIDI
			changed = true
		}
		if pitch.MIDI > a.maxMIDI {
			a.maxMIDI = pitch.MIDI
			changed = true
		}
		if changed {
			a.stable = 0
		} else {
			a.stable++
		}
		if a.stable >= calibrationStability && a.maxMIDI > a.minMIDI {
			a.calibrating = false
			a.calibrated = true
			a.log.Debug("vocal range calibrated", "min", a.minMIDI, "max", a.maxMIDI)
		}
		st.Calibrating = a.calibrating
		st.Calibrated = a.calibrated
		st.MinMIDI = a.minMIDI
		st.MaxMIDI = a.maxMIDI
		return st
	}

	if a.calibrated {
		st.Register = a.classify(pitch.MIDI)
	}
	return st
}

// classify maps a pitch onto the calibrated range: the lower bands are
// fractions of the span, and falsetto runs from 85% up to an octave above
// the calibrated top.
func (a *Analyzer) classify(midi int) Register {
	span := float64(a.maxMIDI - a.minMIDI)
	if span <= 0 {
		return ""
	}
	frac := float64(midi-a.minMIDI) / span
	switch {
	case frac < 0:
		return ""
	case frac < 0.35:
		return RegisterChest
	case frac < 0.65:
		return RegisterMixed
	case frac < 0.85:
		return RegisterHead
	case midi <= a.maxMIDI+12:
		return RegisterFalsetto
	}
	return ""
}
