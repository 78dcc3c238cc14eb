// Package smfscore loads Standard MIDI Files into the score data model.
// Timing is resolved through the file's tempo map so all positions come out
// in seconds from the score origin.
package smfscore

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/mwhitlock/clavier-go/internal/score"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// spell returns step/alter/octave for a MIDI key, sharp-spelled.
func spell(key uint8) (step string, alter int, octave int) {
	pc := int(key) % 12
	name := noteNames[pc]
	step = string(name[0])
	if len(name) == 2 {
		alter = 1
	}
	octave = int(key)/12 - 1
	return step, alter, octave
}

// Load reads an SMF file and produces a validated score.
func Load(path string) (score.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return score.Data{}, fault.Wrap(err, fmsg.With("read score file"))
	}
	return Parse(raw, path)
}

// Parse converts SMF bytes to score data. The reader can panic on malformed
// chunks, so it runs under a recover.
func Parse(raw []byte, name string) (data score.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.New(fmt.Sprintf("malformed midi file %s: %v", name, r),
				fmsg.With("score rejected"), ftag.With(score.TagInvalidScore))
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(raw))
	if err != nil {
		return score.Data{}, fault.Wrap(err,
			fmsg.With("parse midi file"), ftag.With(score.TagInvalidScore))
	}

	data = convert(s)
	if data.Title == "" {
		data.Title = name
	}
	if err := (&data).Validate(); err != nil {
		return score.Data{}, err
	}
	return data, nil
}

type pendingOn struct {
	ticks int64
	start float64
	vel   uint8
}

func convert(s *smf.SMF) score.Data {
	var data score.Data

	// Which tracks carry notes decides the staff split: with exactly two
	// note tracks they map to staff 1/2 (right/left hand), otherwise the
	// staff stays unset and views fall back to the MIDI-60 midline.
	noteTracks := make([]int, 0, len(s.Tracks))
	for i, events := range s.Tracks {
		for _, ev := range events {
			var ch, key, vel uint8
			if ev.Message.GetNoteStart(&ch, &key, &vel) {
				noteTracks = append(noteTracks, i)
				break
			}
		}
	}
	staffOf := func(track int) int {
		if len(noteTracks) != 2 {
			return 0
		}
		if track == noteTracks[0] {
			return 1
		}
		if track == noteTracks[1] {
			return 2
		}
		return 0
	}

	noteIdx := 0
	for trackNo, events := range s.Tracks {
		var absTicks int64
		pending := make(map[uint8][]pendingOn)
		for _, ev := range events {
			absTicks += int64(ev.Delta)
			seconds := float64(s.TimeAt(absTicks)) / 1e6

			var ch, key, vel uint8
			var bpm float64
			var num, denom uint8
			var text string
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				pending[key] = append(pending[key], pendingOn{ticks: absTicks, start: seconds, vel: vel})
			case ev.Message.GetNoteEnd(&ch, &key):
				ons := pending[key]
				if len(ons) == 0 {
					continue
				}
				on := ons[0]
				pending[key] = ons[1:]
				step, alter, octave := spell(key)
				data.Notes = append(data.Notes, score.Note{
					ID:         fmt.Sprintf("n%d", noteIdx),
					Start:      on.start,
					Duration:   seconds - on.start,
					Step:       step,
					Alter:      alter,
					Octave:     octave,
					NoteNumber: int(key),
					Staff:      staffOf(trackNo),
					Voice:      int(ch) + 1,
					PartID:     fmt.Sprintf("P%d", trackNo),
				})
				noteIdx++
			case ev.Message.GetMetaTempo(&bpm):
				data.TempoChanges = append(data.TempoChanges, score.TempoChange{
					Position: seconds, Tempo: bpm,
				})
			case ev.Message.GetMetaMeter(&num, &denom):
				data.TimeSignatures = append(data.TimeSignatures, score.TimeSignature{
					Position: seconds, Numerator: int(num), Denominator: int(denom),
				})
			case ev.Message.GetMetaTrackName(&text):
				if data.Title == "" {
					data.Title = text
				}
			}
		}
	}

	sortNotes(data.Notes)
	data.TempoChanges = dedupeTempo(data.TempoChanges)
	data.TimeSignatures = dedupeTimeSig(data.TimeSignatures)
	if len(data.TempoChanges) == 0 {
		data.TempoChanges = []score.TempoChange{{Position: 0, Tempo: 120}}
	}
	if len(data.TimeSignatures) == 0 {
		data.TimeSignatures = []score.TimeSignature{{Position: 0, Numerator: 4, Denominator: 4}}
	}
	data.Measures = deriveMeasures(&data)
	return data
}

func sortNotes(notes []score.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].NoteNumber < notes[j].NoteNumber
	})
}

// dedupeTempo keeps the last entry per position and enforces order. Files
// commonly repeat the initial tempo across tracks.
func dedupeTempo(tcs []score.TempoChange) []score.TempoChange {
	sort.SliceStable(tcs, func(i, j int) bool { return tcs[i].Position < tcs[j].Position })
	out := tcs[:0]
	for _, tc := range tcs {
		if len(out) > 0 && tc.Position-out[len(out)-1].Position < 1e-6 {
			out[len(out)-1] = tc
			continue
		}
		out = append(out, tc)
	}
	return out
}

func dedupeTimeSig(sigs []score.TimeSignature) []score.TimeSignature {
	sort.SliceStable(sigs, func(i, j int) bool { return sigs[i].Position < sigs[j].Position })
	out := sigs[:0]
	for _, ts := range sigs {
		if len(out) > 0 && ts.Position-out[len(out)-1].Position < 1e-6 {
			out[len(out)-1] = ts
			continue
		}
		out = append(out, ts)
	}
	return out
}

// deriveMeasures walks the timeline in whole bars using the effective time
// signature and tempo at each bar start.
func deriveMeasures(data *score.Data) []score.Measure {
	end := data.MaxNoteEnd()
	if end <= 0 {
		return nil
	}
	sigAt := func(t float64) score.TimeSignature {
		sig := score.TimeSignature{Numerator: 4, Denominator: 4}
		for _, ts := range data.TimeSignatures {
			if ts.Position > t+1e-9 {
				break
			}
			sig = ts
		}
		return sig
	}
	tempoAt := func(t float64) float64 {
		bpm := 120.0
		for _, tc := range data.TempoChanges {
			if tc.Position > t+1e-9 {
				break
			}
			bpm = tc.Tempo
		}
		return bpm
	}

	var measures []score.Measure
	pos := 0.0
	lastNum, lastDenom := 0, 0
	for pos < end {
		sig := sigAt(pos)
		bpm := tempoAt(pos)
		dur := float64(sig.Numerator) * (60 / bpm) * (4 / float64(sig.Denominator))
		if dur <= 0 {
			break
		}
		measures = append(measures, score.Measure{
			Index:           len(measures),
			StartPosition:   pos,
			DurationSeconds: dur,
			HasTimeChange:   len(measures) > 0 && (sig.Numerator != lastNum || sig.Denominator != lastDenom),
		})
		lastNum, lastDenom = sig.Numerator, sig.Denominator
		pos += dur
	}
	return measures
}
