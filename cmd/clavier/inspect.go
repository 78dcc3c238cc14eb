package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mwhitlock/clavier-go/internal/score"
	"github.com/mwhitlock/clavier-go/internal/smfscore"
	"github.com/mwhitlock/clavier-go/internal/theory"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <score.mid>",
	Short: "Print a summary of a MIDI file",
	Long: `Prints the score overview: title, note and measure counts, duration,
tempo map and the chords detected among simultaneous notes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func runInspect(path string) error {
	data, err := smfscore.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Title:     %s\n", data.Title)
	if data.Composer != "" {
		fmt.Printf("Composer:  %s\n", data.Composer)
	}
	fmt.Printf("Notes:     %d\n", len(data.Notes))
	fmt.Printf("Measures:  %d\n", len(data.Measures))
	fmt.Printf("Duration:  %.2fs\n", data.MaxNoteEnd())

	fmt.Println("Tempo map:")
	for _, tc := range data.TempoChanges {
		fmt.Printf("  %8.2fs  %.0f BPM\n", tc.Position, tc.Tempo)
	}
	for _, ts := range data.TimeSignatures {
		fmt.Printf("  %8.2fs  %d/%d\n", ts.Position, ts.Numerator, ts.Denominator)
	}

	fmt.Println("Chords:")
	for _, ch := range detectChords(data.Notes) {
		fmt.Printf("  %8.2fs  %-8s (%.0f%%)\n", ch.at, ch.chord.Name, ch.chord.Confidence*100)
	}
	return nil
}

type timedChord struct {
	at    float64
	chord *theory.Chord
}

// chordBucket groups notes whose starts fall within the same 50 ms window.
const chordBucket = 0.050

func detectChords(notes []score.Note) []timedChord {
	sorted := make([]score.Note, len(notes))
	copy(sorted, notes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []timedChord
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j].Start-sorted[i].Start <= chordBucket {
			j++
		}
		if j-i >= 2 {
			group := make([]theory.Note, 0, j-i)
			for _, n := range sorted[i:j] {
				name, octave := theory.MIDINoteToName(n.NoteNumber)
				group = append(group, theory.Note{
					Name: name, Octave: octave, MIDI: n.NoteNumber,
					ExactFrequency: theory.MIDIToFrequency(n.NoteNumber),
					Confidence:     1,
				})
			}
			if ch := theory.DetectChord(group); ch != nil {
				out = append(out, timedChord{at: sorted[i].Start, chord: ch})
			}
		}
		i = j
	}
	return out
}
