package theory

import "math"

// Standard tuning reference frequencies.
type guitarString struct {
	name      string
	frequency float64
}

var guitarStrings = []guitarString{
	{"E2", 82.41},
	{"A2", 110.00},
	{"D3", 146.83},
	{"G3", 196.00},
	{"B3", 246.94},
	{"E4", 329.63},
}

const (
	guitarBandLow  = 75.0
	guitarBandHigh = 350.0
	inTuneCents    = 5.0
	maxStringCents = 100.0
)

// StringMatch describes how far a frequency sits from its nearest string.
type StringMatch struct {
	Name           string  `json:"name"`
	Frequency      float64 `json:"frequency"` // reference, not input
	CentsDeviation float64 `json:"centsDeviation"`
	InTune         bool    `json:"inTune"`
	TuneUp         bool    `json:"tuneUp"` // pitch is flat, tighten the string
}

// AnalyzeGuitarString matches f against standard tuning. Frequencies outside
// the 75-350 Hz playing band, or more than 100 cents from every string,
// return nil.
func AnalyzeGuitarString(f float64) *StringMatch {
	if f < guitarBandLow || f > guitarBandHigh {
		return nil
	}
	best := -1
	bestCents := 0.0
	for i, s := range guitarStrings {
		cents := Cents(f, s.frequency)
		if best < 0 || math.Abs(cents) < math.Abs(bestCents) {
			best = i
			bestCents = cents
		}
	}
	if best < 0 || math.Abs(bestCents) > maxStringCents {
		return nil
	}
	return &StringMatch{
		Name:           guitarStrings[best].name,
		Frequency:      guitarStrings[best].frequency,
		CentsDeviation: bestCents,
		InTune:         math.Abs(bestCents) <= inTuneCents,
		TuneUp:         bestCents < 0,
	}
}
