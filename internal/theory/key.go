package theory

import "math"

// keyProfile is one of the 17 pre-tabulated keys the analyzer scores
// against. tonic is the pitch class of the key's root.
type keyProfile struct {
	name  string
	tonic int
	minor bool
}

var keyProfiles = []keyProfile{
	{"C major", 0, false},
	{"G major", 7, false},
	{"D major", 2, false},
	{"A major", 9, false},
	{"E major", 4, false},
	{"F major", 5, false},
	{"Bb major", 10, false},
	{"Eb major", 3, false},
	{"Ab major", 8, false},
	{"A minor", 9, true},
	{"E minor", 4, true},
	{"B minor", 11, true},
	{"D minor", 2, true},
	{"G minor", 7, true},
	{"C minor", 0, true},
	{"F# minor", 6, true},
	{"C# minor", 1, true},
}

var (
	majorScale = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorScale = [7]int{0, 2, 3, 5, 7, 8, 10}

	// Per-degree weights: tonic and the third/fifth dominate.
	majorTonicWeights = [7]float64{5, 1, 2, 1, 3, 1, 1}
	minorTonicWeights = [7]float64{5, 1, 3, 1, 3, 1, 1}
)

// Key is the result of AnalyzeMusicalKey.
type Key struct {
	Name       string  `json:"name"`
	Minor      bool    `json:"minor"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeMusicalKey scores a magnitude-weighted pitch-class histogram of the
// given notes against 17 tabulated keys. In-key pitch classes contribute
// their weight scaled by the degree's tonic weight; out-of-key classes
// subtract half their weight. Confidence grows with the margin over the
// runner-up, capped at 0.95.
func AnalyzeMusicalKey(notes []Note) *Key {
	if len(notes) == 0 {
		return nil
	}
	var hist [12]float64
	for _, n := range notes {
		w := n.Magnitude
		if w <= 0 {
			w = 1
		}
		hist[((n.MIDI%12)+12)%12] += w
	}

	bestIdx := -1
	best, second := math.Inf(-1), math.Inf(-1)
	for idx, kp := range keyProfiles {
		scale, weights := majorScale, majorTonicWeights
		if kp.minor {
			scale, weights = minorScale, minorTonicWeights
		}
		degreeOf := make(map[int]int, 7)
		for degree, iv := range scale {
			degreeOf[(kp.tonic+iv)%12] = degree
		}
		score := 0.0
		for pc, w := range hist {
			if w == 0 {
				continue
			}
			if degree, ok := degreeOf[pc]; ok {
				score += w * weights[degree]
			} else {
				score -= 0.5 * w
			}
		}
		if score > best {
			second = best
			best = score
			bestIdx = idx
		} else if score > second {
			second = score
		}
	}
	if bestIdx < 0 || best <= 0 {
		return nil
	}
	confidence := 0.5
	if !math.IsInf(second, -1) && second > 0 {
		confidence = 0.5 + 0.5*(best-second)/best
	} else if math.IsInf(second, -1) || second <= 0 {
		confidence = 0.95
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return &Key{
		Name:       keyProfiles[bestIdx].name,
		Minor:      keyProfiles[bestIdx].minor,
		Confidence: confidence,
	}
}
