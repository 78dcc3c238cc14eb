package theory

import "sort"

// chordTemplate is an interval set above the root, most specific variants
// listed before their subsets so score ties resolve to the earlier entry.
type chordTemplate struct {
	ctype     string
	intervals []int
}

var chordTemplates = []chordTemplate{
	{"maj", []int{0, 4, 7}},
	{"min", []int{0, 3, 7}},
	{"dim", []int{0, 3, 6}},
	{"aug", []int{0, 4, 8}},
	{"7", []int{0, 4, 7, 10}},
	{"maj7", []int{0, 4, 7, 11}},
	{"min7", []int{0, 3, 7, 10}},
	{"dim7", []int{0, 3, 6, 9}},
	{"min7b5", []int{0, 3, 6, 10}},
	{"sus2", []int{0, 2, 7}},
	{"sus4", []int{0, 5, 7}},
	{"add9", []int{0, 2, 4, 7}},
	{"6", []int{0, 4, 7, 9}},
	{"min6", []int{0, 3, 7, 9}},
	{"9", []int{0, 2, 4, 7, 10}},
	{"maj9", []int{0, 2, 4, 7, 11}},
}

// Chord is a named simultaneous note group.
type Chord struct {
	Name       string  `json:"name"` // root + type, e.g. "Cmaj"
	Root       string  `json:"root"`
	Type       string  `json:"type"`
	Notes      []Note  `json:"notes"`
	Confidence float64 `json:"confidence"`
}

const minChordScore = 15

// DetectChord matches a group of at least two notes against the template
// table. Scoring per template: 10 per matched interval, -5 per missing
// pattern interval, -2 per extra note interval; matches below 15 are
// rejected. Ties go to fewer missing intervals, then to table order.
func DetectChord(notes []Note) *Chord {
	if len(notes) < 2 {
		return nil
	}
	sorted := make([]Note, len(notes))
	copy(sorted, notes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MIDI < sorted[j].MIDI })

	root := sorted[0]
	present := make(map[int]bool)
	for _, n := range sorted {
		iv := (n.MIDI - root.MIDI) % 12
		if iv < 0 {
			iv += 12
		}
		present[iv] = true
	}

	bestScore, bestMissing, bestIdx := 0, 0, -1
	for idx, tpl := range chordTemplates {
		match, missing := 0, 0
		inPattern := make(map[int]bool, len(tpl.intervals))
		for _, iv := range tpl.intervals {
			inPattern[iv] = true
			if present[iv] {
				match++
			} else {
				missing++
			}
		}
		extra := 0
		for iv := range present {
			if !inPattern[iv] {
				extra++
			}
		}
		score := 10*match - 5*missing - 2*extra
		if score < minChordScore {
			continue
		}
		better := score > bestScore || (score == bestScore && missing < bestMissing)
		if bestIdx < 0 || better {
			bestScore, bestMissing, bestIdx = score, missing, idx
		}
	}
	if bestIdx < 0 {
		return nil
	}
	tpl := chordTemplates[bestIdx]
	return &Chord{
		Name:       root.Name + tpl.ctype,
		Root:       root.Name,
		Type:       tpl.ctype,
		Notes:      sorted,
		Confidence: float64(bestScore) / float64(10*len(tpl.intervals)),
	}
}
