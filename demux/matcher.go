package demux

// Matcher assigns an assembled index read to a sample within a bounded
// Hamming distance budget.  A Matcher is built per lane and is safe for
// concurrent use: it holds only immutable state.
type Matcher struct {
	table *BarcodeTable
	max   int
	// lookup maps the resolved barcode pair back to the sample's position
	// in table.Samples.
	lookup map[string]int
}

// NewMatcher builds a matcher for table with a per-segment mismatch
// budget of maxMismatches.
func NewMatcher(table *BarcodeTable, maxMismatches int) *Matcher {
	m := &Matcher{
		table:  table,
		max:    maxMismatches,
		lookup: make(map[string]int, len(table.Samples)),
	}
	for i, s := range table.Samples {
		m.lookup[barcodeString(s.Index, s.Index2)] = i
	}
	return m
}

// MatchResult distinguishes why a cluster was, or was not, assigned.
type MatchResult uint8

const (
	// Assigned: exactly one barcode within budget.
	Assigned MatchResult = iota
	// Unmatched: no barcode within budget.
	Unmatched
	// Ambiguous: two or more barcodes tied at the minimum distance.
	// Routed to unknown rather than assigned arbitrarily.
	Ambiguous
)

// Match resolves the observed index segment(s) to a sample.  Each segment
// is matched independently against that segment's distinct barcode
// sequences; a sample is assigned only when every segment resolves
// uniquely and the resolved pair is one sample's configured barcodes.
// index2 must be nil for single-indexed lanes.
func (m *Matcher) Match(index, index2 []byte) (sample int, res MatchResult) {
	b1, r1 := resolveSegment(index, m.table.index1, m.max)
	if r1 != Assigned {
		return -1, r1
	}
	var b2 string
	if m.table.Dual {
		var r2 MatchResult
		b2, r2 = resolveSegment(index2, m.table.index2, m.max)
		if r2 != Assigned {
			return -1, r2
		}
	}
	// The resolved sequences may belong to different samples' pairs when
	// indexes are reused across samples; that is unresolvable.
	i, ok := m.lookup[barcodeString(b1, b2)]
	if !ok {
		return -1, Unmatched
	}
	return i, Assigned
}

// resolveSegment finds the unique closest candidate under Hamming
// distance, subject to the mismatch budget.
func resolveSegment(observed []byte, candidates []string, max int) (string, MatchResult) {
	best := ""
	bestDist := -1
	ties := 0
	for _, c := range candidates {
		d := hammingWithN(observed, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist, ties = c, d, 1
		} else if d == bestDist {
			ties++
		}
	}
	switch {
	case bestDist < 0 || bestDist > max:
		return "", Unmatched
	case ties > 1:
		return "", Ambiguous
	}
	return best, Assigned
}

// hammingWithN is the Hamming distance between an observed index sequence
// and a configured barcode.  A no-call ('N') in the observed sequence
// counts as a mismatch against every candidate.  Lengths are equal by
// construction: the table validated barcode lengths against the index
// segment, and the observed slice is cut from that segment's cycles.
func hammingWithN(observed []byte, barcode string) int {
	d := 0
	for i := 0; i < len(observed); i++ {
		if observed[i] == 'N' || observed[i] != barcode[i] {
			d++
		}
	}
	return d
}
