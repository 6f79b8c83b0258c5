package demux

import (
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
)

// Stats summarizes a demultiplexing run.  Each tile produces its own
// Stats; the drain loop folds them together with Merge, so no counter is
// shared between workers.
type Stats struct {
	// Tiles is the number of tiles processed.
	Tiles int
	// Clusters is the total cluster count across tiles.
	Clusters uint64
	// Assigned clusters matched exactly one sample within budget.
	Assigned uint64
	// Unknown clusters passed the filter but matched no sample.  Includes
	// the Ambiguous clusters.
	Unknown uint64
	// Ambiguous is the subset of Unknown where two or more barcodes tied
	// at the minimum distance.
	Ambiguous uint64
	// Filtered clusters failed the chastity filter and were dropped
	// before assembly.
	Filtered uint64
}

// Merge adds the field values of the two Stats objects and returns the
// combined Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Tiles += o.Tiles
	s.Clusters += o.Clusters
	s.Assigned += o.Assigned
	s.Unknown += o.Unknown
	s.Ambiguous += o.Ambiguous
	s.Filtered += o.Filtered
	return s
}

// BarcodeStats tallies observed index sequences.  Tile workers accumulate
// into private instances; Merge folds them run-wide after the tiles
// complete, keeping the hot path lock-free.
type BarcodeStats struct {
	counts map[string]uint64
}

// NewBarcodeStats returns an empty tally.
func NewBarcodeStats() *BarcodeStats {
	return &BarcodeStats{counts: map[string]uint64{}}
}

// Add records one observation of seq ('+'-joined for dual indexes).
func (s *BarcodeStats) Add(seq string) { s.counts[seq]++ }

// AddBytes records one observation without copying seq when it has been
// seen before.  Incrementing through the unsafe view is sound because
// assigning to an existing map key does not retain the key value.
func (s *BarcodeStats) AddBytes(seq []byte) {
	if _, ok := s.counts[gunsafe.BytesToString(seq)]; ok {
		s.counts[gunsafe.BytesToString(seq)]++
		return
	}
	s.counts[string(seq)] = 1
}

// Merge sums o into s.
func (s *BarcodeStats) Merge(o *BarcodeStats) {
	for seq, n := range o.counts {
		s.counts[seq] += n
	}
}

// Distinct returns the number of distinct observed sequences.
func (s *BarcodeStats) Distinct() int { return len(s.counts) }

// Count returns the tally for seq.
func (s *BarcodeStats) Count(seq string) uint64 { return s.counts[seq] }

// BarcodeCount is one row of a frequency report.
type BarcodeCount struct {
	Seq   string
	Count uint64
}

// sorted returns all tallies, most frequent first, ties broken by
// sequence so reports are deterministic.
func (s *BarcodeStats) sorted() []BarcodeCount {
	out := make([]BarcodeCount, 0, len(s.counts))
	for seq, n := range s.counts {
		out = append(out, BarcodeCount{seq, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// TopN returns the n most frequent observed sequences.
func (s *BarcodeStats) TopN(n int) []BarcodeCount {
	all := s.sorted()
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Noise returns the sequences observed fewer than min times, least
// frequent last.
func (s *BarcodeStats) Noise(min uint64) []BarcodeCount {
	var out []BarcodeCount
	for _, bc := range s.sorted() {
		if bc.Count < min {
			out = append(out, bc)
		}
	}
	return out
}

// Unexpected returns the observed sequences whose edit distance from
// every configured barcode exceeds maxDist: likely contaminants or index
// hopping rather than sequencing errors of a known barcode.
func (s *BarcodeStats) Unexpected(tables map[int]*BarcodeTable, maxDist int) []BarcodeCount {
	var known []string
	for _, t := range tables {
		for _, smp := range t.Samples {
			known = append(known, barcodeString(smp.Index, smp.Index2))
		}
	}
	var out []BarcodeCount
	for _, bc := range s.sorted() {
		near := false
		for _, k := range known {
			if Levenshtein(bc.Seq, k) <= maxDist {
				near = true
				break
			}
		}
		if !near {
			out = append(out, bc)
		}
	}
	return out
}

// SampleSupport reports how well one configured sample's barcode is
// supported by the observed index tally.
type SampleSupport struct {
	Sample Sample
	// Count is the number of clusters whose index read matched the barcode
	// exactly.
	Count uint64
	// Nearest is the smallest edit distance from the barcode to any
	// observed sequence, or -1 when nothing was observed at all.
	Nearest int
}

// EvaluateSupport scores every sample against the observed tally.  A
// low Count with a large Nearest usually means the sample sheet entry is
// wrong, not that the sequencer erred.
func EvaluateSupport(samples []Sample, s *BarcodeStats) []SampleSupport {
	out := make([]SampleSupport, 0, len(samples))
	for _, smp := range samples {
		barcode := barcodeString(smp.Index, smp.Index2)
		sup := SampleSupport{Sample: smp, Count: s.Count(barcode), Nearest: -1}
		for seq := range s.counts {
			d := Levenshtein(seq, barcode)
			if sup.Nearest < 0 || d < sup.Nearest {
				sup.Nearest = d
			}
		}
		out = append(out, sup)
	}
	return out
}

// WriteTSV writes rows as a two-column TSV report with a header line.
func WriteTSV(w io.Writer, rows []BarcodeCount) error {
	out := tsv.NewWriter(w)
	out.WriteString("INDEX\tCOUNT")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, bc := range rows {
		out.WriteString(bc.Seq)
		out.WriteString(strconv.FormatUint(bc.Count, 10))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
