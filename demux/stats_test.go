package demux

import (
	"bytes"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestStatsMerge(t *testing.T) {
	a := Stats{Tiles: 1, Clusters: 100, Assigned: 80, Unknown: 15, Ambiguous: 3, Filtered: 5}
	b := Stats{Tiles: 2, Clusters: 50, Assigned: 40, Unknown: 8, Ambiguous: 1, Filtered: 2}
	got := a.Merge(b)
	expect.EQ(t, got, Stats{Tiles: 3, Clusters: 150, Assigned: 120, Unknown: 23, Ambiguous: 4, Filtered: 7})
	// Merge does not mutate its receiver.
	expect.EQ(t, a.Tiles, 1)
}

func TestBarcodeStats(t *testing.T) {
	s := NewBarcodeStats()
	s.AddBytes([]byte("ACGT"))
	s.AddBytes([]byte("ACGT"))
	s.Add("TTGG")
	expect.EQ(t, s.Distinct(), 2)
	expect.EQ(t, s.Count("ACGT"), uint64(2))
	expect.EQ(t, s.Count("TTGG"), uint64(1))
	expect.EQ(t, s.Count("GGGG"), uint64(0))

	o := NewBarcodeStats()
	o.Add("ACGT")
	o.Add("GGGG")
	s.Merge(o)
	expect.EQ(t, s.Count("ACGT"), uint64(3))
	expect.EQ(t, s.Distinct(), 3)
}

func TestBarcodeStatsAddBytesCopies(t *testing.T) {
	s := NewBarcodeStats()
	buf := []byte("ACGT")
	s.AddBytes(buf)
	// The tally must not alias the caller's scratch buffer.
	copy(buf, "TTTT")
	expect.EQ(t, s.Count("ACGT"), uint64(1))
	expect.EQ(t, s.Count("TTTT"), uint64(0))
}

func TestBarcodeStatsTopN(t *testing.T) {
	s := NewBarcodeStats()
	for i := 0; i < 5; i++ {
		s.Add("AAAA")
	}
	for i := 0; i < 3; i++ {
		s.Add("CCCC")
	}
	s.Add("GGGG")
	s.Add("TTTT")

	top := s.TopN(2)
	expect.EQ(t, top, []BarcodeCount{{"AAAA", 5}, {"CCCC", 3}})
	// Ties break by sequence so output is deterministic.
	all := s.TopN(0)
	expect.EQ(t, all, []BarcodeCount{{"AAAA", 5}, {"CCCC", 3}, {"GGGG", 1}, {"TTTT", 1}})

	noise := s.Noise(3)
	expect.EQ(t, noise, []BarcodeCount{{"GGGG", 1}, {"TTTT", 1}})
}

func TestBarcodeStatsUnexpected(t *testing.T) {
	rs, err := NewReadStructure([]ReadInfo{
		{Number: 1, NumCycles: 4},
		{Number: 2, NumCycles: 4, Indexed: true},
	})
	expect.NoError(t, err)
	tables, err := BuildTables([]Sample{{ID: "s1", Index: "ACGT"}}, rs)
	expect.NoError(t, err)

	s := NewBarcodeStats()
	s.Add("ACGA") // one edit from ACGT
	s.Add("GGCC") // far from everything
	got := s.Unexpected(tables, 1)
	expect.EQ(t, got, []BarcodeCount{{"GGCC", 1}})
}

func TestEvaluateSupport(t *testing.T) {
	samples := []Sample{
		{ID: "good", Index: "ACGT"},
		{ID: "absent", Index: "GGCC"},
	}
	s := NewBarcodeStats()
	for i := 0; i < 10; i++ {
		s.Add("ACGT")
	}
	s.Add("ACGA")

	sup := EvaluateSupport(samples, s)
	expect.EQ(t, len(sup), 2)
	expect.EQ(t, sup[0].Count, uint64(10))
	expect.EQ(t, sup[0].Nearest, 0)
	expect.EQ(t, sup[1].Count, uint64(0))
	expect.EQ(t, sup[1].Nearest, 4)
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTSV(&buf, []BarcodeCount{{"ACGT", 10}, {"TTGG", 2}})
	expect.NoError(t, err)
	expect.EQ(t, buf.String(), "INDEX\tCOUNT\nACGT\t10\nTTGG\t2\n")
}
