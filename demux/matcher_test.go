package demux

import (
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func singleTable(t *testing.T, barcodes map[string]string) *BarcodeTable {
	var samples []Sample
	for _, id := range []string{"A", "B", "C", "D"} {
		if idx, ok := barcodes[id]; ok {
			samples = append(samples, Sample{ID: id, Index: idx})
		}
	}
	rs, err := NewReadStructure([]ReadInfo{
		{Number: 1, NumCycles: 4},
		{Number: 2, NumCycles: len(samples[0].Index), Indexed: true},
	})
	assert.NoError(t, err)
	tables, err := BuildTables(samples, rs)
	assert.NoError(t, err)
	return Table(tables, 0)
}

func TestMatchExact(t *testing.T) {
	m := NewMatcher(singleTable(t, map[string]string{"A": "ACGT", "B": "TTGG"}), 0)

	si, res := m.Match([]byte("ACGT"), nil)
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "A")

	// One mismatch exceeds a zero budget.
	_, res = m.Match([]byte("ACGA"), nil)
	expect.EQ(t, res, Unmatched)
}

func TestMatchOneMismatch(t *testing.T) {
	m := NewMatcher(singleTable(t, map[string]string{"A": "ACGT", "B": "TTGG"}), 1)

	si, res := m.Match([]byte("ACGG"), nil)
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "A")

	_, res = m.Match([]byte("AAAA"), nil)
	expect.EQ(t, res, Unmatched)
}

func TestMatchAmbiguous(t *testing.T) {
	// "ACGA" is one mismatch from both barcodes.
	m := NewMatcher(singleTable(t, map[string]string{"A": "ACGT", "B": "ACGG"}), 1)
	_, res := m.Match([]byte("ACGA"), nil)
	expect.EQ(t, res, Ambiguous)

	// The exact sequence still resolves: distance 0 beats distance 1.
	si, res := m.Match([]byte("ACGG"), nil)
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "B")
}

func TestMatchNoCall(t *testing.T) {
	m := NewMatcher(singleTable(t, map[string]string{"A": "ACGT", "B": "TTGG"}), 1)

	// One N consumes the budget; it mismatches every barcode.
	si, res := m.Match([]byte("NCGT"), nil)
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "A")

	_, res = m.Match([]byte("NNGT"), nil)
	expect.EQ(t, res, Unmatched)

	// Even an N that happens to align with an N-free barcode position
	// never counts as a match.
	m0 := NewMatcher(singleTable(t, map[string]string{"A": "ACGT"}), 0)
	_, res = m0.Match([]byte("NCGT"), nil)
	expect.EQ(t, res, Unmatched)
}

func dualMatcher(t *testing.T, max int) *Matcher {
	rs := dualRS(t)
	tables, err := BuildTables([]Sample{
		{ID: "s1", Index: "ACGT", Index2: "TTTT"},
		{ID: "s2", Index: "ACGT", Index2: "AAAA"},
		{ID: "s3", Index: "TTGG", Index2: "TTTT"},
	}, rs)
	assert.NoError(t, err)
	return NewMatcher(Table(tables, 0), max)
}

func TestMatchDual(t *testing.T) {
	m := dualMatcher(t, 1)

	si, res := m.Match([]byte("ACGT"), []byte("TTTT"))
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "s1")

	// Each segment gets its own budget: one mismatch in each still
	// resolves.
	si, res = m.Match([]byte("ACGA"), []byte("TTTA"))
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "s1")

	// I1 shared by s1 and s2 is not ambiguous; I2 disambiguates.
	si, res = m.Match([]byte("ACGT"), []byte("AAAA"))
	expect.EQ(t, res, Assigned)
	expect.EQ(t, m.table.Samples[si].ID, "s2")

	// Segments resolve to a pair no sample configured.
	_, res = m.Match([]byte("TTGG"), []byte("AAAA"))
	expect.EQ(t, res, Unmatched)
}
