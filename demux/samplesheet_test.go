package demux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const sheetCSV = `[Header]
IEMFileVersion,4
Experiment Name,demo

[Data]
Sample_ID,Sample_Project,Index,Index2,Lane
sampleA,proj1,ACGT,TTTT,1
sampleB,proj1,TTGG,AAAA,1
sampleC,proj2,ACGT,TTTT,2
`

func TestParseSampleSheet(t *testing.T) {
	samples, err := ParseSampleSheet(strings.NewReader(sheetCSV))
	assert.NoError(t, err)
	expect.EQ(t, len(samples), 3)
	expect.EQ(t, samples[0], Sample{ID: "sampleA", Project: "proj1", Lane: 1, Index: "ACGT", Index2: "TTTT"})
	expect.EQ(t, samples[2].Lane, 2)
}

func TestParseSampleSheetBareData(t *testing.T) {
	// No section headers, lowercase index, no lane column.
	samples, err := ParseSampleSheet(strings.NewReader("Sample_ID,Index\ns1,acgt\n"))
	assert.NoError(t, err)
	expect.EQ(t, len(samples), 1)
	expect.EQ(t, samples[0].Index, "ACGT")
	expect.EQ(t, samples[0].Lane, 0)
}

func TestParseSampleSheetErrors(t *testing.T) {
	for _, content := range []string{
		"",
		"[Data]\nSample_ID,Index\n",
		"Sample_ID,NoIndexColumn\ns1,x\n",
		"Index,Lane\nACGT,1\n",
		"Sample_ID,Index\n,ACGT\n",
		"Sample_ID,Index,Lane\ns1,ACGT,one\n",
	} {
		_, err := ParseSampleSheet(strings.NewReader(content))
		expect.NotNil(t, err, "content: %q", content)
		expect.EQ(t, ErrorKind(err), KindConfig, "content: %q", content)
	}
}

func dualRS(t *testing.T) *ReadStructure {
	rs, err := NewReadStructure([]ReadInfo{
		{Number: 1, NumCycles: 4},
		{Number: 2, NumCycles: 4, Indexed: true},
		{Number: 3, NumCycles: 4, Indexed: true},
	})
	assert.NoError(t, err)
	return rs
}

func TestBuildTables(t *testing.T) {
	samples, err := ParseSampleSheet(strings.NewReader(sheetCSV))
	assert.NoError(t, err)
	tables, err := BuildTables(samples, dualRS(t))
	assert.NoError(t, err)
	expect.EQ(t, len(tables), 2)

	lane1 := Table(tables, 1)
	assert.NotNil(t, lane1)
	expect.True(t, lane1.Dual)
	expect.EQ(t, len(lane1.Samples), 2)
	expect.EQ(t, lane1.index1, []string{"ACGT", "TTGG"})
	expect.EQ(t, lane1.index2, []string{"TTTT", "AAAA"})

	// Lane 3 is not configured and there is no catch-all table.
	expect.Nil(t, Table(tables, 3))
}

func TestBuildTablesLaneFallback(t *testing.T) {
	samples := []Sample{{ID: "s1", Index: "ACGT", Index2: "TTTT"}}
	tables, err := BuildTables(samples, dualRS(t))
	assert.NoError(t, err)
	// Sheets without a Lane column configure every lane via lane 0.
	expect.EQ(t, Table(tables, 1), tables[0])
	expect.EQ(t, Table(tables, 8), tables[0])
}

func TestBuildTablesErrors(t *testing.T) {
	rs := dualRS(t)
	for _, tc := range []struct {
		name    string
		samples []Sample
	}{
		{"length mismatch", []Sample{{ID: "s1", Index: "ACGTACGT", Index2: "TTTT"}}},
		{"length mismatch index2", []Sample{{ID: "s1", Index: "ACGT", Index2: "TT"}}},
		{"mixed dual", []Sample{
			{ID: "s1", Index: "ACGT", Index2: "TTTT"},
			{ID: "s2", Index: "TTGG"},
		}},
		{"duplicate pair", []Sample{
			{ID: "s1", Index: "ACGT", Index2: "TTTT"},
			{ID: "s2", Index: "ACGT", Index2: "TTTT"},
		}},
	} {
		_, err := BuildTables(tc.samples, rs)
		expect.NotNil(t, err, tc.name)
		expect.EQ(t, ErrorKind(err), KindConfig, tc.name)
	}

	// Shared I1 with distinct I2 is legal.
	_, err := BuildTables([]Sample{
		{ID: "s1", Index: "ACGT", Index2: "TTTT"},
		{ID: "s2", Index: "ACGT", Index2: "AAAA"},
	}, rs)
	expect.NoError(t, err)
}

func TestWriteSampleSheetRoundTrip(t *testing.T) {
	in := []Sample{
		{ID: "s1", Project: "p", Lane: 1, Index: "ACGT", Index2: "TTTT"},
		{ID: "s2", Project: "p", Lane: 2, Index: "TTGG", Index2: "AAAA"},
	}
	var buf bytes.Buffer
	assert.NoError(t, WriteSampleSheet(&buf, in))
	out, err := ParseSampleSheet(&buf)
	assert.NoError(t, err)
	expect.EQ(t, out, in)
}
