package demux

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Sample is one sample sheet row: a sample identity and the barcode(s)
// that route reads to it.
type Sample struct {
	ID      string
	Project string
	Lane    int
	Index   string
	Index2  string
}

// BarcodeTable holds the samples configured for one lane.  It is built
// once before any tile work and shared read-only across workers.
type BarcodeTable struct {
	Lane    int
	Samples []Sample
	// Dual reports whether the lane uses dual indexes.  Either every
	// sample in the lane carries an Index2 or none does.
	Dual bool
	// index1 and index2 are the distinct barcode sequences per segment,
	// in first-seen sample sheet order.
	index1 []string
	index2 []string
}

// LoadSampleSheet reads a sample sheet CSV.  Rows before the [Data]
// section marker are ignored (run parameters for other consumers); the
// first row after it is the column header.  Required columns are SampleID
// and Index; Index2, Lane and Project are optional.
func LoadSampleSheet(ctx context.Context, path string) ([]Sample, error) {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	samples, err := ParseSampleSheet(bytes.NewReader(data))
	return samples, errors.WithMessage(err, path)
}

// ParseSampleSheet parses sample sheet CSV content.
func ParseSampleSheet(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, configErrorf("reading sample sheet: %v", err)
	}
	// Skip everything before the [Data] section, if present.
	start := 0
	for i, row := range rows {
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "[Data]") {
			start = i + 1
			break
		}
	}
	rows = rows[start:]
	if len(rows) < 2 {
		return nil, configErrorf("no samples found in sample sheet")
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idCol, ok := lookupCol(cols, "sampleid", "sample_id", "sample_name")
	if !ok {
		return nil, configErrorf("sample sheet has no SampleID column")
	}
	idxCol, ok := lookupCol(cols, "index")
	if !ok {
		return nil, configErrorf("sample sheet has no Index column")
	}
	idx2Col, hasIdx2 := lookupCol(cols, "index2")
	laneCol, hasLane := lookupCol(cols, "lane")
	projCol, hasProj := lookupCol(cols, "sample_project", "project")

	var samples []Sample
	for _, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		get := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		s := Sample{
			ID:    get(idCol),
			Index: strings.ToUpper(get(idxCol)),
		}
		if s.ID == "" {
			return nil, configErrorf("sample sheet row with empty SampleID")
		}
		if s.Index == "" {
			return nil, configErrorf("sample %s has no index", s.ID)
		}
		if hasIdx2 {
			s.Index2 = strings.ToUpper(get(idx2Col))
		}
		if hasProj {
			s.Project = get(projCol)
		}
		if hasLane {
			lane, err := strconv.Atoi(get(laneCol))
			if err != nil {
				return nil, configErrorf("sample %s: bad lane %q", s.ID, get(laneCol))
			}
			s.Lane = lane
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, configErrorf("no samples found in sample sheet")
	}
	return samples, nil
}

// WriteSampleSheet writes samples as a [Data]-section CSV that
// ParseSampleSheet accepts.  Index2 and Lane columns are emitted only
// when some sample uses them.
func WriteSampleSheet(w io.Writer, samples []Sample) error {
	dual, lanes := false, false
	for _, s := range samples {
		dual = dual || s.Index2 != ""
		lanes = lanes || s.Lane != 0
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"[Data]"}); err != nil {
		return err
	}
	header := []string{"Sample_ID", "Sample_Project", "Index"}
	if dual {
		header = append(header, "Index2")
	}
	if lanes {
		header = append(header, "Lane")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{s.ID, s.Project, s.Index}
		if dual {
			row = append(row, s.Index2)
		}
		if lanes {
			row = append(row, strconv.Itoa(s.Lane))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func lookupCol(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

// BuildTables groups samples by lane and validates each lane against the
// read structure: barcode lengths must equal their index segment lengths,
// dual indexing must be all-or-nothing per lane, and no two samples in a
// lane may share the same (Index, Index2) pair.  Rows with lane 0 apply
// to every lane and are addressed through lane 0.
func BuildTables(samples []Sample, rs *ReadStructure) (map[int]*BarcodeTable, error) {
	idxSegs := rs.IndexSegments()
	if len(idxSegs) == 0 {
		return nil, configErrorf("read structure %s has no index read but a sample sheet was given", rs)
	}
	tables := map[int]*BarcodeTable{}
	for _, s := range samples {
		t := tables[s.Lane]
		if t == nil {
			t = &BarcodeTable{Lane: s.Lane, Dual: s.Index2 != ""}
			tables[s.Lane] = t
		}
		if (s.Index2 != "") != t.Dual {
			return nil, configErrorf("lane %d mixes single and dual indexed samples (sample %s)", s.Lane, s.ID)
		}
		if len(s.Index) != idxSegs[0].Cycles {
			return nil, configErrorf("sample %s index %s has length %d, index read I1 has %d cycles",
				s.ID, s.Index, len(s.Index), idxSegs[0].Cycles)
		}
		if t.Dual {
			if len(idxSegs) < 2 {
				return nil, configErrorf("sample %s has a second index but the read structure %s has one index read", s.ID, rs)
			}
			if len(s.Index2) != idxSegs[1].Cycles {
				return nil, configErrorf("sample %s index2 %s has length %d, index read I2 has %d cycles",
					s.ID, s.Index2, len(s.Index2), idxSegs[1].Cycles)
			}
		}
		for _, prev := range t.Samples {
			if prev.Index == s.Index && prev.Index2 == s.Index2 {
				return nil, configErrorf("samples %s and %s in lane %d share barcode %s",
					prev.ID, s.ID, s.Lane, barcodeString(s.Index, s.Index2))
			}
		}
		t.Samples = append(t.Samples, s)
	}
	for _, t := range tables {
		t.index1 = distinct(t.Samples, func(s Sample) string { return s.Index })
		if t.Dual {
			t.index2 = distinct(t.Samples, func(s Sample) string { return s.Index2 })
		}
	}
	return tables, nil
}

// Table returns the barcode table for lane, falling back to the catch-all
// lane 0 table when the sheet does not break samples out by lane.
func Table(tables map[int]*BarcodeTable, lane int) *BarcodeTable {
	if t := tables[lane]; t != nil {
		return t
	}
	return tables[0]
}

func distinct(samples []Sample, key func(Sample) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range samples {
		k := key(s)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func barcodeString(index, index2 string) string {
	if index2 == "" {
		return index
	}
	return index + "+" + index2
}
