package demux

import (
	"fmt"
	"strings"
)

// SegmentRole classifies a read-structure segment.  Segments are a tagged
// list rather than a type hierarchy; consumers switch on the role.
type SegmentRole uint8

const (
	// Template segments carry the biological sequence and are emitted as
	// FASTQ reads.
	Template SegmentRole = iota
	// Index segments carry the sample barcode and are consumed by the
	// matcher.
	Index
)

func (r SegmentRole) String() string {
	if r == Index {
		return "I"
	}
	return "T"
}

// Segment is one logical read within the cycle stream.
type Segment struct {
	Role SegmentRole
	// Start is the 0-based first cycle of the segment; the segment spans
	// cycles [Start, Start+Cycles).
	Start  int
	Cycles int
	// Num is the 1-based ordinal of the segment among segments of the
	// same role: template reads R1, R2, ... and index reads I1, I2, ...
	Num int
}

// ReadStructure is the ordered segmentation of a run's total cycle count
// into logical reads.  It is immutable once built and shared read-only
// across all tiles.
type ReadStructure struct {
	segs      []Segment
	total     int
	templates int
	indexes   int
}

// NewReadStructure builds a ReadStructure from the reads declared in
// RunInfo.  Segment order follows declaration order.
func NewReadStructure(reads []ReadInfo) (*ReadStructure, error) {
	if len(reads) == 0 {
		return nil, configErrorf("read structure has no segments")
	}
	rs := &ReadStructure{}
	for _, r := range reads {
		if r.NumCycles <= 0 {
			return nil, configErrorf("read %d has non-positive cycle count %d", r.Number, r.NumCycles)
		}
		seg := Segment{Start: rs.total, Cycles: r.NumCycles}
		if r.Indexed {
			seg.Role = Index
			rs.indexes++
			seg.Num = rs.indexes
		} else {
			seg.Role = Template
			rs.templates++
			seg.Num = rs.templates
		}
		rs.segs = append(rs.segs, seg)
		rs.total += r.NumCycles
	}
	if rs.templates == 0 {
		return nil, configErrorf("read structure %s has no template read", rs)
	}
	return rs, nil
}

// Segments returns the ordered segment list.  Callers must not modify it.
func (rs *ReadStructure) Segments() []Segment { return rs.segs }

// TotalCycles returns the sum of all segment lengths.
func (rs *ReadStructure) TotalCycles() int { return rs.total }

// TemplateCount returns the number of template segments.
func (rs *ReadStructure) TemplateCount() int { return rs.templates }

// IndexCount returns the number of index segments.
func (rs *ReadStructure) IndexCount() int { return rs.indexes }

// IndexSegments returns the index segments in order (I1, I2).
func (rs *ReadStructure) IndexSegments() []Segment {
	var out []Segment
	for _, s := range rs.segs {
		if s.Role == Index {
			out = append(out, s)
		}
	}
	return out
}

// TemplateSegments returns the template segments in order (R1, R2).
func (rs *ReadStructure) TemplateSegments() []Segment {
	var out []Segment
	for _, s := range rs.segs {
		if s.Role == Template {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the structure against a tile's total cycle count.
func (rs *ReadStructure) Validate(totalCycles int) error {
	if rs.total != totalCycles {
		return configErrorf("read structure %s covers %d cycles, run has %d", rs, rs.total, totalCycles)
	}
	return nil
}

// String renders the structure in compact form, e.g. "100T8I8I100T".
func (rs *ReadStructure) String() string {
	var b strings.Builder
	for _, s := range rs.segs {
		fmt.Fprintf(&b, "%d%s", s.Cycles, s.Role)
	}
	return b.String()
}
