package demux

import (
	"context"
	"strconv"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bcl2fq/encoding/bcl"
	"github.com/grailbio/bcl2fq/encoding/fastq"
	"github.com/grailbio/bcl2fq/encoding/filter"
	"github.com/pkg/errors"
)

// TileResult is the outcome of processing one tile: formatted FASTQ
// payloads per output key, the tile's counters, and its local barcode
// tally.  Records within each payload are in ascending cluster order by
// construction.
type TileResult struct {
	Tile     Tile
	Stats    Stats
	Barcodes *BarcodeStats
	Output   map[Key][]byte
}

// tileProcessor runs the per-tile pipeline: open the tile's files, decode
// them, slice clusters into logical reads, match index reads to samples,
// and emit formatted records.  One instance is shared by all workers; all
// of its state is immutable.
type tileProcessor struct {
	run      *RunInfo
	rs       *ReadStructure
	tables   map[int]*BarcodeTable
	matchers map[int]*Matcher
	opts     Opts
	// emit controls whether FASTQ payloads are produced.  When false only
	// the filter file and the index cycles are read, which is what the
	// index reporting tools need.
	emit bool
}

func newTileProcessor(run *RunInfo, rs *ReadStructure, tables map[int]*BarcodeTable, opts Opts) *tileProcessor {
	matchers := make(map[int]*Matcher, len(tables))
	for lane, t := range tables {
		matchers[lane] = NewMatcher(t, opts.MaxMismatches)
	}
	return &tileProcessor{run: run, rs: rs, tables: tables, matchers: matchers, opts: opts}
}

func (p *tileProcessor) matcherFor(lane int) *Matcher {
	if m := p.matchers[lane]; m != nil {
		return m
	}
	return p.matchers[0]
}

// Process runs one tile end to end.  Any error is fatal for the run.
func (p *tileProcessor) Process(ctx context.Context, t Tile) (*TileResult, error) {
	flt, err := filter.OpenFilter(ctx, t.FilterPath)
	if err != nil {
		return nil, errors.WithMessagef(err, "tile %s", t)
	}
	needed := p.neededCycles(len(t.CyclePaths))
	cycles := make([]*bcl.Cycle, len(t.CyclePaths))
	err = traverse.Each(len(needed), func(n int) error {
		i := needed[n]
		c, err := bcl.OpenCycle(ctx, t.CyclePaths[i])
		if err != nil {
			return errors.WithMessagef(err, "tile %s cycle %d", t, i+1)
		}
		cycles[i] = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Every cycle of a tile must agree with the filter on the cluster
	// count, else per-cluster columns would be misaligned.
	clusters := flt.Clusters()
	for i, c := range cycles {
		if c != nil && c.Clusters() != clusters {
			return nil, formatErrorf("tile %s cycle %d has %d clusters, filter has %d",
				t, i+1, c.Clusters(), clusters)
		}
	}

	idxSegs := p.rs.IndexSegments()
	matcher := p.matcherFor(t.Lane)
	dual := len(idxSegs) > 1
	var table *BarcodeTable
	if matcher != nil {
		table = matcher.table
		dual = dual && table.Dual
	}
	res := &TileResult{
		Tile:     t,
		Barcodes: NewBarcodeStats(),
		Output:   map[Key][]byte{},
	}
	res.Stats.Tiles = 1
	res.Stats.Clusters = uint64(clusters)

	tmplSegs := p.rs.TemplateSegments()
	seg1 := make([]byte, 0, 16)
	seg2 := make([]byte, 0, 16)
	seq := make([]byte, 0, 512)
	qual := make([]byte, 0, 512)
	idPrefix := p.headerPrefix(t)

	for i := 0; i < clusters; i++ {
		if !flt.Pass[i] && !p.opts.IncludeFiltered {
			res.Stats.Filtered++
			continue
		}
		seg1 = seg1[:0]
		var index2 []byte
		if len(idxSegs) > 0 {
			seg1 = assembleBases(seg1, cycles, idxSegs[0], i)
			if dual {
				seg2 = assembleBases(seg2[:0], cycles, idxSegs[1], i)
				index2 = seg2
			}
			res.Barcodes.AddBytes(joinedIndex(seg1, index2))
		}

		sample := UnknownSample
		if matcher != nil {
			si, mr := matcher.Match(seg1, index2)
			switch mr {
			case Assigned:
				sample = table.Samples[si].ID
				res.Stats.Assigned++
			case Ambiguous:
				res.Stats.Ambiguous++
				res.Stats.Unknown++
			default:
				res.Stats.Unknown++
			}
		} else {
			// No table covers this lane; every surviving cluster routes to
			// Unknown and must be counted there to conserve the totals.
			res.Stats.Unknown++
		}
		if !p.emit {
			continue
		}

		observed := string(joinedIndex(seg1, index2))
		for _, ts := range tmplSegs {
			seq = assembleBases(seq[:0], cycles, ts, i)
			qual = assembleQuals(qual[:0], cycles, ts, i)
			id := clusterID(idPrefix, i, ts.Num, observed)
			key := Key{Sample: sample, Lane: t.Lane, Read: ts.Num}
			res.Output[key] = fastq.AppendRecord(res.Output[key], id, seq, qual)
		}
	}
	return res, nil
}

// neededCycles lists the cycle indexes Process must load.  Emitting
// FASTQ needs every cycle; counting indexes needs only the index
// segments' cycles.
func (p *tileProcessor) neededCycles(total int) []int {
	out := make([]int, 0, total)
	if p.emit {
		for i := 0; i < total; i++ {
			out = append(out, i)
		}
		return out
	}
	for _, s := range p.rs.IndexSegments() {
		for c := s.Start; c < s.Start+s.Cycles; c++ {
			out = append(out, c)
		}
	}
	return out
}

// assembleBases slices one cluster's bases for a segment out of the
// per-cycle arrays.
func assembleBases(dst []byte, cycles []*bcl.Cycle, s Segment, cluster int) []byte {
	for c := s.Start; c < s.Start+s.Cycles; c++ {
		dst = append(dst, cycles[c].Bases[cluster])
	}
	return dst
}

func assembleQuals(dst []byte, cycles []*bcl.Cycle, s Segment, cluster int) []byte {
	for c := s.Start; c < s.Start+s.Cycles; c++ {
		dst = append(dst, cycles[c].Quals[cluster])
	}
	return dst
}

// joinedIndex renders the observed index pair in reporting form (I1 or
// I1+I2).  With a single index the result aliases seg1, which the caller
// must not reuse before consuming it.
func joinedIndex(seg1, seg2 []byte) []byte {
	if len(seg2) == 0 {
		return seg1
	}
	out := make([]byte, 0, len(seg1)+1+len(seg2))
	out = append(out, seg1...)
	out = append(out, '+')
	return append(out, seg2...)
}

// headerPrefix builds the run-constant part of the FASTQ record ID:
// instrument:run:flowcell:lane:tile.
func (p *tileProcessor) headerPrefix(t Tile) string {
	return p.run.Instrument + ":" + strconv.Itoa(p.run.Number) + ":" + p.run.Flowcell +
		":" + strconv.Itoa(t.Lane) + ":" + strconv.Itoa(t.Number)
}

// clusterID completes a record ID with the cluster index and the
// standard "<read>:N:0:<index>" comment.
func clusterID(prefix string, cluster, readNum int, observed string) string {
	b := make([]byte, 0, len(prefix)+len(observed)+24)
	b = append(b, prefix...)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(cluster), 10)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(readNum), 10)
	b = append(b, ":N:0:"...)
	b = append(b, observed...)
	return string(b)
}
