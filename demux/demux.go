// Package demux converts an Illumina run directory's per-cycle base call
// files into per-sample, per-lane compressed FASTQ, resolving each
// cluster's sample via its index read(s) under a bounded mismatch budget
// and dropping clusters that failed the instrument's quality filter.
package demux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Run demultiplexes the run directory per opts and returns the run
// counters and the observed index tally.  On a fatal error the
// already-opened output files are still flushed and closed before the
// error is returned, so no truncated gzip streams are left behind.
func Run(ctx context.Context, opts Opts) (Stats, *BarcodeStats, error) {
	run, rs, tiles, err := loadRun(ctx, opts)
	if err != nil {
		return Stats{}, nil, err
	}
	samples, err := LoadSampleSheet(ctx, opts.SampleSheetPath)
	if err != nil {
		return Stats{}, nil, err
	}
	tables, err := BuildTables(samples, rs)
	if err != nil {
		return Stats{}, nil, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0777); err != nil {
		return Stats{}, nil, err
	}

	pool := NewWriterPool(opts.OutputDir)
	proc := newTileProcessor(run, rs, tables, opts)
	proc.emit = true

	stats := Stats{}
	barcodes := NewBarcodeStats()
	sink := func(res *TileResult) error {
		stats = stats.Merge(res.Stats)
		barcodes.Merge(res.Barcodes)
		for _, k := range sortedOutputKeys(res.Output) {
			if err := pool.Write(ctx, k, res.Output[k]); err != nil {
				return err
			}
		}
		return nil
	}

	log.Printf("demultiplexing %s: %d tiles, read structure %s, %d samples",
		run.ID, len(tiles), rs, len(samples))
	sched := &scheduler{
		tiles:   tiles,
		workers: opts.Parallelism,
		process: proc.Process,
		sink:    sink,
	}
	runErr := sched.run(ctx)
	finalizeErr := pool.Finalize(ctx)
	if runErr != nil {
		if finalizeErr != nil {
			// Reported, but it must not mask the fatal cause.
			log.Error.Printf("finalizing writers after abort: %v", finalizeErr)
		}
		return stats, barcodes, runErr
	}
	if finalizeErr != nil {
		return stats, barcodes, finalizeErr
	}
	if opts.ReportPath != "" {
		if err := writeReport(ctx, opts.ReportPath, barcodes.TopN(0)); err != nil {
			return stats, barcodes, err
		}
	}
	log.Printf("done: %d clusters, %d assigned, %d unknown (%d ambiguous), %d filtered",
		stats.Clusters, stats.Assigned, stats.Unknown, stats.Ambiguous, stats.Filtered)
	return stats, barcodes, nil
}

// CountIndexes scans only the run's filter files and index cycles and
// tallies observed index sequences.  No FASTQ is written.  A sample
// sheet is optional; with one, assignment counters are filled in as well.
func CountIndexes(ctx context.Context, opts Opts) (Stats, *BarcodeStats, error) {
	run, rs, tiles, err := loadRun(ctx, opts)
	if err != nil {
		return Stats{}, nil, err
	}
	var tables map[int]*BarcodeTable
	if opts.SampleSheetPath != "" {
		samples, err := LoadSampleSheet(ctx, opts.SampleSheetPath)
		if err != nil {
			return Stats{}, nil, err
		}
		if tables, err = BuildTables(samples, rs); err != nil {
			return Stats{}, nil, err
		}
	}
	proc := newTileProcessor(run, rs, tables, opts)

	stats := Stats{}
	barcodes := NewBarcodeStats()
	sched := &scheduler{
		tiles:   tiles,
		workers: opts.Parallelism,
		process: proc.Process,
		sink: func(res *TileResult) error {
			stats = stats.Merge(res.Stats)
			barcodes.Merge(res.Barcodes)
			return nil
		},
	}
	if err := sched.run(ctx); err != nil {
		return stats, barcodes, err
	}
	return stats, barcodes, nil
}

// loadRun parses RunInfo.xml, derives the read structure, validates it
// against the cycle directories present on disk, and enumerates tiles.
// All configuration errors surface here, before any tile work.
func loadRun(ctx context.Context, opts Opts) (*RunInfo, *ReadStructure, []Tile, error) {
	run, err := LoadRunInfo(ctx, opts.RunDir)
	if err != nil {
		return nil, nil, nil, err
	}
	rs, err := NewReadStructure(run.Reads)
	if err != nil {
		return nil, nil, nil, err
	}
	for lane := 1; lane <= run.LaneCount; lane++ {
		n, err := countCycleDirs(opts.RunDir, lane)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := rs.Validate(n); err != nil {
			return nil, nil, nil, errors.WithMessagef(err, "lane %d", lane)
		}
	}
	tiles, err := EnumerateTiles(opts.RunDir, run)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, rs, tiles, nil
}

// countCycleDirs counts the C<n>.1 cycle directories in a lane.
func countCycleDirs(runDir string, lane int) (int, error) {
	dirs, err := filepath.Glob(filepath.Join(laneDir(runDir, lane), "C*.1"))
	if err != nil {
		return 0, err
	}
	if len(dirs) == 0 {
		return 0, errors.Errorf("%s: no cycle directories", laneDir(runDir, lane))
	}
	return len(dirs), nil
}

func sortedOutputKeys(out map[Key][]byte) []Key {
	keys := make([]Key, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

func keyLess(a, b Key) bool {
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	if a.Lane != b.Lane {
		return a.Lane < b.Lane
	}
	return a.Read < b.Read
}

// writeReport writes the index frequency TSV to path.
func writeReport(ctx context.Context, path string, rows []BarcodeCount) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	if err := WriteTSV(out.Writer(ctx), rows); err != nil {
		_ = out.Close(ctx)
		return err
	}
	return out.Close(ctx)
}

// FatalMessage renders the single top-level error line for a failed run.
func FatalMessage(err error) string {
	return fmt.Sprintf("%s: %v", ErrorKind(err), err)
}
