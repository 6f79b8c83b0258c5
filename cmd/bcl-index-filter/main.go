package main

/*
bcl-index-filter checks a sample sheet against the index sequences
actually observed in a run and writes a copy with the unsupported rows
dropped.  A row is dropped when its barcode was seen fewer than
-min-count times, or when no observed sequence comes within
-max-distance edits of it.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcl2fq/demux"
	"github.com/pkg/errors"
)

var (
	runDir      = flag.String("run-dir", "", "Instrument run directory (required)")
	sampleSheet = flag.String("sample-sheet", "", "Sample sheet CSV path (required)")
	out         = flag.String("out", "", "Path for the filtered sample sheet; default stdout")
	minCount    = flag.Uint64("min-count", 1, "Drop samples whose barcode was observed fewer than this many times")
	maxDistance = flag.Int("max-distance", 2, "Drop samples with no observed sequence within this edit distance")
	dryRun      = flag.Bool("dry-run", false, "Only report what would be dropped")
	parallelism = flag.Int("parallelism", 0, "Maximum number of tiles processed concurrently; 0 = runtime.NumCPU()")
)

func usage() {
	fmt.Printf("Usage: %s -run-dir DIR -sample-sheet CSV [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *runDir == "" || *sampleSheet == "" {
		flag.Usage()
		log.Fatalf("-run-dir and -sample-sheet are required")
	}
	ctx := vcontext.Background()
	if err := run(ctx); err != nil {
		log.Fatalf("%s", demux.FatalMessage(err))
	}
}

func run(ctx context.Context) error {
	samples, err := demux.LoadSampleSheet(ctx, *sampleSheet)
	if err != nil {
		return err
	}
	opts := demux.Opts{
		RunDir:        *runDir,
		Parallelism:   *parallelism,
		MaxMismatches: demux.DefaultOpts.MaxMismatches,
	}
	_, barcodes, err := demux.CountIndexes(ctx, opts)
	if err != nil {
		return err
	}

	var kept []demux.Sample
	for _, sup := range demux.EvaluateSupport(samples, barcodes) {
		if sup.Count < *minCount || sup.Nearest < 0 || sup.Nearest > *maxDistance {
			log.Printf("drop %s (%s): %d exact, nearest observed at distance %d",
				sup.Sample.ID, sup.Sample.Index, sup.Count, sup.Nearest)
			continue
		}
		kept = append(kept, sup.Sample)
	}
	log.Printf("keeping %d of %d samples", len(kept), len(samples))
	if *dryRun {
		return nil
	}
	if len(kept) == 0 {
		return errors.New("no samples left after filtering")
	}

	if *out == "" {
		return demux.WriteSampleSheet(os.Stdout, kept)
	}
	f, err := file.Create(ctx, *out)
	if err != nil {
		return err
	}
	if err := demux.WriteSampleSheet(f.Writer(ctx), kept); err != nil {
		_ = f.Close(ctx)
		return err
	}
	return f.Close(ctx)
}
