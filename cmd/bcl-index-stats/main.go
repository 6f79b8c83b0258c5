package main

/*
bcl-index-stats scans a run directory's index cycles and prints the
observed index sequence frequencies, most frequent first.  With a sample
sheet it also reports how many clusters would be assigned.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bcl2fq/demux"
)

var (
	runDir      = flag.String("run-dir", "", "Instrument run directory (required)")
	sampleSheet = flag.String("sample-sheet", "", "Optional sample sheet CSV; enables assignment counters")
	top         = flag.Int("top", 20, "Number of most frequent sequences to print; 0 = all")
	minCount    = flag.Uint64("min-count", 0, "Omit sequences observed fewer than this many times")
	parallelism = flag.Int("parallelism", 0, "Maximum number of tiles processed concurrently; 0 = runtime.NumCPU()")
)

func usage() {
	fmt.Printf("Usage: %s -run-dir DIR [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *runDir == "" {
		flag.Usage()
		log.Fatalf("-run-dir is required")
	}
	ctx := vcontext.Background()
	opts := demux.Opts{
		RunDir:          *runDir,
		SampleSheetPath: *sampleSheet,
		Parallelism:     *parallelism,
		MaxMismatches:   demux.DefaultOpts.MaxMismatches,
	}
	stats, barcodes, err := demux.CountIndexes(ctx, opts)
	if err != nil {
		log.Fatalf("%s", demux.FatalMessage(err))
	}
	rows := barcodes.TopN(*top)
	kept := rows[:0]
	for _, bc := range rows {
		if bc.Count >= *minCount {
			kept = append(kept, bc)
		}
	}
	if err := demux.WriteTSV(os.Stdout, kept); err != nil {
		log.Fatalf("writing report: %v", err)
	}
	log.Printf("%d clusters, %d distinct index sequences", stats.Clusters, barcodes.Distinct())
	if *sampleSheet != "" {
		log.Printf("%d assigned, %d unknown (%d ambiguous)", stats.Assigned, stats.Unknown, stats.Ambiguous)
	}
}
