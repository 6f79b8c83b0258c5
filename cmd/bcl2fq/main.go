package main

/*
bcl2fq converts an Illumina run directory's per-cycle base call files
into per-sample, per-lane fastq.gz files, assigning each cluster to a
sample by its index read(s).
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
	runDir          = flag.String("run-dir", "", "Instrument run directory containing RunInfo.xml and Data/Intensities/BaseCalls (required)")
	sampleSheet     = flag.String("sample-sheet", "", "Sample sheet CSV path (required)")
	outputDir       = flag.String("output-dir", demux.DefaultOpts.OutputDir, "Directory receiving the fastq.gz files; created if missing")
	maxMismatches   = flag.Int("max-mismatches", demux.DefaultOpts.MaxMismatches, "Per-index mismatch budget when assigning clusters to samples")
	parallelism     = flag.Int("parallelism", 0, "Maximum number of tiles processed concurrently; 0 = runtime.NumCPU()")
	includeFiltered = flag.Bool("include-filtered", false, "Keep clusters that failed the instrument's quality filter")
	report          = flag.String("report", "", "Optional TSV path for the observed index frequency report")
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
	opts := demux.Opts{
		RunDir:          *runDir,
		SampleSheetPath: *sampleSheet,
		OutputDir:       *outputDir,
		MaxMismatches:   *maxMismatches,
		Parallelism:     *parallelism,
		IncludeFiltered: *includeFiltered,
		ReportPath:      *report,
	}
	stats, _, err := demux.Run(ctx, opts)
	if err != nil {
		log.Fatalf("%s", demux.FatalMessage(err))
	}
	log.Printf("%d tiles, %d clusters: %d assigned, %d unknown (%d ambiguous), %d filtered",
		stats.Tiles, stats.Clusters, stats.Assigned, stats.Unknown, stats.Ambiguous, stats.Filtered)
}
