package demux

// Opts configures a demultiplexing run.
type Opts struct {
	// RunDir is the instrument run directory containing RunInfo.xml and
	// Data/Intensities/BaseCalls.
	RunDir string
	// SampleSheetPath points at the sample sheet CSV.
	SampleSheetPath string
	// OutputDir receives the per-sample fastq.gz files.
	OutputDir string
	// MaxMismatches is the per-index-segment Hamming distance budget when
	// assigning a cluster to a sample.
	MaxMismatches int
	// Parallelism bounds the number of tiles processed concurrently.
	// 0 means runtime.NumCPU().
	Parallelism int
	// IncludeFiltered keeps clusters that failed the instrument's chastity
	// filter instead of dropping them before assembly.
	IncludeFiltered bool
	// ReportPath, if nonempty, receives a TSV of observed index sequence
	// frequencies at the end of the run.
	ReportPath string
}

// DefaultOpts sets the default values for Opts.
var DefaultOpts = Opts{
	MaxMismatches: 1, // -max-mismatches
	OutputDir:     ".",
}
