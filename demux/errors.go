package demux

import (
	"github.com/grailbio/bcl2fq/encoding/bcl"
	"github.com/grailbio/bcl2fq/encoding/filter"
	"github.com/pkg/errors"
)

var (
	// ErrConfig marks an invalid run configuration: read-structure cycle
	// mismatch, duplicate sample sheet keys, barcode length mismatch.
	// Config errors are detected before any tile work starts.
	ErrConfig = errors.New("invalid run configuration")
	// ErrFormat marks malformed instrument output: cluster-count
	// disagreement between cycle files or with the filter file, truncated
	// files.  Format errors abort the whole run; a partial demultiplex
	// would misrepresent per-lane totals.
	ErrFormat = errors.New("malformed base call data")
)

// Kind is the fatal error class of a pipeline failure, as reported in the
// top-level error message and the process exit path.
type Kind int

const (
	// KindIO covers missing or unreadable inputs and write failures.
	KindIO Kind = iota
	// KindConfig covers ErrConfig failures.
	KindConfig
	// KindFormat covers ErrFormat and decoder failures.
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config error"
	case KindFormat:
		return "format error"
	}
	return "io error"
}

// ErrorKind classifies err into its fatal class.  Decoder sentinels from
// the encoding packages count as format errors.
func ErrorKind(err error) Kind {
	switch errors.Cause(err) {
	case ErrConfig:
		return KindConfig
	case ErrFormat, bcl.ErrShort, bcl.ErrInvalid, filter.ErrShort:
		return KindFormat
	}
	return KindIO
}

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

func formatErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormat, format, args...)
}
