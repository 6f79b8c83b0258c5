// Package filter decodes Illumina per-tile pass-filter files.
//
// A filter file records the chastity filter verdict for every cluster on a
// tile: a fixed twelve byte header (format and version fields that the
// pipeline does not interpret) followed by one byte per cluster, nonzero
// meaning the cluster passed.
package filter

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// headerSize is the fixed length of the filter file preamble.
const headerSize = 12

// ErrShort is returned when a filter file is shorter than its header.
var ErrShort = errors.New("short filter file")

// Filter holds the pass-filter verdicts for one tile, indexed by cluster.
type Filter struct {
	Pass []bool
}

// Clusters returns the number of clusters covered by the filter.
func (f *Filter) Clusters() int { return len(f.Pass) }

// PassCount returns the number of clusters that passed the filter.
func (f *Filter) PassCount() int {
	n := 0
	for _, p := range f.Pass {
		if p {
			n++
		}
	}
	return n
}

// DecodeFilter reads one filter stream to completion.  The body length
// defines the cluster count; callers cross-check it against the tile's
// cycle files.
func DecodeFilter(r io.Reader) (*Filter, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(ErrShort, "reading header")
	}
	body, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f := &Filter{Pass: make([]bool, len(body))}
	for i, b := range body {
		f.Pass[i] = b != 0
	}
	return f, nil
}

// OpenFilter opens and decodes the filter file at path, decompressing
// gzipped files transparently.
func OpenFilter(ctx context.Context, path string) (*Filter, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	f, err := DecodeFilter(r)
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.WithMessage(err, path)
	}
	if err := in.Close(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeFilter writes pass in filter file format.  The header is zeroed;
// the pipeline never reads its fields.
func EncodeFilter(w io.Writer, pass []bool) error {
	var hdr [headerSize]byte
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	body := make([]byte, len(pass))
	for i, p := range pass {
		if p {
			body[i] = 1
		}
	}
	_, err := w.Write(body)
	return err
}
