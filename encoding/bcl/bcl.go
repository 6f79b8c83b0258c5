// Package bcl decodes Illumina per-cycle base call (BCL) files.
//
// A BCL file stores the calls of every cluster on one tile for a single
// sequencing cycle: a four byte little-endian cluster count followed by one
// byte per cluster.  The low two bits of each byte select the base
// (0=A, 1=C, 2=G, 3=T) and the high six bits carry the quality score
// (0-63).  A byte of zero is the reserved no-call marker and decodes to
// base 'N' with quality zero.
package bcl

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated BCL file is encountered.
	ErrShort = errors.New("short BCL file")
	// ErrInvalid is returned when a BCL file disagrees with its own
	// declared cluster count.
	ErrInvalid = errors.New("invalid BCL file")
)

// baseLUT maps the low two bits of a call byte to a base letter.
var baseLUT = [4]byte{'A', 'C', 'G', 'T'}

// Cycle holds the decoded calls for one tile and one cycle.  Bases are
// ASCII letters in ACGTN, Quals are raw scores in 0..63.  len(Bases) ==
// len(Quals) == the cluster count declared by the file.
type Cycle struct {
	Bases []byte
	Quals []byte
}

// Clusters returns the number of clusters in the cycle.
func (c *Cycle) Clusters() int { return len(c.Bases) }

// DecodeCycle reads one BCL stream to completion and returns the decoded
// calls.  The stream must contain exactly the declared number of cluster
// bytes; a shorter stream returns ErrShort and a longer one ErrInvalid.
func DecodeCycle(r io.Reader) (*Cycle, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(ErrShort, "reading cluster count")
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(ErrShort, "%d clusters declared", n)
	}
	var trail [1]byte
	if m, _ := r.Read(trail[:]); m != 0 {
		return nil, errors.Wrapf(ErrInvalid, "data beyond %d declared clusters", n)
	}
	c := &Cycle{
		Bases: make([]byte, n),
		Quals: raw,
	}
	for i, b := range raw {
		if b == 0 {
			// No-call marker: the quality bits are not meaningful.
			c.Bases[i] = 'N'
			c.Quals[i] = 0
			continue
		}
		c.Bases[i] = baseLUT[b&0x3]
		c.Quals[i] = b >> 2
	}
	return c, nil
}

// OpenCycle opens and decodes the BCL file at path.  Files compressed with
// gzip (".bcl.gz") are decompressed transparently.
func OpenCycle(ctx context.Context, path string) (*Cycle, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	c, err := DecodeCycle(r)
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.WithMessage(err, path)
	}
	if err := in.Close(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeCycle writes calls in BCL format.  Bases and quals must have equal
// length; a base of 'N' is written as the no-call marker regardless of its
// quality.  It is the inverse of DecodeCycle and exists for test data
// generation and the round-trip tests.
func EncodeCycle(w io.Writer, bases []byte, quals []byte) error {
	if len(bases) != len(quals) {
		return errors.Errorf("bases and quals differ in length: %d != %d", len(bases), len(quals))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(bases)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	raw := make([]byte, len(bases))
	for i, b := range bases {
		var code byte
		switch b {
		case 'A':
			code = 0
		case 'C':
			code = 1
		case 'G':
			code = 2
		case 'T':
			code = 3
		case 'N':
			raw[i] = 0
			continue
		default:
			return errors.Errorf("invalid base %q at cluster %d", b, i)
		}
		if quals[i] > 63 {
			return errors.Errorf("quality %d out of range at cluster %d", quals[i], i)
		}
		if code == 0 && quals[i] == 0 {
			// An A with quality zero would collide with the no-call marker.
			return errors.Errorf("unencodable call A/0 at cluster %d", i)
		}
		raw[i] = code | quals[i]<<2
	}
	_, err := w.Write(raw)
	return err
}
