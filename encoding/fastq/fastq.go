// Package fastq models FASTQ records and provides the formatting used by
// the demultiplexer's output stage as well as a scanner for reading
// records back.
package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// PhredOffset is the ASCII offset of the printable quality encoding.
const PhredOffset = 33

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// AppendRecord appends the four-line FASTQ record for one read to buf and
// returns the extended buffer.  id must not include the leading '@'.  quals
// are raw scores (0..63) and are written in the Phred+33 printable
// encoding.  AppendRecord does no I/O and no validation: malformed calls
// are rejected upstream by the decoders.
func AppendRecord(buf []byte, id string, seq []byte, quals []byte) []byte {
	buf = append(buf, '@')
	buf = append(buf, id...)
	buf = append(buf, '\n')
	buf = append(buf, seq...)
	buf = append(buf, '\n', '+', '\n')
	for _, q := range quals {
		buf = append(buf, q+PhredOffset)
	}
	return append(buf, '\n')
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records sequentially.  The Scan method returns the
// next read, returning a boolean indicating whether the read succeeded.
// Scanner validates the record framing (ID lines begin with "@", line 3
// begins with "+") but nothing further.  Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next read into the provided read.  Once Scan returns false, it
// never returns true again; the user should then check Err to distinguish
// end of stream from an error.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errEOF
		}
		return false
	}
	id := s.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	read.ID = string(id)
	if !s.scan() {
		return false
	}
	read.Seq = s.b.Text()
	if !s.scan() {
		return false
	}
	unk := s.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		s.err = ErrInvalid
		return false
	}
	read.Unk = string(unk)
	if !s.scan() {
		return false
	}
	read.Qual = s.b.Text()
	return true
}

func (s *Scanner) scan() bool {
	ok := s.b.Scan()
	if !ok {
		if s.err = s.b.Err(); s.err == nil {
			s.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}
