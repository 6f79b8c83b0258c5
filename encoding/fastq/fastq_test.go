package fastq

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestAppendRecord(t *testing.T) {
	buf := AppendRecord(nil, "M00100:12:FC01:1:1101:0", []byte("ACGTN"), []byte{40, 40, 2, 0, 12})
	expect.EQ(t, string(buf), "@M00100:12:FC01:1:1101:0\nACGTN\n+\nII#!-\n")

	// Appends to an existing buffer without clobbering it.
	buf = AppendRecord(buf, "M00100:12:FC01:1:1101:1", []byte("T"), []byte{63})
	expect.EQ(t, strings.Count(string(buf), "\n"), 8)
	expect.True(t, strings.HasSuffix(string(buf), "@M00100:12:FC01:1:1101:1\nT\n+\n`\n"))
}

func TestScanRoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendRecord(buf, "r1 1:N:0:ACGT", []byte("ACGT"), []byte{30, 30, 30, 2})
	buf = AppendRecord(buf, "r2 1:N:0:ACGT", []byte("NNNN"), []byte{0, 0, 0, 0})

	sc := NewScanner(bytes.NewReader(buf))
	var r Read
	expect.True(t, sc.Scan(&r))
	expect.EQ(t, r, Read{ID: "@r1 1:N:0:ACGT", Seq: "ACGT", Unk: "+", Qual: "???#"})
	expect.True(t, sc.Scan(&r))
	expect.EQ(t, r.Seq, "NNNN")
	expect.EQ(t, r.Qual, "!!!!")
	expect.False(t, sc.Scan(&r))
	expect.NoError(t, sc.Err())
}

func TestScanInvalid(t *testing.T) {
	sc := NewScanner(strings.NewReader("not-a-header\nACGT\n+\nIIII\n"))
	var r Read
	expect.False(t, sc.Scan(&r))
	expect.EQ(t, sc.Err(), ErrInvalid)
}

func TestScanShort(t *testing.T) {
	sc := NewScanner(strings.NewReader("@r1\nACGT\n+\n"))
	var r Read
	expect.False(t, sc.Scan(&r))
	expect.EQ(t, sc.Err(), ErrShort)
}

func TestScanBadSeparator(t *testing.T) {
	sc := NewScanner(strings.NewReader("@r1\nACGT\nIIII\nIIII\n"))
	var r Read
	expect.False(t, sc.Scan(&r))
	expect.EQ(t, sc.Err(), ErrInvalid)
}
