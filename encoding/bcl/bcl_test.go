package bcl

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	bases := []byte("ACGTNNACGT")
	quals := []byte{40, 2, 63, 17, 0, 0, 1, 1, 30, 12}

	var buf bytes.Buffer
	assert.NoError(t, EncodeCycle(&buf, bases, quals))

	c, err := DecodeCycle(&buf)
	assert.NoError(t, err)
	expect.EQ(t, c.Clusters(), len(bases))
	expect.EQ(t, c.Bases, bases)
	expect.EQ(t, c.Quals, quals)
}

func TestNoCall(t *testing.T) {
	// A zero byte decodes to N/0 no matter what the producer intended.
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 3)
	buf.Write(hdr[:])
	buf.Write([]byte{0x00, 0x01, 0xff})

	c, err := DecodeCycle(&buf)
	assert.NoError(t, err)
	expect.EQ(t, c.Bases, []byte("NCT"))
	expect.EQ(t, c.Quals, []byte{0, 0, 63})
}

func TestTruncated(t *testing.T) {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 100)

	// Header declares 100 clusters; body has 10.
	body := append(hdr[:], make([]byte, 10)...)
	_, err := DecodeCycle(bytes.NewReader(body))
	expect.EQ(t, errors.Cause(err), ErrShort)

	// Empty stream fails on the header itself.
	_, err = DecodeCycle(bytes.NewReader(nil))
	expect.EQ(t, errors.Cause(err), ErrShort)
}

func TestTrailingData(t *testing.T) {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 2)
	body := append(hdr[:], 0x05, 0x06, 0x07)
	_, err := DecodeCycle(bytes.NewReader(body))
	expect.EQ(t, errors.Cause(err), ErrInvalid)
}

func TestEncodeRejectsBadCalls(t *testing.T) {
	var buf bytes.Buffer
	expect.NotNil(t, EncodeCycle(&buf, []byte("AX"), []byte{1, 1}))
	expect.NotNil(t, EncodeCycle(&buf, []byte("A"), []byte{0}))
	expect.NotNil(t, EncodeCycle(&buf, []byte("AC"), []byte{1}))
}
