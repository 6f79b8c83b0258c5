package demux

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// UnknownSample is the sample name under which unassigned clusters are
// written.
const UnknownSample = "Unknown"

// Key addresses one output stream: a sample (or UnknownSample), a lane,
// and a 1-based template read number.
type Key struct {
	Sample string
	Lane   int
	Read   int
}

// Filename returns the output file name for the key.
func (k Key) Filename() string {
	return fmt.Sprintf("%s_L%03d_R%d.fastq.gz", k.Sample, k.Lane, k.Read)
}

// poolWriter is one live output stream.  Its mutex serializes record
// writes from tiles that target the same key; distinct keys never
// contend.
type poolWriter struct {
	mu sync.Mutex
	f  file.File
	gz *gzip.Writer
}

// WriterPool owns the gzip-compressed FASTQ outputs of a run, one stream
// per key.  Streams open lazily on first write, are never reopened, and
// close exactly once in Finalize, which runs on every exit path of the
// pipeline including fatal aborts.
type WriterPool struct {
	dir string

	mu        sync.Mutex
	writers   map[Key]*poolWriter
	finalized bool

	finalizeOnce sync.Once
	finalizeErr  error
}

// NewWriterPool returns a pool writing under dir.
func NewWriterPool(dir string) *WriterPool {
	return &WriterPool{dir: dir, writers: map[Key]*poolWriter{}}
}

// Write appends data to the key's stream, opening it on first use.
func (p *WriterPool) Write(ctx context.Context, key Key, data []byte) error {
	w, err := p.get(ctx, key)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.gz.Write(data)
	return err
}

func (p *WriterPool) get(ctx context.Context, key Key) (*poolWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		return nil, errors.E("write to finalized writer pool", key.Filename())
	}
	if w, ok := p.writers[key]; ok {
		return w, nil
	}
	f, err := file.Create(ctx, filepath.Join(p.dir, key.Filename()))
	if err != nil {
		return nil, err
	}
	w := &poolWriter{f: f, gz: gzip.NewWriter(f.Writer(ctx))}
	p.writers[key] = w
	return w, nil
}

// Keys returns the keys opened so far in deterministic order.
func (p *WriterPool) Keys() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]Key, 0, len(p.writers))
	for k := range p.writers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

// Finalize flushes and closes every open stream exactly once and returns
// the first close error.  Subsequent calls return the same result without
// closing anything again.
func (p *WriterPool) Finalize(ctx context.Context) error {
	p.finalizeOnce.Do(func() {
		p.mu.Lock()
		p.finalized = true // no stream may open after this point
		p.mu.Unlock()
		keys := p.Keys()
		e := errors.Once{}
		for _, k := range keys {
			w := p.writers[k]
			w.mu.Lock()
			e.Set(w.gz.Close())
			e.Set(w.f.Close(ctx))
			w.mu.Unlock()
		}
		p.finalizeErr = e.Err()
	})
	return p.finalizeErr
}
