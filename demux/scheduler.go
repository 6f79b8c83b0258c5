package demux

import (
	"context"
	"runtime"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
)

// scheduler fans tiles out over a bounded worker pool and hands completed
// results to a sink in ascending tile order, so output bytes do not
// depend on scheduling or worker count.  Workers insert results into an
// ordered queue keyed by the tile's position in the (lane, tile)-sorted
// task list; a single drain goroutine releases them in that order.
//
// A fatal error stops dispatch of further tiles, lets in-flight tiles
// finish, and is returned after the queue drains.  The caller finalizes
// the writer pool in all cases.
type scheduler struct {
	tiles   []Tile
	workers int
	process func(ctx context.Context, t Tile) (*TileResult, error)
	sink    func(res *TileResult) error
}

func (s *scheduler) run(ctx context.Context) error {
	workers := s.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(s.tiles) {
		workers = len(s.tiles)
	}

	e := errors.Once{}
	oq := syncqueue.NewOrderedQueue(len(s.tiles))
	tileCh := make(chan int)

	// Dispatcher: stops handing out tiles once a fatal error is set.
	// Indexes are dispatched in order, so the set of inserted queue
	// entries is always a prefix and the drain below cannot stall on a
	// gap.
	go func() {
		for i := range s.tiles {
			if e.Err() != nil {
				break
			}
			tileCh <- i
		}
		close(tileCh)
	}()

	wgW := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wgW.Add(1)
		go func() {
			defer wgW.Done()
			for i := range tileCh {
				res, err := s.process(ctx, s.tiles[i])
				if err != nil {
					e.Set(err)
					log.Error.Printf("tile %s: %v", s.tiles[i], err)
				}
				// A nil entry keeps the queue gap-free after a failure.
				var item interface{}
				if res != nil {
					item = res
				}
				if qerr := oq.Insert(i, item); qerr != nil {
					e.Set(qerr)
				}
			}
		}()
	}

	wgR := sync.WaitGroup{}
	wgR.Add(1)
	go func() {
		defer wgR.Done()
		for {
			v, ok, err := oq.Next()
			if err != nil {
				e.Set(err)
				break
			}
			if !ok {
				break
			}
			if v == nil || e.Err() != nil {
				// Failed tile, or the run is already aborting: consume
				// without writing, the writers will be finalized.
				continue
			}
			if err := s.sink(v.(*TileResult)); err != nil {
				e.Set(err)
			}
		}
	}()

	wgW.Wait()
	e.Set(oq.Close(nil))
	wgR.Wait()
	return e.Err()
}
