package demux

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Tile names the input files for one tile of one lane: its filter file
// and one cycle file per sequencing cycle, in cycle order.
type Tile struct {
	Lane       int
	Number     int
	FilterPath string
	CyclePaths []string
}

func (t Tile) String() string {
	return fmt.Sprintf("L%03d/%d", t.Lane, t.Number)
}

func baseCallsDir(runDir string) string {
	return filepath.Join(runDir, "Data", "Intensities", "BaseCalls")
}

func laneDir(runDir string, lane int) string {
	return filepath.Join(baseCallsDir(runDir), fmt.Sprintf("L%03d", lane))
}

// cyclePath returns the cycle file for (lane, tile, cycle), preferring
// the uncompressed name and falling back to the gzipped one.  cycle is
// 1-based, matching the instrument's C<n>.1 directory naming.
func cyclePath(runDir string, lane, tile, cycle int) string {
	dir := filepath.Join(laneDir(runDir, lane), fmt.Sprintf("C%d.1", cycle))
	plain := filepath.Join(dir, fmt.Sprintf("s_%d_%d.bcl", lane, tile))
	if _, err := os.Stat(plain); err == nil {
		return plain
	}
	return plain + ".gz"
}

func filterPath(runDir string, lane, tile int) string {
	return filepath.Join(laneDir(runDir, lane), fmt.Sprintf("s_%d_%d.filter", lane, tile))
}

// EnumerateTiles lists every tile of the run in (lane, tile) order.  Tile
// numbers come from RunInfo when it declares them; otherwise they are
// discovered from the filter files present in each lane directory.
func EnumerateTiles(runDir string, run *RunInfo) ([]Tile, error) {
	cycles := run.TotalCycles()
	var tiles []Tile
	for lane := 1; lane <= run.LaneCount; lane++ {
		numbers := run.Tiles[lane]
		if len(numbers) == 0 {
			var err error
			if numbers, err = discoverTiles(runDir, lane); err != nil {
				return nil, err
			}
		}
		for _, n := range numbers {
			t := Tile{
				Lane:       lane,
				Number:     n,
				FilterPath: filterPath(runDir, lane, n),
				CyclePaths: make([]string, cycles),
			}
			for c := 0; c < cycles; c++ {
				t.CyclePaths[c] = cyclePath(runDir, lane, n, c+1)
			}
			tiles = append(tiles, t)
		}
	}
	if len(tiles) == 0 {
		return nil, errors.Errorf("%s: no tiles found", baseCallsDir(runDir))
	}
	return tiles, nil
}

// discoverTiles lists tile numbers by globbing the lane's filter files.
func discoverTiles(runDir string, lane int) ([]int, error) {
	pattern := filepath.Join(laneDir(runDir, lane), fmt.Sprintf("s_%d_*.filter", lane))
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	var numbers []int
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".filter")
		i := strings.LastIndex(name, "_")
		n, err := strconv.Atoi(name[i+1:])
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}
