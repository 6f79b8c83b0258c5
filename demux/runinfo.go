package demux

import (
	"context"
	"encoding/xml"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// ReadInfo describes one logical read declared by the instrument: its
// 1-based number, its cycle count, and whether it is an index read.
type ReadInfo struct {
	Number    int
	NumCycles int
	Indexed   bool
}

// RunInfo is the parsed content of a run directory's RunInfo.xml: the run
// identity emitted in FASTQ headers plus the declared reads and flowcell
// layout.
type RunInfo struct {
	ID         string
	Number     int
	Flowcell   string
	Instrument string
	Reads      []ReadInfo
	LaneCount  int
	// Tiles maps lane number to the ascending tile numbers declared for
	// it.  Empty when the RunInfo does not enumerate tiles; the run
	// layout discovers them from the BaseCalls directory instead.
	Tiles map[int][]int
}

// xmlRunInfo mirrors the RunInfo.xml document structure.
type xmlRunInfo struct {
	Version int `xml:"Version,attr"`
	Run     struct {
		ID         string `xml:"Id,attr"`
		Number     int    `xml:"Number,attr"`
		Flowcell   string `xml:"Flowcell"`
		Instrument string `xml:"Instrument"`
		Reads      []struct {
			Number        int    `xml:"Number,attr"`
			NumCycles     int    `xml:"NumCycles,attr"`
			IsIndexedRead string `xml:"IsIndexedRead,attr"`
		} `xml:"Reads>Read"`
		Layout struct {
			LaneCount int      `xml:"LaneCount,attr"`
			Tiles     []string `xml:"TileSet>Tiles>Tile"`
		} `xml:"FlowcellLayout"`
	} `xml:"Run"`
}

// ParseRunInfo decodes a RunInfo.xml document.
func ParseRunInfo(data []byte) (*RunInfo, error) {
	var doc xmlRunInfo
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing RunInfo.xml")
	}
	run := &RunInfo{
		ID:         doc.Run.ID,
		Number:     doc.Run.Number,
		Flowcell:   doc.Run.Flowcell,
		Instrument: doc.Run.Instrument,
		LaneCount:  doc.Run.Layout.LaneCount,
	}
	if len(doc.Run.Reads) == 0 {
		return nil, configErrorf("RunInfo.xml declares no reads")
	}
	for _, r := range doc.Run.Reads {
		run.Reads = append(run.Reads, ReadInfo{
			Number:    r.Number,
			NumCycles: r.NumCycles,
			Indexed:   strings.EqualFold(r.IsIndexedRead, "Y"),
		})
	}
	if run.LaneCount == 0 {
		run.LaneCount = 1
	}
	if len(doc.Run.Layout.Tiles) > 0 {
		run.Tiles = map[int][]int{}
		for _, name := range doc.Run.Layout.Tiles {
			// Tile names follow the <lane>_<tile> convention, e.g. "1_1101".
			parts := strings.SplitN(name, "_", 2)
			if len(parts) != 2 {
				return nil, configErrorf("RunInfo.xml tile %q not in lane_tile form", name)
			}
			lane, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, configErrorf("RunInfo.xml tile %q: bad lane", name)
			}
			tile, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, configErrorf("RunInfo.xml tile %q: bad tile number", name)
			}
			run.Tiles[lane] = append(run.Tiles[lane], tile)
		}
		for _, tiles := range run.Tiles {
			sort.Ints(tiles)
		}
	}
	return run, nil
}

// LoadRunInfo reads and parses <runDir>/RunInfo.xml.
func LoadRunInfo(ctx context.Context, runDir string) (*RunInfo, error) {
	path := filepath.Join(runDir, "RunInfo.xml")
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return ParseRunInfo(data)
}

// TotalCycles returns the cycle count summed over all declared reads.
func (r *RunInfo) TotalCycles() int {
	n := 0
	for _, rd := range r.Reads {
		n += rd.NumCycles
	}
	return n
}
