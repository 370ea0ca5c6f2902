package builder

import (
	"sort"

	"navforge/tile"
)

// Warning is a non-fatal finding attributed to one tile.
type Warning struct {
	Tile tile.Coord
	Err  error
}

// Failure records a tile whose build errored. The tile holds no mesh.
type Failure struct {
	Tile tile.Coord
	Err  error
}

// Diagnostics collects the non-fatal output of a build.
type Diagnostics struct {
	Warnings []Warning
	Failed   []Failure
}

func (d *Diagnostics) addWarnings(c tile.Coord, errs []error) {
	for _, err := range errs {
		d.Warnings = append(d.Warnings, Warning{Tile: c, Err: err})
	}
}

// sort orders findings by tile coord so reports are stable regardless
// of build scheduling.
func (d *Diagnostics) sort() {
	byCoord := func(a, b tile.Coord) bool {
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	}
	sort.SliceStable(d.Warnings, func(i, j int) bool { return byCoord(d.Warnings[i].Tile, d.Warnings[j].Tile) })
	sort.SliceStable(d.Failed, func(i, j int) bool { return byCoord(d.Failed[i].Tile, d.Failed[j].Tile) })
}
