// Package tile assembles per-tile polygon meshes into a multi-tile
// navigation mesh, stitches neighbouring tiles along their shared
// edges, and persists the whole mesh in a stable binary form.
package tile

import (
	"sort"

	"navforge/pipeline"
)

// Coord addresses a tile on the xz grid.
type Coord struct {
	X int
	Y int
}

// Link connects one polygon edge to a polygon in a neighbouring tile.
type Link struct {
	Poly         int // polygon index in the owning tile
	Edge         int // edge index within that polygon
	Neighbor     Coord
	NeighborPoly int
}

// Tile is one built cell of the navmesh.
type Tile struct {
	Coord  Coord
	BMin   [3]float32
	BMax   [3]float32
	Mesh   *pipeline.PolyMesh
	Detail *pipeline.PolyMeshDetail
	Links  []Link
}

// NavMesh holds the built tiles. It is single-writer: the build
// orchestrator owns all mutation and serializes access itself, so the
// container carries no locking.
type NavMesh struct {
	Origin     [3]float32
	TileWidth  float32 // tile extent along x, world units
	TileHeight float32 // tile extent along z, world units

	tiles map[Coord]*Tile
}

func New(origin [3]float32, tileWidth, tileHeight float32) *NavMesh {
	return &NavMesh{
		Origin:     origin,
		TileWidth:  tileWidth,
		TileHeight: tileHeight,
		tiles:      map[Coord]*Tile{},
	}
}

// Tile returns the tile at c, or nil.
func (nm *NavMesh) Tile(c Coord) *Tile {
	return nm.tiles[c]
}

// AddTile stores t, replacing any previous tile at the same coord.
func (nm *NavMesh) AddTile(t *Tile) {
	nm.tiles[t.Coord] = t
}

// RemoveTile drops the tile at c and reports whether one was present.
// Links other tiles hold toward c are removed as well.
func (nm *NavMesh) RemoveTile(c Coord) bool {
	if _, ok := nm.tiles[c]; !ok {
		return false
	}
	delete(nm.tiles, c)
	for _, t := range nm.tiles {
		dropLinksTo(t, c)
	}
	return true
}

func (nm *NavMesh) TileCount() int { return len(nm.tiles) }

// Coords lists the stored tile coords sorted by (Y, X).
func (nm *NavMesh) Coords() []Coord {
	out := make([]Coord, 0, len(nm.tiles))
	for c := range nm.tiles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Clear drops every tile.
func (nm *NavMesh) Clear() {
	nm.tiles = map[Coord]*Tile{}
}

func dropLinksTo(t *Tile, c Coord) {
	keep := t.Links[:0]
	for _, l := range t.Links {
		if l.Neighbor != c {
			keep = append(keep, l)
		}
	}
	t.Links = keep
}

func sortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.Poly != b.Poly {
			return a.Poly < b.Poly
		}
		if a.Edge != b.Edge {
			return a.Edge < b.Edge
		}
		if a.Neighbor.Y != b.Neighbor.Y {
			return a.Neighbor.Y < b.Neighbor.Y
		}
		if a.Neighbor.X != b.Neighbor.X {
			return a.Neighbor.X < b.Neighbor.X
		}
		return a.NeighborPoly < b.NeighborPoly
	})
}
