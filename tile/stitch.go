package tile

import (
	"errors"
	"fmt"
	"math"

	"navforge/pipeline"
)

// ErrStitchMismatch reports portal edges of adjacent tiles that overlap
// on the shared boundary but do not line up cell for cell. The edges
// stay unlinked; the tiles remain usable.
var ErrStitchMismatch = errors.New("navforge: portal edges overlap but do not match")

// portalEdge is one boundary polygon edge in global cell coordinates.
type portalEdge struct {
	poly int
	edge int
	a    [3]int
	b    [3]int
}

func roundDiv(d, s float32) int {
	return int(math.Round(float64(d / s)))
}

// portalEdges collects the edges of t facing direction dir, in global
// cell space so tiles built at different origins compare exactly.
func portalEdges(nm *NavMesh, t *Tile, dir int) []portalEdge {
	m := t.Mesh
	if m == nil || m.NPolys == 0 {
		return nil
	}
	baseX := roundDiv(t.BMin[0]-nm.Origin[0], m.Cs)
	baseY := roundDiv(t.BMin[1]-nm.Origin[1], m.Ch)
	baseZ := roundDiv(t.BMin[2]-nm.Origin[2], m.Cs)

	want := pipeline.BorderReg | dir
	var out []portalEdge
	nvp := m.Nvp
	for i := 0; i < m.NPolys; i++ {
		p := m.Polys[i*nvp*2:]
		for j := 0; j < nvp; j++ {
			if p[j] == pipeline.MeshNullIdx {
				break
			}
			if p[nvp+j] != want {
				continue
			}
			nj := j + 1
			if nj >= nvp || p[nj] == pipeline.MeshNullIdx {
				nj = 0
			}
			va := m.Verts[p[j]*3:]
			vb := m.Verts[p[nj]*3:]
			out = append(out, portalEdge{
				poly: i,
				edge: j,
				a:    [3]int{baseX + va[0], baseY + va[1], baseZ + va[2]},
				b:    [3]int{baseX + vb[0], baseY + vb[1], baseZ + vb[2]},
			})
		}
	}
	return out
}

func neighborCoord(c Coord, dir int) Coord {
	switch dir {
	case 0:
		return Coord{c.X - 1, c.Y}
	case 1:
		return Coord{c.X, c.Y + 1}
	case 2:
		return Coord{c.X + 1, c.Y}
	default:
		return Coord{c.X, c.Y - 1}
	}
}

// edgesMatch reports an exact cell-for-cell match on the xz plane with
// the heights within climb cells. Neighbouring tiles wind their shared
// edge in opposite directions, so the reversed orientation is the
// matching one.
func edgesMatch(e, n portalEdge, climb int) bool {
	xzEq := func(p, q [3]int) bool { return p[0] == q[0] && p[2] == q[2] }
	yOk := func(p, q [3]int) bool {
		d := p[1] - q[1]
		if d < 0 {
			d = -d
		}
		return d <= climb
	}
	if xzEq(e.a, n.b) && xzEq(e.b, n.a) {
		return yOk(e.a, n.b) && yOk(e.b, n.a)
	}
	if xzEq(e.a, n.a) && xzEq(e.b, n.b) {
		return yOk(e.a, n.a) && yOk(e.b, n.b)
	}
	return false
}

// edgesOverlap reports whether two boundary edges share more than a
// point of the boundary line, using the axis the edges vary along.
func edgesOverlap(e, n portalEdge, dir int) bool {
	axis := 2 // dir 0/2 boundaries run along z
	if dir == 1 || dir == 3 {
		axis = 0
	}
	emin, emax := minmax(e.a[axis], e.b[axis])
	nmin, nmax := minmax(n.a[axis], n.b[axis])
	return max(emin, nmin) < min(emax, nmax)
}

func minmax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

// Stitch links the tile at c to every already-present neighbour.
// Matching is exact in global cell coordinates; edges that overlap a
// neighbour without matching produce an ErrStitchMismatch warning.
// Restitching the same tile is idempotent.
func Stitch(nm *NavMesh, c Coord, walkableClimb int) []error {
	t := nm.Tile(c)
	if t == nil {
		return nil
	}

	var warnings []error
	for dir := 0; dir < 4; dir++ {
		nc := neighborCoord(c, dir)
		n := nm.Tile(nc)
		if n == nil {
			continue
		}
		// Drop stale links from a previous build of either tile.
		dropLinksTo(t, nc)
		dropLinksTo(n, c)

		mine := portalEdges(nm, t, dir)
		theirs := portalEdges(nm, n, (dir+2)&3)
		for _, e := range mine {
			matched := false
			for _, ne := range theirs {
				if edgesMatch(e, ne, walkableClimb) {
					t.Links = append(t.Links, Link{Poly: e.poly, Edge: e.edge, Neighbor: nc, NeighborPoly: ne.poly})
					n.Links = append(n.Links, Link{Poly: ne.poly, Edge: ne.edge, Neighbor: c, NeighborPoly: e.poly})
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			for _, ne := range theirs {
				if edgesOverlap(e, ne, dir) {
					warnings = append(warnings, fmt.Errorf("%w: tile %v poly %d edge %d against tile %v poly %d",
						ErrStitchMismatch, c, e.poly, e.edge, nc, ne.poly))
					break
				}
			}
		}
		sortLinks(n.Links)
	}
	sortLinks(t.Links)
	return warnings
}
