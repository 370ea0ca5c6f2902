package tile

import (
	"errors"
	"testing"

	"navforge/pipeline"
)

// portalQuadTile is quadTile with one polygon edge flagged as a portal
// in the given direction.
func portalQuadTile(c Coord, bmin [3]float32, size, portalEdge, portalDir int) *Tile {
	t := quadTile(c, bmin, size, 1)
	t.Mesh.Polys[t.Mesh.Nvp+portalEdge] = pipeline.BorderReg | portalDir
	return t
}

func TestStitchLinksMatchingEdges(t *testing.T) {
	nm := New([3]float32{0, 0, 0}, 5, 5)
	// East edge of A (verts 1->2 at x=size) faces west edge of B
	// (verts 3->0 at x=0).
	a := portalQuadTile(Coord{0, 0}, [3]float32{0, 0, 0}, 10, 1, 2)
	b := portalQuadTile(Coord{1, 0}, [3]float32{5, 0, 0}, 10, 3, 0)
	nm.AddTile(a)
	nm.AddTile(b)

	warnings := Stitch(nm, Coord{1, 0}, 4)
	assertTrue(t, len(warnings) == 0, "warnings: %v", warnings)
	assertTrue(t, len(a.Links) == 1, "a links: %v", a.Links)
	assertTrue(t, len(b.Links) == 1, "b links: %v", b.Links)
	assertTrue(t, a.Links[0].Neighbor == b.Coord && a.Links[0].Edge == 1, "a link %v", a.Links[0])
	assertTrue(t, b.Links[0].Neighbor == a.Coord && b.Links[0].Edge == 3, "b link %v", b.Links[0])

	// Restitching is idempotent.
	warnings = Stitch(nm, Coord{1, 0}, 4)
	assertTrue(t, len(warnings) == 0, "restitch warnings: %v", warnings)
	assertTrue(t, len(a.Links) == 1 && len(b.Links) == 1,
		"restitch duplicated links: %d/%d", len(a.Links), len(b.Links))
}

func TestStitchHeightTolerance(t *testing.T) {
	nm := New([3]float32{0, 0, 0}, 5, 5)
	a := portalQuadTile(Coord{0, 0}, [3]float32{0, 0, 0}, 10, 1, 2)
	b := portalQuadTile(Coord{1, 0}, [3]float32{5, 0, 0}, 10, 3, 0)
	// Raise B's floor beyond climb range.
	for i := 0; i < b.Mesh.NVerts; i++ {
		b.Mesh.Verts[i*3+1] += 20
	}
	nm.AddTile(a)
	nm.AddTile(b)

	warnings := Stitch(nm, Coord{0, 0}, 4)
	assertTrue(t, len(a.Links) == 0, "linked across a cliff: %v", a.Links)
	assertTrue(t, len(warnings) == 1 && errors.Is(warnings[0], ErrStitchMismatch),
		"warnings: %v", warnings)
}

func TestStitchMismatchedEdges(t *testing.T) {
	nm := New([3]float32{0, 0, 0}, 5, 5)
	a := portalQuadTile(Coord{0, 0}, [3]float32{0, 0, 0}, 10, 1, 2)
	b := portalQuadTile(Coord{1, 0}, [3]float32{5, 0, 0}, 10, 3, 0)
	// Shift B's west edge along z so the portals overlap without
	// matching.
	b.Mesh.Verts[0*3+2] = 3  // v0 z
	b.Mesh.Verts[3*3+2] = 12 // v3 z
	nm.AddTile(a)
	nm.AddTile(b)

	warnings := Stitch(nm, Coord{0, 0}, 4)
	assertTrue(t, len(a.Links) == 0 && len(b.Links) == 0, "mismatched edges linked")
	assertTrue(t, len(warnings) == 1 && errors.Is(warnings[0], ErrStitchMismatch),
		"warnings: %v", warnings)
}

func TestStitchIgnoresMissingNeighbors(t *testing.T) {
	nm := New([3]float32{0, 0, 0}, 5, 5)
	nm.AddTile(portalQuadTile(Coord{0, 0}, [3]float32{0, 0, 0}, 10, 1, 2))
	warnings := Stitch(nm, Coord{0, 0}, 4)
	assertTrue(t, len(warnings) == 0, "warnings without neighbors: %v", warnings)
	assertTrue(t, len(nm.Tile(Coord{0, 0}).Links) == 0, "links without neighbors")
}
