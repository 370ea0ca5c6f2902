package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func assertTrue(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// quad adds an upward-facing axis-aligned quad at y to the collector.
func quad(t *testing.T, c *Collector, x0, z0, x1, z1, y float32, area uint8) {
	t.Helper()
	verts := []float32{
		x0, y, z0,
		x1, y, z0,
		x1, y, z1,
		x0, y, z1,
	}
	tris := []int{0, 3, 2, 0, 2, 1}
	if err := c.AddMesh(verts, tris, area); err != nil {
		t.Fatalf("AddMesh: %v", err)
	}
}

func TestAddMeshValidation(t *testing.T) {
	c := NewCollector()
	if err := c.AddMesh([]float32{0, 0}, nil, 0); err == nil {
		t.Fatal("truncated vertex array accepted")
	}
	if err := c.AddMesh([]float32{0, 0, 0}, []int{0, 0}, 0); err == nil {
		t.Fatal("truncated triangle array accepted")
	}
	if err := c.AddMesh([]float32{0, 0, 0}, []int{0, 0, 1}, 0); err == nil {
		t.Fatal("out-of-range index accepted")
	}
}

func TestAddMeshRebasesIndices(t *testing.T) {
	c := NewCollector()
	quad(t, c, 0, 0, 1, 1, 0, 1)
	quad(t, c, 2, 0, 3, 1, 0, 2)
	m, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertTrue(t, m.TriCount() == 4, "TriCount = %d", m.TriCount())
	assertTrue(t, m.BoundsMin() == mgl32.Vec3{0, 0, 0}, "BoundsMin = %v", m.BoundsMin())
	assertTrue(t, m.BoundsMax() == mgl32.Vec3{3, 0, 1}, "BoundsMax = %v", m.BoundsMax())
}

func TestSnapshotEmpty(t *testing.T) {
	m, err := NewCollector().Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertTrue(t, m.TriCount() == 0, "TriCount = %d", m.TriCount())
	tris, areas := m.TrianglesInRect(mgl32.Vec2{-100, -100}, mgl32.Vec2{100, 100})
	assertTrue(t, len(tris) == 0 && len(areas) == 0, "empty mesh returned triangles")
}

// TestTrianglesInRectExact builds a grid of separated quads and checks
// the chunky index returns exactly the triangles overlapping each query
// rect, compared against a brute-force scan.
func TestTrianglesInRectExact(t *testing.T) {
	c := NewCollector()
	const n = 8
	for gz := 0; gz < n; gz++ {
		for gx := 0; gx < n; gx++ {
			x := float32(gx) * 2
			z := float32(gz) * 2
			quad(t, c, x, z, x+1, z+1, 0, uint8(1+(gx+gz*n)%200))
		}
	}
	m, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	overlapBrute := func(rmin, rmax mgl32.Vec2) map[[2]float32]int {
		got := map[[2]float32]int{}
		verts := m.Verts()
		for i := 0; i < m.TriCount(); i++ {
			minx, minz := float32(1e9), float32(1e9)
			maxx, maxz := float32(-1e9), float32(-1e9)
			for j := 0; j < 3; j++ {
				v := verts[m.tris[i*3+j]*3:]
				minx = min(minx, v[0])
				maxx = max(maxx, v[0])
				minz = min(minz, v[2])
				maxz = max(maxz, v[2])
			}
			if maxx < rmin.X() || minx > rmax.X() || maxz < rmin.Y() || minz > rmax.Y() {
				continue
			}
			got[[2]float32{minx, minz}]++
		}
		return got
	}

	queries := [][4]float32{
		{0, 0, 1, 1},
		{0.5, 0.5, 4.5, 4.5},
		{-5, -5, 100, 100},
		{3, 3, 3.2, 3.2}, // gap between quads
	}
	for _, q := range queries {
		rmin := mgl32.Vec2{q[0], q[1]}
		rmax := mgl32.Vec2{q[2], q[3]}
		tris, areas := m.TrianglesInRect(rmin, rmax)
		assertTrue(t, len(tris) == len(areas)*3, "tris/areas out of sync: %d vs %d", len(tris), len(areas))

		got := map[[2]float32]int{}
		for i := 0; i < len(tris)/3; i++ {
			minx, minz := float32(1e9), float32(1e9)
			for j := 0; j < 3; j++ {
				v := m.Verts()[tris[i*3+j]*3:]
				minx = min(minx, v[0])
				minz = min(minz, v[2])
			}
			got[[2]float32{minx, minz}]++
		}
		want := overlapBrute(rmin, rmax)
		assertTrue(t, len(got) == len(want), "query %v: %d quads, want %d", q, len(got), len(want))
		for k, v := range want {
			assertTrue(t, got[k] == v, "query %v: quad %v count %d, want %d", q, k, got[k], v)
		}
	}
}

func TestTrianglesInRectReturnsCopies(t *testing.T) {
	c := NewCollector()
	quad(t, c, 0, 0, 1, 1, 0, 7)
	m, _ := c.Snapshot()

	_, areas := m.TrianglesInRect(mgl32.Vec2{0, 0}, mgl32.Vec2{1, 1})
	for i := range areas {
		areas[i] = 0
	}
	_, again := m.TrianglesInRect(mgl32.Vec2{0, 0}, mgl32.Vec2{1, 1})
	for _, a := range again {
		assertTrue(t, a == 7, "snapshot areas mutated through query result")
	}
}

func TestMarkWalkableTriangles(t *testing.T) {
	// One flat triangle, one vertical wall.
	verts := []float32{
		0, 0, 0,
		1, 0, 1,
		1, 0, 0,
		0, 0, 0,
		0, 1, 0,
		1, 1, 0,
	}
	tris := []int{0, 1, 2, 3, 4, 5}
	areas := []uint8{0, 0}
	MarkWalkableTriangles(45, verts, tris, areas, 63)
	assertTrue(t, areas[0] == 63, "flat triangle not marked: %d", areas[0])
	assertTrue(t, areas[1] == 0, "wall marked walkable: %d", areas[1])
}
