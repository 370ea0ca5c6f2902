package pipeline

import (
	"context"
	"errors"
	"testing"

	"navforge/common"
	"navforge/geometry"
)

// planeQuad appends an upward-facing quad at y=0 to the collector.
func planeQuad(t *testing.T, c *geometry.Collector, x0, z0, x1, z1 float32) {
	t.Helper()
	verts := []float32{
		x0, 0, z0,
		x1, 0, z0,
		x1, 0, z1,
		x0, 0, z1,
	}
	tris := []int{0, 3, 2, 0, 2, 1}
	if err := c.AddMesh(verts, tris, 0); err != nil {
		t.Fatalf("AddMesh: %v", err)
	}
}

func testConfig() *Config {
	cfg := &Config{
		Cs:                     0.5,
		Ch:                     0.2,
		BMin:                   [3]float32{0, -0.5, 0},
		BMax:                   [3]float32{10, 1, 10},
		WalkableSlopeAngle:     45,
		WalkableHeight:         10,
		WalkableClimb:          4,
		WalkableRadius:         0,
		MaxEdgeLen:             24,
		MaxSimplificationError: 1.3,
		MinRegionArea:          8,
		MergeRegionArea:        400,
		MaxVertsPerPoly:        6,
		DetailSampleDist:       3,
		DetailSampleMaxError:   0.2,
	}
	cfg.Width, cfg.Height = CalcGridSize(cfg.BMin, cfg.BMax, cfg.Cs)
	return cfg
}

// meshAreaCells sums the xz area of every polygon, in cell^2 units.
func meshAreaCells(m *PolyMesh) int {
	total := 0
	var verts [][]int
	for i := 0; i < m.NPolys; i++ {
		p := m.Polys[i*m.Nvp*2:]
		verts = verts[:0]
		for j := 0; j < m.Nvp; j++ {
			if p[j] == MeshNullIdx {
				break
			}
			verts = append(verts, m.Verts[p[j]*3:])
		}
		area2 := 0
		for j := 2; j < len(verts); j++ {
			a, b, c := verts[0], verts[j-1], verts[j]
			area2 += (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
		}
		total += common.Abs(area2) / 2
	}
	return total
}

// TestFlatPlane builds a 10x10 plane as a single tile. The ledge filter
// trims the outermost cell ring, everything inside meshes into polygons
// covering the surface exactly.
func TestFlatPlane(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 0, 0, 10, 10)
	geom, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	cfg := testConfig()
	res, err := Run(context.Background(), geom, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertTrue(t, len(res.Warnings) == 0, "warnings: %v", res.Warnings)
	assertTrue(t, len(res.Contours.Conts) == 1, "contours = %d", len(res.Contours.Conts))
	assertTrue(t, res.Mesh.NPolys >= 1, "no polygons")

	// 20x20 grid minus the boundary ring.
	want := (cfg.Width - 2) * (cfg.Height - 2)
	got := meshAreaCells(res.Mesh)
	assertTrue(t, got == want, "covered area %d cells, want %d", got, want)

	for i := 0; i < res.Mesh.NPolys; i++ {
		assertTrue(t, res.Mesh.Regs[i] != 0, "poly %d has no region", i)
		assertTrue(t, res.Mesh.Areas[i] == WalkableArea, "poly %d area id %d", i, res.Mesh.Areas[i])
	}
	assertTrue(t, len(res.Detail.Meshes) == res.Mesh.NPolys*4,
		"detail submeshes %d for %d polys", len(res.Detail.Meshes)/4, res.Mesh.NPolys)
}

// TestPlaneWithHole cuts a 2x2 hole out of the plane: the region gets an
// outline contour plus a hole contour, and the hole contour is folded
// into the outline leaving its own vertex list empty.
func TestPlaneWithHole(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 0, 0, 10, 4)  // south strip
	planeQuad(t, c, 0, 6, 10, 10) // north strip
	planeQuad(t, c, 0, 4, 4, 6)   // west strip
	planeQuad(t, c, 6, 4, 10, 6)  // east strip
	geom, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	cfg := testConfig()
	res, err := Run(context.Background(), geom, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertTrue(t, len(res.Warnings) == 0, "warnings: %v", res.Warnings)
	assertTrue(t, len(res.Contours.Conts) == 2, "contours = %d", len(res.Contours.Conts))

	merged := 0
	for _, cont := range res.Contours.Conts {
		if len(cont.Verts) == 0 {
			merged++
		}
	}
	assertTrue(t, merged == 1, "merged hole contours = %d", merged)

	// The outer ring and one ring around the hole fall to the ledge
	// filter: 18x18 walkable minus the 6x6 blocked square.
	want := 18*18 - 6*6
	got := meshAreaCells(res.Mesh)
	assertTrue(t, got == want, "covered area %d cells, want %d", got, want)
}

func TestRunEmptyGeometry(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 100, 100, 110, 110)
	geom, _ := c.Snapshot()

	cfg := testConfig() // bounds stay at [0,10]
	res, err := Run(context.Background(), geom, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertTrue(t, len(res.Warnings) == 1, "warnings: %v", res.Warnings)
	assertTrue(t, errors.Is(res.Warnings[0], ErrEmptyGeometry), "warning = %v", res.Warnings[0])
	assertTrue(t, res.Mesh.NPolys == 0, "empty tile has %d polys", res.Mesh.NPolys)
}

func TestRunCancelled(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 0, 0, 10, 10)
	geom, _ := c.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, geom, testConfig(), nil)
	assertTrue(t, errors.Is(err, context.Canceled), "err = %v", err)
}

// TestRunDeterministic runs the same build twice and requires identical
// mesh output.
func TestRunDeterministic(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 0, 0, 10, 4)
	planeQuad(t, c, 0, 6, 10, 10)
	planeQuad(t, c, 0, 4, 4, 6)
	planeQuad(t, c, 6, 4, 10, 6)
	geom, _ := c.Snapshot()

	a, err := Run(context.Background(), geom, testConfig(), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Run(context.Background(), geom, testConfig(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	assertTrue(t, a.Mesh.NVerts == b.Mesh.NVerts, "vert counts differ: %d vs %d", a.Mesh.NVerts, b.Mesh.NVerts)
	assertTrue(t, a.Mesh.NPolys == b.Mesh.NPolys, "poly counts differ: %d vs %d", a.Mesh.NPolys, b.Mesh.NPolys)
	for i := range a.Mesh.Verts {
		assertTrue(t, a.Mesh.Verts[i] == b.Mesh.Verts[i], "vert %d differs", i)
	}
	for i := range a.Mesh.Polys {
		assertTrue(t, a.Mesh.Polys[i] == b.Mesh.Polys[i], "poly slot %d differs", i)
	}
}
