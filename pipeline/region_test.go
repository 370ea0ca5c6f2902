package pipeline

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"navforge/geometry"
)

// buildRegionsFor runs the pipeline through BuildRegions and returns the
// compact heightfield with span region ids assigned.
func buildRegionsFor(t *testing.T, geom *geometry.Mesh, cfg *Config) *CompactHeightfield {
	t.Helper()
	rmin := mgl32.Vec2{cfg.BMin[0], cfg.BMin[2]}
	rmax := mgl32.Vec2{cfg.BMax[0], cfg.BMax[2]}
	tris, areas := geom.TrianglesInRect(rmin, rmax)
	if len(tris) == 0 {
		t.Fatal("no triangles in build bounds")
	}
	verts := geom.Verts()
	geometry.MarkWalkableTriangles(cfg.WalkableSlopeAngle, verts, tris, areas, WalkableArea)

	hf := NewHeightfield(cfg.Width, cfg.Height, cfg.BMin, cfg.BMax, cfg.Cs, cfg.Ch)
	RasterizeTriangles(hf, verts, tris, areas, cfg.WalkableClimb)
	FilterLowHangingWalkableObstacles(cfg.WalkableClimb, hf)
	FilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	FilterWalkableLowHeightSpans(cfg.WalkableHeight, hf)

	chf, err := BuildCompactHeightfield(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	if err != nil {
		t.Fatalf("BuildCompactHeightfield: %v", err)
	}
	BuildDistanceField(chf)
	if err := BuildRegions(chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea); err != nil {
		t.Fatalf("BuildRegions: %v", err)
	}
	return chf
}

// TestRegionIdsOwnSpans drives the merge and filter passes over a plane
// with a hole plus an island too small to survive, then requires every
// remaining region id to own at least one span and every span to
// reference a live id.
func TestRegionIdsOwnSpans(t *testing.T) {
	c := geometry.NewCollector()
	planeQuad(t, c, 0, 0, 10, 4)
	planeQuad(t, c, 0, 6, 10, 10)
	planeQuad(t, c, 0, 4, 4, 6)
	planeQuad(t, c, 6, 4, 10, 6)
	planeQuad(t, c, 11, 0, 13, 2) // 4x4 cells, discarded below MinRegionArea
	geom, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	cfg := testConfig()
	cfg.BMax = [3]float32{14, 1, 10}
	cfg.Width, cfg.Height = CalcGridSize(cfg.BMin, cfg.BMax, cfg.Cs)
	cfg.MergeRegionArea = 50 // low enough that watershed floods get folded
	chf := buildRegionsFor(t, geom, cfg)

	assertTrue(t, chf.MaxRegions >= 1, "no regions built")

	counts := make(map[int]int)
	for i := 0; i < chf.SpanCount; i++ {
		reg := chf.Spans[i].Reg
		if reg == 0 || reg&BorderReg != 0 {
			continue
		}
		assertTrue(t, reg >= 1 && reg <= chf.MaxRegions,
			"span %d references region %d outside [1,%d]", i, reg, chf.MaxRegions)
		counts[reg]++
	}
	for id := 1; id <= chf.MaxRegions; id++ {
		assertTrue(t, counts[id] > 0, "region id %d owns no spans", id)
	}
}
