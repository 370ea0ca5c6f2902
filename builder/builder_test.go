package builder

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"navforge/geometry"
	"navforge/tile"
)

func assertTrue(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func planeGeom(t *testing.T, x0, z0, x1, z1 float32) *geometry.Mesh {
	t.Helper()
	c := geometry.NewCollector()
	verts := []float32{
		x0, 0, z0,
		x1, 0, z0,
		x1, 0, z1,
		x0, 0, z1,
	}
	if err := c.AddMesh(verts, []int{0, 3, 2, 0, 2, 1}, 0); err != nil {
		t.Fatalf("AddMesh: %v", err)
	}
	m, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return m
}

func testSettings() Settings {
	s := DefaultSettings()
	s.CellSize = 0.5
	s.AgentRadius = 0.1 // one cell of erosion, small grids survive
	s.RegionMinSize = 2
	s.TileSize = 0
	return s
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	s := testSettings()
	s.CellSize = 0
	_, err := New(geom, s)
	assertTrue(t, errors.Is(err, ErrInvalidSettings), "err = %v", err)
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero cell size", func(s *Settings) { s.CellSize = 0 }},
		{"zero cell height", func(s *Settings) { s.CellHeight = 0 }},
		{"negative radius", func(s *Settings) { s.AgentRadius = -1 }},
		{"zero radius", func(s *Settings) { s.AgentRadius = 0 }},
		{"vertical slope", func(s *Settings) { s.AgentMaxSlope = 90 }},
		{"two verts per poly", func(s *Settings) { s.VertsPerPoly = 2 }},
		{"oversized poly", func(s *Settings) { s.VertsPerPoly = 7 }},
		{"negative tile size", func(s *Settings) { s.TileSize = -1 }},
	}
	for _, tc := range cases {
		s := DefaultSettings()
		tc.mutate(&s)
		err := s.Validate()
		assertTrue(t, errors.Is(err, ErrInvalidSettings), "%s: err = %v", tc.name, err)
	}
	s := DefaultSettings()
	assertTrue(t, s.Validate() == nil, "defaults rejected: %v", s.Validate())
}

func TestSingleTileBuild(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	b, err := New(geom, testSettings())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	diag, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertTrue(t, len(diag.Warnings) == 0, "warnings: %v", diag.Warnings)
	assertTrue(t, len(diag.Failed) == 0, "failed: %v", diag.Failed)

	nm := b.NavMesh()
	assertTrue(t, nm.TileCount() == 1, "tiles = %d", nm.TileCount())
	tl := nm.Tile(tile.Coord{X: 0, Y: 0})
	assertTrue(t, tl != nil && tl.Mesh.NPolys > 0, "tile empty")
	assertTrue(t, b.State(tile.Coord{X: 0, Y: 0}) == StateReady, "state = %v", b.State(tile.Coord{X: 0, Y: 0}))
}

// TestTiledBuildStitches splits the plane into four tiles and requires
// every adjacent pair to stitch without mismatches.
func TestTiledBuildStitches(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	s := testSettings()
	s.TileSize = 10 // 20x20 cell grid -> 2x2 tiles
	b, err := New(geom, s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tw, th := b.TileGrid()
	assertTrue(t, tw == 2 && th == 2, "grid %dx%d", tw, th)

	diag, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, w := range diag.Warnings {
		assertTrue(t, !errors.Is(w.Err, ErrStitchMismatch), "stitch mismatch: %v", w)
	}
	assertTrue(t, len(diag.Failed) == 0, "failed: %v", diag.Failed)
	assertTrue(t, b.NavMesh().TileCount() == 4, "tiles = %d", b.NavMesh().TileCount())

	linked := 0
	for _, c := range b.NavMesh().Coords() {
		linked += len(b.NavMesh().Tile(c).Links)
	}
	assertTrue(t, linked > 0, "no portal links created")
}

func TestBuildTileInProgressRejected(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	b, err := New(geom, testSettings())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := tile.Coord{X: 0, Y: 0}

	b.mu.Lock()
	b.states[c] = StateBuilding
	b.mu.Unlock()

	_, err = b.BuildTile(context.Background(), c)
	assertTrue(t, errors.Is(err, ErrTileBuildInProgress), "err = %v", err)
	_, err = b.Build(context.Background())
	assertTrue(t, errors.Is(err, ErrTileBuildInProgress), "full build err = %v", err)

	b.mu.Lock()
	b.states[c] = StateEmpty
	b.mu.Unlock()
	if _, err := b.BuildTile(context.Background(), c); err != nil {
		t.Fatalf("BuildTile after release: %v", err)
	}
}

func TestBuildTileOutsideGrid(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	b, _ := New(geom, testSettings())
	_, err := b.BuildTile(context.Background(), tile.Coord{X: 5, Y: 0})
	assertTrue(t, err != nil, "out-of-grid coord accepted")
}

func TestBuildCancelled(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	b, _ := New(geom, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Build(ctx)
	assertTrue(t, errors.Is(err, ErrBuildCancelled), "err = %v", err)
	assertTrue(t, b.NavMesh().TileCount() == 0, "cancelled build published tiles")
	assertTrue(t, b.State(tile.Coord{X: 0, Y: 0}) == StateEmpty, "state = %v", b.State(tile.Coord{X: 0, Y: 0}))
}

func TestClearIdempotent(t *testing.T) {
	geom := planeGeom(t, 0, 0, 10, 10)
	b, _ := New(geom, testSettings())
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertTrue(t, b.NavMesh().TileCount() == 1, "build produced no tile")

	b.Clear()
	assertTrue(t, b.NavMesh().TileCount() == 0, "Clear left tiles")
	assertTrue(t, b.State(tile.Coord{X: 0, Y: 0}) == StateEmpty, "Clear left state")
	b.Clear() // no-op
	assertTrue(t, b.NavMesh().TileCount() == 0, "second Clear changed state")

	// Rebuild after clear works.
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	assertTrue(t, b.NavMesh().TileCount() == 1, "rebuild produced no tile")
}

// TestDeterministicRebuild encodes two independent builds of the same
// input and requires identical bytes, including across worker counts.
func TestDeterministicRebuild(t *testing.T) {
	s := testSettings()
	s.TileSize = 10

	build := func(workers int) []byte {
		geom := planeGeom(t, 0, 0, 10, 10)
		b, err := New(geom, s, WithWorkers(workers))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := b.Build(context.Background()); err != nil {
			t.Fatalf("Build: %v", err)
		}
		data, err := b.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return data
	}

	first := build(1)
	second := build(4)
	assertTrue(t, bytes.Equal(first, second), "rebuild bytes differ: %d vs %d", len(first), len(second))

	// Decode/encode keeps the bytes stable too.
	nm, err := tile.Decode(first)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	again, err := tile.Encode(nm)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	assertTrue(t, bytes.Equal(first, again), "decode round trip changed bytes")
}

func TestValidationReport(t *testing.T) {
	s := testSettings()
	bmin := mgl32.Vec3{0, 0, 0}
	bmax := mgl32.Vec3{10, 1, 10}

	report := ValidationReport(s, bmin, bmax)
	assertTrue(t, len(report) > 0, "empty report")

	// Same inputs, same report; no state involved.
	again := ValidationReport(s, bmin, bmax)
	assertTrue(t, len(report) == len(again), "report unstable: %v vs %v", report, again)
	for i := range report {
		assertTrue(t, report[i] == again[i], "report line %d unstable", i)
	}

	s.CellSize = 0
	bad := ValidationReport(s, bmin, bmax)
	assertTrue(t, len(bad) == 1, "invalid settings report: %v", bad)
}

// TestEmptyWorldBuild builds with no collected geometry at all: the
// single tile comes back empty with a warning instead of an error.
func TestEmptyWorldBuild(t *testing.T) {
	geom, err := geometry.NewCollector().Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	b, err := New(geom, testSettings())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	diag, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertTrue(t, len(diag.Failed) == 0, "failed: %v", diag.Failed)

	empty := 0
	for _, w := range diag.Warnings {
		if errors.Is(w.Err, ErrEmptyGeometry) {
			empty++
		}
	}
	assertTrue(t, empty == 1, "warnings: %v", diag.Warnings)
	assertTrue(t, b.NavMesh().TileCount() == 1, "tiles = %d", b.NavMesh().TileCount())
	tl := b.NavMesh().Tile(tile.Coord{X: 0, Y: 0})
	assertTrue(t, tl != nil && tl.Mesh.NPolys == 0, "empty world meshed polygons")
}

func TestEmptyTileWarning(t *testing.T) {
	// Two islands in opposite corners: the tiles between them have no
	// geometry and come back empty with a warning, not an error.
	c := geometry.NewCollector()
	addQuad := func(x0, z0, x1, z1 float32) {
		verts := []float32{
			x0, 0, z0,
			x1, 0, z0,
			x1, 0, z1,
			x0, 0, z1,
		}
		if err := c.AddMesh(verts, []int{0, 3, 2, 0, 2, 1}, 0); err != nil {
			t.Fatalf("AddMesh: %v", err)
		}
	}
	addQuad(0, 0, 5, 5)
	addQuad(15, 15, 20, 20)
	geom, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	s := testSettings()
	s.TileSize = 10 // 40x40 cell grid -> 4x4 tiles
	b, err := New(geom, s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	diag, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertTrue(t, len(diag.Failed) == 0, "failed: %v", diag.Failed)

	empty := 0
	for _, w := range diag.Warnings {
		if errors.Is(w.Err, ErrEmptyGeometry) {
			empty++
		}
	}
	assertTrue(t, empty > 0, "no empty-tile warnings: %v", diag.Warnings)
	assertTrue(t, b.NavMesh().TileCount() == 16, "tiles = %d", b.NavMesh().TileCount())
}
