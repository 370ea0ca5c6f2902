package pipeline

import "testing"

func assertTrue(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func spanCount(hf *Heightfield) int {
	n := 0
	for y := 0; y < hf.Height; y++ {
		for x := 0; x < hf.Width; x++ {
			for i := hf.SpanHead(x, y); i >= 0; i = hf.Next(i) {
				n++
			}
		}
	}
	return n
}

func TestAddSpanMergesOverlap(t *testing.T) {
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 10, 1}, 1, 1)
	hf.AddSpan(0, 0, 0, 3, 0, 1)
	hf.AddSpan(0, 0, 2, 5, WalkableArea, 1)

	i := hf.SpanHead(0, 0)
	assertTrue(t, i >= 0, "column empty")
	s := hf.SpanAt(i)
	assertTrue(t, s.SMin == 0 && s.SMax == 5, "merged span [%d,%d]", s.SMin, s.SMax)
	assertTrue(t, s.Area == WalkableArea, "merged area %d", s.Area)
	assertTrue(t, hf.Next(i) < 0, "extra span left in column")
}

func TestAddSpanKeepsDisjointSorted(t *testing.T) {
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 20, 1}, 1, 1)
	hf.AddSpan(0, 0, 10, 12, 0, 1)
	hf.AddSpan(0, 0, 0, 2, WalkableArea, 1)
	hf.AddSpan(0, 0, 5, 6, 0, 1)

	var mins []int
	for i := hf.SpanHead(0, 0); i >= 0; i = hf.Next(i) {
		mins = append(mins, hf.SpanAt(i).SMin)
	}
	assertTrue(t, len(mins) == 3, "span count %d", len(mins))
	assertTrue(t, mins[0] == 0 && mins[1] == 5 && mins[2] == 10, "column order %v", mins)
}

func TestAddSpanAreaMergeThreshold(t *testing.T) {
	// The merged top is the taller span's surface, so its area id wins.
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 20, 1}, 1, 1)
	hf.AddSpan(0, 0, 0, 10, WalkableArea, 1)
	hf.AddSpan(0, 0, 0, 3, 0, 1)
	s := hf.SpanAt(hf.SpanHead(0, 0))
	assertTrue(t, s.SMax == 10, "top %d", s.SMax)
	assertTrue(t, s.Area == WalkableArea, "area %d lost on far merge", s.Area)
}

func TestRasterizeSingleTriangle(t *testing.T) {
	hf := NewHeightfield(10, 10, [3]float32{0, 0, 0}, [3]float32{10, 10, 10}, 1, 1)
	verts := []float32{
		0.5, 0.5, 0.5,
		0.5, 0.5, 8.5,
		8.5, 0.5, 0.5,
	}
	RasterizeTriangles(hf, verts, []int{0, 1, 2}, []uint8{WalkableArea}, 1)

	// The corner cell is covered.
	i := hf.SpanHead(0, 0)
	assertTrue(t, i >= 0, "corner cell empty")
	s := hf.SpanAt(i)
	assertTrue(t, s.SMin == 0 && s.SMax == 1, "corner span [%d,%d]", s.SMin, s.SMax)
	assertTrue(t, s.Area == WalkableArea, "corner area %d", s.Area)

	// The opposite corner is outside the triangle.
	assertTrue(t, hf.SpanHead(9, 9) < 0, "cell (9,9) should be empty")
	assertTrue(t, spanCount(hf) > 0, "no spans rasterized")
}

func TestRasterizeOutsideBounds(t *testing.T) {
	hf := NewHeightfield(4, 4, [3]float32{0, 0, 0}, [3]float32{4, 4, 4}, 1, 1)
	verts := []float32{
		100, 0, 100,
		101, 0, 100,
		100, 0, 101,
	}
	RasterizeTriangles(hf, verts, []int{0, 1, 2}, []uint8{WalkableArea}, 1)
	assertTrue(t, spanCount(hf) == 0, "out-of-bounds triangle produced spans")
}

func TestRasterizeClampsBelowGrid(t *testing.T) {
	// Geometry dipping below the heightfield clamps into the bottom cell
	// instead of vanishing.
	hf := NewHeightfield(2, 2, [3]float32{0, 0, 0}, [3]float32{2, 4, 2}, 1, 1)
	verts := []float32{
		0, -5, 0,
		2, 0.5, 0,
		0, 0.5, 2,
	}
	RasterizeTriangles(hf, verts, []int{0, 1, 2}, []uint8{WalkableArea}, 1)
	i := hf.SpanHead(0, 0)
	assertTrue(t, i >= 0, "clamped triangle lost")
	s := hf.SpanAt(i)
	assertTrue(t, s.SMin == 0, "clamped span starts at %d", s.SMin)
}
