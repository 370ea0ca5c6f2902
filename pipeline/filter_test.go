package pipeline

import "testing"

func TestFilterLowHangingWalkableObstacles(t *testing.T) {
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 30, 1}, 1, 1)
	// Walkable floor with a thin unwalkable lip just above it, and a tall
	// unwalkable block far above.
	hf.AddSpan(0, 0, 0, 2, WalkableArea, 1)
	hf.AddSpan(0, 0, 4, 5, NullArea, 1)
	hf.AddSpan(0, 0, 10, 20, NullArea, 1)

	FilterLowHangingWalkableObstacles(3, hf)

	var areas []uint8
	for i := hf.SpanHead(0, 0); i >= 0; i = hf.Next(i) {
		areas = append(areas, hf.SpanAt(i).Area)
	}
	if len(areas) != 3 {
		t.Fatalf("span count %d", len(areas))
	}
	if areas[1] != WalkableArea {
		t.Fatalf("low lip not reclaimed: %d", areas[1])
	}
	if areas[2] != NullArea {
		t.Fatalf("tall block reclaimed: %d", areas[2])
	}
}

func TestFilterLowHangingDoesNotChain(t *testing.T) {
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 30, 1}, 1, 1)
	// Stacked unwalkable steps: only the first one above the walkable
	// floor may be reclaimed.
	hf.AddSpan(0, 0, 0, 2, WalkableArea, 1)
	hf.AddSpan(0, 0, 3, 4, NullArea, 1)
	hf.AddSpan(0, 0, 5, 6, NullArea, 1)

	FilterLowHangingWalkableObstacles(3, hf)

	var areas []uint8
	for i := hf.SpanHead(0, 0); i >= 0; i = hf.Next(i) {
		areas = append(areas, hf.SpanAt(i).Area)
	}
	if areas[1] != WalkableArea {
		t.Fatalf("first step not reclaimed: %d", areas[1])
	}
	if areas[2] != NullArea {
		t.Fatalf("reclaim chained past the original walkable span: %d", areas[2])
	}
}

func TestFilterLedgeSpans(t *testing.T) {
	hf := NewHeightfield(3, 3, [3]float32{}, [3]float32{3, 30, 3}, 1, 1)
	// A lone pillar: every neighbour column is empty, so the drop is a
	// ledge on all sides.
	hf.AddSpan(1, 1, 0, 10, WalkableArea, 1)
	FilterLedgeSpans(5, 2, hf)
	if a := hf.SpanAt(hf.SpanHead(1, 1)).Area; a != NullArea {
		t.Fatalf("pillar top kept: %d", a)
	}

	// A full plateau: all spans at the same height, interior span keeps
	// its area.
	hf2 := NewHeightfield(3, 3, [3]float32{}, [3]float32{3, 30, 3}, 1, 1)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			hf2.AddSpan(x, y, 0, 1, WalkableArea, 1)
		}
	}
	FilterLedgeSpans(5, 2, hf2)
	if a := hf2.SpanAt(hf2.SpanHead(1, 1)).Area; a != WalkableArea {
		t.Fatalf("plateau interior dropped: %d", a)
	}
	// Edge spans border the void outside the grid, which always counts
	// as an unclimbable drop.
	if a := hf2.SpanAt(hf2.SpanHead(0, 0)).Area; a != NullArea {
		t.Fatalf("plateau edge kept: %d", a)
	}
}

func TestFilterWalkableLowHeightSpans(t *testing.T) {
	hf := NewHeightfield(1, 1, [3]float32{}, [3]float32{1, 30, 1}, 1, 1)
	// Floor with a ceiling 3 cells above: too tight for an agent that
	// needs 5.
	hf.AddSpan(0, 0, 0, 2, WalkableArea, 1)
	hf.AddSpan(0, 0, 5, 8, WalkableArea, 1)

	FilterWalkableLowHeightSpans(5, hf)

	i := hf.SpanHead(0, 0)
	if a := hf.SpanAt(i).Area; a != NullArea {
		t.Fatalf("cramped floor kept: %d", a)
	}
}
