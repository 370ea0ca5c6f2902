package pipeline

import "navforge/common"

const nullIdx = int32(-1)

// Span is one solid vertical interval in a heightfield column. Columns
// link through arena indices rather than pointers, so an entire field is
// released in one step and rebuilds reuse nothing across tiles.
type Span struct {
	SMin int // lower cell, inclusive
	SMax int // upper cell, inclusive
	Area uint8
	next int32
}

// Heightfield is the voxelized representation of the source geometry for
// one tile.
type Heightfield struct {
	Width  int
	Height int
	BMin   [3]float32
	BMax   [3]float32
	Cs     float32
	Ch     float32

	columns  []int32 // head span index per cell, nullIdx when empty
	spans    []Span  // span arena
	freelist int32
}

func NewHeightfield(width, height int, bmin, bmax [3]float32, cs, ch float32) *Heightfield {
	hf := &Heightfield{
		Width:    width,
		Height:   height,
		BMin:     bmin,
		BMax:     bmax,
		Cs:       cs,
		Ch:       ch,
		columns:  make([]int32, width*height),
		freelist: nullIdx,
	}
	for i := range hf.columns {
		hf.columns[i] = nullIdx
	}
	return hf
}

// SpanHead returns the arena index of the lowest span in column (x,y), or
// a negative value for an empty column.
func (hf *Heightfield) SpanHead(x, y int) int32 {
	return hf.columns[x+y*hf.Width]
}

// SpanAt resolves an arena index returned by SpanHead or Next.
func (hf *Heightfield) SpanAt(i int32) *Span { return &hf.spans[i] }

// Next returns the arena index of the span above i, or a negative value.
func (hf *Heightfield) Next(i int32) int32 { return hf.spans[i].next }

func (hf *Heightfield) allocSpan() int32 {
	if hf.freelist != nullIdx {
		i := hf.freelist
		hf.freelist = hf.spans[i].next
		return i
	}
	hf.spans = append(hf.spans, Span{})
	return int32(len(hf.spans) - 1)
}

func (hf *Heightfield) freeSpan(i int32) {
	hf.spans[i].next = hf.freelist
	hf.freelist = i
}

// AddSpan inserts the interval [smin,smax] into column (x,y), merging any
// overlapping spans. When the merged tops are within mergeThr cells the
// higher area id wins.
func (hf *Heightfield) AddSpan(x, y, smin, smax int, area uint8, mergeThr int) {
	idx := hf.allocSpan()
	hf.spans[idx] = Span{SMin: smin, SMax: smax, Area: area, next: nullIdx}

	col := x + y*hf.Width
	prev := nullIdx
	cur := hf.columns[col]

	// Insert, merge and remove overlapping spans in one pass; the column
	// stays sorted by SMin.
	for cur != nullIdx {
		c := hf.spans[cur]
		if c.SMin > hf.spans[idx].SMax {
			// Past the new span, insertion point found.
			break
		}
		if c.SMax < hf.spans[idx].SMin {
			prev = cur
			cur = c.next
			continue
		}
		s := &hf.spans[idx]
		if c.SMin < s.SMin {
			s.SMin = c.SMin
		}
		if c.SMax > s.SMax {
			s.SMax = c.SMax
		}
		if common.Abs(s.SMax-c.SMax) <= mergeThr {
			s.Area = max(s.Area, c.Area)
		}
		next := c.next
		hf.freeSpan(cur)
		if prev != nullIdx {
			hf.spans[prev].next = next
		} else {
			hf.columns[col] = next
		}
		cur = next
	}

	if prev != nullIdx {
		hf.spans[idx].next = hf.spans[prev].next
		hf.spans[prev].next = idx
	} else {
		hf.spans[idx].next = hf.columns[col]
		hf.columns[col] = idx
	}
}
