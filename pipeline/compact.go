package pipeline

import (
	"fmt"

	"navforge/common"
)

// CompactCell indexes the spans of one column in a CompactHeightfield.
type CompactCell struct {
	Index int32 // first span
	Count int32
}

// CompactSpan is one open-space interval. Neighbour connections pack into
// 6 bits per direction.
type CompactSpan struct {
	Y   int // floor cell
	Reg int // region id, 0 for none
	H   int // clearance above the floor, in cells
	con uint32
}

// SetCon stores the neighbour span layer index for a direction.
func (s *CompactSpan) SetCon(dir, i int) {
	shift := uint(dir * 6)
	s.con = (s.con &^ (uint32(0x3f) << shift)) | (uint32(i&0x3f) << shift)
}

// Con returns the neighbour span layer index for a direction, or
// notConnected.
func (s *CompactSpan) Con(dir int) int {
	return int((s.con >> uint(dir*6)) & 0x3f)
}

// CompactHeightfield is the dense walkable-space representation the
// region, contour and detail stages operate on.
type CompactHeightfield struct {
	Width          int
	Height         int
	SpanCount      int
	WalkableHeight int
	WalkableClimb  int
	BorderSize     int
	MaxDistance    int
	MaxRegions     int
	BMin           [3]float32
	BMax           [3]float32
	Cs             float32
	Ch             float32

	Cells []CompactCell
	Spans []CompactSpan
	Dist  []int
	Areas []uint8
}

// BuildCompactHeightfield compacts the walkable spans of a heightfield
// and resolves the 4-neighbour connectivity between them.
func BuildCompactHeightfield(walkableHeight, walkableClimb int, hf *Heightfield) (*CompactHeightfield, error) {
	w := hf.Width
	h := hf.Height

	spanCount := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for i := hf.SpanHead(x, y); i != nullIdx; i = hf.Next(i) {
				if hf.SpanAt(i).Area != NullArea {
					spanCount++
				}
			}
		}
	}

	chf := &CompactHeightfield{
		Width:          w,
		Height:         h,
		SpanCount:      spanCount,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		BMin:           hf.BMin,
		BMax:           hf.BMax,
		Cs:             hf.Cs,
		Ch:             hf.Ch,
		Cells:          make([]CompactCell, w*h),
		Spans:          make([]CompactSpan, spanCount),
		Areas:          make([]uint8, spanCount),
	}
	chf.BMax[1] += float32(walkableHeight) * hf.Ch

	// Fill in cells and spans.
	idx := int32(0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			c.Index = idx
			for i := hf.SpanHead(x, y); i != nullIdx; i = hf.Next(i) {
				s := hf.SpanAt(i)
				if s.Area == NullArea {
					continue
				}
				bot := s.SMax
				top := maxHeight
				if n := hf.Next(i); n != nullIdx {
					top = hf.SpanAt(n).SMin
				}
				cs := &chf.Spans[idx]
				cs.Y = common.Clamp(bot, 0, maxHeight)
				cs.H = common.Clamp(top-bot, 0, maxHeight)
				cs.con = 0xffffff // all directions notConnected
				chf.Areas[idx] = s.Area
				idx++
				c.Count++
			}
		}
	}

	// Find neighbour connections.
	tooHighLayer := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					nx := x + common.DirOffsetX(dir)
					ny := y + common.DirOffsetY(dir)
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					nc := &chf.Cells[nx+ny*w]
					for k := int(nc.Index); k < int(nc.Index+nc.Count); k++ {
						ns := &chf.Spans[k]
						bot := max(s.Y, ns.Y)
						top := min(s.Y+s.H, ns.Y+ns.H)
						if top-bot >= walkableHeight && common.Abs(ns.Y-s.Y) <= walkableClimb {
							lidx := k - int(nc.Index)
							if lidx < 0 || lidx > maxLayerIndex {
								tooHighLayer = true
								continue
							}
							s.SetCon(dir, lidx)
							break
						}
					}
				}
			}
		}
	}
	if tooHighLayer {
		return chf, fmt.Errorf("pipeline: heightfield has more than %d layers, some connections dropped", maxLayerIndex)
	}
	return chf, nil
}

// ErodeWalkableArea shrinks the walkable area by the agent radius so
// polygon edges stay at least that far from obstructions.
func ErodeWalkableArea(radius int, chf *CompactHeightfield) {
	w := chf.Width
	h := chf.Height

	dist := make([]uint8, chf.SpanCount)
	for i := range dist {
		dist[i] = 0xff
	}

	// Boundary cells.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				if chf.Areas[i] == NullArea {
					dist[i] = 0
					continue
				}
				s := &chf.Spans[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == notConnected {
						continue
					}
					nx := x + common.DirOffsetX(dir)
					ny := y + common.DirOffsetY(dir)
					ni := int(chf.Cells[nx+ny*w].Index) + s.Con(dir)
					if chf.Areas[ni] != NullArea {
						nc++
					}
				}
				if nc != 4 {
					dist[i] = 0
				}
			}
		}
	}

	sat := func(d uint8, add int) uint8 {
		v := int(d) + add
		if v > 0xff {
			return 0xff
		}
		return uint8(v)
	}

	// Pass 1: top-left to bottom-right.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				if s.Con(0) != notConnected {
					// (-1,0)
					ax := x + common.DirOffsetX(0)
					ay := y + common.DirOffsetY(0)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(0)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], sat(dist[ai], 2))
					// (-1,-1)
					if as.Con(3) != notConnected {
						aax := ax + common.DirOffsetX(3)
						aay := ay + common.DirOffsetY(3)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(3)
						dist[i] = min(dist[i], sat(dist[aai], 3))
					}
				}
				if s.Con(3) != notConnected {
					// (0,-1)
					ax := x + common.DirOffsetX(3)
					ay := y + common.DirOffsetY(3)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(3)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], sat(dist[ai], 2))
					// (1,-1)
					if as.Con(2) != notConnected {
						aax := ax + common.DirOffsetX(2)
						aay := ay + common.DirOffsetY(2)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(2)
						dist[i] = min(dist[i], sat(dist[aai], 3))
					}
				}
			}
		}
	}

	// Pass 2: bottom-right to top-left.
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				if s.Con(2) != notConnected {
					// (1,0)
					ax := x + common.DirOffsetX(2)
					ay := y + common.DirOffsetY(2)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(2)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], sat(dist[ai], 2))
					// (1,1)
					if as.Con(1) != notConnected {
						aax := ax + common.DirOffsetX(1)
						aay := ay + common.DirOffsetY(1)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(1)
						dist[i] = min(dist[i], sat(dist[aai], 3))
					}
				}
				if s.Con(1) != notConnected {
					// (0,1)
					ax := x + common.DirOffsetX(1)
					ay := y + common.DirOffsetY(1)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(1)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], sat(dist[ai], 2))
					// (-1,1)
					if as.Con(0) != notConnected {
						aax := ax + common.DirOffsetX(0)
						aay := ay + common.DirOffsetY(0)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(0)
						dist[i] = min(dist[i], sat(dist[aai], 3))
					}
				}
			}
		}
	}

	thr := uint8(min(radius*2, 0xff))
	for i := 0; i < chf.SpanCount; i++ {
		if dist[i] < thr {
			chf.Areas[i] = NullArea
		}
	}
}
