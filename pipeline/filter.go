package pipeline

import "navforge/common"

// FilterLowHangingWalkableObstacles keeps a span walkable when an
// unwalkable span sits directly on top of a walkable one within climb
// range, so kerbs and low steps stay traversable.
func FilterLowHangingWalkableObstacles(walkableClimb int, hf *Heightfield) {
	for y := 0; y < hf.Height; y++ {
		for x := 0; x < hf.Width; x++ {
			prevSMax := 0
			prevWalkable := false
			prevArea := NullArea

			for i := hf.SpanHead(x, y); i != nullIdx; i = hf.Next(i) {
				s := hf.SpanAt(i)
				walkable := s.Area != NullArea
				if !walkable && prevWalkable {
					if common.Abs(s.SMax-prevSMax) <= walkableClimb {
						s.Area = prevArea
					}
				}
				// Track the original walkable state so chains of merged
				// spans do not propagate upwards.
				prevWalkable = walkable
				prevArea = s.Area
				prevSMax = s.SMax
			}
		}
	}
}

// FilterLedgeSpans removes spans whose neighbourhood drops further than
// the agent can climb, so polygons never hang over ledges.
func FilterLedgeSpans(walkableHeight, walkableClimb int, hf *Heightfield) {
	w := hf.Width
	h := hf.Height

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
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

				// Lowest reachable neighbour floor, and the accessible
				// floor height spread.
				minNeighborHeight := maxHeight
				accessMin := s.SMax
				accessMax := s.SMax

				for dir := 0; dir < 4; dir++ {
					dx := x + common.DirOffsetX(dir)
					dy := y + common.DirOffsetY(dir)
					if dx < 0 || dy < 0 || dx >= w || dy >= h {
						minNeighborHeight = min(minNeighborHeight, -walkableClimb-bot)
						continue
					}

					// Gap from the tile floor up to the first neighbour
					// span.
					nbot := -walkableClimb
					ntop := maxHeight
					ni := hf.SpanHead(dx, dy)
					if ni != nullIdx {
						ntop = hf.SpanAt(ni).SMin
					}
					if min(top, ntop)-max(bot, nbot) > walkableHeight {
						minNeighborHeight = min(minNeighborHeight, nbot-bot)
					}

					for ; ni != nullIdx; ni = hf.Next(ni) {
						ns := hf.SpanAt(ni)
						nbot = ns.SMax
						ntop = maxHeight
						if nn := hf.Next(ni); nn != nullIdx {
							ntop = hf.SpanAt(nn).SMin
						}
						if min(top, ntop)-max(bot, nbot) > walkableHeight {
							minNeighborHeight = min(minNeighborHeight, nbot-bot)
							if common.Abs(nbot-bot) <= walkableClimb {
								accessMin = min(accessMin, nbot)
								accessMax = max(accessMax, nbot)
							}
						}
					}
				}

				if minNeighborHeight < -walkableClimb {
					// Drop exceeds climb height.
					s.Area = NullArea
				} else if accessMax-accessMin > walkableClimb {
					// Accessible floors are too uneven, span sits on a
					// steep slope.
					s.Area = NullArea
				}
			}
		}
	}
}

// FilterWalkableLowHeightSpans removes spans without enough clearance for
// the agent to stand.
func FilterWalkableLowHeightSpans(walkableHeight int, hf *Heightfield) {
	for y := 0; y < hf.Height; y++ {
		for x := 0; x < hf.Width; x++ {
			for i := hf.SpanHead(x, y); i != nullIdx; i = hf.Next(i) {
				s := hf.SpanAt(i)
				bot := s.SMax
				top := maxHeight
				if n := hf.Next(i); n != nullIdx {
					top = hf.SpanAt(n).SMin
				}
				if top-bot <= walkableHeight {
					s.Area = NullArea
				}
			}
		}
	}
}
