package pipeline

import (
	"fmt"

	"navforge/common"
)

// BuildDistanceField computes the distance-to-boundary transform the
// watershed partitioning floods from.
func BuildDistanceField(chf *CompactHeightfield) {
	src := make([]int, chf.SpanCount)
	chf.MaxDistance = calculateDistanceField(chf, src)

	dst := make([]int, chf.SpanCount)
	// Blur with a 1-cell kernel to knock out single-span local maxima.
	chf.Dist = boxBlur(chf, 1, src, dst)
}

func calculateDistanceField(chf *CompactHeightfield, src []int) int {
	w := chf.Width
	h := chf.Height

	for i := range src {
		src[i] = maxHeight
	}

	// Mark boundary cells.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				area := chf.Areas[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == notConnected {
						continue
					}
					ax := x + common.DirOffsetX(dir)
					ay := y + common.DirOffsetY(dir)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
					if chf.Areas[ai] == area {
						nc++
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
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
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					// (-1,-1)
					if as.Con(3) != notConnected {
						aax := ax + common.DirOffsetX(3)
						aay := ay + common.DirOffsetY(3)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(3)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
				if s.Con(3) != notConnected {
					// (0,-1)
					ax := x + common.DirOffsetX(3)
					ay := y + common.DirOffsetY(3)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(3)
					as := &chf.Spans[ai]
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					// (1,-1)
					if as.Con(2) != notConnected {
						aax := ax + common.DirOffsetX(2)
						aay := ay + common.DirOffsetY(2)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(2)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
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
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					// (1,1)
					if as.Con(1) != notConnected {
						aax := ax + common.DirOffsetX(1)
						aay := ay + common.DirOffsetY(1)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(1)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
				if s.Con(1) != notConnected {
					// (0,1)
					ax := x + common.DirOffsetX(1)
					ay := y + common.DirOffsetY(1)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(1)
					as := &chf.Spans[ai]
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					// (-1,1)
					if as.Con(0) != notConnected {
						aax := ax + common.DirOffsetX(0)
						aay := ay + common.DirOffsetY(0)
						aai := int(chf.Cells[aax+aay*w].Index) + as.Con(0)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
			}
		}
	}

	maxDist := 0
	for i := 0; i < chf.SpanCount; i++ {
		maxDist = max(maxDist, src[i])
	}
	return maxDist
}

func boxBlur(chf *CompactHeightfield, thr int, src, dst []int) []int {
	w := chf.Width
	h := chf.Height
	thr *= 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				cd := src[i]
				if cd <= thr {
					dst[i] = cd
					continue
				}
				d := cd
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == notConnected {
						d += cd * 2
						continue
					}
					ax := x + common.DirOffsetX(dir)
					ay := y + common.DirOffsetY(dir)
					ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
					d += src[ai]

					as := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if as.Con(dir2) == notConnected {
						d += cd
					} else {
						ax2 := ax + common.DirOffsetX(dir2)
						ay2 := ay + common.DirOffsetY(dir2)
						ai2 := int(chf.Cells[ax2+ay2*w].Index) + as.Con(dir2)
						d += src[ai2]
					}
				}
				dst[i] = (d + 5) / 9
			}
		}
	}
	return dst
}

type levelStackEntry struct {
	x, y  int
	index int // span index, -1 once consumed
}

func paintRectRegion(minx, maxx, miny, maxy, regID int, chf *CompactHeightfield, srcReg []int) {
	w := chf.Width
	for y := miny; y < maxy; y++ {
		for x := minx; x < maxx; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				if chf.Areas[i] != NullArea {
					srcReg[i] = regID
				}
			}
		}
	}
}

func floodRegion(x, y, i, level, r int, chf *CompactHeightfield, srcReg, srcDist []int, stack *[]levelStackEntry) bool {
	w := chf.Width
	area := chf.Areas[i]

	*stack = (*stack)[:0]
	*stack = append(*stack, levelStackEntry{x, y, i})
	srcReg[i] = r
	srcDist[i] = 0

	lev := 0
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for len(*stack) > 0 {
		back := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		cx, cy, ci := back.x, back.y, back.index

		cs := &chf.Spans[ci]

		// Bail out if any neighbour already claimed another region.
		ar := 0
		for dir := 0; dir < 4; dir++ {
			if cs.Con(dir) == notConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			ay := cy + common.DirOffsetY(dir)
			ai := int(chf.Cells[ax+ay*w].Index) + cs.Con(dir)
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr&BorderReg != 0 {
				// Borders do not claim interior spans.
				continue
			}
			if nr != 0 && nr != r {
				ar = nr
				break
			}

			as := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if as.Con(dir2) == notConnected {
				continue
			}
			ax2 := ax + common.DirOffsetX(dir2)
			ay2 := ay + common.DirOffsetY(dir2)
			ai2 := int(chf.Cells[ax2+ay2*w].Index) + as.Con(dir2)
			if chf.Areas[ai2] != area {
				continue
			}
			nr2 := srcReg[ai2]
			if nr2 != 0 && nr2 != r {
				ar = nr2
				break
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}
		count++

		// Expand to walkable neighbours at or above the current level.
		for dir := 0; dir < 4; dir++ {
			if cs.Con(dir) == notConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			ay := cy + common.DirOffsetY(dir)
			ai := int(chf.Cells[ax+ay*w].Index) + cs.Con(dir)
			if chf.Areas[ai] != area {
				continue
			}
			if chf.Dist[ai] >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				*stack = append(*stack, levelStackEntry{ax, ay, ai})
			}
		}
	}

	return count > 0
}

type dirtyEntry struct {
	index  int
	region int
	dist   int
}

func expandRegions(maxIter, level int, chf *CompactHeightfield, srcReg, srcDist []int, stack *[]levelStackEntry, fillStack bool) {
	w := chf.Width
	h := chf.Height

	if fillStack {
		*stack = (*stack)[:0]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := &chf.Cells[x+y*w]
				for i := int(c.Index); i < int(c.Index+c.Count); i++ {
					if chf.Dist[i] >= level && srcReg[i] == 0 && chf.Areas[i] != NullArea {
						*stack = append(*stack, levelStackEntry{x, y, i})
					}
				}
			}
		}
	} else {
		// Mark entries that already got a region.
		for j := range *stack {
			if (*stack)[j].index >= 0 && srcReg[(*stack)[j].index] != 0 {
				(*stack)[j].index = -1
			}
		}
	}

	var dirty []dirtyEntry
	iter := 0
	for {
		failed := 0
		dirty = dirty[:0]

		for j := range *stack {
			i := (*stack)[j].index
			if i < 0 {
				failed++
				continue
			}
			x := (*stack)[j].x
			y := (*stack)[j].y

			r := srcReg[i]
			d2 := maxHeight
			area := chf.Areas[i]
			s := &chf.Spans[i]
			for dir := 0; dir < 4; dir++ {
				if s.Con(dir) == notConnected {
					continue
				}
				ax := x + common.DirOffsetX(dir)
				ay := y + common.DirOffsetY(dir)
				ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 && srcReg[ai]&BorderReg == 0 {
					if srcDist[ai]+2 < d2 {
						r = srcReg[ai]
						d2 = srcDist[ai] + 2
					}
				}
			}
			if r != 0 {
				(*stack)[j].index = -1
				dirty = append(dirty, dirtyEntry{i, r, d2})
			} else {
				failed++
			}
		}

		// Deferred writes keep each iteration order independent.
		for _, e := range dirty {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.dist
		}

		if failed == len(*stack) {
			break
		}
		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
}

func sortCellsByLevel(startLevel int, chf *CompactHeightfield, srcReg []int, stacks [][]levelStackEntry, logLevelsPerStack int) {
	w := chf.Width
	h := chf.Height
	startLevel >>= logLevelsPerStack

	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				if chf.Areas[i] == NullArea || srcReg[i] != 0 {
					continue
				}
				level := chf.Dist[i] >> logLevelsPerStack
				sID := startLevel - level
				if sID >= len(stacks) {
					continue
				}
				if sID < 0 {
					sID = 0
				}
				stacks[sID] = append(stacks[sID], levelStackEntry{x, y, i})
			}
		}
	}
}

func appendStacks(src []levelStackEntry, dst *[]levelStackEntry, srcReg []int) {
	for _, e := range src {
		if e.index < 0 || srcReg[e.index] != 0 {
			continue
		}
		*dst = append(*dst, e)
	}
}

// BuildRegions partitions the walkable spans into watershed regions. The
// field's distance transform must be built first.
func BuildRegions(chf *CompactHeightfield, borderSize, minRegionArea, mergeRegionArea int) error {
	w := chf.Width
	h := chf.Height

	const logNbStacks = 3
	const nbStacks = 1 << logNbStacks
	lvlStacks := make([][]levelStackEntry, nbStacks)
	var stack []levelStackEntry

	srcReg := make([]int, chf.SpanCount)
	srcDist := make([]int, chf.SpanCount)

	regionID := 1
	level := (chf.MaxDistance + 1) &^ 1

	// How many iterations an expansion runs before the next level floods.
	const expandIters = 8

	if borderSize > 0 {
		// Paint the padded border so it never becomes walkable regions.
		bw := min(w, borderSize)
		bh := min(h, borderSize)
		paintRectRegion(0, bw, 0, h, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(w-bw, w, 0, h, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(0, w, 0, bh, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(0, w, h-bh, h, regionID|BorderReg, chf, srcReg)
		regionID++
	}
	chf.BorderSize = borderSize

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (nbStacks - 1)

		if sID == 0 {
			sortCellsByLevel(level, chf, srcReg, lvlStacks, 1)
		} else {
			appendStacks(lvlStacks[sID-1], &lvlStacks[sID], srcReg)
		}

		// Expand current regions until no empty connected cells are found.
		expandRegions(expandIters, level, chf, srcReg, srcDist, &lvlStacks[sID], false)

		// Mark new regions with ids.
		for _, e := range lvlStacks[sID] {
			if e.index >= 0 && srcReg[e.index] == 0 {
				if floodRegion(e.x, e.y, e.index, level, regionID, chf, srcReg, srcDist, &stack) {
					if regionID == 0xffff {
						return fmt.Errorf("pipeline: region id overflow")
					}
					regionID++
				}
			}
		}
	}

	// Expand current regions until no empty connected cells are found.
	expandRegions(expandIters*8, 0, chf, srcReg, srcDist, &stack, true)

	maxRegions, err := mergeAndFilterRegions(minRegionArea, mergeRegionArea, regionID, chf, srcReg)
	if err != nil {
		return err
	}
	chf.MaxRegions = maxRegions

	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return nil
}

type region struct {
	spanCount        int
	id               int
	areaType         uint8
	remap            bool
	visited          bool
	overlap          bool
	connectsToBorder bool
	ymin, ymax       int
	connections      []int
	floors           []int
}

func addUniqueFloorRegion(reg *region, n int) {
	for _, f := range reg.floors {
		if f == n {
			return
		}
	}
	reg.floors = append(reg.floors, n)
}

func removeAdjacentNeighbours(reg *region) {
	// Remove adjacent duplicates.
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = append(reg.connections[:i], reg.connections[i+1:]...)
		} else {
			i++
		}
	}
}

func replaceNeighbour(reg *region, oldID, newID int) {
	neiChanged := false
	for i := range reg.connections {
		if reg.connections[i] == oldID {
			reg.connections[i] = newID
			neiChanged = true
		}
	}
	for i := range reg.floors {
		if reg.floors[i] == oldID {
			reg.floors[i] = newID
		}
	}
	if neiChanged {
		removeAdjacentNeighbours(reg)
	}
}

func canMergeWithRegion(rega, regb *region) bool {
	if rega.areaType != regb.areaType {
		return false
	}
	n := 0
	for _, c := range rega.connections {
		if c == regb.id {
			n++
		}
	}
	if n > 1 {
		return false
	}
	for _, f := range rega.floors {
		if f == regb.id {
			return false
		}
	}
	return true
}

func mergeRegions(rega, regb *region) bool {
	aid := rega.id
	bid := regb.id

	acon := append([]int(nil), rega.connections...)
	bcon := regb.connections

	insa := -1
	for i, c := range acon {
		if c == bid {
			insa = i
			break
		}
	}
	if insa == -1 {
		return false
	}
	insb := -1
	for i, c := range bcon {
		if c == aid {
			insb = i
			break
		}
	}
	if insb == -1 {
		return false
	}

	// Rebuild the merged neighbourhood starting past the shared edge.
	rega.connections = rega.connections[:0]
	for i := 0; i < len(acon)-1; i++ {
		rega.connections = append(rega.connections, acon[(insa+1+i)%len(acon)])
	}
	for i := 0; i < len(bcon)-1; i++ {
		rega.connections = append(rega.connections, bcon[(insb+1+i)%len(bcon)])
	}
	removeAdjacentNeighbours(rega)

	for _, f := range regb.floors {
		addUniqueFloorRegion(rega, f)
	}
	rega.spanCount += regb.spanCount
	regb.spanCount = 0
	regb.connections = regb.connections[:0]
	return true
}

func isRegionConnectedToBorder(reg *region) bool {
	for _, c := range reg.connections {
		if c == 0 {
			return true
		}
	}
	return false
}

func isSolidEdge(chf *CompactHeightfield, srcReg []int, x, y, i, dir int) bool {
	s := &chf.Spans[i]
	r := 0
	if s.Con(dir) != notConnected {
		ax := x + common.DirOffsetX(dir)
		ay := y + common.DirOffsetY(dir)
		ai := int(chf.Cells[ax+ay*chf.Width].Index) + s.Con(dir)
		r = srcReg[ai]
	}
	return r != srcReg[i]
}

// walkRegionContour records the sequence of neighbour region ids around a
// region boundary.
func walkRegionContour(x, y, i, dir int, chf *CompactHeightfield, srcReg []int, cont *[]int) {
	w := chf.Width
	startDir := dir
	starti := i

	ss := &chf.Spans[i]
	curReg := 0
	if ss.Con(dir) != notConnected {
		ax := x + common.DirOffsetX(dir)
		ay := y + common.DirOffsetY(dir)
		ai := int(chf.Cells[ax+ay*w].Index) + ss.Con(dir)
		curReg = srcReg[ai]
	}
	*cont = append(*cont, curReg)

	for iter := 0; iter < 40000; iter++ {
		s := &chf.Spans[i]

		if isSolidEdge(chf, srcReg, x, y, i, dir) {
			r := 0
			if s.Con(dir) != notConnected {
				ax := x + common.DirOffsetX(dir)
				ay := y + common.DirOffsetY(dir)
				ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
				r = srcReg[ai]
			}
			if r != curReg {
				curReg = r
				*cont = append(*cont, r)
			}
			dir = (dir + 1) & 0x3 // rotate CW
		} else {
			ni := -1
			nx := x + common.DirOffsetX(dir)
			ny := y + common.DirOffsetY(dir)
			if s.Con(dir) != notConnected {
				ni = int(chf.Cells[nx+ny*w].Index) + s.Con(dir)
			}
			if ni == -1 {
				// Should not happen.
				return
			}
			x = nx
			y = ny
			i = ni
			dir = (dir + 3) & 0x3 // rotate CCW
		}

		if starti == i && startDir == dir {
			break
		}
	}

	// Remove adjacent duplicates.
	if len(*cont) > 1 {
		for j := 0; j < len(*cont); {
			nj := (j + 1) % len(*cont)
			if (*cont)[j] == (*cont)[nj] {
				*cont = append((*cont)[:j], (*cont)[j+1:]...)
			} else {
				j++
			}
		}
	}
}

func mergeAndFilterRegions(minRegionArea, mergeRegionArea, maxRegionID int, chf *CompactHeightfield, srcReg []int) (int, error) {
	w := chf.Width
	h := chf.Height

	nreg := maxRegionID + 1
	regions := make([]region, nreg)
	for i := range regions {
		regions[i].id = i
		regions[i].ymin = maxHeight
	}

	// Find edges and connections per region.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				r := srcReg[i]
				if r <= 0 || r >= nreg {
					continue
				}
				reg := &regions[r]
				reg.spanCount++

				// Region overlap with spans in the same column.
				for j := int(c.Index); j < int(c.Index+c.Count); j++ {
					if i == j {
						continue
					}
					floorID := srcReg[j]
					if floorID <= 0 || floorID >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					addUniqueFloorRegion(reg, floorID)
				}

				if len(reg.connections) > 0 {
					continue
				}
				reg.areaType = chf.Areas[i]

				// Walk the boundary once per region, starting at the first
				// solid edge.
				ndir := -1
				for dir := 0; dir < 4; dir++ {
					if isSolidEdge(chf, srcReg, x, y, i, dir) {
						ndir = dir
						break
					}
				}
				if ndir != -1 {
					walkRegionContour(x, y, i, ndir, chf, srcReg, &reg.connections)
				}
			}
		}
	}

	// Remove too small regions.
	var stack []int
	var trace []int
	for i := 0; i < nreg; i++ {
		reg := &regions[i]
		if reg.id <= 0 || reg.id&BorderReg != 0 {
			continue
		}
		if reg.spanCount == 0 || reg.visited {
			continue
		}

		// Count the size of the whole connected blob.
		connectsToBorder := false
		spanCount := 0
		stack = stack[:0]
		trace = trace[:0]

		reg.visited = true
		stack = append(stack, i)

		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			creg := &regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)

			for _, nei := range creg.connections {
				if nei&BorderReg != 0 {
					connectsToBorder = true
					continue
				}
				if nei <= 0 {
					continue
				}
				neireg := &regions[nei]
				if neireg.visited || neireg.id&BorderReg != 0 {
					continue
				}
				if neireg.id == 0 {
					continue
				}
				neireg.visited = true
				stack = append(stack, nei)
			}
		}

		// Blobs that touch a tile border stay; a neighbouring tile may
		// continue them.
		if spanCount < minRegionArea && !connectsToBorder {
			for _, ri := range trace {
				regions[ri].spanCount = 0
				regions[ri].id = 0
			}
		}
	}

	// Merge too small regions into neighbours.
	for {
		mergeCount := 0
		for i := 0; i < nreg; i++ {
			reg := &regions[i]
			if reg.id <= 0 || reg.id&BorderReg != 0 {
				continue
			}
			if reg.overlap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount > mergeRegionArea {
				continue
			}

			// Lowest-id eligible neighbour.
			mergeID := reg.id
			for _, nei := range reg.connections {
				if nei <= 0 || nei&BorderReg != 0 {
					continue
				}
				mreg := &regions[nei]
				if mreg.id <= 0 || mreg.id&BorderReg != 0 || mreg.overlap || mreg.id == reg.id {
					continue
				}
				if (mergeID == reg.id || mreg.id < mergeID) &&
					canMergeWithRegion(reg, mreg) && canMergeWithRegion(mreg, reg) {
					mergeID = mreg.id
				}
			}
			if mergeID != reg.id {
				oldID := reg.id
				target := &regions[mergeID]
				if mergeRegions(target, reg) {
					// Fix up everything that pointed at the old region.
					for j := 0; j < nreg; j++ {
						fix := &regions[j]
						if fix.id <= 0 || fix.id&BorderReg != 0 {
							continue
						}
						if fix.id == oldID {
							fix.id = mergeID
						}
						replaceNeighbour(fix, oldID, mergeID)
					}
					mergeCount++
				}
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Compress region ids.
	for i := 0; i < nreg; i++ {
		regions[i].remap = false
		if regions[i].id <= 0 || regions[i].id&BorderReg != 0 {
			continue
		}
		regions[i].remap = true
	}
	regIDGen := 0
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		newID := regIDGen
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].remap = false
				regions[j].id = newID
			}
		}
	}

	// Remap span region ids.
	for i := 0; i < chf.SpanCount; i++ {
		if srcReg[i]&BorderReg != 0 {
			continue
		}
		srcReg[i] = regions[srcReg[i]].id
	}

	return regIDGen, nil
}
