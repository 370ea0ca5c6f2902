package pipeline

import (
	"fmt"
	"sort"

	"navforge/common"
)

// Contour is one simplified region outline. Verts hold (x,y,z,flags)
// quads in cell units; the flags carry the neighbour region id plus the
// border-vertex and area-border bits.
type Contour struct {
	Verts    []int
	RawVerts []int
	Reg      int
	Area     uint8
}

// ContourSet is the output of the contour stage for one tile. Hole
// contours stay in the set after being merged into their outline; their
// Verts are emptied.
type ContourSet struct {
	Conts      []*Contour
	BMin       [3]float32
	BMax       [3]float32
	Cs         float32
	Ch         float32
	Width      int
	Height     int
	BorderSize int
	MaxError   float32
}

func getCornerHeight(x, y, i, dir int, chf *CompactHeightfield) (int, bool) {
	w := chf.Width
	s := &chf.Spans[i]
	cornerHeight := s.Y
	dirp := (dir + 1) & 0x3

	// Region/area of the four cells meeting at the corner; packed as
	// reg | area<<16 so a single compare covers both.
	var regs [4]int
	regs[0] = s.Reg | int(chf.Areas[i])<<16

	if s.Con(dir) != notConnected {
		ax := x + common.DirOffsetX(dir)
		ay := y + common.DirOffsetY(dir)
		ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
		as := &chf.Spans[ai]
		cornerHeight = max(cornerHeight, as.Y)
		regs[1] = as.Reg | int(chf.Areas[ai])<<16
		if as.Con(dirp) != notConnected {
			ax2 := ax + common.DirOffsetX(dirp)
			ay2 := ay + common.DirOffsetY(dirp)
			ai2 := int(chf.Cells[ax2+ay2*w].Index) + as.Con(dirp)
			as2 := &chf.Spans[ai2]
			cornerHeight = max(cornerHeight, as2.Y)
			regs[2] = as2.Reg | int(chf.Areas[ai2])<<16
		}
	}
	if s.Con(dirp) != notConnected {
		ax := x + common.DirOffsetX(dirp)
		ay := y + common.DirOffsetY(dirp)
		ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dirp)
		as := &chf.Spans[ai]
		cornerHeight = max(cornerHeight, as.Y)
		regs[3] = as.Reg | int(chf.Areas[ai])<<16
		if as.Con(dir) != notConnected {
			ax2 := ax + common.DirOffsetX(dir)
			ay2 := ay + common.DirOffsetY(dir)
			ai2 := int(chf.Cells[ax2+ay2*w].Index) + as.Con(dir)
			as2 := &chf.Spans[ai2]
			cornerHeight = max(cornerHeight, as2.Y)
			regs[2] = as2.Reg | int(chf.Areas[ai2])<<16
		}
	}

	// The vertex is special when exactly two of the corner cells belong
	// to the same external border and the two interior cells share an
	// area. Such vertices get removed later to match between tiles.
	isBorderVertex := false
	for j := 0; j < 4; j++ {
		a := regs[j]
		b := regs[(j+1)&3]
		c := regs[(j+2)&3]
		d := regs[(j+3)&3]
		twoSameExts := a&b&BorderReg != 0 && a == b
		twoInts := (c|d)&BorderReg == 0
		intsSameArea := c>>16 == d>>16
		noZeros := a != 0 && b != 0 && c != 0 && d != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			isBorderVertex = true
			break
		}
	}
	return cornerHeight, isBorderVertex
}

// walkContour traces one region boundary, appending raw (x,y,z,flags)
// vertices. Returns false when the walk does not close.
func walkContour(x, y, i, dir int, chf *CompactHeightfield, flags []uint8, points *[]int) bool {
	startDir := dir
	starti := i
	area := chf.Areas[i]
	w := chf.Width

	for iter := 0; iter < 40000; iter++ {
		if flags[i]&(1<<uint(dir)) != 0 {
			// Emit the corner vertex of this edge.
			isAreaBorder := false
			px := x
			py, isBorderVertex := getCornerHeight(x, y, i, dir, chf)
			pz := y
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := 0
			s := &chf.Spans[i]
			if s.Con(dir) != notConnected {
				ax := x + common.DirOffsetX(dir)
				ay := y + common.DirOffsetY(dir)
				ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
				r = chf.Spans[ai].Reg
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= borderVertexFlag
			}
			if isAreaBorder {
				r |= areaBorderFlag
			}
			*points = append(*points, px, py, pz, r)

			flags[i] &^= uint8(1 << uint(dir))
			dir = (dir + 1) & 0x3 // rotate CW
		} else {
			ni := -1
			nx := x + common.DirOffsetX(dir)
			ny := y + common.DirOffsetY(dir)
			s := &chf.Spans[i]
			if s.Con(dir) != notConnected {
				ni = int(chf.Cells[nx+ny*w].Index) + s.Con(dir)
			}
			if ni == -1 {
				return false
			}
			x = nx
			y = ny
			i = ni
			dir = (dir + 3) & 0x3 // rotate CCW
		}

		if starti == i && startDir == dir {
			return true
		}
	}
	return false
}

func distancePtSegSq(x, z, px, pz, qx, qz int) float32 {
	pqx := float32(qx - px)
	pqz := float32(qz - pz)
	dx := float32(x - px)
	dz := float32(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)

	dx = float32(px) + t*pqx - float32(x)
	dz = float32(pz) + t*pqz - float32(z)
	return dx*dx + dz*dz
}

func insertPoint(s []int, at, x, y, z, idx int) []int {
	s = append(s, 0, 0, 0, 0)
	copy(s[at*4+4:], s[at*4:len(s)-4])
	s[at*4+0] = x
	s[at*4+1] = y
	s[at*4+2] = z
	s[at*4+3] = idx
	return s
}

func simplifyContour(points []int, simplified *[]int, maxError float32, maxEdgeLen int) {
	pn := len(points) / 4

	// Portal transitions seed the simplified contour.
	hasConnections := false
	for i := 0; i < pn; i++ {
		if points[i*4+3]&contourRegMask != 0 {
			hasConnections = true
			break
		}
	}
	if hasConnections {
		for i := 0; i < pn; i++ {
			ii := (i + 1) % pn
			differentRegs := points[i*4+3]&contourRegMask != points[ii*4+3]&contourRegMask
			areaBorders := points[i*4+3]&areaBorderFlag != points[ii*4+3]&areaBorderFlag
			if differentRegs || areaBorders {
				*simplified = append(*simplified, points[i*4], points[i*4+1], points[i*4+2], i)
			}
		}
	}
	if len(*simplified) == 0 {
		// Closed contour without portals, seed with the lower-left and
		// upper-right vertices.
		llx, lly, llz, lli := points[0], points[1], points[2], 0
		urx, ury, urz, uri := points[0], points[1], points[2], 0
		for i := 0; i < pn; i++ {
			x, y, z := points[i*4], points[i*4+1], points[i*4+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i
			}
		}
		*simplified = append(*simplified, llx, lly, llz, lli, urx, ury, urz, uri)
	}

	// Add points until all raw vertices are within the error tolerance.
	for i := 0; i < len(*simplified)/4; {
		ii := (i + 1) % (len(*simplified) / 4)
		ax, az, ai := (*simplified)[i*4], (*simplified)[i*4+2], (*simplified)[i*4+3]
		bx, bz, bi := (*simplified)[ii*4], (*simplified)[ii*4+2], (*simplified)[ii*4+3]

		maxd := float32(0)
		maxi := -1
		var ci, cinc, endi int

		// Traverse the segment in lexicographic order so the result does
		// not depend on winding.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Only outer edges and area transitions get tessellated.
		if points[ci*4+3]&contourRegMask == 0 || points[ci*4+3]&areaBorderFlag != 0 {
			for ci != endi {
				d := distancePtSegSq(points[ci*4], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		if maxi != -1 && maxd > maxError*maxError {
			*simplified = insertPoint(*simplified, i+1, points[maxi*4], points[maxi*4+1], points[maxi*4+2], maxi)
		} else {
			i++
		}
	}

	// Split too long wall edges.
	if maxEdgeLen > 0 {
		for i := 0; i < len(*simplified)/4; {
			ii := (i + 1) % (len(*simplified) / 4)
			ax, az, ai := (*simplified)[i*4], (*simplified)[i*4+2], (*simplified)[i*4+3]
			bx, bz, bi := (*simplified)[ii*4], (*simplified)[ii*4+2], (*simplified)[ii*4+3]

			maxi := -1
			ci := (ai + 1) % pn
			if points[ci*4+3]&contourRegMask == 0 {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}
			if maxi != -1 {
				*simplified = insertPoint(*simplified, i+1, points[maxi*4], points[maxi*4+1], points[maxi*4+2], maxi)
			} else {
				i++
			}
		}
	}

	for i := 0; i < len(*simplified)/4; i++ {
		// The edge vertex flag comes from the current raw point, the
		// neighbour region from the next.
		ai := ((*simplified)[i*4+3] + 1) % pn
		bi := (*simplified)[i*4+3]
		(*simplified)[i*4+3] = points[ai*4+3]&(contourRegMask|areaBorderFlag) | points[bi*4+3]&borderVertexFlag
	}
}

func removeDegenerateSegments(simplified []int) []int {
	// Remove adjacent vertices that are equal on the xz plane.
	npts := len(simplified) / 4
	for i := 0; i < npts; i++ {
		ni := (i + 1) % npts
		if simplified[i*4] == simplified[ni*4] && simplified[i*4+2] == simplified[ni*4+2] {
			simplified = append(simplified[:i*4], simplified[i*4+4:]...)
			npts--
			i--
		}
	}
	return simplified
}

func calcAreaOfPolygon2D(verts []int, nverts int) int {
	area := 0
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*4:]
		vj := verts[j*4:]
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

type contourHole struct {
	contour  *Contour
	minx     int
	minz     int
	leftmost int
}

type contourRegion struct {
	outline *Contour
	holes   []contourHole
}

type potentialDiagonal struct {
	vert int
	dist int
}

func findLeftMostVertex(c *Contour) (minx, minz, leftmost int) {
	minx = c.Verts[0]
	minz = c.Verts[2]
	for i := 1; i < len(c.Verts)/4; i++ {
		x := c.Verts[i*4]
		z := c.Verts[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return minx, minz, leftmost
}

func mergeContours(ca, cb *Contour, ia, ib int) {
	na := len(ca.Verts) / 4
	nb := len(cb.Verts) / 4
	verts := make([]int, 0, (na+nb+2)*4)

	// Copy a, then b, duplicating the junction vertices.
	for i := 0; i <= na; i++ {
		src := ca.Verts[((ia+i)%na)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	for i := 0; i <= nb; i++ {
		src := cb.Verts[((ib+i)%nb)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	ca.Verts = verts
	cb.Verts = nil
}

func intersectSegContour(d0, d1 []int, i, n int, verts []int) bool {
	for k := 0; k < n; k++ {
		k1 := (k + 1) % n
		if i == k || i == k1 {
			continue
		}
		p0 := verts[k*4:]
		p1 := verts[k1*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersectSeg(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

func inConeVerts(i, n int, verts []int, pj []int) bool {
	pi := verts[i*4:]
	pi1 := verts[((i+1)%n)*4:]
	pin1 := verts[((i+n-1)%n)*4:]

	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func mergeRegionHoles(reg *contourRegion, warnings *[]error) {
	// Sort holes left to right.
	for i := range reg.holes {
		h := &reg.holes[i]
		h.minx, h.minz, h.leftmost = findLeftMostVertex(h.contour)
	}
	sort.SliceStable(reg.holes, func(a, b int) bool {
		ha := &reg.holes[a]
		hb := &reg.holes[b]
		if ha.minx == hb.minx {
			return ha.minz < hb.minz
		}
		return ha.minx < hb.minx
	})

	outline := reg.outline
	var diags []potentialDiagonal

	for i := range reg.holes {
		hole := reg.holes[i].contour
		nholeVerts := len(hole.Verts) / 4

		index := -1
		bestVertex := reg.holes[i].leftmost
		for iter := 0; iter < nholeVerts; iter++ {
			// Collect outline vertices the hole corner can see, nearest
			// first, and take the first diagonal nothing intersects.
			diags = diags[:0]
			corner := hole.Verts[bestVertex*4:]
			n := len(outline.Verts) / 4
			for j := 0; j < n; j++ {
				if inConeVerts(j, n, outline.Verts, corner) {
					dx := outline.Verts[j*4] - corner[0]
					dz := outline.Verts[j*4+2] - corner[2]
					diags = append(diags, potentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			sort.SliceStable(diags, func(a, b int) bool {
				return diags[a].dist < diags[b].dist
			})

			index = -1
			for j := range diags {
				pt := outline.Verts[diags[j].vert*4:]
				intersect := intersectSegContour(pt, corner, diags[j].vert, n, outline.Verts)
				for k := i; k < len(reg.holes) && !intersect; k++ {
					hk := reg.holes[k].contour
					intersect = intersectSegContour(pt, corner, -1, len(hk.Verts)/4, hk.Verts)
				}
				if !intersect {
					index = diags[j].vert
					break
				}
			}
			if index != -1 {
				break
			}
			bestVertex = (bestVertex + 1) % nholeVerts
		}
		if index == -1 {
			*warnings = append(*warnings, fmt.Errorf("pipeline: no merge diagonal for hole in region %d", outline.Reg))
			continue
		}
		mergeContours(outline, hole, index, bestVertex)
	}
}

// BuildContours traces and simplifies the region boundaries of the
// compact heightfield. Recoverable per-region problems come back as
// warnings; the affected region is skipped.
func BuildContours(chf *CompactHeightfield, maxError float32, maxEdgeLen int) (*ContourSet, []error, error) {
	w := chf.Width
	h := chf.Height
	borderSize := chf.BorderSize

	cset := &ContourSet{
		BMin:       chf.BMin,
		BMax:       chf.BMax,
		Cs:         chf.Cs,
		Ch:         chf.Ch,
		Width:      w - borderSize*2,
		Height:     h - borderSize*2,
		BorderSize: borderSize,
		MaxError:   maxError,
	}
	if borderSize > 0 {
		// Shrink the bounds back to the unpadded tile.
		pad := float32(borderSize) * chf.Cs
		cset.BMin[0] += pad
		cset.BMin[2] += pad
		cset.BMax[0] -= pad
		cset.BMax[2] -= pad
	}

	var warnings []error
	flags := make([]uint8, chf.SpanCount)

	// Mark region boundary edges.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				s := &chf.Spans[i]
				if s.Reg == 0 || s.Reg&BorderReg != 0 {
					flags[i] = 0
					continue
				}
				res := uint8(0)
				for dir := 0; dir < 4; dir++ {
					r := 0
					if s.Con(dir) != notConnected {
						ax := x + common.DirOffsetX(dir)
						ay := y + common.DirOffsetY(dir)
						ai := int(chf.Cells[ax+ay*w].Index) + s.Con(dir)
						r = chf.Spans[ai].Reg
					}
					if r == s.Reg {
						res |= 1 << uint(dir)
					}
				}
				flags[i] = res ^ 0xf // flag non-connected edges
			}
		}
	}

	var verts, simplified []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&BorderReg != 0 {
					continue
				}
				area := chf.Areas[i]

				verts = verts[:0]
				simplified = simplified[:0]

				dir := 0
				for flags[i]&(1<<uint(dir)) == 0 {
					dir++
				}
				if !walkContour(x, y, i, dir, chf, flags, &verts) {
					warnings = append(warnings, fmt.Errorf("%w: region %d", ErrContourOpenBoundary, reg))
					continue
				}

				simplifyContour(verts, &simplified, maxError, maxEdgeLen)
				simplified = removeDegenerateSegments(simplified)

				if len(simplified)/4 >= 3 {
					cont := &Contour{
						Verts:    append([]int(nil), simplified...),
						RawVerts: append([]int(nil), verts...),
						Reg:      reg,
						Area:     area,
					}
					if borderSize > 0 {
						// Undo the border offset.
						for j := 0; j < len(cont.Verts)/4; j++ {
							cont.Verts[j*4] -= borderSize
							cont.Verts[j*4+2] -= borderSize
						}
						for j := 0; j < len(cont.RawVerts)/4; j++ {
							cont.RawVerts[j*4] -= borderSize
							cont.RawVerts[j*4+2] -= borderSize
						}
					}
					cset.Conts = append(cset.Conts, cont)
				}
			}
		}
	}

	// Merge holes into their region outlines.
	if len(cset.Conts) > 0 {
		nholes := 0
		winding := make([]int8, len(cset.Conts))
		for i, cont := range cset.Conts {
			// Negative winding means a hole.
			if calcAreaOfPolygon2D(cont.Verts, len(cont.Verts)/4) < 0 {
				winding[i] = -1
				nholes++
			} else {
				winding[i] = 1
			}
		}
		if nholes > 0 {
			nregions := chf.MaxRegions + 1
			regions := make([]contourRegion, nregions)
			for i, cont := range cset.Conts {
				if winding[i] > 0 {
					if regions[cont.Reg].outline != nil {
						warnings = append(warnings, fmt.Errorf("pipeline: region %d has multiple outlines", cont.Reg))
					} else {
						regions[cont.Reg].outline = cont
					}
				} else {
					regions[cont.Reg].holes = append(regions[cont.Reg].holes, contourHole{contour: cont})
				}
			}
			for i := range regions {
				reg := &regions[i]
				if len(reg.holes) == 0 {
					continue
				}
				if reg.outline == nil {
					warnings = append(warnings, fmt.Errorf("pipeline: region %d has holes but no outline", i))
					continue
				}
				mergeRegionHoles(reg, &warnings)
			}
		}
	}

	return cset, warnings, nil
}
