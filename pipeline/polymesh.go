package pipeline

import (
	"fmt"

	"navforge/common"
)

const (
	vertexBucketCount = 1 << 12

	// Triangulation marks removable ears in the index high bits.
	deletedFlag = 0x80000000
	indexMask   = 0x0fffffff
)

// PolyMesh is the convex polygon mesh built from a contour set. Polys
// stores Nvp vertex indices followed by Nvp neighbour entries per
// polygon; MeshNullIdx fills unused slots and open edges, BorderReg|dir
// marks portal edges on the tile border.
type PolyMesh struct {
	Verts  []int // NVerts*3, cell units
	Polys  []int // NPolys*2*Nvp
	Regs   []int
	Areas  []uint8
	NVerts int
	NPolys int
	Nvp    int

	BMin         [3]float32
	BMax         [3]float32
	Cs           float32
	Ch           float32
	BorderSize   int
	MaxEdgeError float32
}

// 2D predicates over (x,?,z) int points. They only read indices 0 and 2,
// so both stride-3 mesh vertices and stride-4 contour vertices work.

func area2(a, b, c []int) int {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

func left(a, b, c []int) bool      { return area2(a, b, c) < 0 }
func leftOn(a, b, c []int) bool    { return area2(a, b, c) <= 0 }
func collinear(a, b, c []int) bool { return area2(a, b, c) == 0 }

// intersectProp reports proper intersection: ab and cd cross at a point
// interior to both.
func intersectProp(a, b, c, d []int) bool {
	if collinear(a, b, c) || collinear(a, b, d) || collinear(c, d, a) || collinear(c, d, b) {
		return false
	}
	return (left(a, b, c) != left(a, b, d)) && (left(c, d, a) != left(c, d, b))
}

func between(a, b, c []int) bool {
	if !collinear(a, b, c) {
		return false
	}
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

func intersectSeg(a, b, c, d []int) bool {
	if intersectProp(a, b, c, d) {
		return true
	}
	return between(a, b, c) || between(a, b, d) || between(c, d, a) || between(c, d, b)
}

func vequal(a, b []int) bool {
	return a[0] == b[0] && a[2] == b[2]
}

func prevIdx(i, n int) int {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func nextIdx(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return 0
}

// diagonalie checks that the segment (i,j) does not intersect any polygon
// edge.
func diagonalie(i, j, n int, verts, indices []int) bool {
	d0 := verts[(indices[i]&indexMask)*4:]
	d1 := verts[(indices[j]&indexMask)*4:]

	for k := 0; k < n; k++ {
		k1 := nextIdx(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[(indices[k]&indexMask)*4:]
		p1 := verts[(indices[k1]&indexMask)*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersectSeg(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// inCone checks that the diagonal (i,j) stays inside the polygon at i.
func inCone(i, j, n int, verts, indices []int) bool {
	pi := verts[(indices[i]&indexMask)*4:]
	pj := verts[(indices[j]&indexMask)*4:]
	pi1 := verts[(indices[nextIdx(i, n)]&indexMask)*4:]
	pin1 := verts[(indices[prevIdx(i, n)]&indexMask)*4:]

	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonal(i, j, n int, verts, indices []int) bool {
	return inCone(i, j, n, verts, indices) && diagonalie(i, j, n, verts, indices)
}

func diagonalieLoose(i, j, n int, verts, indices []int) bool {
	d0 := verts[(indices[i]&indexMask)*4:]
	d1 := verts[(indices[j]&indexMask)*4:]

	for k := 0; k < n; k++ {
		k1 := nextIdx(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[(indices[k]&indexMask)*4:]
		p1 := verts[(indices[k1]&indexMask)*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersectProp(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func inConeLoose(i, j, n int, verts, indices []int) bool {
	pi := verts[(indices[i]&indexMask)*4:]
	pj := verts[(indices[j]&indexMask)*4:]
	pi1 := verts[(indices[nextIdx(i, n)]&indexMask)*4:]
	pin1 := verts[(indices[prevIdx(i, n)]&indexMask)*4:]

	if leftOn(pin1, pi, pi1) {
		return leftOn(pi, pj, pin1) && leftOn(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonalLoose(i, j, n int, verts, indices []int) bool {
	return inConeLoose(i, j, n, verts, indices) && diagonalieLoose(i, j, n, verts, indices)
}

// triangulate ear-clips a polygon given as stride-4 verts. Returns the
// triangle count, negated when the polygon could not be fully clipped.
func triangulate(n int, verts, indices, tris []int) int {
	ntris := 0
	dst := 0

	for i := 0; i < n; i++ {
		i1 := nextIdx(i, n)
		i2 := nextIdx(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= deletedFlag
		}
	}

	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := nextIdx(i, n)
			if indices[i1]&deletedFlag != 0 {
				p0 := verts[(indices[i]&indexMask)*4:]
				p2 := verts[(indices[nextIdx(i1, n)]&indexMask)*4:]
				dx := p2[0] - p0[0]
				dz := p2[2] - p0[2]
				l := dx*dx + dz*dz
				if minLen < 0 || l < minLen {
					minLen = l
					mini = i
				}
			}
		}
		if mini == -1 {
			// Contour simplification can create slightly overlapping
			// segments; retry with the loose predicates.
			for i := 0; i < n; i++ {
				i1 := nextIdx(i, n)
				i2 := nextIdx(i1, n)
				if diagonalLoose(i, i2, n, verts, indices) {
					p0 := verts[(indices[i]&indexMask)*4:]
					p2 := verts[(indices[nextIdx(i1, n)]&indexMask)*4:]
					dx := p2[0] - p0[0]
					dz := p2[2] - p0[2]
					l := dx*dx + dz*dz
					if minLen < 0 || l < minLen {
						minLen = l
						mini = i
					}
				}
			}
			if mini == -1 {
				return -ntris
			}
		}

		i := mini
		i1 := nextIdx(i, n)
		i2 := nextIdx(i1, n)

		tris[dst+0] = indices[i] & indexMask
		tris[dst+1] = indices[i1] & indexMask
		tris[dst+2] = indices[i2] & indexMask
		dst += 3
		ntris++

		// Remove P[i1] by shifting.
		n--
		for k := i1; k < n; k++ {
			indices[k] = indices[k+1]
		}
		if i1 >= n {
			i1 = 0
		}
		i = prevIdx(i1, n)
		if diagonal(prevIdx(i, n), i1, n, verts, indices) {
			indices[i] |= deletedFlag
		} else {
			indices[i] &= indexMask
		}
		if diagonal(i, nextIdx(i1, n), n, verts, indices) {
			indices[i1] |= deletedFlag
		} else {
			indices[i1] &= indexMask
		}
	}

	tris[dst+0] = indices[0] & indexMask
	tris[dst+1] = indices[1] & indexMask
	tris[dst+2] = indices[2] & indexMask
	ntris++
	return ntris
}

func countPolyVerts(p []int, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == MeshNullIdx {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []int) bool {
	return (b[0]-a[0])*(c[2]-a[2])-(c[0]-a[0])*(b[2]-a[2]) < 0
}

// polyArea2 returns twice the polygon area in cell units.
func polyArea2(p, verts []int, nvp int) int {
	nv := countPolyVerts(p, nvp)
	area := 0
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		vi := verts[p[i]*3:]
		vj := verts[p[j]*3:]
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return common.Abs(area)
}

// polyMergeArea returns the combined area of the two polygons when they
// can merge across a shared edge, or -1 when they cannot. Larger is
// better: the mesher greedily merges the pair yielding the biggest
// polygon first.
func polyMergeArea(pa, pb, verts []int, nvp int) (val, ea, eb int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	if na+nb-2 > nvp {
		return -1, -1, -1
	}

	// Shared edge.
	ea, eb = -1, -1
	for i := 0; i < na; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea = i
				eb = j
			}
		}
	}
	if ea == -1 || eb == -1 {
		return -1, -1, -1
	}

	// The merged polygon must stay convex at the joint corners.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, -1, -1
	}
	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, -1, -1
	}

	return polyArea2(pa, verts, nvp) + polyArea2(pb, verts, nvp), ea, eb
}

func mergePolyVerts(pa, pb []int, ea, eb int, tmp []int, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	for i := 0; i < nvp; i++ {
		tmp[i] = MeshNullIdx
	}
	n := 0
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

func computeVertexHash(x, y, z int) int {
	const h1 = 0x8da6b343
	const h2 = 0xd8163841
	const h3 = 0xcb1ab31f
	n := uint32(h1)*uint32(x) + uint32(h2)*uint32(y) + uint32(h3)*uint32(z)
	return int(n & (vertexBucketCount - 1))
}

func addVertex(x, y, z int, verts, firstVert, nextVert []int, nv *int) int {
	bucket := computeVertexHash(x, 0, z)
	i := firstVert[bucket]
	for i != -1 {
		v := verts[i*3:]
		if v[0] == x && common.Abs(v[1]-y) <= 2 && v[2] == z {
			return i
		}
		i = nextVert[i]
	}
	i = *nv
	*nv++
	verts[i*3+0] = x
	verts[i*3+1] = y
	verts[i*3+2] = z
	nextVert[i] = firstVert[bucket]
	firstVert[bucket] = i
	return i
}

type meshEdge struct {
	vert     [2]int
	polyEdge [2]int
	poly     [2]int
}

func buildMeshAdjacency(polys []int, npolys, nverts, vertsPerPoly int) {
	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]int, nverts)
	nextEdge := make([]int, maxEdgeCount)
	for i := range firstEdge {
		firstEdge[i] = -1
	}
	edges := make([]meshEdge, 0, maxEdgeCount)

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 < v1 {
				nextEdge[len(edges)] = firstEdge[v0]
				firstEdge[v0] = len(edges)
				edges = append(edges, meshEdge{
					vert:     [2]int{v0, v1},
					poly:     [2]int{i, i},
					polyEdge: [2]int{j, 0},
				})
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 > v1 {
				for e := firstEdge[v1]; e != -1; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = i
						edge.polyEdge[1] = j
						break
					}
				}
			}
		}
	}

	for i := range edges {
		e := &edges[i]
		if e.poly[0] != e.poly[1] {
			p0 := polys[e.poly[0]*vertsPerPoly*2:]
			p1 := polys[e.poly[1]*vertsPerPoly*2:]
			p0[vertsPerPoly+e.polyEdge[0]] = e.poly[1]
			p1[vertsPerPoly+e.polyEdge[1]] = e.poly[0]
		}
	}
}

func canRemoveVertex(mesh *PolyMesh, rem int) bool {
	nvp := mesh.Nvp

	// Edge budget after removal.
	numTouchedVerts := 0
	numRemainingEdges := 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		numRemoved := 0
		numVerts := 0
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numTouchedVerts++
				numRemoved = 1
			}
			numVerts++
		}
		if numRemoved != 0 {
			numRemainingEdges += numVerts - (numRemoved + 1)
		}
	}
	if numRemainingEdges <= 2 {
		return false
	}

	// Count open edges around the removed vertex; more than two means
	// the hole cannot be re-triangulated.
	var edges []int // triples: a, b, count
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			a, b := p[j], p[k]
			if b == rem {
				a, b = b, a
			}
			exists := false
			for m := 0; m < len(edges)/3; m++ {
				if edges[m*3+1] == b {
					edges[m*3+2]++
					exists = true
				}
			}
			if !exists {
				edges = append(edges, a, b, 1)
			}
		}
	}
	numOpenEdges := 0
	for m := 0; m < len(edges)/3; m++ {
		if edges[m*3+2] < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

func removeVertex(mesh *PolyMesh, rem, maxPolys int) error {
	nvp := mesh.Nvp

	var edges []int // quads: a, b, reg, area
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		hasRem := false
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				hasRem = true
			}
		}
		if !hasRem {
			continue
		}
		// Collect edges which do not touch the removed vertex.
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				edges = append(edges, p[k], p[j], mesh.Regs[i], int(mesh.Areas[i]))
			}
		}
		// Remove the polygon.
		last := mesh.Polys[(mesh.NPolys-1)*nvp*2:]
		if &p[0] != &last[0] {
			copy(p[:nvp], last[:nvp])
		}
		for k := nvp; k < nvp*2; k++ {
			p[k] = MeshNullIdx
		}
		mesh.Regs[i] = mesh.Regs[mesh.NPolys-1]
		mesh.Areas[i] = mesh.Areas[mesh.NPolys-1]
		mesh.NPolys--
		i--
	}

	// Remove the vertex and shift indices down.
	for i := rem; i < mesh.NVerts-1; i++ {
		mesh.Verts[i*3+0] = mesh.Verts[(i+1)*3+0]
		mesh.Verts[i*3+1] = mesh.Verts[(i+1)*3+1]
		mesh.Verts[i*3+2] = mesh.Verts[(i+1)*3+2]
	}
	mesh.NVerts--
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := 0; i < len(edges)/4; i++ {
		if edges[i*4] > rem {
			edges[i*4]--
		}
		if edges[i*4+1] > rem {
			edges[i*4+1]--
		}
	}
	if len(edges) == 0 {
		return nil
	}

	// Stitch the loose edges into a closed hole loop.
	var hole, hreg []int
	var harea []uint8
	hole = append(hole, edges[0])
	hreg = append(hreg, edges[2])
	harea = append(harea, uint8(edges[3]))

	for len(edges) > 0 {
		match := false
		for i := 0; i < len(edges)/4; i++ {
			ea := edges[i*4+0]
			eb := edges[i*4+1]
			r := edges[i*4+2]
			a := uint8(edges[i*4+3])
			add := false
			if hole[0] == eb {
				// Matches the front, push to front.
				hole = append([]int{ea}, hole...)
				hreg = append([]int{r}, hreg...)
				harea = append([]uint8{a}, harea...)
				add = true
			} else if hole[len(hole)-1] == ea {
				hole = append(hole, eb)
				hreg = append(hreg, r)
				harea = append(harea, a)
				add = true
			}
			if add {
				n := len(edges)/4 - 1
				copy(edges[i*4:], edges[n*4:n*4+4])
				edges = edges[:n*4]
				i--
				match = true
			}
		}
		if !match {
			break
		}
	}

	// Triangulate the hole.
	nhole := len(hole)
	tris := make([]int, nhole*3)
	tverts := make([]int, nhole*4)
	thole := make([]int, nhole)
	for i, pi := range hole {
		tverts[i*4+0] = mesh.Verts[pi*3+0]
		tverts[i*4+1] = mesh.Verts[pi*3+1]
		tverts[i*4+2] = mesh.Verts[pi*3+2]
		tverts[i*4+3] = 0
		thole[i] = i
	}
	ntris := triangulate(nhole, tverts, thole, tris)
	if ntris < 0 {
		ntris = -ntris
	}

	// Merge the hole triangles back into polygons.
	polys := make([]int, (ntris+1)*nvp)
	for i := range polys {
		polys[i] = MeshNullIdx
	}
	tmpPoly := polys[ntris*nvp:]
	pregs := make([]int, ntris)
	pareas := make([]uint8, ntris)

	npolys := 0
	for j := 0; j < ntris; j++ {
		t := tris[j*3:]
		if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
			polys[npolys*nvp+0] = hole[t[0]]
			polys[npolys*nvp+1] = hole[t[1]]
			polys[npolys*nvp+2] = hole[t[2]]
			pregs[npolys] = hreg[t[0]]
			pareas[npolys] = harea[t[0]]
			npolys++
		}
	}
	if npolys == 0 {
		return nil
	}

	if nvp > 3 {
		for {
			bestArea := 0
			bestPa, bestPb, bestEa, bestEb := -1, -1, -1, -1
			for j := 0; j < npolys-1; j++ {
				pj := polys[j*nvp:]
				for k := j + 1; k < npolys; k++ {
					if pregs[j] != pregs[k] {
						continue
					}
					pk := polys[k*nvp:]
					v, ea, eb := polyMergeArea(pj, pk, mesh.Verts, nvp)
					if v > bestArea {
						bestArea = v
						bestPa, bestPb, bestEa, bestEb = j, k, ea, eb
					}
				}
			}
			if bestPa == -1 {
				break
			}
			pa := polys[bestPa*nvp:]
			pb := polys[bestPb*nvp:]
			mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
			last := polys[(npolys-1)*nvp:]
			if &pb[0] != &last[0] {
				copy(pb[:nvp], last[:nvp])
			}
			pregs[bestPb] = pregs[npolys-1]
			pareas[bestPb] = pareas[npolys-1]
			npolys--
		}
	}

	for j := 0; j < npolys; j++ {
		if mesh.NPolys >= maxPolys {
			return fmt.Errorf("pipeline: too many polygons after vertex removal")
		}
		p := mesh.Polys[mesh.NPolys*nvp*2:]
		for k := 0; k < nvp; k++ {
			p[k] = polys[j*nvp+k]
			p[nvp+k] = MeshNullIdx
		}
		mesh.Regs[mesh.NPolys] = pregs[j]
		mesh.Areas[mesh.NPolys] = pareas[j]
		mesh.NPolys++
	}
	return nil
}

// BuildPolyMesh converts a contour set into a convex polygon mesh with at
// most nvp vertices per polygon. Polygons merge greedily by largest
// combined area; ties keep the lowest polygon pair, so rebuilds are
// reproducible.
func BuildPolyMesh(cset *ContourSet, nvp int) (*PolyMesh, error) {
	mesh := &PolyMesh{
		BMin:         cset.BMin,
		BMax:         cset.BMax,
		Cs:           cset.Cs,
		Ch:           cset.Ch,
		BorderSize:   cset.BorderSize,
		MaxEdgeError: cset.MaxError,
		Nvp:          nvp,
	}

	maxVertices := 0
	maxTris := 0
	maxVertsPerCont := 0
	for _, cont := range cset.Conts {
		nv := len(cont.Verts) / 4
		if nv < 3 {
			continue
		}
		maxVertices += nv
		maxTris += nv - 2
		maxVertsPerCont = max(maxVertsPerCont, nv)
	}
	if maxVertices == 0 {
		// Nothing walkable in the tile; an empty mesh is a valid result.
		return mesh, nil
	}
	if maxVertices >= MeshNullIdx {
		return nil, fmt.Errorf("pipeline: too many vertices %d", maxVertices)
	}

	vflags := make([]uint8, maxVertices+1)
	mesh.Verts = make([]int, maxVertices*3)
	mesh.Polys = make([]int, maxTris*nvp*2)
	for i := range mesh.Polys {
		mesh.Polys[i] = MeshNullIdx
	}
	mesh.Regs = make([]int, maxTris)
	mesh.Areas = make([]uint8, maxTris)
	maxPolys := maxTris

	nextVert := make([]int, maxVertices)
	firstVert := make([]int, vertexBucketCount)
	for i := range firstVert {
		firstVert[i] = -1
	}

	indices := make([]int, maxVertsPerCont)
	tris := make([]int, maxVertsPerCont*3)
	polys := make([]int, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for _, cont := range cset.Conts {
		nv := len(cont.Verts) / 4
		if nv < 3 {
			continue
		}

		for j := 0; j < nv; j++ {
			indices[j] = j
		}
		ntris := triangulate(nv, cont.Verts, indices[:nv], tris)
		if ntris <= 0 {
			// Keep what the clipper managed to produce.
			ntris = -ntris
		}

		// Add and merge vertices.
		for j := 0; j < nv; j++ {
			v := cont.Verts[j*4:]
			indices[j] = addVertex(v[0], v[1], v[2], mesh.Verts, firstVert, nextVert, &mesh.NVerts)
			if v[3]&borderVertexFlag != 0 {
				// Remove the vertex later to match across tiles.
				vflags[indices[j]] = 1
			}
		}

		npolys := 0
		for i := 0; i < maxVertsPerCont*nvp; i++ {
			polys[i] = MeshNullIdx
		}
		for j := 0; j < ntris; j++ {
			t := tris[j*3:]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp+0] = indices[t[0]]
				polys[npolys*nvp+1] = indices[t[1]]
				polys[npolys*nvp+2] = indices[t[2]]
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		if nvp > 3 {
			for {
				bestArea := 0
				bestPa, bestPb, bestEa, bestEb := -1, -1, -1, -1
				for j := 0; j < npolys-1; j++ {
					pj := polys[j*nvp:]
					for k := j + 1; k < npolys; k++ {
						pk := polys[k*nvp:]
						v, ea, eb := polyMergeArea(pj, pk, mesh.Verts, nvp)
						if v > bestArea {
							bestArea = v
							bestPa, bestPb, bestEa, bestEb = j, k, ea, eb
						}
					}
				}
				if bestPa == -1 {
					break
				}
				pa := polys[bestPa*nvp:]
				pb := polys[bestPb*nvp:]
				mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
				last := polys[(npolys-1)*nvp:]
				if &pb[0] != &last[0] {
					copy(pb[:nvp], last[:nvp])
				}
				npolys--
			}
		}

		for j := 0; j < npolys; j++ {
			if mesh.NPolys >= maxPolys {
				return nil, fmt.Errorf("pipeline: too many polygons %d", mesh.NPolys)
			}
			p := mesh.Polys[mesh.NPolys*nvp*2:]
			for k := 0; k < nvp; k++ {
				p[k] = polys[j*nvp+k]
			}
			mesh.Regs[mesh.NPolys] = cont.Reg
			mesh.Areas[mesh.NPolys] = cont.Area
			mesh.NPolys++
		}
	}

	// Remove the border vertices flagged by the contour stage.
	for i := 0; i < mesh.NVerts; i++ {
		if vflags[i] == 0 {
			continue
		}
		if !canRemoveVertex(mesh, i) {
			continue
		}
		if err := removeVertex(mesh, i, maxPolys); err != nil {
			return nil, err
		}
		copy(vflags[i:], vflags[i+1:mesh.NVerts+1])
		i--
	}

	buildMeshAdjacency(mesh.Polys, mesh.NPolys, mesh.NVerts, nvp)

	// Mark portal edges on the unpadded tile border.
	if mesh.BorderSize > 0 {
		w := cset.Width
		h := cset.Height
		for i := 0; i < mesh.NPolys; i++ {
			p := mesh.Polys[i*nvp*2:]
			for j := 0; j < nvp; j++ {
				if p[j] == MeshNullIdx {
					break
				}
				if p[nvp+j] != MeshNullIdx {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == MeshNullIdx {
					nj = 0
				}
				va := mesh.Verts[p[j]*3:]
				vb := mesh.Verts[p[nj]*3:]
				switch {
				case va[0] == 0 && vb[0] == 0:
					p[nvp+j] = BorderReg | 0
				case va[2] == h && vb[2] == h:
					p[nvp+j] = BorderReg | 1
				case va[0] == w && vb[0] == w:
					p[nvp+j] = BorderReg | 2
				case va[2] == 0 && vb[2] == 0:
					p[nvp+j] = BorderReg | 3
				}
			}
		}
	}

	mesh.Verts = mesh.Verts[:mesh.NVerts*3]
	mesh.Polys = mesh.Polys[:mesh.NPolys*nvp*2]
	mesh.Regs = mesh.Regs[:mesh.NPolys]
	mesh.Areas = mesh.Areas[:mesh.NPolys]
	return mesh, nil
}
