package pipeline

import (
	"math"

	"navforge/common"
)

const (
	maxDetailVertsPerEdge = 32
	maxDetailVerts        = 127
)

// PolyMeshDetail carries per-polygon height detail. Meshes holds 4 ints
// per polygon: vertex base, vertex count, triangle base, triangle count.
// Tris holds 4 bytes per triangle: three vertex indices local to the
// submesh plus boundary edge flags (bit j set when edge j lies on the
// polygon hull).
type PolyMeshDetail struct {
	Meshes []int
	Verts  []float32
	Tris   []uint8
}

func distPtSegSq3(px, py, pz float32, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqy := q[1] - p[1]
	pqz := q[2] - p[2]
	dx := px - p[0]
	dy := py - p[1]
	dz := pz - p[2]
	d := pqx*pqx + pqy*pqy + pqz*pqz
	t := pqx*dx + pqy*dy + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = p[0] + t*pqx - px
	dy = p[1] + t*pqy - py
	dz = p[2] + t*pqz - pz
	return dx*dx + dy*dy + dz*dz
}

func vdist2Sq(a, b []float32) float32 {
	dx := b[0] - a[0]
	dz := b[2] - a[2]
	return dx*dx + dz*dz
}

func inPolyXZ(pts []float32, npts int, px, pz float32) bool {
	c := false
	for i, j := 0, npts-1; i < npts; j, i = i, i+1 {
		vi := pts[i*3:]
		vj := pts[j*3:]
		if (vi[2] > pz) != (vj[2] > pz) &&
			px < (vj[0]-vi[0])*(pz-vi[2])/(vj[2]-vi[2])+vi[0] {
			c = !c
		}
	}
	return c
}

// getHeight samples the compact heightfield surface nearest in height to
// the given world point.
func getHeight(fx, fy, fz float32, chf *CompactHeightfield) float32 {
	ix := int(math.Floor(float64((fx - chf.BMin[0]) / chf.Cs)))
	iz := int(math.Floor(float64((fz - chf.BMin[2]) / chf.Cs)))
	ix = common.Clamp(ix, 0, chf.Width-1)
	iz = common.Clamp(iz, 0, chf.Height-1)

	h := fy
	bestDist := float32(math.MaxFloat32)
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			x := ix + dx
			z := iz + dz
			if x < 0 || z < 0 || x >= chf.Width || z >= chf.Height {
				continue
			}
			c := &chf.Cells[x+z*chf.Width]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				if chf.Areas[i] == NullArea {
					continue
				}
				y := chf.BMin[1] + float32(chf.Spans[i].Y)*chf.Ch
				d := common.Abs(y - fy)
				if d < bestDist {
					bestDist = d
					h = y
				}
			}
		}
	}
	return h
}

// triInterpY returns the surface height of triangle (a,b,c) at (px,pz),
// or false when the point lies outside the triangle.
func triInterpY(a, b, c []float32, px, pz float32) (float32, bool) {
	v0x := c[0] - a[0]
	v0z := c[2] - a[2]
	v1x := b[0] - a[0]
	v1z := b[2] - a[2]
	v2x := px - a[0]
	v2z := pz - a[2]

	d00 := v0x*v0x + v0z*v0z
	d01 := v0x*v1x + v0z*v1z
	d11 := v1x*v1x + v1z*v1z
	d20 := v2x*v0x + v2z*v0z
	d21 := v2x*v1x + v2z*v1z
	denom := d00*d11 - d01*d01
	if common.Abs(denom) < 1e-6 {
		return 0, false
	}
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	u := 1 - v - w

	const eps = 1e-4
	if u < -eps || v < -eps || w < -eps {
		return 0, false
	}
	return a[1] + v*(c[1]-a[1]) + w*(b[1]-a[1]), true
}

// triangulateHull clips the hull into triangles by repeatedly taking the
// shorter of the two advancing diagonals.
func triangulateHull(verts []float32, hull []int, tris []int) []int {
	nhull := len(hull)
	start, left, right := 0, 1, nhull-1

	// Seed with the ear that has the smallest perimeter.
	dmin := float32(math.MaxFloat32)
	for i := 0; i < nhull; i++ {
		pi := prevIdx(i, nhull)
		ni := nextIdx(i, nhull)
		pv := verts[hull[pi]*3:]
		cv := verts[hull[i]*3:]
		nv := verts[hull[ni]*3:]
		d := vdist2Sq(pv, cv) + vdist2Sq(cv, nv) + vdist2Sq(nv, pv)
		if d < dmin {
			start = i
			left = ni
			right = pi
			dmin = d
		}
	}
	tris = append(tris, hull[start], hull[left], hull[right])

	for nextIdx(left, nhull) != right {
		nleft := nextIdx(left, nhull)
		nright := prevIdx(right, nhull)

		cvleft := verts[hull[left]*3:]
		nvleft := verts[hull[nleft]*3:]
		cvright := verts[hull[right]*3:]
		nvright := verts[hull[nright]*3:]

		dleft := vdist2Sq(cvleft, nvleft) + vdist2Sq(nvleft, cvright)
		dright := vdist2Sq(cvright, nvright) + vdist2Sq(cvleft, nvright)

		if dleft < dright {
			tris = append(tris, hull[left], hull[nleft], hull[right])
			left = nleft
		} else {
			tris = append(tris, hull[left], hull[nright], hull[right])
			right = nright
		}
	}
	return tris
}

// buildPolyDetail tessellates one polygon: hull edges get sample points
// where the surface deviates more than sampleMaxError, interior samples
// split the triangle they fall into while deviation remains above the
// threshold.
func buildPolyDetail(in []float32, nin int, sampleDist, sampleMaxError float32, chf *CompactHeightfield, verts []float32, tris []int) ([]float32, []int) {
	verts = append(verts[:0], in[:nin*3]...)
	tris = tris[:0]

	var hull []int
	var edge [(maxDetailVertsPerEdge + 1) * 3]float32
	var idx [maxDetailVertsPerEdge]int

	if sampleDist > 0 {
		// Tessellate the hull edges.
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := in[j*3:]
			vi := in[i*3:]
			d := float32(math.Sqrt(float64(vdist2Sq(vj, vi))))
			nn := min(1+int(math.Floor(float64(d/sampleDist))), maxDetailVertsPerEdge-1)
			if len(verts)/3+nn >= maxDetailVerts {
				hull = append(hull, j)
				continue
			}
			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := edge[k*3:]
				pos[0] = vj[0] + (vi[0]-vj[0])*u
				pos[1] = vj[1] + (vi[1]-vj[1])*u
				pos[2] = vj[2] + (vi[2]-vj[2])*u
				pos[1] = getHeight(pos[0], pos[1], pos[2], chf)
			}
			// Simplify the edge samples.
			idx[0] = 0
			idx[1] = nn
			nidx := 2
			for k := 0; k < nidx-1; {
				maxd := float32(0)
				maxi := -1
				for m := idx[k] + 1; m < idx[k+1]; m++ {
					dev := distPtSegSq3(edge[m*3], edge[m*3+1], edge[m*3+2], edge[idx[k]*3:], edge[idx[k+1]*3:])
					if dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				if maxi != -1 && maxd > sampleMaxError*sampleMaxError {
					copy(idx[k+2:nidx+1], idx[k+1:nidx])
					idx[k+1] = maxi
					nidx++
				} else {
					k++
				}
			}
			// Corner first, then the kept interior samples in order.
			hull = append(hull, j)
			for m := 1; m < nidx-1; m++ {
				hull = append(hull, len(verts)/3)
				verts = append(verts, edge[idx[m]*3], edge[idx[m]*3+1], edge[idx[m]*3+2])
			}
		}
	} else {
		for i := 0; i < nin; i++ {
			hull = append(hull, i)
		}
	}

	if len(hull) < 3 {
		return verts, tris
	}
	tris = triangulateHull(verts, hull, tris)

	if sampleDist > 0 {
		// Interior samples on a sampleDist grid.
		var bmin, bmax [3]float32
		common.Vcopy(bmin[:], in)
		common.Vcopy(bmax[:], in)
		for i := 1; i < nin; i++ {
			common.Vmin(bmin[:], in[i*3:])
			common.Vmax(bmax[:], in[i*3:])
		}
		x0 := int(math.Floor(float64(bmin[0] / sampleDist)))
		x1 := int(math.Ceil(float64(bmax[0] / sampleDist)))
		z0 := int(math.Floor(float64(bmin[2] / sampleDist)))
		z1 := int(math.Ceil(float64(bmax[2] / sampleDist)))

		var samples []float32
		for z := z0; z < z1; z++ {
			for x := x0; x < x1; x++ {
				px := float32(x) * sampleDist
				pz := float32(z) * sampleDist
				if !inPolyXZ(in, nin, px, pz) {
					continue
				}
				py := getHeight(px, (bmax[1]+bmin[1])*0.5, pz, chf)
				samples = append(samples, px, py, pz)
			}
		}

		used := make([]bool, len(samples)/3)
		for len(verts)/3 < maxDetailVerts {
			bestDev := sampleMaxError
			bestSample := -1
			bestTri := -1
			for si := 0; si < len(samples)/3; si++ {
				if used[si] {
					continue
				}
				s := samples[si*3:]
				for t := 0; t < len(tris)/3; t++ {
					a := verts[tris[t*3+0]*3:]
					b := verts[tris[t*3+1]*3:]
					c := verts[tris[t*3+2]*3:]
					y, ok := triInterpY(a, b, c, s[0], s[2])
					if !ok {
						continue
					}
					dev := common.Abs(s[1] - y)
					if dev > bestDev {
						bestDev = dev
						bestSample = si
						bestTri = t
					}
					break
				}
			}
			if bestSample == -1 {
				break
			}
			used[bestSample] = true
			s := samples[bestSample*3:]
			ni := len(verts) / 3
			verts = append(verts, s[0], s[1], s[2])

			// Split the containing triangle into three.
			a := tris[bestTri*3+0]
			b := tris[bestTri*3+1]
			c := tris[bestTri*3+2]
			tris[bestTri*3+2] = ni // (a, b, ni)
			tris = append(tris, b, c, ni, c, a, ni)
		}
	}

	return verts, tris
}

// BuildPolyMeshDetail builds the height detail submeshes for every
// polygon of the mesh. sampleDist <= 0 produces the flat per-polygon
// triangulation only.
func BuildPolyMeshDetail(mesh *PolyMesh, chf *CompactHeightfield, sampleDist, sampleMaxError float32) (*PolyMeshDetail, error) {
	dmesh := &PolyMeshDetail{}
	if mesh.NVerts == 0 || mesh.NPolys == 0 {
		return dmesh, nil
	}

	nvp := mesh.Nvp
	cs := mesh.Cs
	ch := mesh.Ch
	orig := mesh.BMin

	var poly []float32
	var verts []float32
	var tris []int
	var hull []int

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		npoly := countPolyVerts(p, nvp)

		// World-space polygon.
		poly = poly[:0]
		for j := 0; j < npoly; j++ {
			v := mesh.Verts[p[j]*3:]
			poly = append(poly,
				orig[0]+float32(v[0])*cs,
				orig[1]+float32(v[1])*ch,
				orig[2]+float32(v[2])*cs)
		}

		verts, tris = buildPolyDetail(poly, npoly, sampleDist, sampleMaxError, chf, verts, tris)

		// The hull for flagging is the original polygon ring; detail edge
		// verts inserted between corners inherit boundary membership by
		// index order, so rebuild the ring from vertex positions.
		hull = hull[:0]
		for j := 0; j < len(verts)/3; j++ {
			onBoundary := false
			for k, l := 0, npoly-1; k < npoly; l, k = k, k+1 {
				if distPtSegSq3(verts[j*3], verts[j*3+1], verts[j*3+2], poly[l*3:], poly[k*3:]) < 1e-6 {
					onBoundary = true
					break
				}
			}
			if onBoundary {
				hull = append(hull, j)
			}
		}

		vbase := len(dmesh.Verts) / 3
		tbase := len(dmesh.Tris) / 4
		dmesh.Meshes = append(dmesh.Meshes, vbase, len(verts)/3, tbase, len(tris)/3)
		dmesh.Verts = append(dmesh.Verts, verts...)
		for t := 0; t < len(tris)/3; t++ {
			a := tris[t*3+0]
			b := tris[t*3+1]
			c := tris[t*3+2]
			dmesh.Tris = append(dmesh.Tris, uint8(a), uint8(b), uint8(c), edgeFlags(a, b, c, hull))
		}
	}
	return dmesh, nil
}

// edgeFlags marks the triangle edges whose endpoints both lie on the
// polygon boundary.
func edgeFlags(a, b, c int, boundary []int) uint8 {
	on := func(v int) bool {
		for _, h := range boundary {
			if h == v {
				return true
			}
		}
		return false
	}
	var flags uint8
	if on(a) && on(b) {
		flags |= 1 << 0
	}
	if on(b) && on(c) {
		flags |= 1 << 1
	}
	if on(c) && on(a) {
		flags |= 1 << 2
	}
	return flags
}
