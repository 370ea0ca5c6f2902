package pipeline

import (
	"math"

	"navforge/common"
)

const (
	axisX = 0
	axisZ = 2
)

// RasterizeTriangles voxelizes the given triangles into the heightfield.
// Spans within mergeThr cells of an existing top merge their area ids.
func RasterizeTriangles(hf *Heightfield, verts []float32, tris []int, areas []uint8, mergeThr int) {
	ics := 1.0 / hf.Cs
	ich := 1.0 / hf.Ch
	for i := 0; i < len(tris)/3; i++ {
		rasterizeTri(
			verts[tris[i*3+0]*3:],
			verts[tris[i*3+1]*3:],
			verts[tris[i*3+2]*3:],
			areas[i], hf, ics, ich, mergeThr)
	}
}

func overlapBounds(amin, amax, bmin, bmax []float32) bool {
	for i := 0; i < 3; i++ {
		if amin[i] > bmax[i] || amax[i] < bmin[i] {
			return false
		}
	}
	return true
}

// dividePoly splits a convex polygon along an axis-aligned line. out1
// receives the part below axisOffset, out2 the part above. Vertices on the
// line go to both sides.
func dividePoly(in []float32, nin int, out1 []float32, out2 []float32, axisOffset float32, axis int) (nout1, nout2 int) {
	var d [12]float32
	for i := 0; i < nin; i++ {
		d[i] = axisOffset - in[i*3+axis]
	}

	m, n := 0, 0
	for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
		ina := d[j] >= 0
		inb := d[i] >= 0
		if ina != inb {
			s := d[j] / (d[j] - d[i])
			out1[m*3+0] = in[j*3+0] + (in[i*3+0]-in[j*3+0])*s
			out1[m*3+1] = in[j*3+1] + (in[i*3+1]-in[j*3+1])*s
			out1[m*3+2] = in[j*3+2] + (in[i*3+2]-in[j*3+2])*s
			common.Vcopy(out2[n*3:], out1[m*3:])
			m++
			n++
			// Add the i'th point to the side it lies on. Points on the
			// line were added above.
			if d[i] > 0 {
				common.Vcopy(out1[m*3:], in[i*3:])
				m++
			} else if d[i] < 0 {
				common.Vcopy(out2[n*3:], in[i*3:])
				n++
			}
		} else {
			if d[i] >= 0 {
				common.Vcopy(out1[m*3:], in[i*3:])
				m++
				if d[i] != 0 {
					continue
				}
			}
			common.Vcopy(out2[n*3:], in[i*3:])
			n++
		}
	}
	return m, n
}

func rasterizeTri(v0, v1, v2 []float32, area uint8, hf *Heightfield, ics, ich float32, mergeThr int) {
	var tmin, tmax [3]float32
	common.Vcopy(tmin[:], v0)
	common.Vcopy(tmax[:], v0)
	common.Vmin(tmin[:], v1)
	common.Vmin(tmin[:], v2)
	common.Vmax(tmax[:], v1)
	common.Vmax(tmax[:], v2)

	if !overlapBounds(tmin[:], tmax[:], hf.BMin[:], hf.BMax[:]) {
		return
	}

	w := hf.Width
	h := hf.Height
	by := hf.BMax[1] - hf.BMin[1]

	z0 := int((tmin[2] - hf.BMin[2]) * ics)
	z1 := int((tmax[2] - hf.BMin[2]) * ics)
	// Allow z0 one cell under the grid so the polygon state stays valid
	// for rows clipped away below.
	z0 = common.Clamp(z0, -1, h-1)
	z1 = common.Clamp(z1, 0, h-1)

	// Clip the triangle into all grid cells it touches.
	var buf [7 * 3 * 4]float32
	in := buf[0:21]
	inRow := buf[21:42]
	p1 := buf[42:63]
	p2 := buf[63:84]

	common.Vcopy(in[0:], v0)
	common.Vcopy(in[3:], v1)
	common.Vcopy(in[6:], v2)
	nvIn := 3

	for z := z0; z <= z1; z++ {
		cellZ := hf.BMin[2] + float32(z)*hf.Cs
		var nvRow int
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cellZ+hf.Cs, axisZ)
		in, p1 = p1, in
		if nvRow < 3 {
			continue
		}
		if z < 0 {
			continue
		}

		minX := inRow[0]
		maxX := inRow[0]
		for vert := 1; vert < nvRow; vert++ {
			minX = min(minX, inRow[vert*3])
			maxX = max(maxX, inRow[vert*3])
		}
		x0 := int((minX - hf.BMin[0]) * ics)
		x1 := int((maxX - hf.BMin[0]) * ics)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			cellX := hf.BMin[0] + float32(x)*hf.Cs
			var nv int
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cellX+hf.Cs, axisX)
			inRow, p2 = p2, inRow
			if nv < 3 {
				continue
			}
			if x < 0 {
				continue
			}

			spanMin := p1[1]
			spanMax := p1[1]
			for vert := 1; vert < nv; vert++ {
				spanMin = min(spanMin, p1[vert*3+1])
				spanMax = max(spanMax, p1[vert*3+1])
			}
			spanMin -= hf.BMin[1]
			spanMax -= hf.BMin[1]
			if spanMax < 0 || spanMin > by {
				continue
			}
			spanMin = common.Clamp(spanMin, 0, by)
			spanMax = common.Clamp(spanMax, 0, by)

			ismin := common.Clamp(int(math.Floor(float64(spanMin*ich))), 0, SpanMaxHeight)
			ismax := common.Clamp(int(math.Ceil(float64(spanMax*ich))), ismin+1, SpanMaxHeight)

			hf.AddSpan(x, z, ismin, ismax, area, mergeThr)
		}
	}
}
