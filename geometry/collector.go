// Package geometry holds the input side of a navmesh build: triangle soup
// collection, the immutable snapshot handed to the pipeline, and a spatial
// index for pulling per-tile triangle subsets out of it.
package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"navforge/common"
)

// Collector accumulates triangle meshes before a build. It is not safe for
// concurrent use; finish adding geometry, then call Snapshot.
type Collector struct {
	verts []float32
	tris  []int
	areas []uint8
}

func NewCollector() *Collector {
	return &Collector{}
}

// AddMesh appends a triangle mesh. Indices in tris reference the verts
// passed in the same call. Every triangle gets the given area id; pass 0
// to leave triangles unwalkable until slope marking assigns them one.
func (c *Collector) AddMesh(verts []float32, tris []int, area uint8) error {
	if len(verts)%3 != 0 {
		return fmt.Errorf("geometry: vertex array length %d is not a multiple of 3", len(verts))
	}
	if len(tris)%3 != 0 {
		return fmt.Errorf("geometry: triangle array length %d is not a multiple of 3", len(tris))
	}
	nv := len(verts) / 3
	for _, idx := range tris {
		if idx < 0 || idx >= nv {
			return fmt.Errorf("geometry: triangle index %d out of range [0,%d)", idx, nv)
		}
	}
	base := len(c.verts) / 3
	c.verts = append(c.verts, verts...)
	for _, idx := range tris {
		c.tris = append(c.tris, base+idx)
	}
	for i := 0; i < len(tris)/3; i++ {
		c.areas = append(c.areas, area)
	}
	return nil
}

// Snapshot freezes the collected geometry into an immutable Mesh with
// computed bounds and a chunky triangle index. The collector can keep
// accumulating afterwards without affecting the snapshot. A collector
// with no triangles snapshots to an empty mesh; builds over it produce
// empty tiles with a warning rather than failing.
func (c *Collector) Snapshot() (*Mesh, error) {
	m := &Mesh{
		verts: append([]float32(nil), c.verts...),
	}
	if len(m.verts) >= 3 {
		common.Vcopy(m.bmin[:], m.verts[:3])
		common.Vcopy(m.bmax[:], m.verts[:3])
		for i := 1; i < len(m.verts)/3; i++ {
			common.Vmin(m.bmin[:], m.verts[i*3:])
			common.Vmax(m.bmax[:], m.verts[i*3:])
		}
	}
	if len(c.tris) == 0 {
		m.chunky = &chunkyMesh{}
		return m, nil
	}
	chunky, tris, areas, err := buildChunkyMesh(m.verts, c.tris, c.areas, 256)
	if err != nil {
		return nil, err
	}
	m.tris = tris
	m.areas = areas
	m.chunky = chunky
	return m, nil
}

// Mesh is the immutable geometry snapshot a build runs against. Triangles
// are stored in chunky-index order so per-tile queries return contiguous
// runs.
type Mesh struct {
	verts  []float32
	tris   []int
	areas  []uint8
	bmin   [3]float32
	bmax   [3]float32
	chunky *chunkyMesh
}

func (m *Mesh) Verts() []float32 { return m.verts }

func (m *Mesh) TriCount() int { return len(m.tris) / 3 }

func (m *Mesh) BoundsMin() mgl32.Vec3 {
	return mgl32.Vec3{m.bmin[0], m.bmin[1], m.bmin[2]}
}

func (m *Mesh) BoundsMax() mgl32.Vec3 {
	return mgl32.Vec3{m.bmax[0], m.bmax[1], m.bmax[2]}
}

// TrianglesInRect returns copies of the triangle indices and area ids for
// every triangle whose XZ bounds overlap the given rect. The chunky index
// narrows the scan; a per-triangle bounds check keeps the result exact.
// Callers may mutate the returned areas freely.
func (m *Mesh) TrianglesInRect(rmin, rmax mgl32.Vec2) ([]int, []uint8) {
	var tris []int
	var areas []uint8
	m.chunky.overlappingRect([2]float32{rmin.X(), rmin.Y()}, [2]float32{rmax.X(), rmax.Y()}, func(first, count int) {
		for i := first; i < first+count; i++ {
			minx, minz := float32(math.MaxFloat32), float32(math.MaxFloat32)
			maxx, maxz := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
			for j := 0; j < 3; j++ {
				v := m.verts[m.tris[i*3+j]*3:]
				minx = min(minx, v[0])
				maxx = max(maxx, v[0])
				minz = min(minz, v[2])
				maxz = max(maxz, v[2])
			}
			if maxx < rmin.X() || minx > rmax.X() || maxz < rmin.Y() || minz > rmax.Y() {
				continue
			}
			tris = append(tris, m.tris[i*3:i*3+3]...)
			areas = append(areas, m.areas[i])
		}
	})
	return tris, areas
}

// MarkWalkableTriangles assigns walkable to every triangle whose slope is
// below maxSlopeDeg. Triangles steeper than the limit keep their area.
func MarkWalkableTriangles(maxSlopeDeg float32, verts []float32, tris []int, areas []uint8, walkable uint8) {
	walkableThr := float32(math.Cos(float64(maxSlopeDeg) / 180.0 * math.Pi))
	var norm [3]float32
	for i := 0; i < len(tris)/3; i++ {
		calcTriNormal(verts[tris[i*3]*3:], verts[tris[i*3+1]*3:], verts[tris[i*3+2]*3:], norm[:])
		if norm[1] > walkableThr {
			areas[i] = walkable
		}
	}
}

// ClearUnwalkableTriangles resets the area of every triangle steeper than
// maxSlopeDeg to 0.
func ClearUnwalkableTriangles(maxSlopeDeg float32, verts []float32, tris []int, areas []uint8) {
	walkableThr := float32(math.Cos(float64(maxSlopeDeg) / 180.0 * math.Pi))
	var norm [3]float32
	for i := 0; i < len(tris)/3; i++ {
		calcTriNormal(verts[tris[i*3]*3:], verts[tris[i*3+1]*3:], verts[tris[i*3+2]*3:], norm[:])
		if norm[1] <= walkableThr {
			areas[i] = 0
		}
	}
}

func calcTriNormal(v0, v1, v2 []float32, norm []float32) {
	var e0, e1 [3]float32
	common.Vsub(e0[:], v1, v0)
	common.Vsub(e1[:], v2, v0)
	common.Vcross(norm, e0[:], e1[:])
	common.Vnormalize(norm)
}
