package geometry

import (
	"fmt"
	"sort"
)

// chunkyMesh is a shallow AABB tree over triangle XZ bounds. Leaves hold
// runs of triangles; internal nodes store a negative escape index so
// traversal needs no stack.
type chunkyNode struct {
	bmin [2]float32
	bmax [2]float32
	i    int // first triangle for leaves, -escape for internal nodes
	n    int
}

type chunkyMesh struct {
	nodes           []chunkyNode
	ntris           int
	maxTrisPerChunk int
}

type boundsItem struct {
	bmin [2]float32
	bmax [2]float32
	i    int
}

func calcExtends(items []boundsItem, imin, imax int, bmin, bmax []float32) {
	bmin[0] = items[imin].bmin[0]
	bmin[1] = items[imin].bmin[1]
	bmax[0] = items[imin].bmax[0]
	bmax[1] = items[imin].bmax[1]
	for i := imin + 1; i < imax; i++ {
		it := &items[i]
		bmin[0] = min(bmin[0], it.bmin[0])
		bmin[1] = min(bmin[1], it.bmin[1])
		bmax[0] = max(bmax[0], it.bmax[0])
		bmax[1] = max(bmax[1], it.bmax[1])
	}
}

func longestAxis(x, y float32) int {
	if y > x {
		return 1
	}
	return 0
}

func subdivide(items []boundsItem, imin, imax, trisPerChunk int,
	curNode *int, nodes []chunkyNode,
	curTri *int, outTris, inTris []int, outAreas, inAreas []uint8) {
	inum := imax - imin
	icur := *curNode

	if *curNode >= len(nodes) {
		return
	}
	node := &nodes[*curNode]
	*curNode++

	if inum <= trisPerChunk {
		// Leaf
		calcExtends(items, imin, imax, node.bmin[:], node.bmax[:])
		node.i = *curTri
		node.n = inum
		for i := imin; i < imax; i++ {
			src := inTris[items[i].i*3:]
			dst := outTris[*curTri*3:]
			dst[0] = src[0]
			dst[1] = src[1]
			dst[2] = src[2]
			outAreas[*curTri] = inAreas[items[i].i]
			*curTri++
		}
	} else {
		// Split
		calcExtends(items, imin, imax, node.bmin[:], node.bmax[:])

		axis := longestAxis(node.bmax[0]-node.bmin[0], node.bmax[1]-node.bmin[1])
		// Stable sort keeps the triangle order reproducible between runs.
		sort.SliceStable(items[imin:imax], func(a, b int) bool {
			return items[imin+a].bmin[axis] < items[imin+b].bmin[axis]
		})

		isplit := imin + inum/2
		subdivide(items, imin, isplit, trisPerChunk, curNode, nodes, curTri, outTris, inTris, outAreas, inAreas)
		subdivide(items, isplit, imax, trisPerChunk, curNode, nodes, curTri, outTris, inTris, outAreas, inAreas)

		// Negative index means escape.
		node.i = -(*curNode - icur)
	}
}

// buildChunkyMesh reorders tris/areas into chunk order and returns the
// tree plus the reordered copies.
func buildChunkyMesh(verts []float32, tris []int, areas []uint8, trisPerChunk int) (*chunkyMesh, []int, []uint8, error) {
	ntris := len(tris) / 3
	if ntris == 0 {
		return nil, nil, nil, fmt.Errorf("geometry: chunky mesh needs at least one triangle")
	}
	nchunks := (ntris + trisPerChunk - 1) / trisPerChunk

	cm := &chunkyMesh{
		nodes: make([]chunkyNode, nchunks*4),
		ntris: ntris,
	}
	outTris := make([]int, ntris*3)
	outAreas := make([]uint8, ntris)

	items := make([]boundsItem, ntris)
	for i := 0; i < ntris; i++ {
		t := tris[i*3:]
		it := &items[i]
		it.i = i
		// Triangle XZ bounds.
		it.bmin[0] = verts[t[0]*3+0]
		it.bmax[0] = it.bmin[0]
		it.bmin[1] = verts[t[0]*3+2]
		it.bmax[1] = it.bmin[1]
		for j := 1; j < 3; j++ {
			v := verts[t[j]*3:]
			it.bmin[0] = min(it.bmin[0], v[0])
			it.bmin[1] = min(it.bmin[1], v[2])
			it.bmax[0] = max(it.bmax[0], v[0])
			it.bmax[1] = max(it.bmax[1], v[2])
		}
	}

	curTri := 0
	curNode := 0
	subdivide(items, 0, ntris, trisPerChunk, &curNode, cm.nodes, &curTri, outTris, tris, outAreas, areas)
	cm.nodes = cm.nodes[:curNode]

	for i := range cm.nodes {
		node := &cm.nodes[i]
		if node.i >= 0 {
			cm.maxTrisPerChunk = max(cm.maxTrisPerChunk, node.n)
		}
	}
	return cm, outTris, outAreas, nil
}

func checkOverlapRect(amin, amax, bmin, bmax [2]float32) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	return true
}

// overlappingRect invokes fn(firstTri, count) for every leaf whose bounds
// overlap the query rect, in tree order.
func (cm *chunkyMesh) overlappingRect(bmin, bmax [2]float32, fn func(first, count int)) {
	i := 0
	for i < len(cm.nodes) {
		node := &cm.nodes[i]
		overlap := checkOverlapRect(bmin, bmax, node.bmin, node.bmax)
		isLeaf := node.i >= 0

		if isLeaf && overlap {
			fn(node.i, node.n)
		}
		if overlap || isLeaf {
			i++
		} else {
			i += -node.i
		}
	}
}
