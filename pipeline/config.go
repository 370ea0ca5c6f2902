// Package pipeline implements the per-tile navmesh build stages: voxel
// rasterization, span filtering, compaction, watershed region building,
// contour tracing and polygon/detail meshing. Stages are pure functions
// over value data; nothing in the package holds global state, so tiles
// build concurrently without coordination.
package pipeline

import "errors"

const (
	// NullArea marks unwalkable space.
	NullArea uint8 = 0
	// WalkableArea is the default area id for walkable surfaces.
	WalkableArea uint8 = 63

	// BorderReg flags spans that belong to the padded tile border.
	BorderReg = 0x8000
	// MeshNullIdx marks unused polygon slots and open edges.
	MeshNullIdx = 0xffff
	// MaxVertsPerPolyLimit caps Config.MaxVertsPerPoly.
	MaxVertsPerPolyLimit = 6

	notConnected   = 0x3f
	maxLayerIndex  = notConnected - 1
	spanHeightBits = 13
	// SpanMaxHeight is the highest representable span cell.
	SpanMaxHeight = (1 << spanHeightBits) - 1
	maxHeight     = 0xffff

	borderVertexFlag = 0x10000
	areaBorderFlag   = 0x20000
	contourRegMask   = 0xffff
)

// Warnings surfaced by stages; recoverable, recorded per tile.
var (
	// ErrEmptyGeometry reports a tile whose bounds contain no input
	// triangles. The tile stays empty.
	ErrEmptyGeometry = errors.New("navforge: no input geometry in tile bounds")
	// ErrContourOpenBoundary reports a region whose boundary walk did not
	// close. The region is skipped.
	ErrContourOpenBoundary = errors.New("navforge: contour boundary walk did not close")
)

// Config carries the fully resolved parameters for one tile build. All
// grid fields are in cell units, world fields in world units.
type Config struct {
	Width  int // cells along x, including border padding
	Height int // cells along z, including border padding

	TileSize   int // tile side length in cells, 0 for a single tile
	BorderSize int // non-navigable padding around the tile, in cells

	Cs float32 // cell size on the xz plane
	Ch float32 // cell height along y

	BMin [3]float32 // padded tile bounds
	BMax [3]float32

	WalkableSlopeAngle float32 // degrees
	WalkableHeight     int     // minimum clearance, in cells
	WalkableClimb      int     // maximum step, in cells
	WalkableRadius     int     // agent radius, in cells

	MaxEdgeLen             int     // contour edge split length, in cells; 0 disables
	MaxSimplificationError float32 // contour deviation, in cells

	MinRegionArea   int // regions below this span count are discarded
	MergeRegionArea int // regions below this span count get merged

	MaxVertsPerPoly int

	DetailSampleDist     float32 // world units; < cs*0.9 disables sampling
	DetailSampleMaxError float32 // world units
}

// CalcGridSize returns the cell counts covering the bounds at cell size cs.
func CalcGridSize(bmin, bmax [3]float32, cs float32) (int, int) {
	w := int((bmax[0]-bmin[0])/cs + 0.5)
	h := int((bmax[2]-bmin[2])/cs + 0.5)
	return w, h
}
