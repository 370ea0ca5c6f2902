// Package pipeline turns raw triangle soup into a polygon navigation
// mesh: rasterize, filter, partition into regions, trace contours,
// build the polygon mesh and its height detail.
package pipeline

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"navforge/geometry"
)

// Result is the output of one pipeline run. Warnings carry non-fatal
// findings (empty input, open contours); an empty Mesh is a valid
// result for a tile with no walkable surface.
type Result struct {
	Mesh     *PolyMesh
	Detail   *PolyMeshDetail
	Contours *ContourSet
	Warnings []error
}

// Run executes the full build pipeline for one tile. The context is
// checked at stage boundaries; a cancelled context aborts the run and
// returns ctx.Err().
func Run(ctx context.Context, geom *geometry.Mesh, cfg *Config, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{}

	// Collect the input triangles overlapping the padded tile bounds.
	rmin := mgl32.Vec2{cfg.BMin[0], cfg.BMin[2]}
	rmax := mgl32.Vec2{cfg.BMax[0], cfg.BMax[2]}
	tris, areas := geom.TrianglesInRect(rmin, rmax)
	if len(tris) == 0 {
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: no triangles in [%v %v]", ErrEmptyGeometry, rmin, rmax))
		res.Mesh = &PolyMesh{Nvp: cfg.MaxVertsPerPoly, Cs: cfg.Cs, Ch: cfg.Ch, BMin: cfg.BMin, BMax: cfg.BMax, BorderSize: cfg.BorderSize}
		res.Detail = &PolyMeshDetail{}
		res.Contours = &ContourSet{}
		return res, nil
	}
	verts := geom.Verts()
	geometry.MarkWalkableTriangles(cfg.WalkableSlopeAngle, verts, tris, areas, WalkableArea)

	// Voxelize.
	hf := NewHeightfield(cfg.Width, cfg.Height, cfg.BMin, cfg.BMax, cfg.Cs, cfg.Ch)
	RasterizeTriangles(hf, verts, tris, areas, cfg.WalkableClimb)
	log.Debug("rasterized",
		zap.Int("triangles", len(tris)/3),
		zap.Int("width", hf.Width),
		zap.Int("height", hf.Height))

	FilterLowHangingWalkableObstacles(cfg.WalkableClimb, hf)
	FilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	FilterWalkableLowHeightSpans(cfg.WalkableHeight, hf)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Partition the walkable surface into regions.
	// A layer overflow drops some connections but the heightfield is
	// still usable; record it and keep going.
	chf, err := BuildCompactHeightfield(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	if err != nil {
		res.Warnings = append(res.Warnings, err)
	}
	if cfg.WalkableRadius > 0 {
		ErodeWalkableArea(cfg.WalkableRadius, chf)
	}
	BuildDistanceField(chf)
	if err := BuildRegions(chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea); err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}
	log.Debug("regions built",
		zap.Int("spans", chf.SpanCount),
		zap.Int("regions", chf.MaxRegions))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Trace and simplify contours.
	cset, warns, err := BuildContours(chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen)
	if err != nil {
		return nil, fmt.Errorf("contours: %w", err)
	}
	res.Warnings = append(res.Warnings, warns...)
	res.Contours = cset

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Mesh.
	mesh, err := BuildPolyMesh(cset, cfg.MaxVertsPerPoly)
	if err != nil {
		return nil, fmt.Errorf("polymesh: %w", err)
	}
	res.Mesh = mesh

	detail, err := BuildPolyMeshDetail(mesh, chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	res.Detail = detail

	log.Debug("tile meshed",
		zap.Int("verts", mesh.NVerts),
		zap.Int("polys", mesh.NPolys),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}
