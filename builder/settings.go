package builder

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"navforge/pipeline"
)

// Settings are the user-facing build parameters, in world units except
// where noted. DeriveConfig converts them to the cell-unit form the
// pipeline consumes.
type Settings struct {
	CellSize   float32 // xz voxel size
	CellHeight float32 // y voxel size

	AgentHeight   float32
	AgentRadius   float32
	AgentMaxClimb float32
	AgentMaxSlope float32 // degrees

	RegionMinSize   float32 // regions below size^2 spans are discarded
	RegionMergeSize float32 // regions below size^2 spans get merged

	EdgeMaxLen   float32 // world units; 0 disables edge splitting
	EdgeMaxError float32 // contour deviation, in cells

	VertsPerPoly int

	DetailSampleDist     float32 // multiple of CellSize; < 0.9 disables
	DetailSampleMaxError float32 // multiple of CellHeight

	TileSize int // tile side in cells; 0 builds one tile over everything
}

// DefaultSettings fits a human-scale agent.
func DefaultSettings() Settings {
	return Settings{
		CellSize:             0.3,
		CellHeight:           0.2,
		AgentHeight:          2.0,
		AgentRadius:          0.6,
		AgentMaxClimb:        0.9,
		AgentMaxSlope:        45,
		RegionMinSize:        8,
		RegionMergeSize:      20,
		EdgeMaxLen:           12,
		EdgeMaxError:         1.3,
		VertsPerPoly:         6,
		DetailSampleDist:     6,
		DetailSampleMaxError: 1,
		TileSize:             32,
	}
}

// Validate reports the first problem found, wrapped in
// ErrInvalidSettings.
func (s *Settings) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
	}
	if s.CellSize <= 0 {
		return fail("cell size %v must be positive", s.CellSize)
	}
	if s.CellHeight <= 0 {
		return fail("cell height %v must be positive", s.CellHeight)
	}
	if s.AgentHeight < s.CellHeight {
		return fail("agent height %v below cell height %v", s.AgentHeight, s.CellHeight)
	}
	if s.AgentRadius <= 0 {
		return fail("agent radius %v must be positive", s.AgentRadius)
	}
	if s.AgentMaxClimb < 0 {
		return fail("agent max climb %v must not be negative", s.AgentMaxClimb)
	}
	if s.AgentMaxSlope < 0 || s.AgentMaxSlope >= 90 {
		return fail("agent max slope %v degrees outside [0, 90)", s.AgentMaxSlope)
	}
	if s.RegionMinSize < 0 || s.RegionMergeSize < 0 {
		return fail("region sizes must not be negative")
	}
	if s.EdgeMaxError <= 0 {
		return fail("edge max error %v must be positive", s.EdgeMaxError)
	}
	if s.VertsPerPoly < 3 || s.VertsPerPoly > pipeline.MaxVertsPerPolyLimit {
		return fail("verts per poly %d outside [3, %d]", s.VertsPerPoly, pipeline.MaxVertsPerPolyLimit)
	}
	if s.TileSize < 0 {
		return fail("tile size %d must not be negative", s.TileSize)
	}
	return nil
}

func (s *Settings) walkableHeight() int {
	return int(math.Ceil(float64(s.AgentHeight / s.CellHeight)))
}

func (s *Settings) walkableClimb() int {
	return int(math.Floor(float64(s.AgentMaxClimb / s.CellHeight)))
}

func (s *Settings) walkableRadius() int {
	return int(math.Ceil(float64(s.AgentRadius / s.CellSize)))
}

func (s *Settings) borderSize() int {
	if s.TileSize == 0 {
		return 0
	}
	// Radius for erosion plus room for the boundary cells the contour
	// stage trims.
	return s.walkableRadius() + 3
}

// DeriveConfig resolves the pipeline configuration for one tile with
// the given unpadded bounds.
func (s *Settings) DeriveConfig(bmin, bmax [3]float32) pipeline.Config {
	cfg := pipeline.Config{
		TileSize:               s.TileSize,
		BorderSize:             s.borderSize(),
		Cs:                     s.CellSize,
		Ch:                     s.CellHeight,
		WalkableSlopeAngle:     s.AgentMaxSlope,
		WalkableHeight:         s.walkableHeight(),
		WalkableClimb:          s.walkableClimb(),
		WalkableRadius:         s.walkableRadius(),
		MaxEdgeLen:             int(s.EdgeMaxLen / s.CellSize),
		MaxSimplificationError: s.EdgeMaxError,
		MinRegionArea:          int(s.RegionMinSize * s.RegionMinSize),
		MergeRegionArea:        int(s.RegionMergeSize * s.RegionMergeSize),
		MaxVertsPerPoly:        s.VertsPerPoly,
		DetailSampleMaxError:   s.CellHeight * s.DetailSampleMaxError,
	}
	if s.DetailSampleDist >= 0.9 {
		cfg.DetailSampleDist = s.CellSize * s.DetailSampleDist
	}

	pad := float32(cfg.BorderSize) * s.CellSize
	cfg.BMin = [3]float32{bmin[0] - pad, bmin[1], bmin[2] - pad}
	cfg.BMax = [3]float32{bmax[0] + pad, bmax[1], bmax[2] + pad}
	if s.TileSize > 0 {
		cfg.Width = s.TileSize + cfg.BorderSize*2
		cfg.Height = s.TileSize + cfg.BorderSize*2
	} else {
		cfg.Width, cfg.Height = pipeline.CalcGridSize(cfg.BMin, cfg.BMax, s.CellSize)
	}
	return cfg
}

// ValidationReport inspects settings against the geometry bounds
// without building anything. It returns human-readable findings;
// an empty slice means nothing noteworthy.
func ValidationReport(s Settings, bmin, bmax mgl32.Vec3) []string {
	var out []string
	if err := s.Validate(); err != nil {
		out = append(out, err.Error())
		return out
	}

	gw, gh := pipeline.CalcGridSize([3]float32(bmin), [3]float32(bmax), s.CellSize)
	out = append(out, fmt.Sprintf("grid: %d x %d cells (%.2f x %.2f world units)",
		gw, gh, bmax[0]-bmin[0], bmax[2]-bmin[2]))

	if s.TileSize > 0 {
		tw := (gw + s.TileSize - 1) / s.TileSize
		th := (gh + s.TileSize - 1) / s.TileSize
		out = append(out, fmt.Sprintf("tiles: %d x %d of %d cells", tw, th, s.TileSize))
		if s.TileSize <= s.borderSize()*2 {
			out = append(out, fmt.Sprintf("warning: tile size %d is consumed by border padding %d per side",
				s.TileSize, s.borderSize()))
		}
	} else {
		out = append(out, "tiles: single tile covering the full grid")
	}

	if spanY := (bmax[1] - bmin[1]) / s.CellHeight; spanY > float32(pipeline.SpanMaxHeight) {
		out = append(out, fmt.Sprintf("warning: vertical range needs %.0f cells, clamping above %d",
			spanY, pipeline.SpanMaxHeight))
	}
	if s.AgentRadius > 0 && float32(s.walkableRadius())*2 >= float32(min(gw, gh)) {
		out = append(out, "warning: agent radius erodes the entire grid")
	}
	return out
}
