// Package builder orchestrates navmesh construction: it derives the
// tile grid from the input geometry, runs the per-tile pipeline on a
// worker pool, stitches finished tiles into the mesh and tracks tile
// lifecycle. Rebuilding the same input with the same settings yields
// byte-identical encoded output.
package builder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"navforge/geometry"
	"navforge/pipeline"
	"navforge/tile"
)

// TileState is the lifecycle of one tile coord.
type TileState int

const (
	StateEmpty TileState = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s TileState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Builder owns a navmesh under construction. Its methods are safe for
// concurrent use; the navmesh itself is only mutated under the builder
// lock.
type Builder struct {
	settings Settings
	geom     *geometry.Mesh
	log      *zap.Logger
	workers  int

	bmin [3]float32
	bmax [3]float32

	mu      sync.Mutex
	nav     *tile.NavMesh
	states  map[tile.Coord]TileState
	cancels map[tile.Coord]context.CancelFunc
	epoch   uint64 // bumped by Clear; in-flight results from older epochs are dropped
}

type Option func(*Builder)

// WithLogger routes build logs to l.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithWorkers caps the build worker pool. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// New validates the settings and prepares an empty navmesh over the
// geometry bounds.
func New(geom *geometry.Mesh, s Settings, opts ...Option) (*Builder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	bmin := [3]float32(geom.BoundsMin())
	bmax := [3]float32(geom.BoundsMax())

	tw := float32(s.TileSize) * s.CellSize
	th := tw
	if s.TileSize == 0 {
		tw = bmax[0] - bmin[0]
		th = bmax[2] - bmin[2]
	}

	b := &Builder{
		settings: s,
		geom:     geom,
		log:      zap.NewNop(),
		workers:  runtime.GOMAXPROCS(0),
		bmin:     bmin,
		bmax:     bmax,
		nav:      tile.New(bmin, tw, th),
		states:   map[tile.Coord]TileState{},
		cancels:  map[tile.Coord]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// TileGrid returns the tile counts along x and z.
func (b *Builder) TileGrid() (int, int) {
	if b.settings.TileSize == 0 {
		return 1, 1
	}
	gw, gh := pipeline.CalcGridSize(b.bmin, b.bmax, b.settings.CellSize)
	ts := b.settings.TileSize
	return (gw + ts - 1) / ts, (gh + ts - 1) / ts
}

// Coords lists every tile coord of the grid in (Y, X) order.
func (b *Builder) Coords() []tile.Coord {
	tw, th := b.TileGrid()
	out := make([]tile.Coord, 0, tw*th)
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			out = append(out, tile.Coord{X: x, Y: y})
		}
	}
	return out
}

// tileBounds returns the unpadded world bounds of a tile.
func (b *Builder) tileBounds(c tile.Coord) ([3]float32, [3]float32) {
	if b.settings.TileSize == 0 {
		return b.bmin, b.bmax
	}
	tcs := float32(b.settings.TileSize) * b.settings.CellSize
	bmin := [3]float32{
		b.bmin[0] + float32(c.X)*tcs,
		b.bmin[1],
		b.bmin[2] + float32(c.Y)*tcs,
	}
	bmax := [3]float32{
		b.bmin[0] + float32(c.X+1)*tcs,
		b.bmax[1],
		b.bmin[2] + float32(c.Y+1)*tcs,
	}
	return bmin, bmax
}

// State reports the lifecycle state of a tile coord.
func (b *Builder) State(c tile.Coord) TileState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[c]
}

// NavMesh exposes the mesh being built. Read it only while no build is
// running; the builder is the single writer.
func (b *Builder) NavMesh() *tile.NavMesh { return b.nav }

// Encode serializes the current mesh.
func (b *Builder) Encode() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return tile.Encode(b.nav)
}

type buildResult struct {
	coord tile.Coord
	bmin  [3]float32
	bmax  [3]float32
	res   *pipeline.Result
	err   error
}

func (b *Builder) runTile(ctx context.Context, c tile.Coord) buildResult {
	bmin, bmax := b.tileBounds(c)
	cfg := b.settings.DeriveConfig(bmin, bmax)
	res, err := pipeline.Run(ctx, b.geom, &cfg, b.log.With(zap.Int("tx", c.X), zap.Int("ty", c.Y)))
	return buildResult{coord: c, bmin: bmin, bmax: bmax, res: res, err: err}
}

// commit folds one finished tile into the mesh. Caller holds b.mu.
func (b *Builder) commit(r buildResult, diag *Diagnostics) {
	c := r.coord
	switch {
	case r.err != nil && errors.Is(r.err, context.Canceled),
		r.err != nil && errors.Is(r.err, context.DeadlineExceeded):
		b.states[c] = StateEmpty
	case r.err != nil:
		b.states[c] = StateFailed
		diag.Failed = append(diag.Failed, Failure{Tile: c, Err: r.err})
		b.log.Warn("tile build failed", zap.Int("tx", c.X), zap.Int("ty", c.Y), zap.Error(r.err))
	default:
		b.nav.AddTile(&tile.Tile{
			Coord:  c,
			BMin:   r.bmin,
			BMax:   r.bmax,
			Mesh:   r.res.Mesh,
			Detail: r.res.Detail,
		})
		diag.addWarnings(c, r.res.Warnings)
		diag.addWarnings(c, tile.Stitch(b.nav, c, b.settings.walkableClimb()))
		b.states[c] = StateReady
	}
}

// Build constructs every tile of the grid on the worker pool and
// stitches them as they land. It fails up front with
// ErrTileBuildInProgress if any tile is already building. A cancelled
// context stops the build at the next stage boundary and returns
// ErrBuildCancelled; tiles already committed stay in the mesh.
func (b *Builder) Build(ctx context.Context) (*Diagnostics, error) {
	coords := b.Coords()

	b.mu.Lock()
	for _, c := range coords {
		if b.states[c] == StateBuilding {
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: tile (%d,%d)", ErrTileBuildInProgress, c.X, c.Y)
		}
	}
	for _, c := range coords {
		b.states[c] = StateBuilding
	}
	epoch := b.epoch
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan tile.Coord)
	results := make(chan buildResult)

	workers := min(b.workers, len(coords))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- b.runTile(ctx, c)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range coords {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	diag := &Diagnostics{}
	committed := map[tile.Coord]bool{}
	for r := range results {
		b.mu.Lock()
		if b.epoch == epoch {
			b.commit(r, diag)
			committed[r.coord] = true
		}
		b.mu.Unlock()
	}

	// Coords never fed to a worker go back to empty.
	b.mu.Lock()
	if b.epoch == epoch {
		for _, c := range coords {
			if !committed[c] && b.states[c] == StateBuilding {
				b.states[c] = StateEmpty
			}
		}
	}
	b.mu.Unlock()

	diag.sort()
	if err := ctx.Err(); err != nil {
		return diag, ErrBuildCancelled
	}
	b.log.Info("build finished",
		zap.Int("tiles", len(coords)),
		zap.Int("failed", len(diag.Failed)),
		zap.Int("warnings", len(diag.Warnings)))
	return diag, nil
}

// BuildTile builds or rebuilds a single tile. A request for a tile that
// is already building is rejected with ErrTileBuildInProgress.
func (b *Builder) BuildTile(ctx context.Context, c tile.Coord) (*Diagnostics, error) {
	tw, th := b.TileGrid()
	if c.X < 0 || c.Y < 0 || c.X >= tw || c.Y >= th {
		return nil, fmt.Errorf("%w: tile (%d,%d) outside %dx%d grid", ErrInvalidSettings, c.X, c.Y, tw, th)
	}

	b.mu.Lock()
	if b.states[c] == StateBuilding {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: tile (%d,%d)", ErrTileBuildInProgress, c.X, c.Y)
	}
	b.states[c] = StateBuilding
	tctx, cancel := context.WithCancel(ctx)
	b.cancels[c] = cancel
	epoch := b.epoch
	b.mu.Unlock()
	defer cancel()

	r := b.runTile(tctx, c)

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cancels, c)
	if b.epoch != epoch {
		// Cleared while building; drop the result.
		return &Diagnostics{}, nil
	}
	diag := &Diagnostics{}
	b.commit(r, diag)
	diag.sort()
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
			return diag, ErrBuildCancelled
		}
		return diag, r.err
	}
	return diag, nil
}

// Cancel aborts an in-flight BuildTile for c, if any.
func (b *Builder) Cancel(c tile.Coord) {
	b.mu.Lock()
	cancel := b.cancels[c]
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Clear drops every tile and resets all states. Results of builds still
// in flight are discarded when they land. Clearing an already empty
// builder is a no-op.
func (b *Builder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch++
	b.nav.Clear()
	b.states = map[tile.Coord]TileState{}
}
