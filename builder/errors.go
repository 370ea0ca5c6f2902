package builder

import (
	"errors"

	"navforge/pipeline"
	"navforge/tile"
)

// Fatal errors. A build does not start or does not finish past these.
var (
	// ErrInvalidSettings reports settings that fail validation. Nothing
	// is built.
	ErrInvalidSettings = errors.New("navforge: invalid build settings")
	// ErrTileBuildInProgress rejects a build request for a tile that is
	// already building. The running build is unaffected.
	ErrTileBuildInProgress = errors.New("navforge: tile build already in progress")
	// ErrBuildCancelled reports a build aborted by its context. Tiles
	// finished before the cancellation point stay in the mesh.
	ErrBuildCancelled = errors.New("navforge: build cancelled")
)

// Warnings re-exported from the stages that raise them, so callers can
// match with errors.Is against a single package.
var (
	ErrEmptyGeometry       = pipeline.ErrEmptyGeometry
	ErrContourOpenBoundary = pipeline.ErrContourOpenBoundary
	ErrStitchMismatch      = tile.ErrStitchMismatch
)
