package scnn

import (
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

// Npix returns the number of pixels of a full HEALPix sphere of resolution nside.
func Npix(nside int) int {
	return 12 * nside * nside
}

// LevelIndexes describes the pixels covered at one resolution level: the
// first Count pixels in nested ordering, i.e. one of the 12·order² patches.
type LevelIndexes struct {
	Nside int
	Count int
}

// Indices expands the descriptor into the pixel indices 0..Count-1.
func (l LevelIndexes) Indices() []int {
	idx := make([]int, l.Count)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Nside2Indexes returns, per resolution, the pixels of a sphere patch when
// the sphere is divided into 12·order² equal parts.
func Nside2Indexes(nsides []int, order int) ([]LevelIndexes, error) {
	if order < 1 {
		return nil, errors.NewValidationError("order", "must be positive", order)
	}
	parts := 12 * order * order
	levels := make([]LevelIndexes, len(nsides))
	for i, nside := range nsides {
		if nside < 1 || nside%order != 0 {
			return nil, errors.NewValidationError("nsides", "resolution must be a positive multiple of the order", nside)
		}
		levels[i] = LevelIndexes{Nside: nside, Count: Npix(nside) / parts}
	}
	return levels, nil
}
