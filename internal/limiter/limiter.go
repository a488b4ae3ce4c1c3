// Package limiter describes the mechanical limiter point set used to
// restrict where magnetic critical points may be accepted.
package limiter

import (
	"errors"
	"fmt"
)

var ErrAmbiguous = errors.New("limiter: ambiguous limiter point configuration")

// Limiter is a set of limiter points. The axis-aligned hull of the
// points bounds the region in which critical-point candidates are
// accepted.
type Limiter struct {
	X, Z []float64

	xMin, xMax float64
	zMin, zMax float64
}

func New(x, z []float64) (*Limiter, error) {
	if len(x) != len(z) {
		return nil, fmt.Errorf("%w: %d x-points vs %d z-points", ErrAmbiguous, len(x), len(z))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrAmbiguous, len(x))
	}
	l := &Limiter{X: x, Z: z, xMin: x[0], xMax: x[0], zMin: z[0], zMax: z[0]}
	for i := 1; i < len(x); i++ {
		if x[i] < l.xMin {
			l.xMin = x[i]
		}
		if x[i] > l.xMax {
			l.xMax = x[i]
		}
		if z[i] < l.zMin {
			l.zMin = z[i]
		}
		if z[i] > l.zMax {
			l.zMax = z[i]
		}
	}
	if l.xMin == l.xMax || l.zMin == l.zMax {
		return nil, fmt.Errorf("%w: points are collinear", ErrAmbiguous)
	}
	return l, nil
}

func (l *Limiter) Len() int { return len(l.X) }

// Excludes reports whether a candidate point lies outside the limited
// region.
func (l *Limiter) Excludes(x, z float64) bool {
	return x < l.xMin || x > l.xMax || z < l.zMin || z > l.zMax
}
