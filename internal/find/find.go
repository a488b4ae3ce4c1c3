// Package find locates the magnetic critical points of a poloidal flux
// map: O-points (local extrema, the magnetic axis) and X-points
// (saddles, bounding the separatrix).
package find

import (
	"errors"
	"math"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/limiter"
)

// ErrNoOPoint is returned when a flux map contains no O-point
// candidate. This is fatal for the calling solve.
var ErrNoOPoint = errors.New("find: no O-point found in flux map")

// Point is a refined critical point of the flux map.
type Point struct {
	X, Z float64
	Psi  float64
}

func (p Point) distanceTo(x, z float64) float64 {
	return math.Hypot(p.X-x, p.Z-z)
}

// OXPoints scans psi for stationary points, refines each candidate to
// sub-grid precision with a Newton step on the local quadratic model,
// and classifies it by the sign of the local curvature. O-points are
// sorted so the point nearest (xGuess, zGuess) comes first; X-points
// are sorted by ascending flux distance from the primary O-point.
func OXPoints(g *grid.Grid, psi *field.Map, lim *limiter.Limiter, xGuess, zGuess float64) (oPoints, xPoints []Point, err error) {
	for i := 1; i < g.Nx-1; i++ {
		for j := 1; j < g.Nz-1; j++ {
			if !localGradMin(g, psi, i, j) {
				continue
			}
			p, oKind, ok := refine(g, psi, i, j)
			if !ok || !g.Contains(p.X, p.Z) {
				continue
			}
			if lim != nil && lim.Excludes(p.X, p.Z) {
				continue
			}
			if oKind {
				if !duplicate(oPoints, p, g) {
					oPoints = append(oPoints, p)
				}
			} else {
				if !duplicate(xPoints, p, g) {
					xPoints = append(xPoints, p)
				}
			}
		}
	}

	if len(oPoints) == 0 {
		// Still expose any saddles: callers diagnosing a failed solve
		// want to see what the scan produced.
		return nil, xPoints, ErrNoOPoint
	}

	sortByDistance(oPoints, xGuess, zGuess)
	primary := oPoints[0]
	sortByFluxDistance(xPoints, primary.Psi)
	return oPoints, xPoints, nil
}

// localGradMin reports whether node (i, j) is a strict local minimum
// of |grad psi|^2 among its 8 neighbours, the discrete signature of a
// stationary point.
func localGradMin(g *grid.Grid, psi *field.Map, i, j int) bool {
	v := gradMag2(g, psi, i, j)
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			if di == 0 && dj == 0 {
				continue
			}
			ni, nj := i+di, j+dj
			if ni < 1 || ni > g.Nx-2 || nj < 1 || nj > g.Nz-2 {
				// Treat the frame one cell in as a wall; critical
				// points against the boundary are not usable.
				continue
			}
			if gradMag2(g, psi, ni, nj) < v {
				return false
			}
		}
	}
	return true
}

func gradMag2(g *grid.Grid, psi *field.Map, i, j int) float64 {
	gx := (psi.At(i+1, j) - psi.At(i-1, j)) / (2 * g.Dx)
	gz := (psi.At(i, j+1) - psi.At(i, j-1)) / (2 * g.Dz)
	return gx*gx + gz*gz
}

// refine performs one Newton step on the gradient using the local
// quadratic model of psi at node (i, j). It returns the sub-grid
// point, whether it is an O-point (definite curvature), and whether
// the candidate is acceptable.
func refine(g *grid.Grid, psi *field.Map, i, j int) (Point, bool, bool) {
	gx := (psi.At(i+1, j) - psi.At(i-1, j)) / (2 * g.Dx)
	gz := (psi.At(i, j+1) - psi.At(i, j-1)) / (2 * g.Dz)
	hxx := (psi.At(i+1, j) - 2*psi.At(i, j) + psi.At(i-1, j)) / (g.Dx * g.Dx)
	hzz := (psi.At(i, j+1) - 2*psi.At(i, j) + psi.At(i, j-1)) / (g.Dz * g.Dz)
	hxz := (psi.At(i+1, j+1) - psi.At(i+1, j-1) - psi.At(i-1, j+1) + psi.At(i-1, j-1)) /
		(4 * g.Dx * g.Dz)

	det := hxx*hzz - hxz*hxz
	if det == 0 {
		return Point{}, false, false
	}

	// Newton step: delta = -H^-1 g. A step that leaves the cell means
	// the quadratic model is not trustworthy here; discard.
	dx := -(hzz*gx - hxz*gz) / det
	dz := -(hxx*gz - hxz*gx) / det
	if math.Abs(dx) > g.Dx || math.Abs(dz) > g.Dz {
		return Point{}, false, false
	}

	p := Point{
		X:   g.X1D[i] + dx,
		Z:   g.Z1D[j] + dz,
		Psi: psi.At(i, j) + gx*dx + gz*dz + 0.5*(hxx*dx*dx+2*hxz*dx*dz+hzz*dz*dz),
	}
	return p, det > 0, true
}

func duplicate(pts []Point, p Point, g *grid.Grid) bool {
	for _, q := range pts {
		if math.Abs(q.X-p.X) < g.Dx/2 && math.Abs(q.Z-p.Z) < g.Dz/2 {
			return true
		}
	}
	return false
}

func sortByDistance(pts []Point, x, z float64) {
	for i := 1; i < len(pts); i++ {
		for k := i; k > 0 && pts[k].distanceTo(x, z) < pts[k-1].distanceTo(x, z); k-- {
			pts[k], pts[k-1] = pts[k-1], pts[k]
		}
	}
}

func sortByFluxDistance(pts []Point, psiO float64) {
	for i := 1; i < len(pts); i++ {
		for k := i; k > 0 && math.Abs(pts[k].Psi-psiO) < math.Abs(pts[k-1].Psi-psiO); k-- {
			pts[k], pts[k-1] = pts[k-1], pts[k]
		}
	}
}
