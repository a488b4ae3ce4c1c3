// Package grid provides the immutable rectangular (x, z) discretization
// on which equilibria are computed.
package grid

import (
	"errors"
	"fmt"

	"github.com/geograham/bluemira/internal/field"
)

// ErrBounds indicates grid bounds or resolution that cannot form a
// valid discretization.
var ErrBounds = errors.New("grid: invalid bounds or resolution")

// Grid is a fixed rectangular discretization of the poloidal plane.
// x is the radial (major radius) coordinate and must be positive; z is
// the vertical coordinate. A Grid is immutable after construction and
// is owned by exactly one state object.
type Grid struct {
	XMin, XMax float64
	ZMin, ZMax float64
	Nx, Nz     int
	Dx, Dz     float64

	X1D, Z1D []float64
	X, Z     *field.Map
}

func New(xMin, xMax, zMin, zMax float64, nx, nz int) (*Grid, error) {
	if xMin <= 0 {
		return nil, fmt.Errorf("%w: x_min must be positive, got %g", ErrBounds, xMin)
	}
	if xMax <= xMin || zMax <= zMin {
		return nil, fmt.Errorf("%w: [%g, %g] x [%g, %g]", ErrBounds, xMin, xMax, zMin, zMax)
	}
	if nx < 3 || nz < 3 {
		return nil, fmt.Errorf("%w: resolution %dx%d below minimum 3x3", ErrBounds, nx, nz)
	}

	g := &Grid{
		XMin: xMin, XMax: xMax,
		ZMin: zMin, ZMax: zMax,
		Nx: nx, Nz: nz,
		Dx: (xMax - xMin) / float64(nx-1),
		Dz: (zMax - zMin) / float64(nz-1),
	}
	g.X1D = make([]float64, nx)
	for i := range g.X1D {
		g.X1D[i] = xMin + float64(i)*g.Dx
	}
	g.Z1D = make([]float64, nz)
	for j := range g.Z1D {
		g.Z1D[j] = zMin + float64(j)*g.Dz
	}
	g.X = field.NewMap(nx, nz)
	g.Z = field.NewMap(nx, nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < nz; j++ {
			g.X.Set(i, j, g.X1D[i])
			g.Z.Set(i, j, g.Z1D[j])
		}
	}
	return g, nil
}

func (g *Grid) XSize() float64 { return g.XMax - g.XMin }
func (g *Grid) ZSize() float64 { return g.ZMax - g.ZMin }
func (g *Grid) XMid() float64  { return 0.5 * (g.XMin + g.XMax) }
func (g *Grid) ZMid() float64  { return 0.5 * (g.ZMin + g.ZMax) }

func (g *Grid) Contains(x, z float64) bool {
	return x >= g.XMin && x <= g.XMax && z >= g.ZMin && z <= g.ZMax
}

// Symmetric reports whether the grid is mirror-symmetric about z = 0
// with an odd number of vertical points, the layout required for the
// half-plane elliptic solve.
func (g *Grid) Symmetric(tol float64) bool {
	if g.Nz%2 == 0 {
		return false
	}
	d := g.ZMin + g.ZMax
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// Integrate returns the double integral of f over the grid using the
// midpoint rule, sum(f) * dx * dz.
func (g *Grid) Integrate(f *field.Map) float64 {
	s := 0.0
	for _, v := range f.Data {
		s += v
	}
	return s * g.Dx * g.Dz
}

// EdgeIndices returns the (i, j) indices of every boundary node,
// ordered bottom row, top row, then left and right columns.
func (g *Grid) EdgeIndices() [][2]int {
	idx := make([][2]int, 0, 2*g.Nx+2*g.Nz-4)
	for i := 0; i < g.Nx; i++ {
		idx = append(idx, [2]int{i, 0}, [2]int{i, g.Nz - 1})
	}
	for j := 1; j < g.Nz-1; j++ {
		idx = append(idx, [2]int{0, j}, [2]int{g.Nx - 1, j})
	}
	return idx
}

// EdgeMin returns the minimum of f over the grid boundary.
func (g *Grid) EdgeMin(f *field.Map) float64 {
	min := f.At(0, 0)
	for _, ij := range g.EdgeIndices() {
		if v := f.At(ij[0], ij[1]); v < min {
			min = v
		}
	}
	return min
}

// Interpolate evaluates f at (x, z) by bilinear interpolation. Points
// outside the grid are clamped to the boundary cell.
func (g *Grid) Interpolate(f *field.Map, x, z float64) float64 {
	fx := (x - g.XMin) / g.Dx
	fz := (z - g.ZMin) / g.Dz
	i := clampIndex(int(fx), g.Nx-2)
	j := clampIndex(int(fz), g.Nz-2)
	tx := clampFrac(fx - float64(i))
	tz := clampFrac(fz - float64(j))

	f00 := f.At(i, j)
	f10 := f.At(i+1, j)
	f01 := f.At(i, j+1)
	f11 := f.At(i+1, j+1)
	return f00*(1-tx)*(1-tz) + f10*tx*(1-tz) + f01*(1-tx)*tz + f11*tx*tz
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

func clampFrac(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
