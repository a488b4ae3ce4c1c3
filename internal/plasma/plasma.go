// Package plasma represents the plasma's own contribution to flux and
// field as a function of its current-density map. A Source is rebuilt
// from scratch whenever the plasma state changes; it is never updated
// incrementally.
package plasma

import (
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
)

// Source holds the plasma flux and current-density maps and derives
// the plasma magnetic field from them.
type Source struct {
	g      *grid.Grid
	psi    *field.Map
	jtor   *field.Map
	bx, bz *field.Map
	empty  bool
}

// NewSource builds a plasma field model from the plasma flux and
// current-density maps. Both maps are taken over by the Source.
func NewSource(g *grid.Grid, psi, jtor *field.Map) *Source {
	s := &Source{g: g, psi: psi, jtor: jtor}
	s.bx = field.NewMap(g.Nx, g.Nz)
	s.bz = field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			x := g.X1D[i]
			s.bx.Set(i, j, -dz(psi, g, i, j)/x)
			s.bz.Set(i, j, dx(psi, g, i, j)/x)
		}
	}
	return s
}

// NoSource is the zero-plasma variant used by the breakdown state: all
// contributions are identically zero.
func NoSource(g *grid.Grid) *Source {
	return &Source{
		g:     g,
		psi:   field.NewMap(g.Nx, g.Nz),
		jtor:  field.NewMap(g.Nx, g.Nz),
		bx:    field.NewMap(g.Nx, g.Nz),
		bz:    field.NewMap(g.Nx, g.Nz),
		empty: true,
	}
}

func (s *Source) Empty() bool     { return s.empty }
func (s *Source) Psi() *field.Map { return s.psi }

func (s *Source) Jtor() *field.Map { return s.jtor }
func (s *Source) Bx() *field.Map   { return s.bx }
func (s *Source) Bz() *field.Map   { return s.bz }

// PsiAt evaluates the plasma flux at an arbitrary point: bilinear
// interpolation inside the grid, Green's superposition of the current
// distribution outside it.
func (s *Source) PsiAt(x, z float64) float64 {
	if s.empty {
		return 0
	}
	if s.g.Contains(x, z) {
		return s.g.Interpolate(s.psi, x, z)
	}
	return s.superpose(x, z, greens.Psi)
}

func (s *Source) BxAt(x, z float64) float64 {
	if s.empty {
		return 0
	}
	if s.g.Contains(x, z) {
		return s.g.Interpolate(s.bx, x, z)
	}
	return s.superpose(x, z, greens.Bx)
}

func (s *Source) BzAt(x, z float64) float64 {
	if s.empty {
		return 0
	}
	if s.g.Contains(x, z) {
		return s.g.Interpolate(s.bz, x, z)
	}
	return s.superpose(x, z, greens.Bz)
}

func (s *Source) superpose(x, z float64, response func(xc, zc, x, z float64) float64) float64 {
	g := s.g
	area := g.Dx * g.Dz
	v := 0.0
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			if cur := s.jtor.At(i, j); cur != 0 {
				v += cur * area * response(g.X1D[i], g.Z1D[j], x, z)
			}
		}
	}
	return v
}

// Central differences inside, one-sided at the edges.

func dx(f *field.Map, g *grid.Grid, i, j int) float64 {
	switch {
	case i == 0:
		return (f.At(1, j) - f.At(0, j)) / g.Dx
	case i == g.Nx-1:
		return (f.At(i, j) - f.At(i-1, j)) / g.Dx
	default:
		return (f.At(i+1, j) - f.At(i-1, j)) / (2 * g.Dx)
	}
}

func dz(f *field.Map, g *grid.Grid, i, j int) float64 {
	switch {
	case j == 0:
		return (f.At(i, 1) - f.At(i, 0)) / g.Dz
	case j == g.Nz-1:
		return (f.At(i, j) - f.At(i, j-1)) / g.Dz
	default:
		return (f.At(i, j+1) - f.At(i, j-1)) / (2 * g.Dz)
	}
}
