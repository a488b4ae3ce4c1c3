// Package coils models the poloidal field coil set: coil geometry,
// currents, direct field queries, and the per-grid Green's-function
// response matrices used for fast flux superposition.
package coils

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
)

var ErrCurrentVector = errors.New("coils: current vector length does not match coil count")

// Category distinguishes poloidal field from central solenoid coils.
type Category int

const (
	PF Category = iota
	CS
)

func (c Category) String() string {
	switch c {
	case PF:
		return "PF"
	case CS:
		return "CS"
	default:
		return "unknown"
	}
}

// Coil is a rectangular-section axisymmetric coil centred at (X, Z)
// with half-extents (Dx, Dz) and a total current [A].
type Coil struct {
	Name     string
	X, Z     float64
	Dx, Dz   float64
	Current  float64
	Category Category
}

// filaments returns the sub-filament positions used to evaluate the
// coil response. Finite-section coils are split 2x2 to soften the
// filament singularity; point coils are a single filament.
func (c *Coil) filaments() [][2]float64 {
	if c.Dx <= 0 || c.Dz <= 0 {
		return [][2]float64{{c.X, c.Z}}
	}
	hx, hz := c.Dx/2, c.Dz/2
	return [][2]float64{
		{c.X - hx, c.Z - hz},
		{c.X - hx, c.Z + hz},
		{c.X + hx, c.Z - hz},
		{c.X + hx, c.Z + hz},
	}
}

// PsiUnit returns the flux response of the coil at (x, z) for a unit
// total current.
func (c *Coil) PsiUnit(x, z float64) float64 {
	fs := c.filaments()
	s := 0.0
	for _, f := range fs {
		s += greens.Psi(f[0], f[1], x, z)
	}
	return s / float64(len(fs))
}

func (c *Coil) BxUnit(x, z float64) float64 {
	fs := c.filaments()
	s := 0.0
	for _, f := range fs {
		s += greens.Bx(f[0], f[1], x, z)
	}
	return s / float64(len(fs))
}

func (c *Coil) BzUnit(x, z float64) float64 {
	fs := c.filaments()
	s := 0.0
	for _, f := range fs {
		s += greens.Bz(f[0], f[1], x, z)
	}
	return s / float64(len(fs))
}

// CoilSet is an ordered collection of coils.
type CoilSet struct {
	coils []*Coil
}

func NewSet(cs ...*Coil) *CoilSet {
	set := &CoilSet{coils: make([]*Coil, len(cs))}
	copy(set.coils, cs)
	return set
}

func (s *CoilSet) N() int         { return len(s.coils) }
func (s *CoilSet) Coils() []*Coil { return s.coils }

func (s *CoilSet) NByCategory(cat Category) int {
	n := 0
	for _, c := range s.coils {
		if c.Category == cat {
			n++
		}
	}
	return n
}

func (s *CoilSet) Currents() []float64 {
	out := make([]float64, len(s.coils))
	for i, c := range s.coils {
		out[i] = c.Current
	}
	return out
}

func (s *CoilSet) SetCurrents(currents []float64) error {
	if len(currents) != len(s.coils) {
		return fmt.Errorf("%w: %d vs %d", ErrCurrentVector, len(currents), len(s.coils))
	}
	for i, c := range s.coils {
		c.Current = currents[i]
	}
	return nil
}

// Psi returns the total coil flux at a point [V.s/rad].
func (s *CoilSet) Psi(x, z float64) float64 {
	v := 0.0
	for _, c := range s.coils {
		v += c.Current * c.PsiUnit(x, z)
	}
	return v
}

func (s *CoilSet) Bx(x, z float64) float64 {
	v := 0.0
	for _, c := range s.coils {
		v += c.Current * c.BxUnit(x, z)
	}
	return v
}

func (s *CoilSet) Bz(x, z float64) float64 {
	v := 0.0
	for _, c := range s.coils {
		v += c.Current * c.BzUnit(x, z)
	}
	return v
}

// PsiResponse builds the unit-current flux response matrix on g: one
// row per grid node (row-major, matching field.Map), one column per
// coil. Valid only for the exact grid and coil geometry it was built
// from; callers must rebuild it after any geometry change.
func (s *CoilSet) PsiResponse(g *grid.Grid) *mat.Dense {
	return s.response(g, (*Coil).PsiUnit)
}

func (s *CoilSet) BxResponse(g *grid.Grid) *mat.Dense {
	return s.response(g, (*Coil).BxUnit)
}

func (s *CoilSet) BzResponse(g *grid.Grid) *mat.Dense {
	return s.response(g, (*Coil).BzUnit)
}

func (s *CoilSet) response(g *grid.Grid, unit func(*Coil, float64, float64) float64) *mat.Dense {
	n := g.Nx * g.Nz
	r := mat.NewDense(n, len(s.coils), nil)
	for k, c := range s.coils {
		for i := 0; i < g.Nx; i++ {
			for j := 0; j < g.Nz; j++ {
				r.Set(i*g.Nz+j, k, unit(c, g.X1D[i], g.Z1D[j]))
			}
		}
	}
	return r
}

// MapFromResponse superposes a response matrix with the present coil
// currents into a grid map.
func (s *CoilSet) MapFromResponse(resp *mat.Dense, g *grid.Grid) *field.Map {
	out := field.NewMap(g.Nx, g.Nz)
	cur := mat.NewVecDense(len(s.coils), s.Currents())
	v := mat.NewVecDense(g.Nx*g.Nz, out.Data)
	v.MulVec(resp, cur)
	return out
}

// GroupVecs exports the coil set as flat position/size/current vectors
// for the exchange format.
func (s *CoilSet) GroupVecs() (xc, zc, dxc, dzc, ic []float64) {
	n := len(s.coils)
	xc = make([]float64, n)
	zc = make([]float64, n)
	dxc = make([]float64, n)
	dzc = make([]float64, n)
	ic = make([]float64, n)
	for i, c := range s.coils {
		xc[i], zc[i], dxc[i], dzc[i], ic[i] = c.X, c.Z, c.Dx, c.Dz, c.Current
	}
	return xc, zc, dxc, dzc, ic
}

// FromGroupVecs reconstructs a coil set from exchange-format vectors.
func FromGroupVecs(xc, zc, dxc, dzc, ic []float64) (*CoilSet, error) {
	n := len(xc)
	if len(zc) != n || len(dxc) != n || len(dzc) != n || len(ic) != n {
		return nil, fmt.Errorf("%w: group vectors have unequal lengths", ErrCurrentVector)
	}
	cs := make([]*Coil, n)
	for i := range cs {
		cs[i] = &Coil{
			Name:    fmt.Sprintf("coil_%d", i+1),
			X:       xc[i],
			Z:       zc[i],
			Dx:      dxc[i],
			Dz:      dzc[i],
			Current: ic[i],
		}
	}
	return NewSet(cs...), nil
}
