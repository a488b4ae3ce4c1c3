// Package equilibrium holds the top-level state objects of the
// free-boundary solve: the pre-plasma Breakdown state and the full
// Equilibrium state. Both compose the same coil-bearing core and share
// one field-query contract; they differ in whether a plasma source and
// an iterative solve exist.
//
// State objects are single-threaded: each owns its grid, coil set and
// caches exclusively and must be confined to one logical thread of
// control.
package equilibrium

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/limiter"
)

var (
	ErrComponents     = errors.New("equilibrium: inconsistent state components")
	ErrNoLiCapability = errors.New("equilibrium: profile does not declare inductance matching")
	ErrSolveBusy      = errors.New("equilibrium: nested inductance solve already in progress")
)

// core is the coil-bearing part shared by Breakdown and Equilibrium:
// one grid, one coil set, an optional limiter, and the per-grid
// unit-current response matrices. The response matrices are valid only
// for the exact grid and coil geometry they were built from; any coil
// geometry change requires an explicit RemapGreens.
type core struct {
	g   *grid.Grid
	cs  *coils.CoilSet
	lim *limiter.Limiter

	psiResp *mat.Dense
	bxResp  *mat.Dense
	bzResp  *mat.Dense
}

func newCore(g *grid.Grid, cs *coils.CoilSet, lim *limiter.Limiter) (core, error) {
	if g == nil {
		return core{}, fmt.Errorf("%w: nil grid", ErrComponents)
	}
	if cs == nil || cs.N() == 0 {
		return core{}, fmt.Errorf("%w: empty coil set", ErrComponents)
	}
	c := core{g: g, cs: cs, lim: lim}
	c.RemapGreens()
	return c, nil
}

// RemapGreens rebuilds the unit-current response matrices. Call after
// any coil geometry change or grid replacement; the matrices are never
// refreshed implicitly.
func (c *core) RemapGreens() {
	c.psiResp = c.cs.PsiResponse(c.g)
	c.bxResp = c.cs.BxResponse(c.g)
	c.bzResp = c.cs.BzResponse(c.g)
}

func (c *core) Grid() *grid.Grid          { return c.g }
func (c *core) Coils() *coils.CoilSet     { return c.cs }
func (c *core) Limiter() *limiter.Limiter { return c.lim }

// Coil contribution maps, superposed from the cached responses with the
// present currents.

func (c *core) coilPsi() *field.Map { return c.cs.MapFromResponse(c.psiResp, c.g) }
func (c *core) coilBx() *field.Map  { return c.cs.MapFromResponse(c.bxResp, c.g) }
func (c *core) coilBz() *field.Map  { return c.cs.MapFromResponse(c.bzResp, c.g) }

// copyCoils duplicates the coil set so a copied state can set currents
// independently. The response matrices stay valid because the geometry
// is unchanged.
func copyCoils(cs *coils.CoilSet) *coils.CoilSet {
	src := cs.Coils()
	dup := make([]*coils.Coil, len(src))
	for i, c := range src {
		cc := *c
		dup[i] = &cc
	}
	return coils.NewSet(dup...)
}

// resample interpolates a map defined on g onto the nodes of ng.
func resample(g *grid.Grid, f *field.Map, ng *grid.Grid) *field.Map {
	out := field.NewMap(ng.Nx, ng.Nz)
	for i := 0; i < ng.Nx; i++ {
		for j := 0; j < ng.Nz; j++ {
			out.Set(i, j, g.Interpolate(f, ng.X1D[i], ng.Z1D[j]))
		}
	}
	return out
}
