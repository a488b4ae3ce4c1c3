// Package boundary constructs the free-boundary condition for the
// Grad-Shafranov solve: the flux the plasma current distribution
// induces on the grid edge, so the inner Dirichlet solve behaves as if
// the plasma sat in open space.
package boundary

import (
	"gonum.org/v1/gonum/mat"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
)

// FreeBoundary applies the plasma-induced edge flux to a flux map. The
// Green's-function matrix from every grid node to every edge node is
// precomputed once per grid.
type FreeBoundary struct {
	g    *grid.Grid
	edge [][2]int
	gmat *mat.Dense // nEdge x (nx*nz), includes the dx*dz area weight
}

func New(g *grid.Grid) *FreeBoundary {
	edge := g.EdgeIndices()
	fb := &FreeBoundary{
		g:    g,
		edge: edge,
		gmat: mat.NewDense(len(edge), g.Nx*g.Nz, nil),
	}
	area := g.Dx * g.Dz
	for r, ij := range edge {
		xb, zb := g.X1D[ij[0]], g.Z1D[ij[1]]
		for i := 0; i < g.Nx; i++ {
			for j := 0; j < g.Nz; j++ {
				fb.gmat.Set(r, i*g.Nz+j, area*greens.Psi(g.X1D[i], g.Z1D[j], xb, zb))
			}
		}
	}
	return fb
}

// Apply overwrites the edge values of psi with the flux induced there
// by the current-density map. Interior values are untouched. Called
// once per solve, before the right-hand side is assembled.
func (fb *FreeBoundary) Apply(psi, jtor *field.Map) {
	edgePsi := mat.NewVecDense(len(fb.edge), nil)
	edgePsi.MulVec(fb.gmat, mat.NewVecDense(len(jtor.Data), jtor.Data))
	for r, ij := range fb.edge {
		psi.Set(ij[0], ij[1], edgePsi.AtVec(r))
	}
}
