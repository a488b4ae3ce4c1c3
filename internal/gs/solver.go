// Package gs inverts the discretized Grad-Shafranov operator
//
//	Delta* psi = x d/dx( (1/x) dpsi/dx ) + d2psi/dz2
//
// on a fixed grid with Dirichlet boundary values. The operator is
// stamped into a sparse matrix and LU-factorized once per grid (and
// symmetry mode); every solve reuses the factorization.
package gs

import (
	"errors"
	"fmt"

	"github.com/edp1096/sparse"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
)

var (
	// ErrSingular indicates an ill-conditioned or degenerate operator,
	// e.g. a grid with zero spacing.
	ErrSingular = errors.New("gs: singular Grad-Shafranov operator")

	// ErrAsymmetricGrid indicates a symmetry solve was requested on a
	// grid that is not mirror-symmetric about z = 0.
	ErrAsymmetricGrid = errors.New("gs: symmetry solve requires a z-symmetric grid with odd nz")
)

const symTol = 1e-9

// Solver holds the factorized Grad-Shafranov operator for one grid.
type Solver struct {
	g    *grid.Grid
	sym  bool
	m    *sparse.Matrix
	nUnk int
	jLo  int // lowest z-index carried as an unknown
	jMid int // mirror row in symmetric mode
}

type neighbor struct {
	boundary bool
	i, j     int
	idx      int
	c        float64
}

// NewSolver discretizes and factorizes the operator. With symmetric
// set, only the upper half-plane is carried as unknowns and solutions
// are mirrored across z = 0, halving the effective problem size.
func NewSolver(g *grid.Grid, symmetric bool) (*Solver, error) {
	if g.Dx <= 0 || g.Dz <= 0 || g.Nx < 3 || g.Nz < 3 {
		return nil, fmt.Errorf("%w: degenerate grid spacing %g x %g", ErrSingular, g.Dx, g.Dz)
	}
	if symmetric && !g.Symmetric(symTol) {
		return nil, ErrAsymmetricGrid
	}

	s := &Solver{g: g, sym: symmetric, jLo: 1}
	if symmetric {
		s.jMid = (g.Nz - 1) / 2
		s.jLo = s.jMid
	}
	s.nUnk = (g.Nx - 2) * (g.Nz - 1 - s.jLo)

	cfg := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      false,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
	}
	m, err := sparse.Create(int64(s.nUnk), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	s.m = m

	for i := 1; i < g.Nx-1; i++ {
		for j := s.jLo; j < g.Nz-1; j++ {
			row := s.index(i, j)
			diag := 0.0
			for _, nb := range s.neighbors(i, j) {
				diag -= nb.c
				if !nb.boundary {
					s.m.GetElement(int64(row), int64(nb.idx)).Real += nb.c
				}
			}
			s.m.GetElement(int64(row), int64(row)).Real += diag
		}
	}

	if err := s.m.Factor(); err != nil {
		s.m.Destroy()
		return nil, fmt.Errorf("%w: factorization failed: %v", ErrSingular, err)
	}
	return s, nil
}

// index maps an unknown node to its 1-based matrix row.
func (s *Solver) index(i, j int) int {
	width := s.g.Nz - 1 - s.jLo
	return (i-1)*width + (j - s.jLo) + 1
}

// neighbors returns the four stencil couplings of unknown (i, j),
// folding sub-midplane neighbors onto their mirror image in symmetric
// mode.
func (s *Solver) neighbors(i, j int) [4]neighbor {
	g := s.g
	xi := g.X1D[i]
	cE := xi / (g.Dx * g.Dx * (xi + g.Dx/2))
	cW := xi / (g.Dx * g.Dx * (xi - g.Dx/2))
	cZ := 1 / (g.Dz * g.Dz)

	var out [4]neighbor
	out[0] = s.classify(i-1, j, cW)
	out[1] = s.classify(i+1, j, cE)

	jS := j - 1
	if s.sym && jS < s.jMid {
		jS = 2*s.jMid - jS
	}
	out[2] = s.classify(i, jS, cZ)
	out[3] = s.classify(i, j+1, cZ)
	return out
}

func (s *Solver) classify(i, j int, c float64) neighbor {
	if i < 1 || i > s.g.Nx-2 || j < s.jLo || j > s.g.Nz-2 {
		return neighbor{boundary: true, i: i, j: j, c: c}
	}
	return neighbor{i: i, j: j, idx: s.index(i, j), c: c}
}

// Solve returns the flux map satisfying the discretized operator
// equation with the given interior right-hand side and boundary
// values. In symmetric mode both inputs must themselves be
// z-symmetric; this is not checked.
func (s *Solver) Solve(rhs, bound *field.Map) (*field.Map, error) {
	g := s.g
	vec := make([]float64, s.nUnk+1) // 1-based, as the solver expects
	for i := 1; i < g.Nx-1; i++ {
		for j := s.jLo; j < g.Nz-1; j++ {
			v := rhs.At(i, j)
			for _, nb := range s.neighbors(i, j) {
				if nb.boundary {
					v -= nb.c * bound.At(nb.i, nb.j)
				}
			}
			vec[s.index(i, j)] = v
		}
	}

	sol, err := s.m.Solve(vec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out := bound.Clone()
	for i := 1; i < g.Nx-1; i++ {
		for j := s.jLo; j < g.Nz-1; j++ {
			out.Set(i, j, sol[s.index(i, j)])
		}
	}
	if s.sym {
		for i := 0; i < g.Nx; i++ {
			for j := 0; j < s.jMid; j++ {
				out.Set(i, j, out.At(i, 2*s.jMid-j))
			}
		}
	}
	return out, nil
}

// Destroy releases the factorization. The solver must not be used
// afterwards.
func (s *Solver) Destroy() {
	if s.m != nil {
		s.m.Destroy()
		s.m = nil
	}
}
