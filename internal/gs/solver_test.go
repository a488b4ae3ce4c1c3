package gs

import (
	"errors"
	"math"
	"testing"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
)

func TestHarmonicSolutionReproduced(t *testing.T) {
	// psi = x^2 is in the kernel of the Grad-Shafranov operator, and
	// the five-point stencil reproduces it exactly: with zero RHS and
	// x^2 boundary values the interior must come back as x^2.
	g, err := grid.New(2, 10, -3, 3, 17, 17)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSolver(g, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	rhs := field.NewMap(g.Nx, g.Nz)
	bound := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			bound.Set(i, j, g.X1D[i]*g.X1D[i])
		}
	}

	psi, err := s.Solve(rhs, bound)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			want := g.X1D[i] * g.X1D[i]
			if math.Abs(psi.At(i, j)-want) > 1e-8*want {
				t.Fatalf("psi(%d,%d) = %g, want %g", i, j, psi.At(i, j), want)
			}
		}
	}
}

func TestConstantBoundary(t *testing.T) {
	g, err := grid.New(3, 9, -2, 2, 11, 11)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSolver(g, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	rhs := field.NewMap(g.Nx, g.Nz)
	bound := field.NewMap(g.Nx, g.Nz).Fill(4.2)

	psi, err := s.Solve(rhs, bound)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range psi.Data {
		if math.Abs(v-4.2) > 1e-9 {
			t.Fatalf("constant solution not reproduced: got %g", v)
		}
	}
}

func TestSymmetricMatchesFull(t *testing.T) {
	g, err := grid.New(2, 10, -3, 3, 17, 17) // nz odd, z-symmetric
	if err != nil {
		t.Fatal(err)
	}
	full, err := NewSolver(g, false)
	if err != nil {
		t.Fatal(err)
	}
	defer full.Destroy()
	half, err := NewSolver(g, true)
	if err != nil {
		t.Fatal(err)
	}
	defer half.Destroy()

	rhs := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			x, z := g.X1D[i], g.Z1D[j]
			rhs.Set(i, j, -x*math.Exp(-((x-6)*(x-6)+z*z)/2))
		}
	}
	bound := field.NewMap(g.Nx, g.Nz)

	a, err := full.Solve(rhs, bound)
	if err != nil {
		t.Fatal(err)
	}
	b, err := half.Solve(rhs, bound)
	if err != nil {
		t.Fatal(err)
	}
	for k := range a.Data {
		if math.Abs(a.Data[k]-b.Data[k]) > 1e-9*(1+math.Abs(a.Data[k])) {
			t.Fatalf("symmetric solve deviates at %d: %g vs %g", k, a.Data[k], b.Data[k])
		}
	}
}

func TestDegenerateGrid(t *testing.T) {
	bad := &grid.Grid{Nx: 5, Nz: 5, Dx: 0, Dz: 0.1}
	if _, err := NewSolver(bad, false); !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular for zero spacing, got %v", err)
	}
}

func TestAsymmetricGridRejected(t *testing.T) {
	g, err := grid.New(2, 10, -1, 3, 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSolver(g, true); !errors.Is(err, ErrAsymmetricGrid) {
		t.Errorf("expected ErrAsymmetricGrid, got %v", err)
	}
}
