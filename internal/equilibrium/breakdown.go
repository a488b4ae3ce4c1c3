package equilibrium

import (
	"fmt"
	"math"

	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/limiter"
	"github.com/geograham/bluemira/internal/plasma"
)

// DefaultBreakdownRadius is the breakdown-zone radius used when none is
// configured [m].
const DefaultBreakdownRadius = 0.75

const breakdownSamples = 72

// Breakdown is the restricted pre-plasma state: flux is pure linear
// superposition of coil responses and no iterative solve exists. Its
// breakdown-zone query verifies that the coil configuration can hold
// enough flux to start a plasma.
type Breakdown struct {
	core
	pl *plasma.Source

	pointX, pointZ float64
	radius         float64
}

// NewBreakdown validates coil/grid consistency and places the
// breakdown zone. A non-positive radius selects the default; the zone
// centre must lie inside the grid.
func NewBreakdown(g *grid.Grid, cs *coils.CoilSet, lim *limiter.Limiter, pointX, pointZ, radius float64) (*Breakdown, error) {
	c, err := newCore(g, cs, lim)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		radius = DefaultBreakdownRadius
	}
	b := &Breakdown{core: c, pl: plasma.NoSource(g), radius: radius}
	if err := b.SetBreakdownPoint(pointX, pointZ); err != nil {
		return nil, err
	}
	return b, nil
}

// SetBreakdownPoint moves the breakdown-zone centre.
func (b *Breakdown) SetBreakdownPoint(x, z float64) error {
	if !b.g.Contains(x, z) {
		return fmt.Errorf("%w: breakdown point (%g, %g) outside grid", ErrComponents, x, z)
	}
	b.pointX, b.pointZ = x, z
	return nil
}

func (b *Breakdown) BreakdownPoint() (x, z float64) { return b.pointX, b.pointZ }
func (b *Breakdown) Radius() float64                { return b.radius }

// BreakdownPsi returns the minimum flux over the breakdown-zone
// boundary circle.
func (b *Breakdown) BreakdownPsi() float64 {
	min := math.Inf(1)
	for k := 0; k < breakdownSamples; k++ {
		theta := 2 * math.Pi * float64(k) / breakdownSamples
		v := b.PsiAt(b.pointX+b.radius*math.Cos(theta), b.pointZ+b.radius*math.Sin(theta))
		if v < min {
			min = v
		}
	}
	return min
}

// Field-query contract shared with Equilibrium. The plasma terms are
// identically zero here.

func (b *Breakdown) Psi() *field.Map { return b.coilPsi() }
func (b *Breakdown) Bx() *field.Map  { return b.coilBx() }
func (b *Breakdown) Bz() *field.Map  { return b.coilBz() }

func (b *Breakdown) PsiAt(x, z float64) float64 { return b.cs.Psi(x, z) + b.pl.PsiAt(x, z) }
func (b *Breakdown) BxAt(x, z float64) float64  { return b.cs.Bx(x, z) + b.pl.BxAt(x, z) }
func (b *Breakdown) BzAt(x, z float64) float64  { return b.cs.Bz(x, z) + b.pl.BzAt(x, z) }

// ResetGrid replaces the grid and rebuilds the response matrices. The
// breakdown point must remain inside the new grid.
func (b *Breakdown) ResetGrid(ng *grid.Grid) error {
	if !ng.Contains(b.pointX, b.pointZ) {
		return fmt.Errorf("%w: breakdown point (%g, %g) outside new grid", ErrComponents, b.pointX, b.pointZ)
	}
	b.g = ng
	b.pl = plasma.NoSource(ng)
	b.RemapGreens()
	return nil
}
