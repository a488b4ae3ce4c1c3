// Package profiles implements the parametric plasma current and
// pressure profiles consumed by the equilibrium solve: normalized-flux
// shape functions, the flux-function profile contract, and the
// inductance-matching capability used by the nested optimizer.
package profiles

import (
	"errors"
	"fmt"
	"math"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/find"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/physics"
)

var (
	ErrFractionSum = errors.New("profiles: current split fractions must sum to 1.0")
	ErrParams      = errors.New("profiles: invalid profile parameters")
	ErrNoAxis      = errors.New("profiles: current density requires an O-point")
	ErrNoPlasma    = errors.New("profiles: shape function yields an empty plasma region")
)

// Profile maps normalized flux to the flux functions of the
// Grad-Shafranov equation and produces the toroidal current-density
// map for a given flux state.
type Profile interface {
	Jtor(g *grid.Grid, psi *field.Map, oPoints, xPoints []find.Point) (*field.Map, error)
	PPrime(psiNorm float64) float64
	FFPrime(psiNorm float64) float64
	Pressure(psiNorm float64) float64
	FRBpol(psiNorm float64) float64
	Ip() float64
	R0() float64
	B0() float64

	// Clone returns an independent copy, shape function included, so a
	// solve on one state cannot disturb another's flux functions.
	Clone() Profile
}

// InductanceMatcher is the optional capability a Profile declares to
// enable internal-inductance matching. The equilibrium state checks
// for it before running the nested optimizer.
type InductanceMatcher interface {
	LiTarget() float64
	LiRelTol() float64
	Shape() Shape
}

// Shape is a normalized-flux shape function with adjustable
// coefficients, the degrees of freedom of the inductance optimizer.
type Shape interface {
	Value(psiNorm float64) float64
	Coeffs() []float64
	Adjust(coeffs []float64)
	Clone() Shape
}

// DoublePower is the two-coefficient shape (1 - pn^a1)^a2.
type DoublePower struct {
	alpha [2]float64
}

func NewDoublePower(a1, a2 float64) *DoublePower {
	return &DoublePower{alpha: [2]float64{a1, a2}}
}

func (s *DoublePower) Value(pn float64) float64 {
	if pn < 0 {
		pn = 0
	}
	if pn >= 1 {
		return 0
	}
	return math.Pow(1-math.Pow(pn, s.alpha[0]), s.alpha[1])
}

func (s *DoublePower) Coeffs() []float64 { return []float64{s.alpha[0], s.alpha[1]} }

func (s *DoublePower) Clone() Shape {
	c := *s
	return &c
}

func (s *DoublePower) Adjust(coeffs []float64) {
	for i := 0; i < len(coeffs) && i < 2; i++ {
		s.alpha[i] = coeffs[i]
	}
}

// LaoPolynomial is a polynomial shape forced to vanish at the
// boundary: sum c_k pn^k - pn^n sum c_k.
type LaoPolynomial struct {
	c []float64
}

func NewLaoPolynomial(coeffs ...float64) *LaoPolynomial {
	c := make([]float64, len(coeffs))
	copy(c, coeffs)
	return &LaoPolynomial{c: c}
}

func (s *LaoPolynomial) Value(pn float64) float64 {
	if pn < 0 {
		pn = 0
	}
	if pn >= 1 {
		return 0
	}
	v, sum, p := 0.0, 0.0, 1.0
	for _, ck := range s.c {
		v += ck * p
		sum += ck
		p *= pn
	}
	return v - sum*math.Pow(pn, float64(len(s.c)))
}

func (s *LaoPolynomial) Coeffs() []float64 {
	out := make([]float64, len(s.c))
	copy(out, s.c)
	return out
}

func (s *LaoPolynomial) Adjust(coeffs []float64) {
	for i := 0; i < len(coeffs) && i < len(s.c); i++ {
		s.c[i] = coeffs[i]
	}
}

func (s *LaoPolynomial) Clone() Shape { return NewLaoPolynomial(s.c...) }

// Split is the complementary pair of fractions weighting the inboard
// (1/x) and outboard (x) contributions to the current density. The
// fractions must sum to exactly 1.0.
type Split struct {
	Inner, Outer float64
}

const splitTol = 1e-9

func NewSplit(inner, outer float64) (Split, error) {
	if math.Abs(inner+outer-1.0) > splitTol {
		return Split{}, fmt.Errorf("%w: inner %g + outer %g = %g",
			ErrFractionSum, inner, outer, inner+outer)
	}
	return Split{Inner: inner, Outer: outer}, nil
}

// BetaIp is a parametric profile constrained to a total plasma current
// Ip: jtor = lambda (outer x/R0 + inner R0/x) shape(pn) inside the
// plasma, with lambda renormalized on every evaluation.
type BetaIp struct {
	ip, r0, b0 float64
	split      Split
	shape      Shape

	// Set by the most recent Jtor evaluation.
	lambda      float64
	psiAx, psiB float64
}

func NewBetaIp(ip, r0, b0 float64, split Split, shape Shape) (*BetaIp, error) {
	if _, err := NewSplit(split.Inner, split.Outer); err != nil {
		return nil, err
	}
	if ip == 0 || r0 <= 0 {
		return nil, fmt.Errorf("%w: Ip=%g, R0=%g", ErrParams, ip, r0)
	}
	if shape == nil {
		return nil, fmt.Errorf("%w: nil shape function", ErrParams)
	}
	return &BetaIp{ip: ip, r0: r0, b0: b0, split: split, shape: shape}, nil
}

func (p *BetaIp) Ip() float64  { return p.ip }
func (p *BetaIp) R0() float64  { return p.r0 }
func (p *BetaIp) B0() float64  { return p.b0 }
func (p *BetaIp) Shape() Shape { return p.shape }

func (p *BetaIp) Clone() Profile {
	c := *p
	c.shape = p.shape.Clone()
	return &c
}

func (p *BetaIp) Jtor(g *grid.Grid, psi *field.Map, oPoints, xPoints []find.Point) (*field.Map, error) {
	if len(oPoints) == 0 {
		return nil, ErrNoAxis
	}
	psiAx := oPoints[0].Psi
	psiB := g.EdgeMin(psi)
	if len(xPoints) > 0 {
		psiB = xPoints[0].Psi
	}

	base := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			pn := physics.PsiNormAt(psi.At(i, j), psiAx, psiB)
			if pn < 0 || pn >= 1 {
				continue
			}
			x := g.X1D[i]
			w := p.split.Outer*x/p.r0 + p.split.Inner*p.r0/x
			base.Set(i, j, w*p.shape.Value(pn))
		}
	}

	total := g.Integrate(base)
	if math.Abs(total) < 1e-300 {
		return nil, ErrNoPlasma
	}
	p.lambda = p.ip / total
	p.psiAx, p.psiB = psiAx, psiB
	return base.Scale(p.lambda), nil
}

func (p *BetaIp) PPrime(pn float64) float64 {
	return p.lambda * p.split.Outer * p.shape.Value(pn) / p.r0
}

func (p *BetaIp) FFPrime(pn float64) float64 {
	return greens.Mu0 * p.lambda * p.split.Inner * p.r0 * p.shape.Value(pn)
}

// Pressure integrates p' from pn to the boundary over the flux span of
// the last solve. Zero before any current-density evaluation.
func (p *BetaIp) Pressure(pn float64) float64 {
	return (p.psiAx - p.psiB) * p.integrate(p.PPrime, pn)
}

// FRBpol returns f = R Bt from the vacuum value and the integrated
// ff' profile.
func (p *BetaIp) FRBpol(pn float64) float64 {
	fvac := p.r0 * p.b0
	f2 := fvac*fvac + 2*(p.psiAx-p.psiB)*p.integrate(p.FFPrime, pn)
	if f2 < 0 {
		return 0
	}
	return math.Sqrt(f2)
}

const quadSteps = 64

// integrate computes int_pn^1 f(s) ds by the trapezoid rule.
func (p *BetaIp) integrate(f func(float64) float64, pn float64) float64 {
	if pn >= 1 {
		return 0
	}
	if pn < 0 {
		pn = 0
	}
	h := (1 - pn) / quadSteps
	s := 0.5 * (f(pn) + f(1))
	for k := 1; k < quadSteps; k++ {
		s += f(pn + float64(k)*h)
	}
	return s * h
}

// BetaLiIp extends BetaIp with an internal-inductance target, making
// the profile eligible for the nested li-matching solve.
type BetaLiIp struct {
	BetaIp
	liTarget, liRelTol float64
}

func NewBetaLiIp(ip, r0, b0, liTarget, liRelTol float64, split Split, shape Shape) (*BetaLiIp, error) {
	base, err := NewBetaIp(ip, r0, b0, split, shape)
	if err != nil {
		return nil, err
	}
	if liTarget <= 0 || liRelTol <= 0 {
		return nil, fmt.Errorf("%w: li target %g, tolerance %g", ErrParams, liTarget, liRelTol)
	}
	return &BetaLiIp{BetaIp: *base, liTarget: liTarget, liRelTol: liRelTol}, nil
}

func (p *BetaLiIp) LiTarget() float64 { return p.liTarget }
func (p *BetaLiIp) LiRelTol() float64 { return p.liRelTol }

func (p *BetaLiIp) Clone() Profile {
	c := *p
	c.shape = p.shape.Clone()
	return &c
}
