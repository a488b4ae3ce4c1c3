package equilibrium

import (
	"fmt"
	"math"

	"github.com/geograham/bluemira/internal/boundary"
	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/control"
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/find"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/gs"
	"github.com/geograham/bluemira/internal/limiter"
	"github.com/geograham/bluemira/internal/optim"
	"github.com/geograham/bluemira/internal/physics"
	"github.com/geograham/bluemira/internal/plasma"
	"github.com/geograham/bluemira/internal/profiles"
)

// Options collects the optional pieces of an Equilibrium.
type Options struct {
	Limiter   *limiter.Limiter
	Strategy  control.Strategy
	Gain      float64 // virtual controller gain, 0 selects the default
	Symmetric bool    // half-plane elliptic solve on a z-symmetric grid

	// PlasmaPsi and Jtor seed the plasma state. When PlasmaPsi is nil a
	// synthetic axis-peaked flux blob is used so the first solve can
	// locate an O-point.
	PlasmaPsi *field.Map
	Jtor      *field.Map
}

// Equilibrium is the full free-boundary state: coil core, profile,
// plasma source, controller, elliptic solver and the critical-point
// cache. Solve mutates it in place; use Copy to preserve history.
type Equilibrium struct {
	core
	profile profiles.Profile
	ctrl    control.Controller
	solver  *gs.Solver
	fb      *boundary.FreeBoundary
	pl      *plasma.Source

	strategy control.Strategy
	gain     float64
	sym      bool

	oPoints, xPoints []find.Point
	oxValid          bool

	liBusy bool
}

// LiResult reports the outcome of an inductance-matching solve.
type LiResult struct {
	Li         float64
	Iterations int
	Converged  bool
}

// New assembles an Equilibrium. The profile is required; controller
// strategy, limiter and the symmetry mode come from opt.
func New(g *grid.Grid, cs *coils.CoilSet, p profiles.Profile, opt Options) (*Equilibrium, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrComponents)
	}
	c, err := newCore(g, cs, opt.Limiter)
	if err != nil {
		return nil, err
	}
	ctrl, err := control.New(opt.Strategy, g, opt.Gain)
	if err != nil {
		return nil, err
	}
	solver, err := gs.NewSolver(g, opt.Symmetric)
	if err != nil {
		return nil, err
	}

	psi := opt.PlasmaPsi
	if psi == nil {
		psi = initialPsiGuess(g)
	} else if psi.Nx != g.Nx || psi.Nz != g.Nz {
		solver.Destroy()
		return nil, fmt.Errorf("%w: plasma flux map %dx%d on grid %dx%d",
			ErrComponents, psi.Nx, psi.Nz, g.Nx, g.Nz)
	}
	jtor := opt.Jtor
	if jtor == nil {
		jtor = field.NewMap(g.Nx, g.Nz)
	} else if jtor.Nx != g.Nx || jtor.Nz != g.Nz {
		solver.Destroy()
		return nil, fmt.Errorf("%w: current-density map %dx%d on grid %dx%d",
			ErrComponents, jtor.Nx, jtor.Nz, g.Nx, g.Nz)
	}

	return &Equilibrium{
		core:     c,
		profile:  p,
		ctrl:     ctrl,
		solver:   solver,
		fb:       boundary.New(g),
		pl:       plasma.NewSource(g, psi, jtor),
		strategy: opt.Strategy,
		gain:     opt.Gain,
		sym:      opt.Symmetric,
	}, nil
}

// initialPsiGuess is an axis-peaked flux blob, zero on the grid edge,
// large enough to dominate the coil field so the first critical-point
// scan finds an axis.
func initialPsiGuess(g *grid.Grid) *field.Map {
	m := field.NewMap(g.Nx, g.Nz)
	for i := 1; i < g.Nx-1; i++ {
		for j := 1; j < g.Nz-1; j++ {
			xn := (g.X1D[i] - g.XMin) / g.XSize()
			zn := (g.Z1D[j] - g.ZMin) / g.ZSize()
			m.Set(i, j, 100*math.Exp(-((xn-0.5)*(xn-0.5)+(zn-0.5)*(zn-0.5))/0.1))
		}
	}
	return m
}

func (e *Equilibrium) Profile() profiles.Profile      { return e.profile }
func (e *Equilibrium) Controller() control.Controller { return e.ctrl }
func (e *Equilibrium) Plasma() *plasma.Source         { return e.pl }

// Psi returns the total poloidal flux map: plasma contribution + coil
// superposition + controller correction.
func (e *Equilibrium) Psi() *field.Map {
	return e.pl.Psi().Clone().Add(e.coilPsi()).Add(e.ctrl.Psi())
}

func (e *Equilibrium) Bx() *field.Map { return e.pl.Bx().Clone().Add(e.coilBx()) }
func (e *Equilibrium) Bz() *field.Map { return e.pl.Bz().Clone().Add(e.coilBz()) }

// Bp returns the poloidal field magnitude map.
func (e *Equilibrium) Bp() *field.Map {
	bx, bz := e.Bx(), e.Bz()
	out := field.NewMap(e.g.Nx, e.g.Nz)
	for k := range out.Data {
		out.Data[k] = math.Hypot(bx.Data[k], bz.Data[k])
	}
	return out
}

// Point queries, valid anywhere in the poloidal plane.

func (e *Equilibrium) PsiAt(x, z float64) float64 { return e.cs.Psi(x, z) + e.pl.PsiAt(x, z) }
func (e *Equilibrium) BxAt(x, z float64) float64  { return e.cs.Bx(x, z) + e.pl.BxAt(x, z) }
func (e *Equilibrium) BzAt(x, z float64) float64  { return e.cs.Bz(x, z) + e.pl.BzAt(x, z) }

// InvalidateOX clears the critical-point cache. Callers mutating coil
// currents directly must invalidate before querying OXPoints again; the
// cache is never refreshed behind an unrelated accessor.
func (e *Equilibrium) InvalidateOX() {
	e.oPoints, e.xPoints = nil, nil
	e.oxValid = false
}

// OXPoints returns the cached critical points, scanning the present
// flux map if the cache was invalidated.
func (e *Equilibrium) OXPoints() (oPoints, xPoints []find.Point, err error) {
	if !e.oxValid {
		o, x, err := find.OXPoints(e.g, e.Psi(), e.lim, e.profile.R0(), e.g.ZMid())
		if err != nil {
			return nil, x, err
		}
		e.oPoints, e.xPoints, e.oxValid = o, x, true
	}
	return e.oPoints, e.xPoints, nil
}

// Ip returns the plasma current carried by the present current-density
// map.
func (e *Equilibrium) Ip() float64 { return e.g.Integrate(e.pl.Jtor()) }

// EffectiveCentre returns the effective current centre of the plasma.
func (e *Equilibrium) EffectiveCentre() (x, z float64) {
	return physics.EffectiveCentre(e.g, e.pl.Jtor(), e.Ip())
}

// IsDoubleNull reports whether the two innermost X-points sit within
// fluxTol of each other, relative to the axis-to-separatrix flux span.
func (e *Equilibrium) IsDoubleNull(fluxTol float64) (bool, error) {
	o, x, err := e.OXPoints()
	if err != nil {
		return false, err
	}
	if len(x) < 2 {
		return false, nil
	}
	span := math.Abs(o[0].Psi - x[0].Psi)
	if span == 0 {
		return false, nil
	}
	return math.Abs(x[0].Psi-x[1].Psi) <= fluxTol*span, nil
}

// PsiNormMap returns the normalized-flux map of the present state:
// zero on the magnetic axis, one on the boundary surface, above one
// outside it.
func (e *Equilibrium) PsiNormMap() (*field.Map, error) {
	o, x, err := e.OXPoints()
	if err != nil {
		return nil, err
	}
	psi := e.Psi()
	psiB := e.g.EdgeMin(psi)
	if len(x) > 0 {
		psiB = x[0].Psi
	}
	return physics.PsiNorm(psi, o[0].Psi, psiB), nil
}

// PressureMap returns the plasma pressure over the confined core,
// zero outside it.
func (e *Equilibrium) PressureMap() (*field.Map, error) {
	pn, err := e.PsiNormMap()
	if err != nil {
		return nil, err
	}
	mask := physics.CoreMask(pn)
	out := field.NewMap(e.g.Nx, e.g.Nz)
	for k, v := range pn.Data {
		if mask.Data[k] != 0 {
			out.Data[k] = e.profile.Pressure(v)
		}
	}
	return out, nil
}

// Solve performs one nonlinear iteration: locate critical points,
// evaluate the profile's current density, stabilise, update the free
// boundary, invert the elliptic operator and rebuild the plasma source.
// Passing a non-nil jtor skips the critical-point and profile steps and
// uses it directly.
//
// On failure the previous plasma and current-density state remain
// visible and the critical-point cache stays cleared, repopulating on
// the next OXPoints query; only the stabiliser correction may have
// advanced.
func (e *Equilibrium) Solve(jtor *field.Map) error {
	e.InvalidateOX()

	if jtor == nil {
		psi := e.Psi()
		o, x, err := find.OXPoints(e.g, psi, e.lim, e.profile.R0(), e.g.ZMid())
		if err != nil {
			return err
		}
		jtor, err = e.profile.Jtor(e.g, psi, o, x)
		if err != nil {
			return err
		}
	}

	iP := e.g.Integrate(jtor)
	xCur, zCur := physics.EffectiveCentre(e.g, jtor, iP)
	e.ctrl.Stabilise(xCur, zCur, iP)

	plaPsi, err := e.invert(jtor)
	if err != nil {
		return err
	}

	// Commit the plasma state and the refreshed critical-point cache
	// together, only once the new flux map has a valid axis.
	psi := plaPsi.Clone().Add(e.coilPsi()).Add(e.ctrl.Psi())
	o, x, err := find.OXPoints(e.g, psi, e.lim, e.profile.R0(), e.g.ZMid())
	if err != nil {
		return err
	}
	e.pl = plasma.NewSource(e.g, plaPsi, jtor)
	e.oPoints, e.xPoints, e.oxValid = o, x, true
	return nil
}

// invert runs the free-boundary update and the elliptic solve for one
// current-density map, returning the new plasma flux.
func (e *Equilibrium) invert(jtor *field.Map) (*field.Map, error) {
	bound := field.NewMap(e.g.Nx, e.g.Nz)
	e.fb.Apply(bound, jtor)

	rhs := field.NewMap(e.g.Nx, e.g.Nz)
	for i := 1; i < e.g.Nx-1; i++ {
		for j := 1; j < e.g.Nz-1; j++ {
			rhs.Set(i, j, -greens.Mu0*e.g.X1D[i]*jtor.At(i, j))
		}
	}
	return e.solver.Solve(rhs, bound)
}

// Shape-coefficient search box for the inductance solve.
var liBounds = [2]float64{0.05, 4.0}

const defaultLiIterations = 30

// SolveLi matches the profile's internal-inductance target by searching
// over its shape coefficients. Each objective evaluation runs one
// nested solve iteration with the critical points held fixed. Reaching
// the target tolerance is ordinary termination; exhausting the budget
// returns Converged false, not an error. Reentrant calls fail with
// ErrSolveBusy since the nested solves share this state's caches.
func (e *Equilibrium) SolveLi(s optim.Settings) (LiResult, error) {
	m, ok := e.profile.(profiles.InductanceMatcher)
	if !ok {
		return LiResult{}, ErrNoLiCapability
	}
	if e.liBusy {
		return LiResult{}, ErrSolveBusy
	}
	e.liBusy = true
	defer func() { e.liBusy = false }()

	if s.MaxIter <= 0 {
		s.MaxIter = defaultLiIterations
	}

	e.InvalidateOX()
	o, x, err := find.OXPoints(e.g, e.Psi(), e.lim, e.profile.R0(), e.g.ZMid())
	if err != nil {
		return LiResult{}, err
	}

	target, tol := m.LiTarget(), m.LiRelTol()
	shape := m.Shape()
	x0 := shape.Coeffs()
	bounds := make([][2]float64, len(x0))
	for d := range bounds {
		bounds[d] = liBounds
	}

	lastLi := 0.0
	objective := func(c []float64) (float64, error) {
		shape.Adjust(c)
		jtor, err := e.profile.Jtor(e.g, e.Psi(), o, x)
		if err != nil {
			return 0, err
		}
		plaPsi, err := e.invert(jtor)
		if err != nil {
			return 0, err
		}
		e.pl = plasma.NewSource(e.g, plaPsi, jtor)
		lastLi = e.li(o, x)
		return math.Abs(lastLi - target), nil
	}

	res, err := optim.NelderMead(optim.Problem{
		Objective: objective,
		Bounds:    bounds,
		Stop: func(_ []float64, _ float64) bool {
			return physics.RelDiff(lastLi, target) <= tol
		},
	}, x0, s)
	if err != nil {
		return LiResult{}, err
	}
	shape.Adjust(res.X)

	// Cache left invalid; the next OXPoints query rescans the final map.
	converged := res.Converged && physics.RelDiff(lastLi, target) <= tol
	return LiResult{Li: lastLi, Iterations: res.Iterations, Converged: converged}, nil
}

// li computes the normalized internal inductance li(3) of the present
// state, masking the plasma core with the given critical points.
func (e *Equilibrium) li(o, x []find.Point) float64 {
	psi := e.Psi()
	psiAx := o[0].Psi
	psiB := e.g.EdgeMin(psi)
	if len(x) > 0 {
		psiB = x[0].Psi
	}
	mask := physics.CoreMask(physics.PsiNorm(psi, psiAx, psiB))
	return physics.Li3(e.g, e.Bx(), e.Bz(), mask, e.profile.R0(), e.profile.Ip())
}

// Li returns the internal inductance of the present state.
func (e *Equilibrium) Li() (float64, error) {
	o, x, err := e.OXPoints()
	if err != nil {
		return 0, err
	}
	return e.li(o, x), nil
}

// Copy duplicates the state so further solves do not disturb this one.
// The coil set, the profile and all plasma maps are deep-copied; the
// factorized operator, free-boundary matrix and response matrices are
// shared since they depend only on grid and coil geometry. The
// controller is rebuilt with zero accumulated correction.
func (e *Equilibrium) Copy() *Equilibrium {
	ctrl, _ := control.New(e.strategy, e.g, e.gain)
	dup := &Equilibrium{
		core: core{
			g: e.g, cs: copyCoils(e.cs), lim: e.lim,
			psiResp: e.psiResp, bxResp: e.bxResp, bzResp: e.bzResp,
		},
		profile:  e.profile.Clone(),
		ctrl:     ctrl,
		solver:   e.solver,
		fb:       e.fb,
		pl:       plasma.NewSource(e.g, e.pl.Psi().Clone(), e.pl.Jtor().Clone()),
		strategy: e.strategy,
		gain:     e.gain,
		sym:      e.sym,
		oxValid:  e.oxValid,
	}
	dup.oPoints = append([]find.Point(nil), e.oPoints...)
	dup.xPoints = append([]find.Point(nil), e.xPoints...)
	return dup
}

// ResetGrid moves the state onto a new grid: the plasma maps are
// resampled, the operator is refactorized, all Green's caches are
// rebuilt and the critical-point cache is cleared.
func (e *Equilibrium) ResetGrid(ng *grid.Grid) error {
	solver, err := gs.NewSolver(ng, e.sym)
	if err != nil {
		return err
	}
	ctrl, err := control.New(e.strategy, ng, e.gain)
	if err != nil {
		solver.Destroy()
		return err
	}

	psi := resample(e.g, e.pl.Psi(), ng)
	jtor := resample(e.g, e.pl.Jtor(), ng)

	e.solver.Destroy()
	e.solver = solver
	e.ctrl = ctrl
	e.fb = boundary.New(ng)
	e.pl = plasma.NewSource(ng, psi, jtor)
	e.g = ng
	e.RemapGreens()
	e.InvalidateOX()
	return nil
}

// Destroy releases the factorized operator. The state must not be used
// afterwards.
func (e *Equilibrium) Destroy() {
	if e.solver != nil {
		e.solver.Destroy()
		e.solver = nil
	}
}
