package equilibrium

import (
	"errors"
	"math"
	"testing"

	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/control"
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/find"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/optim"
	"github.com/geograham/bluemira/internal/profiles"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(4, 12, -4, 4, 33, 33)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// Up-down symmetric coil set just outside the grid.
func testCoils() *coils.CoilSet {
	return coils.NewSet(
		&coils.Coil{Name: "PF_1", X: 6, Z: 5.5, Dx: 0.4, Dz: 0.4, Current: 1e6, Category: coils.PF},
		&coils.Coil{Name: "PF_2", X: 6, Z: -5.5, Dx: 0.4, Dz: 0.4, Current: 1e6, Category: coils.PF},
		&coils.Coil{Name: "PF_3", X: 11, Z: 5.5, Dx: 0.4, Dz: 0.4, Current: 1e6, Category: coils.PF},
		&coils.Coil{Name: "PF_4", X: 11, Z: -5.5, Dx: 0.4, Dz: 0.4, Current: 1e6, Category: coils.PF},
	)
}

func testProfile(t *testing.T) *profiles.BetaIp {
	t.Helper()
	p, err := profiles.NewBetaIp(15e6, 8, 5, profiles.Split{Inner: 0.5, Outer: 0.5},
		profiles.NewDoublePower(2, 1.5))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func testEquilibrium(t *testing.T, opt Options) *Equilibrium {
	t.Helper()
	eq, err := New(testGrid(t), testCoils(), testProfile(t), opt)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(eq.Destroy)
	return eq
}

func TestNewValidation(t *testing.T) {
	g := testGrid(t)
	if _, err := New(g, testCoils(), nil, Options{}); !errors.Is(err, ErrComponents) {
		t.Errorf("nil profile: expected ErrComponents, got %v", err)
	}
	if _, err := New(g, coils.NewSet(), testProfile(t), Options{}); !errors.Is(err, ErrComponents) {
		t.Errorf("empty coil set: expected ErrComponents, got %v", err)
	}
	if _, err := New(g, testCoils(), testProfile(t), Options{
		PlasmaPsi: field.NewMap(5, 5),
	}); !errors.Is(err, ErrComponents) {
		t.Errorf("mismatched flux map: expected ErrComponents, got %v", err)
	}
}

func TestSolveRefreshesState(t *testing.T) {
	eq := testEquilibrium(t, Options{})

	for it := 0; it < 2; it++ {
		if err := eq.Solve(nil); err != nil {
			t.Fatalf("solve %d: %v", it, err)
		}
	}

	o, _, err := eq.OXPoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(o) == 0 {
		t.Fatal("no O-point after solve")
	}
	if o[0].X < 4 || o[0].X > 12 || math.Abs(o[0].Z) > 4 {
		t.Errorf("magnetic axis (%g, %g) outside grid", o[0].X, o[0].Z)
	}

	ip := eq.Ip()
	if math.Abs(ip-15e6) > 1e-6*15e6 {
		t.Errorf("plasma current %g, want 15e6", ip)
	}
	if !eq.Psi().IsFinite() || !eq.Bp().IsFinite() {
		t.Error("non-finite field maps after solve")
	}

	xc, zc := eq.EffectiveCentre()
	if xc < 4 || xc > 12 || math.Abs(zc) > 4 {
		t.Errorf("current centre (%g, %g) outside grid", xc, zc)
	}
	if _, err := eq.IsDoubleNull(1e-3); err != nil {
		t.Errorf("double-null query: %v", err)
	}
}

func TestSolveFailureKeepsPlasmaState(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	before := eq.Plasma().Psi().Clone()

	// A current-free map leaves only the coil vacuum field, which has
	// no O-point inside the grid.
	err := eq.Solve(field.NewMap(eq.Grid().Nx, eq.Grid().Nz))
	if !errors.Is(err, find.ErrNoOPoint) {
		t.Fatalf("expected ErrNoOPoint, got %v", err)
	}
	if !eq.Plasma().Psi().EqualApprox(before, 0) {
		t.Error("failed solve replaced the plasma flux map")
	}

	// The state is still solvable afterwards.
	if err := eq.Solve(nil); err != nil {
		t.Fatalf("solve after failed iteration: %v", err)
	}
}

func TestSolveDeterministic(t *testing.T) {
	a := testEquilibrium(t, Options{})
	b := testEquilibrium(t, Options{})
	if err := a.Solve(nil); err != nil {
		t.Fatal(err)
	}
	if err := b.Solve(nil); err != nil {
		t.Fatal(err)
	}
	if !a.Psi().EqualApprox(b.Psi(), 1e-12) {
		t.Error("identical inputs produced different flux maps")
	}
}

func TestSolveSymmetric(t *testing.T) {
	eq := testEquilibrium(t, Options{Symmetric: true})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	psi := eq.Psi()
	tol := 1e-9 * psi.MaxAbs()
	for i := 0; i < psi.Nx; i++ {
		for j := 0; j < psi.Nz; j++ {
			if d := math.Abs(psi.At(i, j) - psi.At(i, psi.Nz-1-j)); d > tol {
				t.Fatalf("asymmetry %g at (%d, %d)", d, i, j)
			}
		}
	}
}

func TestSolveWithVirtualController(t *testing.T) {
	eq := testEquilibrium(t, Options{Strategy: control.Virtual})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	if !eq.Psi().IsFinite() {
		t.Error("non-finite flux with virtual stabilisation")
	}
}

func TestSolveWithDirectJtor(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	g := eq.Grid()
	jtor := field.NewMap(g.Nx, g.Nz)
	for i := 1; i < g.Nx-1; i++ {
		for j := 1; j < g.Nz-1; j++ {
			x, z := g.X1D[i], g.Z1D[j]
			jtor.Set(i, j, 1e6*math.Exp(-((x-8)*(x-8)+z*z)))
		}
	}
	if err := eq.Solve(jtor); err != nil {
		t.Fatal(err)
	}
	if ip := eq.Ip(); math.Abs(ip-g.Integrate(jtor)) > 1e-9*math.Abs(ip) {
		t.Errorf("direct current density not carried: ip = %g", ip)
	}
}

func TestPsiNormMap(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	pn, err := eq.PsiNormMap()
	if err != nil {
		t.Fatal(err)
	}
	if !pn.IsFinite() {
		t.Fatal("non-finite normalized flux")
	}
	// Zero on axis, one on the boundary surface, beyond one outside.
	if m := pn.Min(); math.Abs(m) > 0.05 {
		t.Errorf("normalized flux minimum %g, want ~0 on axis", m)
	}
	if m := pn.Max(); m < 1-1e-9 {
		t.Errorf("normalized flux maximum %g, want >= 1 outside the core", m)
	}
}

func TestPressureMap(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	pm, err := eq.PressureMap()
	if err != nil {
		t.Fatal(err)
	}
	if !pm.IsFinite() {
		t.Fatal("non-finite pressure map")
	}
	if pm.Min() < 0 {
		t.Errorf("negative pressure %g", pm.Min())
	}
	if pm.Max() <= 0 {
		t.Errorf("pressure maximum %g, want positive in the core", pm.Max())
	}
	zeros := 0
	for _, v := range pm.Data {
		if v == 0 {
			zeros++
		}
	}
	if zeros == 0 {
		t.Error("pressure should vanish outside the confined core")
	}
}

func TestSolveLi(t *testing.T) {
	p, err := profiles.NewBetaLiIp(15e6, 8, 5, 0.8, 0.05,
		profiles.Split{Inner: 0.5, Outer: 0.5}, profiles.NewDoublePower(2, 1.5))
	if err != nil {
		t.Fatal(err)
	}
	eq, err := New(testGrid(t), testCoils(), p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(eq.Destroy)
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}

	res, err := eq.SolveLi(optim.Settings{MaxIter: 8})
	if err != nil {
		t.Fatal(err)
	}
	if res.Li <= 0 || math.IsNaN(res.Li) || math.IsInf(res.Li, 0) {
		t.Errorf("inductance %g not positive and finite", res.Li)
	}
	if res.Iterations > 8 {
		t.Errorf("iteration budget exceeded: %d", res.Iterations)
	}
	if !eq.Psi().IsFinite() {
		t.Error("non-finite flux after inductance solve")
	}
}

func TestSolveLiRequiresCapability(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if _, err := eq.SolveLi(optim.Settings{}); !errors.Is(err, ErrNoLiCapability) {
		t.Errorf("expected ErrNoLiCapability, got %v", err)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	before := eq.Psi()
	pp := eq.Profile().PPrime(0.5)

	dup := eq.Copy()
	if !dup.Psi().EqualApprox(before, 1e-12) {
		t.Error("copy does not reproduce the flux map")
	}
	if err := dup.Solve(nil); err != nil {
		t.Fatal(err)
	}
	if eq.Profile().PPrime(0.5) != pp {
		t.Error("solving the copy mutated the original's profile")
	}
	if err := dup.Coils().SetCurrents([]float64{2e6, 2e6, 2e6, 2e6}); err != nil {
		t.Fatal(err)
	}
	if !eq.Psi().EqualApprox(before, 1e-12) {
		t.Error("mutating the copy's coil currents disturbed the original")
	}
	if dup.Psi().EqualApprox(before, 1e-12) {
		t.Error("copy's flux map did not react to its new currents")
	}
}

func TestResetGrid(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	ipBefore := eq.Ip()

	ng, err := grid.New(4, 12, -4, 4, 49, 49)
	if err != nil {
		t.Fatal(err)
	}
	if err := eq.ResetGrid(ng); err != nil {
		t.Fatal(err)
	}
	if eq.Grid() != ng {
		t.Fatal("grid not replaced")
	}
	// Resampling preserves the current distribution approximately.
	if ip := eq.Ip(); math.Abs(ip-ipBefore) > 0.1*math.Abs(ipBefore) {
		t.Errorf("resampled plasma current %g drifted from %g", ip, ipBefore)
	}
	if _, _, err := eq.OXPoints(); err != nil {
		t.Errorf("critical points on the new grid: %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	eq := testEquilibrium(t, Options{})
	if err := eq.Solve(nil); err != nil {
		t.Fatal(err)
	}
	rec := eq.ToRecord("roundtrip")
	if rec.XCentre != 8 || rec.BCentre != 5 {
		t.Errorf("reference geometry (R0, B0) = (%g, %g), want (8, 5)", rec.XCentre, rec.BCentre)
	}

	dup, err := FromRecord(rec, eq.Profile(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(dup.Destroy)

	g, ng := eq.Grid(), dup.Grid()
	if ng.XMin != g.XMin || ng.XMax != g.XMax || ng.ZMin != g.ZMin || ng.ZMax != g.ZMax ||
		ng.Nx != g.Nx || ng.Nz != g.Nz {
		t.Error("grid bounds or resolution did not reproduce exactly")
	}
	origCoils, dupCoils := eq.Coils().Coils(), dup.Coils().Coils()
	if len(dupCoils) != len(origCoils) {
		t.Fatalf("coil count %d, want %d", len(dupCoils), len(origCoils))
	}
	for k := range origCoils {
		o, d := origCoils[k], dupCoils[k]
		if d.X != o.X || d.Z != o.Z || d.Dx != o.Dx || d.Dz != o.Dz || d.Current != o.Current {
			t.Errorf("coil %d geometry/current did not reproduce exactly", k)
		}
		if d.Name != o.Name {
			t.Errorf("coil %d name %q, want %q", k, d.Name, o.Name)
		}
	}
	// The stored flux map is recovered up to the coil-superposition
	// split; further solves may legitimately diverge from it.
	if !dup.Psi().EqualApprox(eq.Psi(), 1e-8) {
		t.Error("reloaded flux map differs before any re-solve")
	}
}
