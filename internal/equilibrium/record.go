package equilibrium

import (
	"fmt"

	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/eqdsk"
	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/limiter"
	"github.com/geograham/bluemira/internal/profiles"
)

const profileSamples = 50

// ToRecord produces the exchange record for the present state. Grid
// and coil fields round-trip exactly; flux-derived fields reflect the
// last solve and may differ after reload plus re-solve.
func (e *Equilibrium) ToRecord(name string) *eqdsk.Record {
	r := baseRecord(name, e.g, e.cs, e.lim)
	r.Psi = append([]float64(nil), e.Psi().Data...)
	r.XCentre = e.profile.R0()
	r.BCentre = e.profile.B0()
	r.CPlasma = e.Ip()

	if o, x, err := e.OXPoints(); err == nil {
		r.XMag, r.ZMag, r.PsiMag = o[0].X, o[0].Z, o[0].Psi
		r.PsiBdry = e.g.EdgeMin(e.Psi())
		if len(x) > 0 {
			r.PsiBdry = x[0].Psi
		}
	}

	r.PsiNorm = make([]float64, profileSamples)
	r.PPrime = make([]float64, profileSamples)
	r.FFPrime = make([]float64, profileSamples)
	r.Press = make([]float64, profileSamples)
	r.FPol = make([]float64, profileSamples)
	for k := 0; k < profileSamples; k++ {
		pn := float64(k) / float64(profileSamples-1)
		r.PsiNorm[k] = pn
		r.PPrime[k] = e.profile.PPrime(pn)
		r.FFPrime[k] = e.profile.FFPrime(pn)
		r.Press[k] = e.profile.Pressure(pn)
		r.FPol[k] = e.profile.FRBpol(pn)
	}
	return r
}

// ToRecord produces the exchange record for a coil-only breakdown
// state. The breakdown point and flux travel in the axis fields.
func (b *Breakdown) ToRecord(name string) *eqdsk.Record {
	r := baseRecord(name, b.g, b.cs, b.lim)
	r.Psi = append([]float64(nil), b.Psi().Data...)
	r.XMag, r.ZMag = b.pointX, b.pointZ
	r.PsiMag = b.BreakdownPsi()
	return r
}

func baseRecord(name string, g *grid.Grid, cs *coils.CoilSet, lim *limiter.Limiter) *eqdsk.Record {
	xc, zc, dxc, dzc, ic := cs.GroupVecs()
	r := &eqdsk.Record{
		Name: name,
		Nx:   g.Nx, Nz: g.Nz,
		XDim: g.XSize(), ZDim: g.ZSize(),
		XGrid1: g.XMin, ZMid: g.ZMid(),
		X: append([]float64(nil), g.X1D...),
		Z: append([]float64(nil), g.Z1D...),
		NCoil: cs.N(),
		Xc:    xc, Zc: zc, Dxc: dxc, Dzc: dzc, Ic: ic,
	}
	for _, c := range cs.Coils() {
		r.CoilName = append(r.CoilName, c.Name)
	}
	if lim != nil {
		r.NLim = lim.Len()
		r.XLim = append([]float64(nil), lim.X...)
		r.ZLim = append([]float64(nil), lim.Z...)
	}
	return r
}

func gridFromRecord(rec *eqdsk.Record) (*grid.Grid, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return grid.New(rec.X[0], rec.X[rec.Nx-1], rec.Z[0], rec.Z[rec.Nz-1], rec.Nx, rec.Nz)
}

func limiterFromRecord(rec *eqdsk.Record) (*limiter.Limiter, error) {
	if rec.NLim < 2 {
		return nil, nil
	}
	return limiter.New(rec.XLim, rec.ZLim)
}

// FromRecord reconstructs an Equilibrium from an exchange record. The
// profile is supplied by the caller; the stored flux map is split into
// plasma and coil contributions, and the current-density map is not
// persisted, so a re-solve is required before flux-derived quantities
// are meaningful again. Controller state is not part of the schema
// either: any stabiliser correction active at write time is folded
// into the reconstructed plasma flux and is recomputed by the next
// solve.
func FromRecord(rec *eqdsk.Record, p profiles.Profile, opt Options) (*Equilibrium, error) {
	g, err := gridFromRecord(rec)
	if err != nil {
		return nil, err
	}
	cs, err := coils.FromGroupVecs(rec.Xc, rec.Zc, rec.Dxc, rec.Dzc, rec.Ic)
	if err != nil {
		return nil, err
	}
	for i, c := range cs.Coils() {
		if i < len(rec.CoilName) {
			c.Name = rec.CoilName[i]
		}
	}
	lim, err := limiterFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if lim != nil {
		opt.Limiter = lim
	}

	if len(rec.Psi) == rec.Nx*rec.Nz {
		total := &field.Map{Nx: rec.Nx, Nz: rec.Nz, Data: append([]float64(nil), rec.Psi...)}
		coilPsi := field.NewMap(g.Nx, g.Nz)
		for i := 0; i < g.Nx; i++ {
			for j := 0; j < g.Nz; j++ {
				coilPsi.Set(i, j, cs.Psi(g.X1D[i], g.Z1D[j]))
			}
		}
		opt.PlasmaPsi = total.Sub(coilPsi)
	}
	return New(g, cs, p, opt)
}

// BreakdownFromRecord reconstructs a Breakdown state. The zone radius
// is not part of the schema and must be supplied (non-positive selects
// the default).
func BreakdownFromRecord(rec *eqdsk.Record, radius float64) (*Breakdown, error) {
	g, err := gridFromRecord(rec)
	if err != nil {
		return nil, err
	}
	cs, err := coils.FromGroupVecs(rec.Xc, rec.Zc, rec.Dxc, rec.Dzc, rec.Ic)
	if err != nil {
		return nil, err
	}
	lim, err := limiterFromRecord(rec)
	if err != nil {
		return nil, err
	}
	x, z := rec.XMag, rec.ZMag
	if x == 0 && z == 0 {
		x, z = g.XMid(), g.ZMid()
	}
	b, err := NewBreakdown(g, cs, lim, x, z, radius)
	if err != nil {
		return nil, fmt.Errorf("reconstructing breakdown state: %w", err)
	}
	return b, nil
}
