// Package physics collects the scalar plasma figures derived from
// equilibrium maps: normalized flux, the plasma-core mask, internal
// inductance and the effective current centre.
package physics

import (
	"math"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
)

// PsiNormAt rescales a flux value to [0, 1] between the magnetic axis
// and the boundary. Values beyond the boundary exceed 1.
func PsiNormAt(psi, psiAx, psiB float64) float64 {
	d := psiB - psiAx
	if d == 0 {
		return 0
	}
	return (psi - psiAx) / d
}

// PsiNorm maps a whole flux map to normalized flux.
func PsiNorm(psi *field.Map, psiAx, psiB float64) *field.Map {
	out := field.NewMap(psi.Nx, psi.Nz)
	for k, v := range psi.Data {
		out.Data[k] = PsiNormAt(v, psiAx, psiB)
	}
	return out
}

// CoreMask returns a 1/0 map marking the confined plasma region:
// normalized flux in [0, 1).
func CoreMask(psiNorm *field.Map) *field.Map {
	out := field.NewMap(psiNorm.Nx, psiNorm.Nz)
	for k, v := range psiNorm.Data {
		if v >= 0 && v < 1 {
			out.Data[k] = 1
		}
	}
	return out
}

// Li3 computes the normalized internal inductance li(3),
//
//	li(3) = 2 <Bp^2> V / (mu0^2 Ip^2 R0)
//
// integrating Bp^2 over the masked plasma volume (dV = 2 pi x dx dz).
func Li3(g *grid.Grid, bx, bz, mask *field.Map, r0, iP float64) float64 {
	if iP == 0 || r0 == 0 {
		return 0
	}
	integrand := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			b2 := bx.At(i, j)*bx.At(i, j) + bz.At(i, j)*bz.At(i, j)
			integrand.Set(i, j, b2*g.X1D[i]*mask.At(i, j))
		}
	}
	bp2Vol := 2 * math.Pi * g.Integrate(integrand)
	return 2 * bp2Vol / (greens.Mu0 * greens.Mu0 * iP * iP * r0)
}

// EffectiveCentre computes the effective current centre of the plasma
// (Jeon integrals):
//
//	Xcur^2 = (1/Ip) int x^2 jtor dA,  Zcur = (1/Ip) int z jtor dA
func EffectiveCentre(g *grid.Grid, jtor *field.Map, iP float64) (xCur, zCur float64) {
	if iP == 0 {
		return g.XMid(), g.ZMid()
	}
	fx := field.NewMap(g.Nx, g.Nz)
	fz := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			fx.Set(i, j, g.X1D[i]*g.X1D[i]*jtor.At(i, j))
			fz.Set(i, j, g.Z1D[j]*jtor.At(i, j))
		}
	}
	xCur = math.Sqrt(math.Abs(g.Integrate(fx) / iP))
	zCur = g.Integrate(fz) / iP
	return xCur, zCur
}

// RelDiff returns the relative difference |a - b| / max(|a|, |b|),
// zero when both are zero.
func RelDiff(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}
