// Package greens implements the Green's functions of an axisymmetric
// circular current filament: the linear response mapping a unit coil
// current to poloidal flux and magnetic field at a point in the (x, z)
// plane.
package greens

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Mu0 is the vacuum magnetic permeability [T.m/A].
const Mu0 = 4e-7 * math.Pi

// Step used for the central-difference field derivatives [m].
const fdStep = 1e-4

// k2 clamp keeps the elliptic integrals off their logarithmic
// singularity when the field point coincides with the filament.
const k2Max = 1.0 - 1e-10

// Psi returns the poloidal flux per radian at (x, z) due to a unit
// current filament at (xc, zc) [V.s/rad/A].
func Psi(xc, zc, x, z float64) float64 {
	if x <= 0 || xc <= 0 {
		return 0
	}
	dz := z - zc
	d2 := (x+xc)*(x+xc) + dz*dz
	if d2 == 0 {
		return 0
	}
	k2 := 4 * x * xc / d2
	if k2 > k2Max {
		k2 = k2Max
	}
	k := math.Sqrt(k2)
	return Mu0 / (2 * math.Pi) * math.Sqrt(x*xc) *
		((2-k2)*mathext.CompleteK(k2) - 2*mathext.CompleteE(k2)) / k
}

// Bx returns the radial field response at (x, z) due to a unit current
// filament at (xc, zc), Bx = -(1/x) dpsi/dz [T/A].
func Bx(xc, zc, x, z float64) float64 {
	if x <= 0 || xc <= 0 {
		return 0
	}
	return -(Psi(xc, zc, x, z+fdStep) - Psi(xc, zc, x, z-fdStep)) / (2 * fdStep * x)
}

// Bz returns the vertical field response at (x, z) due to a unit
// current filament at (xc, zc), Bz = (1/x) dpsi/dx [T/A].
func Bz(xc, zc, x, z float64) float64 {
	if x <= 0 || xc <= 0 {
		return 0
	}
	return (Psi(xc, zc, x+fdStep, z) - Psi(xc, zc, x-fdStep, z)) / (2 * fdStep * x)
}
