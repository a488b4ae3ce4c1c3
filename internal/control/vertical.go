// Package control provides the vertical-stabilization strategies that
// correct the flux map for vertical plasma drift between equilibrium
// iterations.
//
// Two controllers share one contract:
//
//   - [Dummy]: anchors a fixed (zero) reference correction
//   - [VirtualController]: applies a synthetic radial field from a
//     virtual coil pair, proportional to the plasma's vertical
//     displacement
//
// Strategy selection is validated at construction; an unknown strategy
// is a configuration error.
package control

import (
	"errors"
	"fmt"

	"github.com/geograham/bluemira/internal/field"
	"github.com/geograham/bluemira/internal/greens"
	"github.com/geograham/bluemira/internal/grid"
)

var ErrUnknownStrategy = errors.New(
	`control: unknown vertical stabilisation strategy (choose "none" or "virtual")`)

// Strategy selects the stabilization variant for a state.
type Strategy int

const (
	None Strategy = iota
	Virtual
)

func (s Strategy) String() string {
	switch s {
	case None:
		return "none"
	case Virtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "none":
		return None, nil
	case "virtual":
		return Virtual, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Controller corrects total flux for vertical plasma drift. Stabilise
// updates the internal correction from the current plasma state
// (effective current centre and plasma current); Psi returns the
// correction field to be added to the total flux.
type Controller interface {
	Stabilise(xCur, zCur, iP float64)
	Psi() *field.Map
}

// New builds the controller for a validated strategy.
func New(s Strategy, g *grid.Grid, gain float64) (Controller, error) {
	switch s {
	case None:
		return NewDummy(g), nil
	case Virtual:
		return NewVirtual(g, gain), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
}

// Dummy is the no-op variant: it holds a fixed zero reference and
// never corrects.
type Dummy struct {
	ref *field.Map
}

func NewDummy(g *grid.Grid) *Dummy {
	return &Dummy{ref: field.NewMap(g.Nx, g.Nz)}
}

func (d *Dummy) Stabilise(xCur, zCur, iP float64) {}
func (d *Dummy) Psi() *field.Map                  { return d.ref }

// DefaultGain is the feedback gain used when none is configured.
const DefaultGain = 2.2

// VirtualController mocks up a mirrored pair of filament coils just
// outside the grid and drives them antisymmetrically: the resulting
// radial field pushes the plasma back toward the midplane. The
// correction current scales with the vertical displacement, the plasma
// current and the configured gain.
type VirtualController struct {
	g            *grid.Grid
	gain         float64
	zRef         float64
	upper, lower *field.Map // unit-current flux responses of the pair
	corr         *field.Map
	current      float64
}

func NewVirtual(g *grid.Grid, gain float64) *VirtualController {
	if gain == 0 {
		gain = DefaultGain
	}
	v := &VirtualController{
		g:    g,
		gain: gain,
		zRef: g.ZMid(),
		corr: field.NewMap(g.Nx, g.Nz),
	}
	// Filaments a quarter grid-height beyond the top and bottom edges.
	xc := g.XMid()
	off := 0.25 * g.ZSize()
	v.upper = responseMap(g, xc, g.ZMax+off)
	v.lower = responseMap(g, xc, g.ZMin-off)
	return v
}

func responseMap(g *grid.Grid, xc, zc float64) *field.Map {
	m := field.NewMap(g.Nx, g.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Nz; j++ {
			m.Set(i, j, greens.Psi(xc, zc, g.X1D[i], g.Z1D[j]))
		}
	}
	return m
}

// Stabilise updates the virtual pair current from the vertical drift
// of the effective current centre.
func (v *VirtualController) Stabilise(xCur, zCur, iP float64) {
	dz := zCur - v.zRef
	v.current = -v.gain * iP * dz / v.g.XMid()
	v.corr.Zero()
	v.corr.AddScaled(v.current, v.upper)
	v.corr.AddScaled(-v.current, v.lower)
}

func (v *VirtualController) Psi() *field.Map { return v.corr }

// Current reports the present virtual coil current, for diagnostics.
func (v *VirtualController) Current() float64 { return v.current }
