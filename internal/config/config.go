// Package config describes a complete equilibrium run: grid, coil set,
// plasma profile, vertical stabilisation, breakdown zone and the outer
// Picard-loop settings. Configurations load from and save to YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geograham/bluemira/internal/coils"
	"github.com/geograham/bluemira/internal/control"
	"github.com/geograham/bluemira/internal/equilibrium"
	"github.com/geograham/bluemira/internal/grid"
	"github.com/geograham/bluemira/internal/limiter"
	"github.com/geograham/bluemira/internal/profiles"
)

const (
	DefaultIp         = 15e6
	DefaultR0         = 9.0
	DefaultB0         = 5.3
	DefaultLiRelTol   = 0.015
	DefaultIterations = 50
	DefaultRelTol     = 1e-4
)

type Config struct {
	Name      string          `yaml:"name"`
	Grid      GridConfig      `yaml:"grid"`
	Coils     []CoilConfig    `yaml:"coils"`
	Profile   ProfileConfig   `yaml:"profile"`
	Control   ControlConfig   `yaml:"control"`
	Breakdown BreakdownConfig `yaml:"breakdown"`
	Solve     SolveConfig     `yaml:"solve"`
	Limiter   LimiterConfig   `yaml:"limiter"`
}

type GridConfig struct {
	XMin      float64 `yaml:"x_min"`
	XMax      float64 `yaml:"x_max"`
	ZMin      float64 `yaml:"z_min"`
	ZMax      float64 `yaml:"z_max"`
	Nx        int     `yaml:"nx"`
	Nz        int     `yaml:"nz"`
	Symmetric bool    `yaml:"symmetric"`
}

type CoilConfig struct {
	Name     string  `yaml:"name"`
	X        float64 `yaml:"x"`
	Z        float64 `yaml:"z"`
	Dx       float64 `yaml:"dx"`
	Dz       float64 `yaml:"dz"`
	Current  float64 `yaml:"current"`
	Category string  `yaml:"category"`
}

type ProfileConfig struct {
	Ip          float64   `yaml:"ip"`
	R0          float64   `yaml:"r0"`
	B0          float64   `yaml:"b0"`
	InnerSplit  float64   `yaml:"inner_split"`
	OuterSplit  float64   `yaml:"outer_split"`
	ShapeCoeffs []float64 `yaml:"shape_coeffs"`
	LiTarget    float64   `yaml:"li_target"` // 0 disables inductance matching
	LiRelTol    float64   `yaml:"li_rel_tol"`
}

type ControlConfig struct {
	Strategy string  `yaml:"strategy"`
	Gain     float64 `yaml:"gain"`
}

type BreakdownConfig struct {
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
}

type SolveConfig struct {
	Iterations int     `yaml:"iterations"` // outer Picard iterations
	RelTol     float64 `yaml:"rel_tol"`    // flux-change convergence threshold
	LiBudget   int     `yaml:"li_budget"`  // nested optimizer iterations
}

type LimiterConfig struct {
	X []float64 `yaml:"x"`
	Z []float64 `yaml:"z"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "reference",
		Grid: GridConfig{
			XMin: 4, XMax: 14, ZMin: -8, ZMax: 8,
			Nx: 65, Nz: 65,
		},
		Coils: []CoilConfig{
			{Name: "PF_1", X: 6.0, Z: 9.5, Dx: 0.6, Dz: 0.6, Current: 12e6, Category: "PF"},
			{Name: "PF_2", X: 12.5, Z: 6.0, Dx: 0.6, Dz: 0.6, Current: 5e6, Category: "PF"},
			{Name: "PF_3", X: 13.5, Z: -1.0, Dx: 0.6, Dz: 0.6, Current: -6e6, Category: "PF"},
			{Name: "PF_4", X: 12.5, Z: -6.0, Dx: 0.6, Dz: 0.6, Current: 5e6, Category: "PF"},
			{Name: "PF_5", X: 6.0, Z: -9.5, Dx: 0.6, Dz: 0.6, Current: 12e6, Category: "PF"},
			{Name: "CS_1", X: 2.8, Z: 4.5, Dx: 0.4, Dz: 1.8, Current: 10e6, Category: "CS"},
			{Name: "CS_2", X: 2.8, Z: 0.0, Dx: 0.4, Dz: 1.8, Current: 10e6, Category: "CS"},
			{Name: "CS_3", X: 2.8, Z: -4.5, Dx: 0.4, Dz: 1.8, Current: 10e6, Category: "CS"},
		},
		Profile: ProfileConfig{
			Ip: DefaultIp, R0: DefaultR0, B0: DefaultB0,
			InnerSplit: 0.5, OuterSplit: 0.5,
			ShapeCoeffs: []float64{2.0, 1.5},
			LiRelTol:    DefaultLiRelTol,
		},
		Control: ControlConfig{Strategy: "virtual", Gain: control.DefaultGain},
		Breakdown: BreakdownConfig{
			X: DefaultR0, Z: 0, Radius: equilibrium.DefaultBreakdownRadius,
		},
		Solve: SolveConfig{
			Iterations: DefaultIterations,
			RelTol:     DefaultRelTol,
			LiBudget:   30,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BuildGrid constructs the discretization described by the config.
func (c *Config) BuildGrid() (*grid.Grid, error) {
	g := c.Grid
	return grid.New(g.XMin, g.XMax, g.ZMin, g.ZMax, g.Nx, g.Nz)
}

// BuildCoils constructs the coil set described by the config.
func (c *Config) BuildCoils() *coils.CoilSet {
	set := make([]*coils.Coil, len(c.Coils))
	for i, cc := range c.Coils {
		cat := coils.PF
		if cc.Category == "CS" {
			cat = coils.CS
		}
		set[i] = &coils.Coil{
			Name: cc.Name,
			X:    cc.X, Z: cc.Z,
			Dx: cc.Dx, Dz: cc.Dz,
			Current:  cc.Current,
			Category: cat,
		}
	}
	return coils.NewSet(set...)
}

// BuildProfile constructs the plasma profile. A non-zero li target
// selects the inductance-matching variant.
func (c *Config) BuildProfile() (profiles.Profile, error) {
	p := c.Profile
	shape := buildShape(p.ShapeCoeffs)
	split := profiles.Split{Inner: p.InnerSplit, Outer: p.OuterSplit}
	if p.LiTarget > 0 {
		tol := p.LiRelTol
		if tol <= 0 {
			tol = DefaultLiRelTol
		}
		return profiles.NewBetaLiIp(p.Ip, p.R0, p.B0, p.LiTarget, tol, split, shape)
	}
	return profiles.NewBetaIp(p.Ip, p.R0, p.B0, split, shape)
}

func buildShape(coeffs []float64) profiles.Shape {
	if len(coeffs) == 2 {
		return profiles.NewDoublePower(coeffs[0], coeffs[1])
	}
	return profiles.NewLaoPolynomial(coeffs...)
}

// BuildLimiter constructs the limiter, or nil when none is configured.
func (c *Config) BuildLimiter() (*limiter.Limiter, error) {
	if len(c.Limiter.X) == 0 {
		return nil, nil
	}
	return limiter.New(c.Limiter.X, c.Limiter.Z)
}

// BuildEquilibrium assembles the full state object from the config.
func (c *Config) BuildEquilibrium() (*equilibrium.Equilibrium, error) {
	g, err := c.BuildGrid()
	if err != nil {
		return nil, err
	}
	p, err := c.BuildProfile()
	if err != nil {
		return nil, err
	}
	strategy, err := control.ParseStrategy(c.Control.Strategy)
	if err != nil {
		return nil, err
	}
	lim, err := c.BuildLimiter()
	if err != nil {
		return nil, err
	}
	return equilibrium.New(g, c.BuildCoils(), p, equilibrium.Options{
		Limiter:   lim,
		Strategy:  strategy,
		Gain:      c.Control.Gain,
		Symmetric: c.Grid.Symmetric,
	})
}

// BuildBreakdown assembles the pre-plasma state from the config.
func (c *Config) BuildBreakdown() (*equilibrium.Breakdown, error) {
	g, err := c.BuildGrid()
	if err != nil {
		return nil, err
	}
	lim, err := c.BuildLimiter()
	if err != nil {
		return nil, err
	}
	return equilibrium.NewBreakdown(g, c.BuildCoils(), lim,
		c.Breakdown.X, c.Breakdown.Z, c.Breakdown.Radius)
}
