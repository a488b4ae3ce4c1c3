package config

import "github.com/geograham/bluemira/internal/control"

// Presets are ready-made machine configurations for the CLI.
var Presets = map[string]*Config{
	// A small symmetric double-null-ish case, cheap enough for quick
	// iteration.
	"compact": {
		Name: "compact",
		Grid: GridConfig{
			XMin: 2, XMax: 6, ZMin: -3, ZMax: 3,
			Nx: 65, Nz: 65, Symmetric: true,
		},
		Coils: []CoilConfig{
			{Name: "PF_1", X: 2.5, Z: 4.0, Dx: 0.3, Dz: 0.3, Current: 4e6, Category: "PF"},
			{Name: "PF_2", X: 5.5, Z: 2.5, Dx: 0.3, Dz: 0.3, Current: 2e6, Category: "PF"},
			{Name: "PF_3", X: 5.5, Z: -2.5, Dx: 0.3, Dz: 0.3, Current: 2e6, Category: "PF"},
			{Name: "PF_4", X: 2.5, Z: -4.0, Dx: 0.3, Dz: 0.3, Current: 4e6, Category: "PF"},
			{Name: "CS_1", X: 1.2, Z: 0.0, Dx: 0.3, Dz: 2.4, Current: 6e6, Category: "CS"},
		},
		Profile: ProfileConfig{
			Ip: 5e6, R0: 4.0, B0: 4.5,
			InnerSplit: 0.5, OuterSplit: 0.5,
			ShapeCoeffs: []float64{2.0, 1.5},
			LiRelTol:    DefaultLiRelTol,
		},
		Control:   ControlConfig{Strategy: "none"},
		Breakdown: BreakdownConfig{X: 4.0, Z: 0, Radius: 0.5},
		Solve:     SolveConfig{Iterations: 30, RelTol: DefaultRelTol, LiBudget: 20},
	},

	// The reference single-null machine with vertical stabilisation and
	// an inductance target.
	"single-null": {
		Name: "single-null",
		Grid: GridConfig{
			XMin: 4, XMax: 14, ZMin: -9, ZMax: 9,
			Nx: 65, Nz: 65,
		},
		Coils: []CoilConfig{
			{Name: "PF_1", X: 6.0, Z: 10.0, Dx: 0.6, Dz: 0.6, Current: 12e6, Category: "PF"},
			{Name: "PF_2", X: 13.0, Z: 6.5, Dx: 0.6, Dz: 0.6, Current: 5e6, Category: "PF"},
			{Name: "PF_3", X: 14.5, Z: -1.0, Dx: 0.6, Dz: 0.6, Current: -7e6, Category: "PF"},
			{Name: "PF_4", X: 13.0, Z: -7.0, Dx: 0.6, Dz: 0.6, Current: 8e6, Category: "PF"},
			{Name: "PF_5", X: 7.0, Z: -10.5, Dx: 0.6, Dz: 0.6, Current: 14e6, Category: "PF"},
			{Name: "CS_1", X: 2.8, Z: 5.0, Dx: 0.4, Dz: 2.0, Current: 10e6, Category: "CS"},
			{Name: "CS_2", X: 2.8, Z: 0.0, Dx: 0.4, Dz: 2.0, Current: 10e6, Category: "CS"},
			{Name: "CS_3", X: 2.8, Z: -5.0, Dx: 0.4, Dz: 2.0, Current: 10e6, Category: "CS"},
		},
		Profile: ProfileConfig{
			Ip: 19e6, R0: 9.0, B0: 5.3,
			InnerSplit: 0.5, OuterSplit: 0.5,
			ShapeCoeffs: []float64{2.0, 1.5},
			LiTarget:    0.8, LiRelTol: DefaultLiRelTol,
		},
		Control:   ControlConfig{Strategy: "virtual", Gain: control.DefaultGain},
		Breakdown: BreakdownConfig{X: 9.0, Z: 0, Radius: 1.0},
		Solve:     SolveConfig{Iterations: 50, RelTol: DefaultRelTol, LiBudget: 30},
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
