package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/geograham/bluemira/internal/config"
	"github.com/geograham/bluemira/internal/eqdsk"
	"github.com/geograham/bluemira/internal/equilibrium"
	"github.com/geograham/bluemira/internal/optim"
	"github.com/geograham/bluemira/internal/physics"
)

var (
	configFile string
	preset     string
	output     string
	iterations int
	relTol     float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "equilibria",
		Short: "free-boundary plasma equilibrium solver",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "run configuration (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use a preset configuration")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "run the outer Picard loop to a converged equilibrium",
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&output, "output", "", "write the converged state as an exchange record")
	solveCmd.Flags().IntVar(&iterations, "iterations", 0, "override the outer iteration budget")
	solveCmd.Flags().Float64Var(&relTol, "tol", 0, "override the flux-change convergence threshold")

	solveLiCmd := &cobra.Command{
		Use:   "solve-li",
		Short: "converge the equilibrium while matching the internal-inductance target",
		RunE:  runSolveLi,
	}
	solveLiCmd.Flags().StringVar(&output, "output", "", "write the converged state as an exchange record")
	solveLiCmd.Flags().IntVar(&iterations, "iterations", 0, "override the outer iteration budget")
	solveLiCmd.Flags().Float64Var(&relTol, "tol", 0, "override the flux-change convergence threshold")

	breakdownCmd := &cobra.Command{
		Use:   "breakdown",
		Short: "evaluate the coil-only breakdown flux",
		RunE:  runBreakdown,
	}
	breakdownCmd.Flags().StringVar(&output, "output", "", "write the breakdown state as an exchange record")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "describe the run configuration",
		RunE:  runInfo,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.AddCommand(solveCmd, solveLiCmd, breakdownCmd, infoCmd, initCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if preset != "" {
		cfg := config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
		return cfg, nil
	}
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.DefaultConfig(), nil
}

// picard iterates Solve until the relative flux change falls below tol,
// returning the residual history.
func picard(eq *equilibrium.Equilibrium, budget int, tol float64) ([]float64, bool, error) {
	residuals := make([]float64, 0, budget)
	prev := eq.Psi()
	for it := 0; it < budget; it++ {
		if err := eq.Solve(nil); err != nil {
			return residuals, false, fmt.Errorf("iteration %d: %w", it+1, err)
		}
		cur := eq.Psi()
		res := cur.Clone().Sub(prev).MaxAbs() / math.Max(cur.MaxAbs(), 1e-300)
		residuals = append(residuals, res)
		if res < tol {
			return residuals, true, nil
		}
		prev = cur
	}
	return residuals, false, nil
}

func solveSettings(cfg *config.Config) (int, float64) {
	budget, tol := cfg.Solve.Iterations, cfg.Solve.RelTol
	if iterations > 0 {
		budget = iterations
	}
	if relTol > 0 {
		tol = relTol
	}
	return budget, tol
}

func printResiduals(residuals []float64) {
	if len(residuals) < 2 {
		return
	}
	data := make([]float64, len(residuals))
	for i, r := range residuals {
		data[i] = math.Log10(math.Max(r, 1e-300))
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption("log10 relative flux change per iteration"))
	fmt.Println(graph)
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eq, err := cfg.BuildEquilibrium()
	if err != nil {
		return err
	}
	defer eq.Destroy()

	budget, tol := solveSettings(cfg)
	residuals, converged, err := picard(eq, budget, tol)
	printResiduals(residuals)
	if err != nil {
		return err
	}
	if converged {
		fmt.Printf("converged in %d iterations\n", len(residuals))
	} else if len(residuals) > 0 {
		fmt.Printf("not converged after %d iterations (last residual %.3e)\n",
			len(residuals), residuals[len(residuals)-1])
	}
	reportState(eq)

	if output != "" {
		return eqdsk.Write(output, eq.ToRecord(cfg.Name))
	}
	return nil
}

func runSolveLi(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Profile.LiTarget <= 0 {
		return fmt.Errorf("configuration %q has no li target", cfg.Name)
	}
	eq, err := cfg.BuildEquilibrium()
	if err != nil {
		return err
	}
	defer eq.Destroy()

	budget, tol := solveSettings(cfg)
	residuals, _, err := picard(eq, budget, tol)
	printResiduals(residuals)
	if err != nil {
		return err
	}

	res, err := eq.SolveLi(optim.Settings{MaxIter: cfg.Solve.LiBudget})
	if err != nil {
		return err
	}
	fmt.Printf("li = %.4f after %d optimizer iterations (target %.4f, converged %v)\n",
		res.Li, res.Iterations, cfg.Profile.LiTarget, res.Converged)
	fmt.Printf("relative mismatch: %.3e\n", physics.RelDiff(res.Li, cfg.Profile.LiTarget))
	reportState(eq)

	if output != "" {
		return eqdsk.Write(output, eq.ToRecord(cfg.Name))
	}
	return nil
}

func runBreakdown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := cfg.BuildBreakdown()
	if err != nil {
		return err
	}
	px, pz := b.BreakdownPoint()
	fmt.Printf("breakdown zone: centre (%.2f, %.2f) m, radius %.2f m\n", px, pz, b.Radius())
	fmt.Printf("breakdown flux: %.4f V.s/rad\n", b.BreakdownPsi())

	if output != "" {
		return eqdsk.Write(output, b.ToRecord(cfg.Name))
	}
	return nil
}

func reportState(eq *equilibrium.Equilibrium) {
	o, x, err := eq.OXPoints()
	if err != nil {
		fmt.Println("critical points:", err)
		return
	}
	fmt.Printf("magnetic axis: (%.3f, %.3f) m, psi = %.4f V.s/rad\n", o[0].X, o[0].Z, o[0].Psi)
	for i, xp := range x {
		fmt.Printf("X-point %d: (%.3f, %.3f) m, psi = %.4f V.s/rad\n", i+1, xp.X, xp.Z, xp.Psi)
	}
	fmt.Printf("plasma current: %.3f MA\n", eq.Ip()/1e6)
	if dn, err := eq.IsDoubleNull(1e-3); err == nil && dn {
		fmt.Println("configuration is double-null")
	}
	if li, err := eq.Li(); err == nil {
		fmt.Printf("internal inductance li(3): %.4f\n", li)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("configuration: %s\n", cfg.Name)
	fmt.Printf("grid: [%.1f, %.1f] x [%.1f, %.1f] m, %dx%d",
		cfg.Grid.XMin, cfg.Grid.XMax, cfg.Grid.ZMin, cfg.Grid.ZMax, cfg.Grid.Nx, cfg.Grid.Nz)
	if cfg.Grid.Symmetric {
		fmt.Print(" (symmetric solve)")
	}
	fmt.Println()
	fmt.Printf("profile: Ip = %.1f MA, R0 = %.1f m, B0 = %.1f T, split %.2f/%.2f\n",
		cfg.Profile.Ip/1e6, cfg.Profile.R0, cfg.Profile.B0,
		cfg.Profile.InnerSplit, cfg.Profile.OuterSplit)
	if cfg.Profile.LiTarget > 0 {
		fmt.Printf("li target: %.3f (rel tol %.3f)\n", cfg.Profile.LiTarget, cfg.Profile.LiRelTol)
	}
	fmt.Printf("stabilisation: %s\n", cfg.Control.Strategy)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COIL\tX [m]\tZ [m]\tDX [m]\tDZ [m]\tI [MA]\tCATEGORY")
	for _, c := range cfg.Coils {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			c.Name, c.X, c.Z, c.Dx, c.Dz, c.Current/1e6, c.Category)
	}
	return w.Flush()
}
