// Package optim provides the bounded derivative-free minimizer that
// drives profile-shape matching. Early exit is ordinary control flow:
// a Stop callback is consulted after every objective evaluation and a
// Result reports convergence explicitly.
package optim

import (
	"errors"
	"fmt"
	"math"
)

var ErrBadProblem = errors.New("optim: malformed problem")

// Problem is a bounded minimization problem. Objective is evaluated at
// points clamped inside Bounds. Stop, if set, is called after every
// evaluation; returning true terminates the search with the best point
// so far and marks the result converged.
type Problem struct {
	Objective func(x []float64) (float64, error)
	Bounds    [][2]float64
	Stop      func(x []float64, f float64) bool
}

// Settings bound the search effort.
type Settings struct {
	MaxIter int     // iteration budget
	Tol     float64 // simplex spread below which the search converged
}

// Result is the explicit outcome of a search. Converged reports
// whether the search ended by tolerance or Stop rather than by
// exhausting its budget.
type Result struct {
	X          []float64
	Value      float64
	Iterations int
	Converged  bool
	Stopped    bool // terminated by the Stop callback
}

// Standard Nelder-Mead coefficients.
const (
	reflect  = 1.0
	expand   = 2.0
	contract = 0.5
	shrink   = 0.5
)

// NelderMead minimizes p.Objective starting from x0 using a bounded
// Nelder-Mead simplex.
func NelderMead(p Problem, x0 []float64, s Settings) (Result, error) {
	n := len(x0)
	if n == 0 || p.Objective == nil {
		return Result{}, fmt.Errorf("%w: empty start point or nil objective", ErrBadProblem)
	}
	if p.Bounds != nil && len(p.Bounds) != n {
		return Result{}, fmt.Errorf("%w: %d bounds for %d variables", ErrBadProblem, len(p.Bounds), n)
	}
	if s.MaxIter <= 0 {
		s.MaxIter = 100
	}
	if s.Tol <= 0 {
		s.Tol = 1e-8
	}

	stopped := false
	eval := func(x []float64) (float64, error) {
		clamp(x, p.Bounds)
		f, err := p.Objective(x)
		if err != nil {
			return 0, err
		}
		if !stopped && p.Stop != nil && p.Stop(x, f) {
			stopped = true
		}
		return f, nil
	}

	// Initial simplex: x0 plus a perturbation along each axis.
	simplex := make([][]float64, n+1)
	values := make([]float64, n+1)
	for k := range simplex {
		simplex[k] = append([]float64(nil), x0...)
		if k > 0 {
			step := 0.1 * math.Max(1, math.Abs(x0[k-1]))
			simplex[k][k-1] += step
		}
		f, err := eval(simplex[k])
		if err != nil {
			return Result{}, err
		}
		values[k] = f
		if stopped {
			return finish(simplex, values, 0, true), nil
		}
	}

	for iter := 1; iter <= s.MaxIter; iter++ {
		order(simplex, values)
		if spread(values) < s.Tol {
			return finish(simplex, values, iter, false), nil
		}

		// Centroid of all but the worst vertex.
		centroid := make([]float64, n)
		for k := 0; k < n; k++ {
			for d := 0; d < n; d++ {
				centroid[d] += simplex[k][d] / float64(n)
			}
		}
		worst := simplex[n]

		xr := combine(centroid, worst, 1+reflect, -reflect)
		fr, err := eval(xr)
		if err != nil {
			return Result{}, err
		}
		if stopped {
			return finishWith(simplex, values, xr, fr, iter), nil
		}

		switch {
		case fr < values[0]:
			xe := combine(centroid, worst, 1+expand, -expand)
			fe, err := eval(xe)
			if err != nil {
				return Result{}, err
			}
			if stopped {
				return finishWith(simplex, values, xe, fe, iter), nil
			}
			if fe < fr {
				simplex[n], values[n] = xe, fe
			} else {
				simplex[n], values[n] = xr, fr
			}
		case fr < values[n-1]:
			simplex[n], values[n] = xr, fr
		default:
			xc := combine(centroid, worst, 1-contract, contract)
			fc, err := eval(xc)
			if err != nil {
				return Result{}, err
			}
			if stopped {
				return finishWith(simplex, values, xc, fc, iter), nil
			}
			if fc < values[n] {
				simplex[n], values[n] = xc, fc
			} else {
				// Shrink toward the best vertex.
				for k := 1; k <= n; k++ {
					for d := 0; d < n; d++ {
						simplex[k][d] = simplex[0][d] + shrink*(simplex[k][d]-simplex[0][d])
					}
					f, err := eval(simplex[k])
					if err != nil {
						return Result{}, err
					}
					values[k] = f
					if stopped {
						return finish(simplex, values, iter, true), nil
					}
				}
			}
		}
	}

	r := finish(simplex, values, s.MaxIter, false)
	r.Converged = false
	return r, nil
}

func clamp(x []float64, bounds [][2]float64) {
	if bounds == nil {
		return
	}
	for d := range x {
		if x[d] < bounds[d][0] {
			x[d] = bounds[d][0]
		}
		if x[d] > bounds[d][1] {
			x[d] = bounds[d][1]
		}
	}
}

func combine(a, b []float64, wa, wb float64) []float64 {
	out := make([]float64, len(a))
	for d := range a {
		out[d] = wa*a[d] + wb*b[d]
	}
	return out
}

// order sorts the simplex by ascending objective value.
func order(simplex [][]float64, values []float64) {
	for i := 1; i < len(values); i++ {
		for k := i; k > 0 && values[k] < values[k-1]; k-- {
			values[k], values[k-1] = values[k-1], values[k]
			simplex[k], simplex[k-1] = simplex[k-1], simplex[k]
		}
	}
}

func spread(values []float64) float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

func finish(simplex [][]float64, values []float64, iter int, stopped bool) Result {
	order(simplex, values)
	return Result{
		X:          simplex[0],
		Value:      values[0],
		Iterations: iter,
		Converged:  true,
		Stopped:    stopped,
	}
}

// finishWith folds one out-of-simplex trial point into the result when
// the Stop callback fired on it.
func finishWith(simplex [][]float64, values []float64, x []float64, f float64, iter int) Result {
	order(simplex, values)
	r := Result{X: simplex[0], Value: values[0], Iterations: iter, Converged: true, Stopped: true}
	if f < r.Value {
		r.X, r.Value = x, f
	}
	return r
}
