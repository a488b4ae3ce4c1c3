package optim

import (
	"errors"
	"math"
	"testing"
)

func quadratic(center []float64) func(x []float64) (float64, error) {
	return func(x []float64) (float64, error) {
		s := 0.0
		for d := range x {
			s += (x[d] - center[d]) * (x[d] - center[d])
		}
		return s, nil
	}
}

func TestMinimizeQuadratic(t *testing.T) {
	res, err := NelderMead(Problem{
		Objective: quadratic([]float64{1.3, -0.7}),
		Bounds:    [][2]float64{{-5, 5}, {-5, 5}},
	}, []float64{0, 0}, Settings{MaxIter: 500, Tol: 1e-14})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Error("expected convergence on a smooth quadratic")
	}
	if math.Abs(res.X[0]-1.3) > 1e-4 || math.Abs(res.X[1]+0.7) > 1e-4 {
		t.Errorf("minimum at %v, want (1.3, -0.7)", res.X)
	}
}

func TestBoundsRespected(t *testing.T) {
	// Unconstrained minimum at 3, outside the box [0, 1].
	res, err := NelderMead(Problem{
		Objective: quadratic([]float64{3}),
		Bounds:    [][2]float64{{0, 1}},
	}, []float64{0.5}, Settings{MaxIter: 200})
	if err != nil {
		t.Fatal(err)
	}
	if res.X[0] < 0 || res.X[0] > 1 {
		t.Errorf("solution %g escaped bounds [0, 1]", res.X[0])
	}
	if math.Abs(res.X[0]-1) > 1e-3 {
		t.Errorf("constrained minimum at %g, want 1", res.X[0])
	}
}

func TestStopCallbackIsNormalTermination(t *testing.T) {
	calls := 0
	res, err := NelderMead(Problem{
		Objective: func(x []float64) (float64, error) {
			calls++
			return x[0] * x[0], nil
		},
		Stop: func(x []float64, f float64) bool { return f < 0.5 },
	}, []float64{2}, Settings{MaxIter: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Stopped || !res.Converged {
		t.Errorf("stop callback should mark result converged: %+v", res)
	}
	if calls > 50 {
		t.Errorf("early exit should cut evaluations short, used %d", calls)
	}
}

func TestBudgetExhaustion(t *testing.T) {
	res, err := NelderMead(Problem{
		// A sloped plane never converges to a simplex collapse inside
		// a wide box within 3 iterations.
		Objective: func(x []float64) (float64, error) { return x[0], nil },
		Bounds:    [][2]float64{{-1e9, 1e9}},
	}, []float64{0}, Settings{MaxIter: 3, Tol: 1e-300})
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged {
		t.Error("budget exhaustion must not report convergence")
	}
	if res.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", res.Iterations)
	}
}

func TestObjectiveErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := NelderMead(Problem{
		Objective: func(x []float64) (float64, error) { return 0, boom },
	}, []float64{1}, Settings{})
	if !errors.Is(err, boom) {
		t.Errorf("expected objective error to propagate, got %v", err)
	}
}

func TestMalformedProblem(t *testing.T) {
	if _, err := NelderMead(Problem{}, nil, Settings{}); !errors.Is(err, ErrBadProblem) {
		t.Errorf("expected ErrBadProblem, got %v", err)
	}
	if _, err := NelderMead(Problem{
		Objective: quadratic([]float64{0}),
		Bounds:    [][2]float64{{0, 1}, {0, 1}},
	}, []float64{0}, Settings{}); !errors.Is(err, ErrBadProblem) {
		t.Errorf("expected ErrBadProblem for mismatched bounds, got %v", err)
	}
}
