package control

import (
	"errors"
	"math"
	"testing"

	"github.com/geograham/bluemira/internal/grid"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(4, 10, -4, 4, 17, 17)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		want    Strategy
		wantErr bool
	}{
		{"none", None, false},
		{"", None, false},
		{"virtual", Virtual, false},
		{"feedback", None, true},
		{"bogus", None, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownStrategy) {
				t.Errorf("ParseStrategy(%q): expected ErrUnknownStrategy, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStrategy(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewSelectsController(t *testing.T) {
	g := testGrid(t)

	c, err := New(None, g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*Dummy); !ok {
		t.Errorf("strategy None built %T, want *Dummy", c)
	}

	c, err = New(Virtual, g, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*VirtualController); !ok {
		t.Errorf("strategy Virtual built %T, want *VirtualController", c)
	}

	if _, err := New(Strategy(99), g, 0); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("unvalidated strategy: expected ErrUnknownStrategy, got %v", err)
	}
}

func TestDummyNeverCorrects(t *testing.T) {
	g := testGrid(t)
	d := NewDummy(g)
	d.Stabilise(7, 2.5, 1e6)
	if d.Psi().MaxAbs() != 0 {
		t.Error("dummy controller correction should stay zero")
	}
}

func TestVirtualCentredPlasma(t *testing.T) {
	g := testGrid(t)
	v := NewVirtual(g, 2.2)
	v.Stabilise(7, g.ZMid(), 1e6)
	if v.Psi().MaxAbs() != 0 {
		t.Error("no correction expected for a centred plasma")
	}
}

func TestVirtualOpposesDrift(t *testing.T) {
	g := testGrid(t)
	v := NewVirtual(g, 2.2)

	v.Stabilise(7, 1.0, 1e6)
	up := v.Current()
	psiUp := v.Psi().Clone()

	v.Stabilise(7, -1.0, 1e6)
	down := v.Current()

	if up == 0 || down == 0 {
		t.Fatal("expected non-zero correction currents")
	}
	if math.Signbit(up) == math.Signbit(down) {
		t.Error("correction current should flip sign with drift direction")
	}

	// The correction field is antisymmetric in z.
	mid := (g.Nz - 1) / 2
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < mid; j++ {
			a := psiUp.At(i, j)
			b := psiUp.At(i, g.Nz-1-j)
			if math.Abs(a+b) > 1e-12*(1+math.Abs(a)) {
				t.Fatalf("correction not z-antisymmetric at (%d,%d): %g vs %g", i, j, a, b)
			}
		}
	}
}
