package eqdsk

import (
	"errors"
	"path/filepath"
	"testing"
)

func sampleRecord() *Record {
	return &Record{
		Name: "test",
		Nx:   3, Nz: 3,
		XDim: 8, ZDim: 8, XGrid1: 4, ZMid: 0,
		X: []float64{4, 8, 12}, Z: []float64{-4, 0, 4},
		XCentre: 8, BCentre: 5,
		XMag: 8.1, ZMag: 0.02, PsiMag: 12.5, PsiBdry: 1.2, CPlasma: 15e6,
		Psi:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		NCoil: 2,
		Xc:    []float64{5, 11}, Zc: []float64{6, -6},
		Dxc: []float64{0.5, 0.5}, Dzc: []float64{0.5, 0.5},
		Ic:   []float64{1e6, -2e6},
		NLim: 2,
		XLim: []float64{5, 11}, ZLim: []float64{-3, -3},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eq.json")
	orig := sampleRecord()
	if err := Write(path, orig); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Nx != orig.Nx || got.Nz != orig.Nz {
		t.Errorf("grid dims %dx%d, want %dx%d", got.Nx, got.Nz, orig.Nx, orig.Nz)
	}
	for k := range orig.X {
		if got.X[k] != orig.X[k] {
			t.Errorf("x[%d] = %g, want %g", k, got.X[k], orig.X[k])
		}
	}
	for k := 0; k < orig.NCoil; k++ {
		if got.Xc[k] != orig.Xc[k] || got.Zc[k] != orig.Zc[k] ||
			got.Dxc[k] != orig.Dxc[k] || got.Dzc[k] != orig.Dzc[k] ||
			got.Ic[k] != orig.Ic[k] {
			t.Errorf("coil %d does not reproduce exactly", k)
		}
	}
	for k := range orig.Psi {
		if got.Psi[k] != orig.Psi[k] {
			t.Errorf("psi[%d] = %g, want %g", k, got.Psi[k], orig.Psi[k])
		}
	}
	if got.CPlasma != orig.CPlasma || got.PsiMag != orig.PsiMag {
		t.Error("scalar fields do not reproduce exactly")
	}
}

func TestValidateRejectsMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"bad grid", func(r *Record) { r.Nx = 0 }},
		{"short x", func(r *Record) { r.X = r.X[:2] }},
		{"bad psi", func(r *Record) { r.Psi = r.Psi[:5] }},
		{"coil mismatch", func(r *Record) { r.Ic = r.Ic[:1] }},
		{"limiter mismatch", func(r *Record) { r.NLim = 3 }},
	}
	for _, tt := range tests {
		r := sampleRecord()
		tt.mutate(r)
		if err := r.Validate(); !errors.Is(err, ErrRecord) {
			t.Errorf("%s: expected ErrRecord, got %v", tt.name, err)
		}
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	r := sampleRecord()
	r.Xc = nil
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := Write(path, r); !errors.Is(err, ErrRecord) {
		t.Errorf("expected ErrRecord, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
