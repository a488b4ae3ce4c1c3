// Package eqdsk holds the flat exchange record used to move equilibria
// between runs and external tools, with JSON read/write. Grid and coil
// fields round-trip exactly; flux-derived fields are only reproducible
// up to a re-solve.
package eqdsk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrRecord = errors.New("eqdsk: malformed record")

// Record is the exchange schema. Psi is row-major over (nx, nz), x
// varying slowest. Profile arrays are sampled over normalized flux
// (PsiNorm gives the sample points).
type Record struct {
	Name string `json:"name,omitempty"`

	// Grid.
	Nx     int       `json:"nx"`
	Nz     int       `json:"nz"`
	XDim   float64   `json:"xdim"`
	ZDim   float64   `json:"zdim"`
	XGrid1 float64   `json:"xgrid1"`
	ZMid   float64   `json:"zmid"`
	X      []float64 `json:"x"`
	Z      []float64 `json:"z"`

	// Machine and axis scalars.
	XCentre float64 `json:"xcentre"`
	BCentre float64 `json:"bcentre"`
	XMag    float64 `json:"xmag"`
	ZMag    float64 `json:"zmag"`
	PsiMag  float64 `json:"psimag"`
	PsiBdry float64 `json:"psibdry"`
	CPlasma float64 `json:"cplasma"`

	// Flux map and profiles.
	Psi     []float64 `json:"psi"`
	PsiNorm []float64 `json:"psinorm,omitempty"`
	FPol    []float64 `json:"fpol,omitempty"`
	FFPrime []float64 `json:"ffprime,omitempty"`
	PPrime  []float64 `json:"pprime,omitempty"`
	Press   []float64 `json:"pressure,omitempty"`

	// Plasma boundary trace.
	NBdry int       `json:"nbdry,omitempty"`
	XBdry []float64 `json:"xbdry,omitempty"`
	ZBdry []float64 `json:"zbdry,omitempty"`

	// Coils.
	NCoil    int       `json:"ncoil"`
	CoilName []string  `json:"coil_names,omitempty"`
	Xc       []float64 `json:"xc"`
	Zc       []float64 `json:"zc"`
	Dxc      []float64 `json:"dxc"`
	Dzc      []float64 `json:"dzc"`
	Ic       []float64 `json:"ic"`

	// Optional limiter trace.
	NLim int       `json:"nlim,omitempty"`
	XLim []float64 `json:"xlim,omitempty"`
	ZLim []float64 `json:"zlim,omitempty"`
}

// Validate checks the internal length consistency of a record.
func (r *Record) Validate() error {
	if r.Nx <= 0 || r.Nz <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrRecord, r.Nx, r.Nz)
	}
	if len(r.X) != r.Nx || len(r.Z) != r.Nz {
		return fmt.Errorf("%w: coordinate arrays %d/%d for grid %dx%d",
			ErrRecord, len(r.X), len(r.Z), r.Nx, r.Nz)
	}
	if len(r.Psi) != 0 && len(r.Psi) != r.Nx*r.Nz {
		return fmt.Errorf("%w: psi has %d values for grid %dx%d",
			ErrRecord, len(r.Psi), r.Nx, r.Nz)
	}
	for name, arr := range map[string][]float64{
		"xc": r.Xc, "zc": r.Zc, "dxc": r.Dxc, "dzc": r.Dzc, "ic": r.Ic,
	} {
		if len(arr) != r.NCoil {
			return fmt.Errorf("%w: %s has %d entries for %d coils",
				ErrRecord, name, len(arr), r.NCoil)
		}
	}
	if len(r.CoilName) != 0 && len(r.CoilName) != r.NCoil {
		return fmt.Errorf("%w: %d names for %d coils", ErrRecord, len(r.CoilName), r.NCoil)
	}
	if len(r.XLim) != r.NLim || len(r.ZLim) != r.NLim {
		return fmt.Errorf("%w: limiter arrays %d/%d for nlim %d",
			ErrRecord, len(r.XLim), len(r.ZLim), r.NLim)
	}
	if len(r.XBdry) != r.NBdry || len(r.ZBdry) != r.NBdry {
		return fmt.Errorf("%w: boundary arrays %d/%d for nbdry %d",
			ErrRecord, len(r.XBdry), len(r.ZBdry), r.NBdry)
	}
	return nil
}

// Write saves the record as indented JSON.
func Write(path string, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Read loads and validates a record.
func Read(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r Record
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecord, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
