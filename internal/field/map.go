// Package field provides the 2-D scalar map type shared by all
// equilibrium computations.
//
// A [Map] is a scalar field sampled on an nx-by-nz rectangular grid,
// stored row-major with x as the slow index: element (i, j) lives at
// Data[i*Nz+j]. All arithmetic is whole-array and in place.
package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type Map struct {
	Nx, Nz int
	Data   []float64
}

func NewMap(nx, nz int) *Map {
	if nx < 1 || nz < 1 {
		panic(fmt.Sprintf("field: invalid map shape %dx%d", nx, nz))
	}
	return &Map{Nx: nx, Nz: nz, Data: make([]float64, nx*nz)}
}

func (m *Map) At(i, j int) float64     { return m.Data[i*m.Nz+j] }
func (m *Map) Set(i, j int, v float64) { m.Data[i*m.Nz+j] = v }

func (m *Map) Clone() *Map {
	c := NewMap(m.Nx, m.Nz)
	copy(c.Data, m.Data)
	return c
}

func (m *Map) Fill(v float64) *Map {
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

func (m *Map) Zero() *Map { return m.Fill(0) }

// Add accumulates o into m and returns m.
func (m *Map) Add(o *Map) *Map {
	m.shapeCheck(o)
	floats.Add(m.Data, o.Data)
	return m
}

func (m *Map) Sub(o *Map) *Map {
	m.shapeCheck(o)
	floats.Sub(m.Data, o.Data)
	return m
}

func (m *Map) AddScaled(s float64, o *Map) *Map {
	m.shapeCheck(o)
	floats.AddScaled(m.Data, s, o.Data)
	return m
}

func (m *Map) Scale(s float64) *Map {
	floats.Scale(s, m.Data)
	return m
}

func (m *Map) Min() float64 { return floats.Min(m.Data) }
func (m *Map) Max() float64 { return floats.Max(m.Data) }

// MaxAbs returns the largest absolute value in the map.
func (m *Map) MaxAbs() float64 {
	v := 0.0
	for _, d := range m.Data {
		if a := math.Abs(d); a > v {
			v = a
		}
	}
	return v
}

func (m *Map) EqualApprox(o *Map, tol float64) bool {
	if m.Nx != o.Nx || m.Nz != o.Nz {
		return false
	}
	return floats.EqualApprox(m.Data, o.Data, tol)
}

func (m *Map) IsFinite() bool {
	for _, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (m *Map) shapeCheck(o *Map) {
	if m.Nx != o.Nx || m.Nz != o.Nz {
		panic(fmt.Sprintf("field: shape mismatch %dx%d vs %dx%d", m.Nx, m.Nz, o.Nx, o.Nz))
	}
}
