package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with bias-corrected moment estimates.
// Moment buffers are allocated lazily per parameter on first step.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    map[*Param]*mat.Dense
	v    map[*Param]*mat.Dense
}

// NewAdam returns an Adam optimizer with the usual default moments.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
		m:     make(map[*Param]*mat.Dense),
		v:     make(map[*Param]*mat.Dense),
	}
}

// Step applies one update to every parameter from its accumulated gradient,
// then leaves the gradients untouched: callers zero them between steps.
func (a *Adam) Step(params []*Param) {
	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for _, p := range params {
		rows, cols := p.W.Dims()
		m, ok := a.m[p]
		if !ok {
			m = mat.NewDense(rows, cols, nil)
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = mat.NewDense(rows, cols, nil)
			a.v[p] = v
		}

		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				g := p.Grad.At(i, j)
				mij := a.Beta1*m.At(i, j) + (1-a.Beta1)*g
				vij := a.Beta2*v.At(i, j) + (1-a.Beta2)*g*g
				m.Set(i, j, mij)
				v.Set(i, j, vij)

				update := a.LR * (mij / bc1) / (math.Sqrt(vij/bc2) + a.Eps)
				p.W.Set(i, j, p.W.At(i, j)-update)
			}
		}
	}
}
