// Package nn provides the small set of neural building blocks the topic
// segmentation model needs: learnable parameters, linear and 1D convolution
// layers with explicit backward passes, inverted dropout, ReLU, row softmax,
// summed cross-entropy, and an Adam optimizer.
//
// All math is dense float64 on gonum matrices. Layers are stateless between
// calls: forward inputs needed by a backward pass are cached by the caller.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a learnable weight matrix with its accumulated gradient.
type Param struct {
	Name string
	W    *mat.Dense
	Grad *mat.Dense
}

// NewParam returns a parameter initialized uniformly in [-bound, bound].
func NewParam(name string, rows, cols int, bound float64, rng *rand.Rand) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, data),
		Grad: mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() { p.Grad.Zero() }

// Clone returns a deep copy with a fresh zero gradient. The copy shares no
// backing storage with the original.
func (p *Param) Clone() *Param {
	rows, cols := p.W.Dims()
	return &Param{
		Name: p.Name,
		W:    mat.DenseCopyOf(p.W),
		Grad: mat.NewDense(rows, cols, nil),
	}
}

// Linear is a fully connected layer y = x Wᵀ + b over row-major batches.
type Linear struct {
	In, Out int
	Weight  *Param // Out × In
	Bias    *Param // 1 × Out
}

// NewLinear returns a linear layer with uniform fan-in initialization.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	return &Linear{
		In:     in,
		Out:    out,
		Weight: NewParam(name+".weight", out, in, bound, rng),
		Bias:   NewParam(name+".bias", 1, out, bound, rng),
	}
}

// Forward maps x (S × In) to (S × Out).
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	s, _ := x.Dims()
	y := mat.NewDense(s, l.Out, nil)
	y.Mul(x, l.Weight.W.T())
	for i := 0; i < s; i++ {
		for j := 0; j < l.Out; j++ {
			y.Set(i, j, y.At(i, j)+l.Bias.W.At(0, j))
		}
	}
	return y
}

// Backward accumulates parameter gradients given the cached forward input x
// and the upstream gradient dy, and returns the gradient with respect to x.
func (l *Linear) Backward(x, dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(dy.T(), x)
	l.Weight.Grad.Add(l.Weight.Grad, &dw)

	s, _ := dy.Dims()
	for j := 0; j < l.Out; j++ {
		sum := l.Bias.Grad.At(0, j)
		for i := 0; i < s; i++ {
			sum += dy.At(i, j)
		}
		l.Bias.Grad.Set(0, j, sum)
	}

	dx := mat.NewDense(s, l.In, nil)
	dx.Mul(dy, l.Weight.W)
	return dx
}

// Params returns the layer's learnable parameters.
func (l *Linear) Params() []*Param { return []*Param{l.Weight, l.Bias} }

// Conv1d convolves across the position axis of a (positions × channels)
// input via im2col, producing (OutChannels × positions-Kernel+1).
type Conv1d struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Weight      *Param // OutChannels × Kernel*InChannels
	Bias        *Param // 1 × OutChannels
}

// NewConv1d returns a 1D convolution with uniform fan-in initialization.
func NewConv1d(name string, in, out, kernel int, rng *rand.Rand) *Conv1d {
	bound := 1 / math.Sqrt(float64(kernel*in))
	return &Conv1d{
		InChannels:  in,
		OutChannels: out,
		Kernel:      kernel,
		Weight:      NewParam(name+".weight", out, kernel*in, bound, rng),
		Bias:        NewParam(name+".bias", 1, out, bound, rng),
	}
}

// Im2col unrolls x (L × InChannels) into sliding-window patches of shape
// (Kernel*InChannels × L-Kernel+1). Requires L >= Kernel.
func (c *Conv1d) Im2col(x *mat.Dense) *mat.Dense {
	l, in := x.Dims()
	t := l - c.Kernel + 1
	patches := mat.NewDense(c.Kernel*in, t, nil)
	for pos := 0; pos < t; pos++ {
		for k := 0; k < c.Kernel; k++ {
			for d := 0; d < in; d++ {
				patches.Set(k*in+d, pos, x.At(pos+k, d))
			}
		}
	}
	return patches
}

// Forward maps im2col patches to (OutChannels × positions).
func (c *Conv1d) Forward(patches *mat.Dense) *mat.Dense {
	_, t := patches.Dims()
	y := mat.NewDense(c.OutChannels, t, nil)
	y.Mul(c.Weight.W, patches)
	for h := 0; h < c.OutChannels; h++ {
		for pos := 0; pos < t; pos++ {
			y.Set(h, pos, y.At(h, pos)+c.Bias.W.At(0, h))
		}
	}
	return y
}

// Backward accumulates parameter gradients given the cached patches and the
// upstream gradient dy (OutChannels × positions).
func (c *Conv1d) Backward(patches, dy *mat.Dense) {
	var dw mat.Dense
	dw.Mul(dy, patches.T())
	c.Weight.Grad.Add(c.Weight.Grad, &dw)

	_, t := dy.Dims()
	for h := 0; h < c.OutChannels; h++ {
		sum := c.Bias.Grad.At(0, h)
		for pos := 0; pos < t; pos++ {
			sum += dy.At(h, pos)
		}
		c.Bias.Grad.Set(0, h, sum)
	}
}

// Params returns the layer's learnable parameters.
func (c *Conv1d) Params() []*Param { return []*Param{c.Weight, c.Bias} }

// DropoutMask returns an inverted-dropout mask: each entry is 0 with
// probability p and 1/(1-p) otherwise, so expected activation scale is
// preserved and no rescaling is needed at eval time.
func DropoutMask(rows, cols int, p float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	keep := 1 / (1 - p)
	for i := range data {
		if rng.Float64() >= p {
			data[i] = keep
		}
	}
	return mat.NewDense(rows, cols, data)
}

// ReLU returns max(0, x) elementwise.
func ReLU(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
			}
		}
	}
	return y
}

// ReLUBackward masks the upstream gradient where the cached pre-activation
// was non-positive.
func ReLUBackward(pre, dy *mat.Dense) *mat.Dense {
	rows, cols := dy.Dims()
	dx := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if pre.At(i, j) > 0 {
				dx.Set(i, j, dy.At(i, j))
			}
		}
	}
	return dx
}

// SoftmaxRows applies a numerically stable softmax to each row.
func SoftmaxRows(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	probs := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		maxv := logits.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > maxv {
				maxv = v
			}
		}
		total := 0.0
		for j := 0; j < cols; j++ {
			e := math.Exp(logits.At(i, j) - maxv)
			probs.Set(i, j, e)
			total += e
		}
		for j := 0; j < cols; j++ {
			probs.Set(i, j, probs.At(i, j)/total)
		}
	}
	return probs
}

// CrossEntropySum returns the summed (not averaged) softmax cross-entropy of
// the first include rows of logits against integer class labels, along with
// the gradient with respect to every logit. Rows at index include and beyond
// contribute neither loss nor gradient.
func CrossEntropySum(logits *mat.Dense, labels []int, include int) (float64, *mat.Dense) {
	rows, cols := logits.Dims()
	probs := SoftmaxRows(logits)
	grad := mat.NewDense(rows, cols, nil)

	loss := 0.0
	for i := 0; i < include; i++ {
		loss -= math.Log(probs.At(i, labels[i]))
		for j := 0; j < cols; j++ {
			g := probs.At(i, j)
			if j == labels[i] {
				g -= 1
			}
			grad.Set(i, j, g)
		}
	}
	return loss, grad
}
