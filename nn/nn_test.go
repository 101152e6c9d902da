package nn

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const gradTol = 1e-6

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNewParam_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := NewParam("p", 10, 10, 0.5, rng)
	rows, cols := p.W.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := p.W.At(i, j); v < -0.5 || v > 0.5 {
				t.Fatalf("weight (%d,%d) = %v outside [-0.5, 0.5]", i, j, v)
			}
			if g := p.Grad.At(i, j); g != 0 {
				t.Fatalf("fresh gradient (%d,%d) = %v, want 0", i, j, g)
			}
		}
	}
}

func TestParamClone_Independent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := NewParam("p", 2, 2, 1.0, rng)
	c := p.Clone()

	c.W.Set(0, 0, 99)
	if p.W.At(0, 0) == 99 {
		t.Error("clone shares weight storage with original")
	}
	if c.Name != p.Name {
		t.Errorf("clone name = %q, want %q", c.Name, p.Name)
	}
}

func TestLinearForward(t *testing.T) {
	l := &Linear{
		In:  2,
		Out: 2,
		Weight: &Param{
			W:    mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
			Grad: mat.NewDense(2, 2, nil),
		},
		Bias: &Param{
			W:    mat.NewDense(1, 2, []float64{0.5, -0.5}),
			Grad: mat.NewDense(1, 2, nil),
		},
	}

	x := mat.NewDense(1, 2, []float64{1, 1})
	y := l.Forward(x)

	// y = x Wᵀ + b = [1+2, 3+4] + [0.5, -0.5]
	if got, want := y.At(0, 0), 3.5; !approxEqual(got, want, gradTol) {
		t.Errorf("y[0][0] = %v, want %v", got, want)
	}
	if got, want := y.At(0, 1), 6.5; !approxEqual(got, want, gradTol) {
		t.Errorf("y[0][1] = %v, want %v", got, want)
	}
}

// lossOf sums the squared entries of a matrix, a simple scalar objective for
// finite-difference checks. Its gradient with respect to y is 2y.
func lossOf(y *mat.Dense) float64 {
	rows, cols := y.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			total += y.At(i, j) * y.At(i, j)
		}
	}
	return total
}

func upstream(y *mat.Dense) *mat.Dense {
	rows, cols := y.Dims()
	dy := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dy.Set(i, j, 2*y.At(i, j))
		}
	}
	return dy
}

// checkGrad compares an analytic gradient entry against a central finite
// difference of the loss under perturbation of w.
func checkGrad(t *testing.T, name string, w, grad *mat.Dense, loss func() float64) {
	t.Helper()
	const eps = 1e-5
	rows, cols := w.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			orig := w.At(i, j)
			w.Set(i, j, orig+eps)
			up := loss()
			w.Set(i, j, orig-eps)
			down := loss()
			w.Set(i, j, orig)

			numeric := (up - down) / (2 * eps)
			analytic := grad.At(i, j)
			if !approxEqual(numeric, analytic, 1e-4) {
				t.Errorf("%s grad (%d,%d): analytic %v, numeric %v", name, i, j, analytic, numeric)
			}
		}
	}
}

func TestLinearBackward_GradCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := NewLinear("l", 3, 2, rng)
	x := mat.NewDense(4, 3, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}

	y := l.Forward(x)
	dx := l.Backward(x, upstream(y))

	loss := func() float64 { return lossOf(l.Forward(x)) }
	checkGrad(t, "weight", l.Weight.W, l.Weight.Grad, loss)
	checkGrad(t, "bias", l.Bias.W, l.Bias.Grad, loss)
	checkGrad(t, "input", x, dx, loss)
}

func TestLinearBackward_Accumulates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewLinear("l", 2, 2, rng)
	x := mat.NewDense(1, 2, []float64{1, -1})

	y := l.Forward(x)
	l.Backward(x, upstream(y))
	first := mat.DenseCopyOf(l.Weight.Grad)
	l.Backward(x, upstream(y))

	rows, cols := first.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if got, want := l.Weight.Grad.At(i, j), 2*first.At(i, j); !approxEqual(got, want, gradTol) {
				t.Fatalf("grad (%d,%d) = %v, want accumulated %v", i, j, got, want)
			}
		}
	}
}

func TestConv1dIm2col(t *testing.T) {
	c := &Conv1d{InChannels: 2, Kernel: 2}
	x := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})

	patches := c.Im2col(x)
	rows, cols := patches.Dims()
	if rows != 4 || cols != 2 {
		t.Fatalf("patches dims = %dx%d, want 4x2", rows, cols)
	}
	// Column 0 is the window at positions {0,1}, stacked kernel-major.
	want0 := []float64{1, 2, 3, 4}
	for i, w := range want0 {
		if got := patches.At(i, 0); got != w {
			t.Errorf("patches[%d][0] = %v, want %v", i, got, w)
		}
	}
	want1 := []float64{3, 4, 5, 6}
	for i, w := range want1 {
		if got := patches.At(i, 1); got != w {
			t.Errorf("patches[%d][1] = %v, want %v", i, got, w)
		}
	}
}

func TestConv1dBackward_GradCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewConv1d("c", 3, 2, 2, rng)
	x := mat.NewDense(5, 3, nil)
	for i := 0; i < 5; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}

	patches := c.Im2col(x)
	y := c.Forward(patches)
	c.Backward(patches, upstream(y))

	loss := func() float64 { return lossOf(c.Forward(c.Im2col(x))) }
	checkGrad(t, "weight", c.Weight.W, c.Weight.Grad, loss)
	checkGrad(t, "bias", c.Bias.W, c.Bias.Grad, loss)
}

func TestDropoutMask(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := 0.25
	mask := DropoutMask(50, 50, p, rng)

	keep := 1 / (1 - p)
	zeros := 0
	rows, cols := mask.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			switch v := mask.At(i, j); v {
			case 0:
				zeros++
			case keep:
			default:
				t.Fatalf("mask (%d,%d) = %v, want 0 or %v", i, j, v, keep)
			}
		}
	}

	rate := float64(zeros) / float64(rows*cols)
	if math.Abs(rate-p) > 0.05 {
		t.Errorf("drop rate = %v, want about %v", rate, p)
	}
}

func TestReLU(t *testing.T) {
	x := mat.NewDense(1, 4, []float64{-2, 0, 0.5, 3})
	y := ReLU(x)
	want := []float64{0, 0, 0.5, 3}
	for j, w := range want {
		if got := y.At(0, j); got != w {
			t.Errorf("ReLU[%d] = %v, want %v", j, got, w)
		}
	}
}

func TestReLUBackward(t *testing.T) {
	pre := mat.NewDense(1, 4, []float64{-2, 0, 0.5, 3})
	dy := mat.NewDense(1, 4, []float64{1, 1, 1, 1})
	dx := ReLUBackward(pre, dy)
	want := []float64{0, 0, 1, 1}
	for j, w := range want {
		if got := dx.At(0, j); got != w {
			t.Errorf("dx[%d] = %v, want %v", j, got, w)
		}
	}
}

func TestSoftmaxRows(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{
		0, 0,
		1000, 1000, // stability: must not overflow
	})
	probs := SoftmaxRows(logits)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if got := probs.At(i, j); !approxEqual(got, 0.5, gradTol) {
				t.Errorf("probs[%d][%d] = %v, want 0.5", i, j, got)
			}
		}
	}
}

func TestCrossEntropySum(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{
		0, 0,
		0, 0,
	})
	labels := []int{0, 1}

	loss, grad := CrossEntropySum(logits, labels, 2)

	if want := 2 * math.Log(2); !approxEqual(loss, want, gradTol) {
		t.Errorf("loss = %v, want %v", loss, want)
	}
	// Gradient is probs minus one-hot: [0.5-1, 0.5] then [0.5, 0.5-1].
	wantGrad := [][]float64{{-0.5, 0.5}, {0.5, -0.5}}
	for i := range wantGrad {
		for j, w := range wantGrad[i] {
			if got := grad.At(i, j); !approxEqual(got, w, gradTol) {
				t.Errorf("grad[%d][%d] = %v, want %v", i, j, got, w)
			}
		}
	}
}

func TestCrossEntropySum_Exclusion(t *testing.T) {
	logits := mat.NewDense(3, 2, []float64{
		1, -1,
		-1, 1,
		5, 5,
	})
	labels := []int{0, 1, 1}

	full, _ := CrossEntropySum(logits, labels, 3)
	partial, grad := CrossEntropySum(logits, labels, 2)

	if partial >= full {
		t.Errorf("excluding a row did not reduce loss: %v >= %v", partial, full)
	}
	for j := 0; j < 2; j++ {
		if g := grad.At(2, j); g != 0 {
			t.Errorf("excluded row grad[2][%d] = %v, want 0", j, g)
		}
	}
}

func TestCrossEntropySum_GradCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	logits := mat.NewDense(4, 2, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			logits.Set(i, j, rng.NormFloat64())
		}
	}
	labels := []int{0, 1, 1, 0}

	_, grad := CrossEntropySum(logits, labels, 3)
	loss := func() float64 {
		l, _ := CrossEntropySum(logits, labels, 3)
		return l
	}
	checkGrad(t, "logits", logits, grad, loss)
}
