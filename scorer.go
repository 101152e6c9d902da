package topseg

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/jamesainslie/go-topseg/nn"
)

// scorer maps a fixed-width sentence representation through two hidden
// ReLU+dropout blocks and a linear output layer to a 2-way logit:
// not-a-boundary and is-a-boundary. No activation on the output.
type scorer struct {
	l1, l2, l3 *nn.Linear
	drop       float64
	rng        *rand.Rand
}

func newScorer(cfg Config, rng *rand.Rand) *scorer {
	return &scorer{
		l1:   nn.NewLinear("scorer.fc1", cfg.RepWidth(), cfg.ScoreDim, rng),
		l2:   nn.NewLinear("scorer.fc2", cfg.ScoreDim, cfg.ScoreDim, rng),
		l3:   nn.NewLinear("scorer.out", cfg.ScoreDim, 2, rng),
		drop: cfg.Dropout,
		rng:  rng,
	}
}

func (s *scorer) params() []*nn.Param {
	var ps []*nn.Param
	for _, l := range []*nn.Linear{s.l1, s.l2, s.l3} {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (s *scorer) clone(rng *rand.Rand) *scorer {
	cl := func(l *nn.Linear) *nn.Linear {
		return &nn.Linear{In: l.In, Out: l.Out, Weight: l.Weight.Clone(), Bias: l.Bias.Clone()}
	}
	return &scorer{l1: cl(s.l1), l2: cl(s.l2), l3: cl(s.l3), drop: s.drop, rng: rng}
}

// scorerCache holds the forward activations the backward pass needs.
type scorerCache struct {
	x      *mat.Dense // input representations
	z1, z2 *mat.Dense // pre-activations
	a1, a2 *mat.Dense // post ReLU and dropout, inputs to the next layer
	m1, m2 *mat.Dense // dropout masks, nil in eval mode
}

func (s *scorer) forward(x *mat.Dense, training bool) (*mat.Dense, *scorerCache) {
	cache := &scorerCache{x: x}

	cache.z1 = s.l1.Forward(x)
	cache.a1 = nn.ReLU(cache.z1)
	if training && s.drop > 0 {
		r, c := cache.a1.Dims()
		cache.m1 = nn.DropoutMask(r, c, s.drop, s.rng)
		cache.a1.MulElem(cache.a1, cache.m1)
	}

	cache.z2 = s.l2.Forward(cache.a1)
	cache.a2 = nn.ReLU(cache.z2)
	if training && s.drop > 0 {
		r, c := cache.a2.Dims()
		cache.m2 = nn.DropoutMask(r, c, s.drop, s.rng)
		cache.a2.MulElem(cache.a2, cache.m2)
	}

	return s.l3.Forward(cache.a2), cache
}

func (s *scorer) backward(cache *scorerCache, dLogits *mat.Dense) *mat.Dense {
	da2 := s.l3.Backward(cache.a2, dLogits)
	if cache.m2 != nil {
		da2.MulElem(da2, cache.m2)
	}
	dz2 := nn.ReLUBackward(cache.z2, da2)

	da1 := s.l2.Backward(cache.a1, dz2)
	if cache.m1 != nil {
		da1.MulElem(da1, cache.m1)
	}
	dz1 := nn.ReLUBackward(cache.z1, da1)

	return s.l1.Backward(cache.x, dz1)
}
