package topseg

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/jamesainslie/go-topseg/corpus"
	"github.com/jamesainslie/go-topseg/nn"
	"github.com/jamesainslie/go-topseg/vectors"
)

// embedDropout is applied to embedded tokens during training, independent of
// the scorer's configured dropout rate.
const embedDropout = 0.20

// encoder convolves token embeddings per sentence over several window sizes
// and pools the channel axis to a fixed-width sentence representation.
type encoder struct {
	store *vectors.Store
	convs []*nn.Conv1d
	cfg   Config
	rng   *rand.Rand
}

func newEncoder(store *vectors.Store, cfg Config, rng *rand.Rand) *encoder {
	convs := make([]*nn.Conv1d, len(cfg.Windows))
	for i, n := range cfg.Windows {
		convs[i] = nn.NewConv1d(fmt.Sprintf("encoder.conv%d", n), store.Dim(), cfg.HiddenDim, n, rng)
	}
	return &encoder{store: store, convs: convs, cfg: cfg, rng: rng}
}

func (e *encoder) params() []*nn.Param {
	var ps []*nn.Param
	for _, c := range e.convs {
		ps = append(ps, c.Params()...)
	}
	return ps
}

func (e *encoder) clone(rng *rand.Rand) *encoder {
	convs := make([]*nn.Conv1d, len(e.convs))
	for i, c := range e.convs {
		convs[i] = &nn.Conv1d{
			InChannels:  c.InChannels,
			OutChannels: c.OutChannels,
			Kernel:      c.Kernel,
			Weight:      c.Weight.Clone(),
			Bias:        c.Bias.Clone(),
		}
	}
	return &encoder{store: e.store, convs: convs, cfg: e.cfg, rng: rng}
}

// sentenceIDs maps a sentence's tokens to embedding rows, keeping the first
// MaxLen tokens and right-padding with the pad row.
func (e *encoder) sentenceIDs(s corpus.Sentence) []int {
	ids := make([]int, e.cfg.MaxLen)
	for i := range ids {
		if i < len(s.Tokens) {
			ids[i] = e.store.Index(s.Tokens[i])
		} else {
			ids[i] = vectors.PadIndex
		}
	}
	return ids
}

// encoderCache holds per-sentence forward state needed by the backward pass.
type encoderCache struct {
	patches [][]*mat.Dense // [sentence][conv] im2col patches
	argmax  [][]int        // [sentence][position] winning channel, max pooling
}

// forward maps sentences to representations of shape (sentences × RepWidth).
func (e *encoder) forward(sents []corpus.Sentence, training bool) (*mat.Dense, *encoderCache) {
	width := e.cfg.RepWidth()
	reps := mat.NewDense(len(sents), width, nil)
	cache := &encoderCache{
		patches: make([][]*mat.Dense, len(sents)),
		argmax:  make([][]int, len(sents)),
	}

	weights := e.store.Weights()
	for si, sent := range sents {
		ids := e.sentenceIDs(sent)

		embedded := mat.NewDense(e.cfg.MaxLen, e.store.Dim(), nil)
		for t, id := range ids {
			embedded.SetRow(t, mat.Row(nil, id, weights))
		}
		if training {
			mask := nn.DropoutMask(e.cfg.MaxLen, e.store.Dim(), embedDropout, e.rng)
			embedded.MulElem(embedded, mask)
		}

		cache.patches[si] = make([]*mat.Dense, len(e.convs))
		col := 0
		var argmax []int
		if e.cfg.Pooling == PoolMax {
			argmax = make([]int, width)
		}
		for ci, conv := range e.convs {
			patches := conv.Im2col(embedded)
			cache.patches[si][ci] = patches

			out := conv.Forward(patches) // HiddenDim × (MaxLen-n+1)
			_, t := out.Dims()
			for pos := 0; pos < t; pos++ {
				reps.Set(si, col, e.poolColumn(out, pos, argmax, col))
				col++
			}
		}
		cache.argmax[si] = argmax
	}

	return reps, cache
}

// poolColumn reduces one feature-map column across channels.
func (e *encoder) poolColumn(out *mat.Dense, pos int, argmax []int, col int) float64 {
	h, _ := out.Dims()
	switch e.cfg.Pooling {
	case PoolMax:
		best, bestRow := out.At(0, pos), 0
		for r := 1; r < h; r++ {
			if v := out.At(r, pos); v > best {
				best, bestRow = v, r
			}
		}
		argmax[col] = bestRow
		return best
	case PoolAvg:
		sum := 0.0
		for r := 0; r < h; r++ {
			sum += out.At(r, pos)
		}
		return sum / float64(h)
	case PoolSum:
		sum := 0.0
		for r := 0; r < h; r++ {
			sum += out.At(r, pos)
		}
		return sum
	default: // PoolLast
		return out.At(h-1, pos)
	}
}

// backward routes representation gradients through the pooling reduction and
// into each convolution's parameters. The embedding table is frozen, so no
// gradient flows past the convolutions.
func (e *encoder) backward(cache *encoderCache, dReps *mat.Dense) {
	h := e.cfg.HiddenDim
	sents, _ := dReps.Dims()

	for si := 0; si < sents; si++ {
		col := 0
		for ci, conv := range e.convs {
			t := e.cfg.MaxLen - conv.Kernel + 1
			dOut := mat.NewDense(h, t, nil)
			for pos := 0; pos < t; pos++ {
				g := dReps.At(si, col)
				switch e.cfg.Pooling {
				case PoolMax:
					dOut.Set(cache.argmax[si][col], pos, g)
				case PoolAvg:
					share := g / float64(h)
					for r := 0; r < h; r++ {
						dOut.Set(r, pos, share)
					}
				case PoolSum:
					for r := 0; r < h; r++ {
						dOut.Set(r, pos, g)
					}
				default: // PoolLast
					dOut.Set(h-1, pos, g)
				}
				col++
			}
			conv.Backward(cache.patches[si][ci], dOut)
		}
	}
}
