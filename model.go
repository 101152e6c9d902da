package topseg

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/jamesainslie/go-topseg/corpus"
	"github.com/jamesainslie/go-topseg/nn"
	"github.com/jamesainslie/go-topseg/vectors"
)

// Pooling selects how the encoder reduces concatenated convolution outputs
// to one value per position. Resolved once at construction.
type Pooling int

const (
	// PoolMax keeps the maximum across hidden channels.
	PoolMax Pooling = iota
	// PoolAvg averages across hidden channels.
	PoolAvg
	// PoolSum sums across hidden channels.
	PoolSum
	// PoolLast keeps the last hidden channel. Reserved; not used by the
	// default configuration.
	PoolLast
)

var poolingNames = map[Pooling]string{
	PoolMax:  "max",
	PoolAvg:  "avg",
	PoolSum:  "sum",
	PoolLast: "last",
}

// String returns the pooling method name.
func (p Pooling) String() string {
	if name, ok := poolingNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Pooling(%d)", int(p))
}

// ParsePooling resolves a pooling method name.
func ParsePooling(name string) (Pooling, error) {
	for p, n := range poolingNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPooling, name)
}

// Config holds the model hyperparameters.
type Config struct {
	// HiddenDim is the number of output channels per convolution.
	HiddenDim int
	// ScoreDim is the width of the scorer's hidden layers.
	ScoreDim int
	// Dropout is the drop probability in the scorer's hidden blocks.
	Dropout float64
	// MaxLen is the fixed sentence length: longer sentences are truncated,
	// shorter ones padded.
	MaxLen int
	// Windows lists the convolution window sizes.
	Windows []int
	// Pooling reduces the channel axis of the concatenated feature maps.
	Pooling Pooling
	// Seed initializes parameter and dropout randomness.
	Seed int64
}

// DefaultConfig mirrors the published training setup.
func DefaultConfig() Config {
	return Config{
		HiddenDim: 256,
		ScoreDim:  256,
		Dropout:   0.20,
		MaxLen:    64,
		Windows:   []int{3, 4, 5},
		Pooling:   PoolMax,
		Seed:      1,
	}
}

func (c Config) validate() error {
	if len(c.Windows) == 0 {
		return ErrNoWindows
	}
	if _, ok := poolingNames[c.Pooling]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidPooling, int(c.Pooling))
	}
	if c.HiddenDim <= 0 || c.ScoreDim <= 0 || c.MaxLen <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("%w: dropout %v outside [0, 1)", ErrInvalidConfig, c.Dropout)
	}
	for _, n := range c.Windows {
		if n < 1 || n > c.MaxLen {
			return fmt.Errorf("%w: window %d outside [1, maxlen=%d]", ErrInvalidConfig, n, c.MaxLen)
		}
	}
	return nil
}

// RepWidth returns the width of the encoder's sentence representation:
// the concatenated convolution outputs keep one value per position after
// the channel axis is pooled away.
func (c Config) RepWidth() int {
	w := 0
	for _, n := range c.Windows {
		w += c.MaxLen - n + 1
	}
	return w
}

// Model chains the sentence encoder and the boundary scorer into one
// differentiable function from a batch of sentences to per-sentence logits.
// The embedding table is read from the vector store and stays frozen; only
// convolution and linear-layer weights are learnable.
type Model struct {
	cfg      Config
	store    *vectors.Store
	enc      *encoder
	scorer   *scorer
	rng      *rand.Rand
	training bool
	cache    *forwardCache
}

type forwardCache struct {
	enc   *encoderCache
	score *scorerCache
}

// NewModel constructs a model over the given vector store. Invalid
// hyperparameters are fatal here, not at first use.
func NewModel(store *vectors.Store, cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Model{
		cfg:    cfg,
		store:  store,
		enc:    newEncoder(store, cfg, rng),
		scorer: newScorer(cfg, rng),
		rng:    rng,
	}, nil
}

// Config returns the model hyperparameters.
func (m *Model) Config() Config { return m.cfg }

// Store returns the model's vector store.
func (m *Model) Store() *vectors.Store { return m.store }

// Train enables dropout.
func (m *Model) Train() { m.training = true }

// Eval disables dropout.
func (m *Model) Eval() { m.training = false }

// Params returns every learnable parameter.
func (m *Model) Params() []*nn.Param {
	return append(m.enc.params(), m.scorer.params()...)
}

// ZeroGrad clears all accumulated gradients.
func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// Forward scores every sentence of the batch in one vectorized pass and
// returns raw logits of shape (sentences × 2): column 0 is "not a boundary",
// column 1 is "is a boundary". Intermediate state is cached for Backward.
func (m *Model) Forward(batch *corpus.Batch) (*mat.Dense, error) {
	if batch.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	reps, encCache := m.enc.forward(batch.Sentences, m.training)
	logits, scoreCache := m.scorer.forward(reps, m.training)
	m.cache = &forwardCache{enc: encCache, score: scoreCache}
	return logits, nil
}

// Backward accumulates parameter gradients from the gradient of the loss
// with respect to the logits of the most recent Forward call.
func (m *Model) Backward(dLogits *mat.Dense) {
	dReps := m.scorer.backward(m.cache.score, dLogits)
	m.enc.backward(m.cache.enc, dReps)
}

// Clone returns a deep copy of the model's parameters sharing the same
// (read-only) vector store. Mutating the original afterwards never affects
// the copy, so clones are safe to keep as checkpoints.
func (m *Model) Clone() *Model {
	rng := rand.New(rand.NewSource(m.cfg.Seed))
	return &Model{
		cfg:    m.cfg,
		store:  m.store,
		enc:    m.enc.clone(rng),
		scorer: m.scorer.clone(rng),
		rng:    rng,
	}
}
