package topseg

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/jamesainslie/go-topseg/corpus"
	"github.com/jamesainslie/go-topseg/nn"
	"github.com/jamesainslie/go-topseg/vectors"
)

const testVectorFile = `the 0.1 0.2 0.3
cat -1.0 0.0 1.0
sat 0.5 0.5 0.5
on 0.2 -0.2 0.2
mat 2.0 2.0 2.0
dog -0.5 0.5 -0.5
ran 0.3 0.3 -0.3
`

const testVocabFile = "the,cat,sat,on,mat,dog,ran"

// testStore loads a tiny 3-dimensional embedding store from fixtures.
func testStore(t *testing.T) *vectors.Store {
	t.Helper()
	dir := t.TempDir()
	vecPath := filepath.Join(dir, "vectors.txt")
	vocabPath := filepath.Join(dir, "vocab.txt")
	if err := os.WriteFile(vecPath, []byte(testVectorFile), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(vocabPath, []byte(testVocabFile), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := vectors.Load(vecPath, vocabPath)
	if err != nil {
		t.Fatalf("loading test store: %v", err)
	}
	return s
}

// testModelConfig is small enough for fast forward/backward passes.
func testModelConfig() Config {
	return Config{
		HiddenDim: 3,
		ScoreDim:  4,
		Dropout:   0.20,
		MaxLen:    6,
		Windows:   []int{2, 3},
		Pooling:   PoolMax,
		Seed:      1,
	}
}

func testModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	m, err := NewModel(testStore(t), cfg)
	if err != nil {
		t.Fatalf("NewModel() failed: %v", err)
	}
	return m
}

// testBatch builds a two-document batch with a known label layout.
func testBatch(t *testing.T) *corpus.Batch {
	t.Helper()
	d1 := &corpus.Document{
		Sentences: []corpus.Sentence{
			corpus.NewSentence("the cat sat", 0),
			corpus.NewSentence("the cat sat on the mat", 1),
			corpus.NewSentence("the dog ran", 1),
		},
		Labels: []int{0, 1, 1},
	}
	d2 := &corpus.Document{
		Sentences: []corpus.Sentence{
			corpus.NewSentence("the mat sat", 0),
			corpus.NewSentence("the dog sat", 1),
		},
		Labels: []int{0, 1},
	}
	return corpus.NewBatch([]*corpus.Document{d1, d2})
}

func TestParsePooling(t *testing.T) {
	tests := []struct {
		name    string
		want    Pooling
		wantErr bool
	}{
		{"max", PoolMax, false},
		{"avg", PoolAvg, false},
		{"sum", PoolSum, false},
		{"last", PoolLast, false},
		{"median", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePooling(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPooling) {
					t.Fatalf("error = %v, want ErrInvalidPooling", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePooling(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParsePooling(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPoolingString(t *testing.T) {
	if got := PoolAvg.String(); got != "avg" {
		t.Errorf("String() = %q, want %q", got, "avg")
	}
	if got := Pooling(99).String(); got != "Pooling(99)" {
		t.Errorf("String() = %q, want %q", got, "Pooling(99)")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"default valid", func(c *Config) {}, nil},
		{"no windows", func(c *Config) { c.Windows = nil }, ErrNoWindows},
		{"bad pooling", func(c *Config) { c.Pooling = Pooling(42) }, ErrInvalidPooling},
		{"zero hidden", func(c *Config) { c.HiddenDim = 0 }, ErrInvalidConfig},
		{"negative score", func(c *Config) { c.ScoreDim = -1 }, ErrInvalidConfig},
		{"zero maxlen", func(c *Config) { c.MaxLen = 0 }, ErrInvalidConfig},
		{"dropout one", func(c *Config) { c.Dropout = 1.0 }, ErrInvalidConfig},
		{"negative dropout", func(c *Config) { c.Dropout = -0.1 }, ErrInvalidConfig},
		{"window exceeds maxlen", func(c *Config) { c.Windows = []int{65} }, ErrInvalidConfig},
		{"zero window", func(c *Config) { c.Windows = []int{0} }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigRepWidth(t *testing.T) {
	if got, want := DefaultConfig().RepWidth(), 183; got != want {
		t.Errorf("default RepWidth() = %d, want %d", got, want)
	}
	if got, want := testModelConfig().RepWidth(), 9; got != want {
		t.Errorf("test RepWidth() = %d, want %d", got, want)
	}
}

func TestNewModel_InvalidConfig(t *testing.T) {
	cfg := testModelConfig()
	cfg.Windows = nil
	if _, err := NewModel(testStore(t), cfg); !errors.Is(err, ErrNoWindows) {
		t.Fatalf("NewModel() error = %v, want ErrNoWindows", err)
	}
}

func TestModelForward(t *testing.T) {
	m := testModel(t, testModelConfig())
	m.Eval()
	batch := testBatch(t)

	logits, err := m.Forward(batch)
	if err != nil {
		t.Fatalf("Forward() failed: %v", err)
	}

	rows, cols := logits.Dims()
	if rows != batch.Len() || cols != 2 {
		t.Fatalf("logits dims = %dx%d, want %dx2", rows, cols, batch.Len())
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := logits.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("logit (%d,%d) = %v", i, j, v)
			}
		}
	}
}

func TestModelForward_EvalDeterministic(t *testing.T) {
	m := testModel(t, testModelConfig())
	m.Eval()
	batch := testBatch(t)

	first, err := m.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(first, second, 1e-12) {
		t.Error("eval-mode forward passes differ")
	}
}

func TestModelForward_EmptyBatch(t *testing.T) {
	m := testModel(t, testModelConfig())
	if _, err := m.Forward(corpus.NewBatch(nil)); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("Forward() error = %v, want ErrEmptyBatch", err)
	}
}

func TestModelClone_Independent(t *testing.T) {
	m := testModel(t, testModelConfig())
	m.Eval()
	batch := testBatch(t)

	want, err := m.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	want = mat.DenseCopyOf(want)

	clone := m.Clone()
	for _, p := range m.Params() {
		p.W.Zero()
	}

	got, err := clone.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("mutating the original changed the clone's output")
	}
}

// TestModelBackward_GradCheck verifies the full forward/backward chain with
// central finite differences. Average pooling keeps the loss smooth.
func TestModelBackward_GradCheck(t *testing.T) {
	cfg := testModelConfig()
	cfg.Pooling = PoolAvg
	m := testModel(t, cfg)
	m.Eval()
	batch := testBatch(t)

	loss := func() float64 {
		logits, err := m.Forward(batch)
		if err != nil {
			t.Fatal(err)
		}
		l, _ := nn.CrossEntropySum(logits, batch.Labels, batch.Len())
		return l
	}

	m.ZeroGrad()
	logits, err := m.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	_, dLogits := nn.CrossEntropySum(logits, batch.Labels, batch.Len())
	m.Backward(dLogits)

	const eps = 1e-5
	for _, p := range m.Params() {
		rows, cols := p.W.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				orig := p.W.At(i, j)
				p.W.Set(i, j, orig+eps)
				up := loss()
				p.W.Set(i, j, orig-eps)
				down := loss()
				p.W.Set(i, j, orig)

				numeric := (up - down) / (2 * eps)
				analytic := p.Grad.At(i, j)
				if math.Abs(numeric-analytic) > 1e-4 {
					t.Fatalf("%s grad (%d,%d): analytic %v, numeric %v", p.Name, i, j, analytic, numeric)
				}
			}
		}
	}
}

func TestModelParams_Count(t *testing.T) {
	m := testModel(t, testModelConfig())
	// Two convolutions and three linear layers, each a weight and a bias.
	if got, want := len(m.Params()), 10; got != want {
		t.Errorf("len(Params()) = %d, want %d", got, want)
	}
}

func TestModelZeroGrad(t *testing.T) {
	m := testModel(t, testModelConfig())
	m.Eval()
	batch := testBatch(t)

	logits, err := m.Forward(batch)
	if err != nil {
		t.Fatal(err)
	}
	_, dLogits := nn.CrossEntropySum(logits, batch.Labels, batch.Len())
	m.Backward(dLogits)
	m.ZeroGrad()

	for _, p := range m.Params() {
		rows, cols := p.Grad.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if g := p.Grad.At(i, j); g != 0 {
					t.Fatalf("%s grad (%d,%d) = %v after ZeroGrad", p.Name, i, j, g)
				}
			}
		}
	}
}
