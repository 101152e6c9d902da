// Package vectors loads pretrained word embeddings restricted to a corpus
// vocabulary.
//
// The store maps tokens to embedding-table rows. Rows 0 and 1 are reserved
// zero rows for padding and unknown tokens; vocabulary words occupy the
// remaining rows in corpus-vocabulary order, so a token at intersected
// position i resolves to row i+2.
package vectors

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Reserved embedding-table rows.
const (
	PadIndex = 0
	UnkIndex = 1

	reservedRows = 2
)

// Option configures vector loading.
type Option func(*config)

type config struct {
	skim int
}

// WithSkim caps the number of intersected vocabulary entries kept, for fast
// iteration during development. Zero or negative means no cap.
func WithSkim(n int) Option {
	return func(c *config) {
		c.skim = n
	}
}

// Store holds the intersected vocabulary and its embedding table.
type Store struct {
	dim     int
	vocab   []string
	indices map[string]int
	weights *mat.Dense
}

// Load reads a comma-separated vocabulary file and a whitespace-delimited
// pretrained vector file (one "word v1 ... vD" line per word), and builds a
// store over the intersection of the two vocabularies, preserving the corpus
// vocabulary's original order. Either file failing to load is fatal.
func Load(vectorsPath, vocabPath string, opts ...Option) (*Store, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	vocab, err := readVocab(vocabPath)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(vocab))
	for _, w := range vocab {
		wanted[w] = true
	}

	pretrained, dim, err := readVectors(vectorsPath, wanted)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dim:     dim,
		indices: make(map[string]int),
	}
	for _, w := range vocab {
		if _, ok := pretrained[w]; !ok {
			continue
		}
		if _, dup := s.indices[w]; dup {
			continue
		}
		s.indices[w] = len(s.vocab)
		s.vocab = append(s.vocab, w)
		if cfg.skim > 0 && len(s.vocab) == cfg.skim {
			break
		}
	}

	// Two zero rows up front: padding then UNK.
	s.weights = mat.NewDense(reservedRows+len(s.vocab), dim, nil)
	for i, w := range s.vocab {
		s.weights.SetRow(reservedRows+i, pretrained[w])
	}

	return s, nil
}

func readVocab(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var vocab []string
	for _, w := range strings.Split(string(data), ",") {
		if w = strings.TrimSpace(w); w != "" {
			vocab = append(vocab, w)
		}
	}
	return vocab, nil
}

func readVectors(path string, wanted map[string]bool) (map[string][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open vectors: %w", err)
	}
	defer func() { _ = f.Close() }()

	out := make(map[string][]float64)
	dim := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		word := fields[0]

		if dim == 0 {
			dim = len(fields) - 1
		} else if len(fields)-1 != dim {
			return nil, 0, fmt.Errorf("vectors line %d: got %d dimensions, want %d", line, len(fields)-1, dim)
		}

		if !wanted[word] {
			continue
		}

		vec := make([]float64, dim)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("vectors line %d: %w", line, err)
			}
			vec[i] = v
		}
		out[word] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan vectors: %w", err)
	}
	if dim == 0 {
		return nil, 0, fmt.Errorf("vectors file %s: no vector lines", path)
	}

	return out, dim, nil
}

// Index resolves a token to its embedding-table row. Tokens outside the
// intersected vocabulary resolve to UnkIndex.
func (s *Store) Index(token string) int {
	i, ok := s.indices[token]
	if !ok {
		return UnkIndex
	}
	return i + reservedRows
}

// Dim returns the embedding dimensionality.
func (s *Store) Dim() int { return s.dim }

// Rows returns the number of embedding-table rows, reserved rows included.
func (s *Store) Rows() int { return reservedRows + len(s.vocab) }

// Vocab returns the intersected vocabulary in table order.
func (s *Store) Vocab() []string { return s.vocab }

// Weights returns the embedding table. Callers must not mutate it.
func (s *Store) Weights() *mat.Dense { return s.weights }
