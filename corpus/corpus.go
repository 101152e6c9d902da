// Package corpus loads section-annotated documents and assembles them into
// flat batches for vectorized scoring.
//
// A document is an ordered list of sentences with a parallel label sequence:
// a label of 1 marks the final sentence of a topical segment. A batch
// concatenates the sentences of many documents and records offsets so that
// flat per-sentence predictions can be regrouped per document.
package corpus

import (
	"regexp"
	"strings"
	"unicode"
)

// NumToken is the sentinel that replaces all-digit tokens.
const NumToken = "#NUM"

var (
	nonTokenChars  = regexp.MustCompile(`[^a-z0-9\s']`)
	apostropheRuns = regexp.MustCompile(`'+`)
)

// CleanToken normalizes a raw whitespace-delimited token: all-digit tokens
// become NumToken, everything else is lowercased with punctuation stripped
// and apostrophe runs replaced by a space. Cleaning is idempotent.
func CleanToken(token string) string {
	if token == NumToken {
		return token
	}
	token = strings.ToLower(token)
	token = nonTokenChars.ReplaceAllString(token, "")
	token = apostropheRuns.ReplaceAllString(token, " ")
	if allDigits(token) {
		return NumToken
	}
	return token
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Sentence holds the raw text, cleaned tokens, and boundary label of one
// sentence. Label is 1 when the sentence ends a segment.
type Sentence struct {
	Text   string
	Tokens []string
	Label  int
}

// NewSentence tokenizes text on whitespace and cleans each token.
func NewSentence(text string, label int) Sentence {
	fields := strings.Fields(text)
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = CleanToken(f)
	}
	return Sentence{Text: text, Tokens: tokens, Label: label}
}

// Document is an ordered sequence of sentences from one source file.
// Labels runs parallel to Sentences.
type Document struct {
	Sentences []Sentence
	Labels    []int
	Path      string
}

// Len returns the number of sentences in the document.
func (d *Document) Len() int { return len(d.Sentences) }

// SegmentLabels flattens per-segment sentence lists into a label sequence:
// each segment of length m contributes m-1 zeros followed by a single 1.
func SegmentLabels(segments [][]string) []int {
	var labels []int
	for _, seg := range segments {
		for i := 0; i < len(seg); i++ {
			if i == len(seg)-1 {
				labels = append(labels, 1)
			} else {
				labels = append(labels, 0)
			}
		}
	}
	return labels
}

// Batch flattens many documents into one sentence sequence for a single
// vectorized forward pass. Offsets has len(Documents)+1 entries with
// Offsets[0] == 0; document i owns flat indices [Offsets[i], Offsets[i+1]).
// Zero-length documents are valid and contribute equal adjacent offsets.
type Batch struct {
	Documents []*Document
	Offsets   []int
	Sentences []Sentence
	Labels    []int
}

// NewBatch assembles documents into a flat batch, preserving each document's
// internal sentence order.
func NewBatch(docs []*Document) *Batch {
	b := &Batch{
		Documents: docs,
		Offsets:   make([]int, len(docs)+1),
	}
	for i, d := range docs {
		b.Offsets[i+1] = b.Offsets[i] + d.Len()
		b.Sentences = append(b.Sentences, d.Sentences...)
		b.Labels = append(b.Labels, d.Labels...)
	}
	return b
}

// Len returns the total number of flat sentences in the batch.
func (b *Batch) Len() int { return len(b.Sentences) }

// Regroup splits a flat per-sentence slice back into per-document slices
// using the batch offsets. len(flat) must equal b.Len().
func Regroup[T any](b *Batch, flat []T) [][]T {
	groups := make([][]T, len(b.Documents))
	for i := range b.Documents {
		groups[i] = flat[b.Offsets[i]:b.Offsets[i+1]]
	}
	return groups
}
