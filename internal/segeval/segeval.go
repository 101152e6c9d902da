// Package segeval scores predicted topic segmentations against reference
// boundary labels.
//
// Sentence-level precision/recall/F1 compare boundary positions exactly;
// word-level variants compare boundaries at cumulative token offsets with a
// small tolerance, greedily matched left to right. Pk and WindowDiff are the
// usual sliding-window penalties with the window set to half the mean
// reference segment length.
package segeval

import (
	"math"

	"github.com/jamesainslie/go-topseg/corpus"
)

// wordTolerance is the token distance within which a predicted word-level
// boundary counts as matching a reference one.
const wordTolerance = 3

// Evaluate scores each document of the batch and returns metrics averaged
// across documents: pk, windowdiff, s_precision, s_recall, s_f1,
// w_precision, w_recall, w_f1.
func Evaluate(b *corpus.Batch, preds []bool) map[string]float64 {
	grouped := corpus.Regroup(b, preds)

	var dicts []map[string]float64
	for i, doc := range b.Documents {
		if doc.Len() == 0 {
			continue
		}
		hyp := make([]int, len(grouped[i]))
		for j, p := range grouped[i] {
			if p {
				hyp[j] = 1
			}
		}
		dicts = append(dicts, evaluateDocument(doc, hyp))
	}
	return AvgDicts(dicts)
}

func evaluateDocument(doc *corpus.Document, hyp []int) map[string]float64 {
	ref := doc.Labels
	m := map[string]float64{
		"pk":         pk(ref, hyp),
		"windowdiff": windowDiff(ref, hyp),
	}

	// The final sentence is structurally a boundary in both segmentations,
	// so it is excluded from the boundary sets.
	refIdx := boundaryIndices(ref)
	hypIdx := boundaryIndices(hyp)
	m["s_precision"], m["s_recall"], m["s_f1"] = matchScores(hypIdx, refIdx, 0)

	offsets := tokenPrefixSums(doc)
	m["w_precision"], m["w_recall"], m["w_f1"] = matchScores(
		atOffsets(hypIdx, offsets), atOffsets(refIdx, offsets), wordTolerance)

	return m
}

func boundaryIndices(labels []int) []int {
	var idx []int
	for i, l := range labels {
		if l == 1 && i != len(labels)-1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// tokenPrefixSums returns, per sentence, the token count through that
// sentence inclusive.
func tokenPrefixSums(doc *corpus.Document) []int {
	sums := make([]int, doc.Len())
	total := 0
	for i, s := range doc.Sentences {
		total += len(s.Tokens)
		sums[i] = total
	}
	return sums
}

func atOffsets(idx, offsets []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = offsets[j]
	}
	return out
}

// matchScores greedily matches predicted positions to reference positions
// within tolerance, left to right, and returns precision, recall, and F1.
func matchScores(pred, truth []int, tolerance int) (precision, recall, f1 float64) {
	matched := make([]bool, len(truth))
	tp := 0
	for _, p := range pred {
		for i, t := range truth {
			if matched[i] {
				continue
			}
			d := p - t
			if d < 0 {
				d = -d
			}
			if d <= tolerance {
				matched[i] = true
				tp++
				break
			}
		}
	}

	fp := len(pred) - tp
	fn := len(truth) - tp
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// window returns the Pk/WindowDiff window size: half the mean reference
// segment length, at least 2.
func window(ref []int) int {
	n := len(ref)
	segs := 0
	for _, l := range ref {
		if l == 1 {
			segs++
		}
	}
	if n > 0 && ref[n-1] != 1 {
		segs++
	}
	if segs == 0 {
		return 2
	}
	k := int(math.Round(float64(n) / (2 * float64(segs))))
	if k < 2 {
		k = 2
	}
	return k
}

func segmentIDs(labels []int) []int {
	ids := make([]int, len(labels))
	cur := 0
	for i, l := range labels {
		ids[i] = cur
		if l == 1 {
			cur++
		}
	}
	return ids
}

// pk is the probability that two sentences a window apart are classified
// inconsistently (same segment vs. different segments) by the hypothesis.
func pk(ref, hyp []int) float64 {
	n := len(ref)
	k := window(ref)
	if n-k <= 0 {
		return 0
	}

	refIDs := segmentIDs(ref)
	hypIDs := segmentIDs(hyp)

	miss := 0
	total := 0
	for i := 0; i+k < n; i++ {
		total++
		sameRef := refIDs[i] == refIDs[i+k]
		sameHyp := hypIDs[i] == hypIDs[i+k]
		if sameRef != sameHyp {
			miss++
		}
	}
	return float64(miss) / float64(total)
}

// windowDiff penalizes windows where the number of boundaries differs
// between reference and hypothesis.
func windowDiff(ref, hyp []int) float64 {
	n := len(ref)
	k := window(ref)
	if n-k <= 0 {
		return 0
	}

	diff := 0
	total := 0
	for i := 0; i+k <= n; i++ {
		total++
		if countOnes(ref[i:i+k]) != countOnes(hyp[i:i+k]) {
			diff++
		}
	}
	return float64(diff) / float64(total)
}

func countOnes(labels []int) int {
	c := 0
	for _, l := range labels {
		c += l
	}
	return c
}

// AvgDicts combines per-chunk metric dictionaries into one summary with the
// arithmetic mean per key.
func AvgDicts(dicts []map[string]float64) map[string]float64 {
	avg := make(map[string]float64)
	if len(dicts) == 0 {
		return avg
	}
	counts := make(map[string]int)
	for _, d := range dicts {
		for k, v := range d {
			avg[k] += v
			counts[k]++
		}
	}
	for k := range avg {
		avg[k] /= float64(counts[k])
	}
	return avg
}
