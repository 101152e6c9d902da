package corpus

import (
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// sectionMarker delimits segments in Wiki-727 style corpus files.
const sectionMarker = "========"

// Sections shorter than this many sentences are dropped.
const minSectionLen = 1

// Common abbreviations that shouldn't end sentences
var abbreviations = regexp.MustCompile(`(?i)\b(Mr|Mrs|Ms|Dr|Prof|Sr|Jr|vs|etc|i\.e|e\.g|U\.S|U\.K)\.$`)

// SplitSentences splits text into sentences at sentence-ending punctuation.
// Handles common abbreviations to avoid false splits.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '?' && ch != '!' {
			continue
		}

		isEnd := i == len(text)-1 || text[i+1] == ' ' || text[i+1] == '\n'
		if !isEnd {
			continue
		}

		candidate := text[start : i+1]
		if ch == '.' && abbreviations.MatchString(candidate) {
			continue
		}

		if s := strings.TrimSpace(candidate); s != "" {
			sentences = append(sentences, s)
		}

		for i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			i++
		}
		start = i + 1
	}

	if start < len(text) {
		if remaining := strings.TrimSpace(text[start:]); remaining != "" {
			sentences = append(sentences, remaining)
		}
	}

	return sentences
}

// ReadDocument parses a section-annotated corpus file. Lines beginning with
// the section marker start a new segment; the first line of the file is
// header metadata and skipped. Sections with fewer than minSectionLen
// sentences are dropped. In training mode the first surviving section is
// also dropped, following the original paper's convention. A file whose
// sections all fall below the minimum yields an empty document, not an error.
func ReadDocument(path string, training bool) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	var sections [][]string
	var section strings.Builder
	flush := func() {
		sents := SplitSentences(strings.TrimSpace(section.String()))
		if len(sents) >= minSectionLen {
			sections = append(sections, sents)
		}
		section.Reset()
	}
	for _, line := range lines {
		if strings.HasPrefix(line, sectionMarker) {
			flush()
			continue
		}
		section.WriteString(" ")
		section.WriteString(line)
	}
	flush()

	if training && len(sections) > 0 {
		sections = sections[1:]
	}

	labels := SegmentLabels(sections)

	doc := &Document{Labels: labels, Path: path}
	i := 0
	for _, sec := range sections {
		for _, text := range sec {
			doc.Sentences = append(doc.Sentences, NewSentence(text, labels[i]))
			i++
		}
	}

	return doc, nil
}

// CrawlDirectory walks a nested directory tree and returns every regular
// file, skipping hidden entries.
func CrawlDirectory(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", dir, err)
	}
	return paths, nil
}

// SampleNestedDir samples n file paths from a nested directory tree by
// repeated uniform random descent: from the root, pick a random visible
// entry, descend into directories, and restart from the root whenever a
// file is reached. The same file may be sampled more than once.
func SampleNestedDir(dir string, n int, rng *rand.Rand) ([]string, error) {
	samples := make([]string, 0, n)
	current := dir
	for len(samples) < n {
		entries, err := listVisible(current)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("sample %s: no visible entries", current)
		}

		pick := entries[rng.Intn(len(entries))]
		next := filepath.Join(current, pick.Name())
		if pick.IsDir() {
			current = next
			continue
		}
		samples = append(samples, next)
		current = dir
	}
	return samples, nil
}

func listVisible(dir string) ([]os.DirEntry, error) {
	all, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	visible := all[:0]
	for _, e := range all {
		if !strings.HasPrefix(e.Name(), ".") {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// SampleAndBatch samples n documents from a nested directory tree and
// assembles them into one batch.
func SampleAndBatch(dir string, n int, training bool, rng *rand.Rand) (*Batch, error) {
	paths, err := SampleNestedDir(dir, n, rng)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		doc, err := ReadDocument(p, training)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return NewBatch(docs), nil
}

// ChunkPaths splits paths into successive chunks of at most n entries.
func ChunkPaths(paths []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	var chunks [][]string
	for i := 0; i < len(paths); i += n {
		end := i + n
		if end > len(paths) {
			end = len(paths)
		}
		chunks = append(chunks, paths[i:end])
	}
	return chunks
}
