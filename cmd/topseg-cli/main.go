package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	topseg "github.com/jamesainslie/go-topseg"
	"github.com/jamesainslie/go-topseg/corpus"
	"github.com/jamesainslie/go-topseg/vectors"
)

func main() {
	var (
		checkpoint = flag.String("checkpoint", "", "Path to trained checkpoint (required)")
		vectorPath = flag.String("vectors", "", "Path to pretrained vector file (required)")
		vocabPath  = flag.String("vocab", "", "Path to comma-separated vocabulary file (required)")
		threshold  = flag.Float64("threshold", 0.50, "Boundary decision threshold")
		skim       = flag.Int("skim", 0, "Cap on vocabulary entries loaded (0 = all)")
	)
	flag.Parse()

	if *checkpoint == "" || *vectorPath == "" || *vocabPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: topseg-cli -checkpoint CKPT -vectors VEC -vocab VOCAB FILE")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: exactly one document file required")
		os.Exit(1)
	}

	store, err := vectors.Load(*vectorPath, *vocabPath, vectors.WithSkim(*skim))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading vectors: %v\n", err)
		os.Exit(1)
	}

	model, err := topseg.NewModel(store, topseg.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building model: %v\n", err)
		os.Exit(1)
	}
	if err := model.Load(*checkpoint); err != nil {
		fmt.Fprintf(os.Stderr, "error loading checkpoint: %v\n", err)
		os.Exit(1)
	}

	doc, err := corpus.ReadDocument(flag.Arg(0), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading document: %v\n", err)
		os.Exit(1)
	}
	if doc.Len() == 0 {
		fmt.Fprintln(os.Stderr, "error: document has no sentences")
		os.Exit(1)
	}

	trainer := topseg.NewTrainer(model, "", "", topseg.WithThreshold(*threshold))
	preds, err := trainer.Predict(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error predicting: %v\n", err)
		os.Exit(1)
	}

	segment := 1
	var sentences []string
	flush := func() {
		if len(sentences) == 0 {
			return
		}
		fmt.Printf("== segment %d ==\n%s\n\n", segment, strings.Join(sentences, " "))
		segment++
		sentences = sentences[:0]
	}
	for i, s := range doc.Sentences {
		sentences = append(sentences, s.Text)
		if preds[i] {
			flush()
		}
	}
	flush()
}
