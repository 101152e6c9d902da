package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	topseg "github.com/jamesainslie/go-topseg"
	"github.com/jamesainslie/go-topseg/internal/config"
	"github.com/jamesainslie/go-topseg/internal/progress"
	"github.com/jamesainslie/go-topseg/vectors"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML training config")
		vectorPath = flag.String("vectors", "", "Path to pretrained vector file (overrides config)")
		vocabPath  = flag.String("vocab", "", "Path to comma-separated vocabulary file (overrides config)")
		trainDir   = flag.String("train", "", "Training corpus directory (overrides config)")
		valDir     = flag.String("val", "", "Validation corpus directory (overrides config)")
		epochs     = flag.Int("epochs", 0, "Number of training epochs (overrides config)")
		sweep      = flag.Bool("sweep", false, "Run a decision-threshold sweep instead of training")
		sweepMin   = flag.Float64("sweep-min", 0.05, "Sweep minimum threshold")
		sweepMax   = flag.Float64("sweep-max", 0.95, "Sweep maximum threshold")
		sweepStep  = flag.Float64("sweep-step", 0.05, "Sweep step size")
		checkpoint = flag.String("checkpoint", "", "Checkpoint path: loaded before a sweep, written after training (overrides config)")
		verbose    = flag.Bool("v", false, "Log per-sentence boundary probabilities")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.Vectors, *vectorPath)
	override(&cfg.Vocabulary, *vocabPath)
	override(&cfg.TrainDir, *trainDir)
	override(&cfg.ValDir, *valDir)
	override(&cfg.Checkpoint, *checkpoint)
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}

	if cfg.Vectors == "" || cfg.Vocabulary == "" || cfg.ValDir == "" {
		fmt.Fprintln(os.Stderr, "error: vectors, vocabulary, and validation directory are required")
		flag.Usage()
		os.Exit(1)
	}
	if !*sweep && cfg.TrainDir == "" {
		fmt.Fprintln(os.Stderr, "error: training directory required")
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := vectors.Load(cfg.Vectors, cfg.Vocabulary, vectors.WithSkim(cfg.Skim))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading vectors: %v\n", err)
		os.Exit(1)
	}
	logger.Info("vectors loaded", "rows", store.Rows(), "dim", store.Dim())

	pooling, err := topseg.ParsePooling(cfg.Pooling)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	model, err := topseg.NewModel(store, topseg.Config{
		HiddenDim: cfg.HiddenDim,
		ScoreDim:  cfg.ScoreDim,
		Dropout:   cfg.Dropout,
		MaxLen:    cfg.MaxLen,
		Windows:   cfg.Windows,
		Pooling:   pooling,
		Seed:      cfg.Seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building model: %v\n", err)
		os.Exit(1)
	}

	trainer := topseg.NewTrainer(model, cfg.TrainDir, cfg.ValDir,
		topseg.WithLearningRate(cfg.LearningRate),
		topseg.WithBatchSize(cfg.BatchSize),
		topseg.WithThreshold(cfg.Threshold),
		topseg.WithSteps(cfg.Steps),
		topseg.WithValCheckpoint(cfg.ValCheckpoint),
		topseg.WithSeed(cfg.Seed),
		topseg.WithLogger(logger),
		topseg.WithProgress(progress.New(progress.Enabled())),
	)

	ctx := context.Background()

	if *sweep {
		runSweep(ctx, trainer, cfg, *sweepMin, *sweepMax, *sweepStep)
		return
	}

	if err := trainer.Train(ctx, cfg.Epochs); err != nil {
		fmt.Fprintf(os.Stderr, "error training: %v\n", err)
		os.Exit(1)
	}

	// Persist the best validation snapshot, falling back to the live model
	// when no validation pass improved on the initial state.
	saved := trainer.Best()
	if saved == nil {
		saved = trainer.Model()
	}
	if err := saved.Save(cfg.Checkpoint); err != nil {
		fmt.Fprintf(os.Stderr, "error saving checkpoint: %v\n", err)
		os.Exit(1)
	}
	logger.Info("training complete", "checkpoint", cfg.Checkpoint, "best_val_loss", trainer.BestValLoss())
}

func runSweep(ctx context.Context, trainer *topseg.Trainer, cfg config.Train, min, max, step float64) {
	if err := trainer.LoadModel(cfg.Checkpoint); err != nil {
		fmt.Fprintf(os.Stderr, "error loading checkpoint: %v\n", err)
		os.Exit(1)
	}

	results, err := trainer.Sweep(ctx, cfg.ValDir, topseg.SweepThresholds(min, max, step))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error during sweep: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-8s %-8s %-8s %-8s %-8s %-8s\n", "Theta", "Prec", "Rec", "F1", "Pk", "WinDiff")
	for _, r := range results {
		fmt.Printf("%-8.2f %-8.3f %-8.3f %-8.3f %-8.3f %-8.3f\n",
			r.Theta,
			r.Metrics["s_precision"], r.Metrics["s_recall"], r.Metrics["s_f1"],
			r.Metrics["pk"], r.Metrics["windowdiff"])
	}
	if len(results) > 0 {
		fmt.Printf("Optimal: %.2f (F1: %.3f)\n", results[0].Theta, results[0].Metrics["s_f1"])
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
