package topseg

import (
	"log/slog"

	"github.com/jamesainslie/go-topseg/corpus"
)

// EvalFunc scores a batch's predicted boundaries against its labels and
// returns named segmentation metrics. The trainer treats it as an oracle.
type EvalFunc func(batch *corpus.Batch, preds []bool) map[string]float64

// ProgressReporter receives per-step progress during a training epoch.
type ProgressReporter interface {
	Start(total int)
	Increment()
	Finish()
}

// TrainerOption configures a Trainer.
type TrainerOption func(*trainerConfig)

type trainerConfig struct {
	lr        float64
	batchSize int
	theta     float64
	steps     int
	valCkpt   int
	seed      int64
	logger    *slog.Logger
	progress  ProgressReporter
	evaluate  EvalFunc
}

func defaultTrainerConfig() trainerConfig {
	return trainerConfig{
		lr:        1e-3,
		batchSize: 8,
		theta:     0.50,
		steps:     25,
		valCkpt:   1,
		seed:      1,
		logger:    slog.Default(),
	}
}

// WithLearningRate sets the Adam learning rate (default: 1e-3).
func WithLearningRate(lr float64) TrainerOption {
	return func(c *trainerConfig) {
		if lr > 0 {
			c.lr = lr
		}
	}
}

// WithBatchSize sets the number of documents sampled per step (default: 8).
func WithBatchSize(n int) TrainerOption {
	return func(c *trainerConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithThreshold sets the boundary decision threshold θ (default: 0.50).
// A sentence is a boundary when its boundary-class probability is strictly
// greater than θ.
func WithThreshold(theta float64) TrainerOption {
	return func(c *trainerConfig) {
		c.theta = theta
	}
}

// WithSteps sets the number of mini-batch steps per epoch (default: 25).
func WithSteps(n int) TrainerOption {
	return func(c *trainerConfig) {
		if n > 0 {
			c.steps = n
		}
	}
}

// WithValCheckpoint validates every n epochs (default: 1).
func WithValCheckpoint(n int) TrainerOption {
	return func(c *trainerConfig) {
		if n > 0 {
			c.valCkpt = n
		}
	}
}

// WithSeed seeds document sampling (default: 1).
func WithSeed(seed int64) TrainerOption {
	return func(c *trainerConfig) {
		c.seed = seed
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) TrainerOption {
	return func(c *trainerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgress reports per-step progress during training epochs.
func WithProgress(p ProgressReporter) TrainerOption {
	return func(c *trainerConfig) {
		c.progress = p
	}
}

// WithEvaluator overrides the segmentation metrics evaluator.
func WithEvaluator(f EvalFunc) TrainerOption {
	return func(c *trainerConfig) {
		if f != nil {
			c.evaluate = f
		}
	}
}
