package topseg

import (
	"context"
	"sort"
)

// SweepResult holds averaged validation metrics for one threshold value.
type SweepResult struct {
	Theta   float64
	Metrics map[string]float64
}

// SweepThresholds generates threshold values from min to max with given step.
func SweepThresholds(min, max, step float64) []float64 {
	var thetas []float64
	for t := min; t < max; t += step {
		thetas = append(thetas, t)
	}
	return thetas
}

// Sweep evaluates the validation directory at each threshold and returns
// results sorted by sentence-level boundary F1, best first. The trainer's
// configured threshold is restored afterwards.
func (t *Trainer) Sweep(ctx context.Context, dir string, thetas []float64) ([]SweepResult, error) {
	saved := t.cfg.theta
	defer func() { t.cfg.theta = saved }()

	var results []SweepResult
	for _, theta := range thetas {
		t.cfg.theta = theta
		metrics, _, err := t.Validate(ctx, dir)
		if err != nil {
			return nil, err
		}
		results = append(results, SweepResult{Theta: theta, Metrics: metrics})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Metrics["s_f1"] > results[j].Metrics["s_f1"]
	})
	return results, nil
}
