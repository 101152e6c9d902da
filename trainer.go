package topseg

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/jamesainslie/go-topseg/corpus"
	"github.com/jamesainslie/go-topseg/internal/segeval"
	"github.com/jamesainslie/go-topseg/nn"
)

// Trainer owns the optimization loop, validation, best-checkpoint selection,
// and inference. All progress state is per instance: constructing a new
// Trainer starts from a clean history.
type Trainer struct {
	model    *Model
	opt      *nn.Adam
	cfg      trainerConfig
	trainDir string
	valDir   string
	logger   *slog.Logger
	rng      *rand.Rand

	// Histories, appended per epoch (validation ones per checkpoint).
	TrainLoss []float64
	ValLoss   []float64
	Metrics   map[string][]float64

	bestVal float64
	best    *Model
}

// NewTrainer returns a trainer over the model. trainDir and valDir are
// nested directory trees of corpus files; they may be empty for a trainer
// used only for prediction.
func NewTrainer(model *Model, trainDir, valDir string, opts ...TrainerOption) *Trainer {
	cfg := defaultTrainerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.evaluate == nil {
		cfg.evaluate = segeval.Evaluate
	}
	return &Trainer{
		model:    model,
		opt:      nn.NewAdam(cfg.lr),
		cfg:      cfg,
		trainDir: trainDir,
		valDir:   valDir,
		logger:   cfg.logger,
		rng:      rand.New(rand.NewSource(cfg.seed)),
		Metrics:  make(map[string][]float64),
		bestVal:  math.Inf(1),
	}
}

// Train runs epochs sequential training epochs, validating every
// val-checkpoint epochs.
func (t *Trainer) Train(ctx context.Context, epochs int) error {
	for epoch := 1; epoch <= epochs; epoch++ {
		if err := t.trainEpoch(ctx, epoch); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int) error {
	t.model.Train()

	if t.cfg.progress != nil {
		t.cfg.progress.Start(t.cfg.steps)
	}

	var epochLoss, epochSents float64
	for step := 1; step <= t.cfg.steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		loss, sents, correct, total, err := t.trainStep()
		if err != nil {
			return fmt.Errorf("epoch %d step %d: %w", epoch, step, err)
		}

		// Loss is reported normalized per sentence.
		t.logger.Info("train step",
			"epoch", epoch,
			"step", step,
			"loss", loss/float64(sents),
			"sentences", sents,
			"boundaries_correct", correct,
			"boundaries_total", total,
		)

		epochLoss += loss
		epochSents += float64(sents)
		if t.cfg.progress != nil {
			t.cfg.progress.Increment()
		}
	}
	if t.cfg.progress != nil {
		t.cfg.progress.Finish()
	}

	meanLoss := epochLoss / float64(t.cfg.steps)
	meanSents := epochSents / float64(t.cfg.steps)
	t.TrainLoss = append(t.TrainLoss, meanLoss/meanSents)
	t.logger.Info("epoch complete", "epoch", epoch, "loss", meanLoss/meanSents, "mean_sentences", meanSents)

	if epoch%t.cfg.valCkpt != 0 {
		return nil
	}

	metrics, valLoss, err := t.Validate(ctx, t.valDir)
	if err != nil {
		return fmt.Errorf("epoch %d validation: %w", epoch, err)
	}

	t.ValLoss = append(t.ValLoss, valLoss)
	for key, val := range metrics {
		t.Metrics[key] = append(t.Metrics[key], val)
	}

	t.maybeSnapshot(valLoss)

	t.logger.Info("validation", "epoch", epoch, "loss", valLoss, "best_loss", t.bestVal)
	return nil
}

// maybeSnapshot deep-copies the live model as the best checkpoint when the
// validation loss is strictly lower than the best seen. A tie never
// replaces the snapshot.
func (t *Trainer) maybeSnapshot(valLoss float64) {
	if valLoss < t.bestVal {
		t.bestVal = valLoss
		t.best = t.model.Clone()
		t.best.Eval()
	}
}

// trainStep samples one batch of documents, backpropagates the summed
// cross-entropy, and steps the optimizer. Returns the unnormalized batch
// loss, the sentence count, and boundary diagnostics.
func (t *Trainer) trainStep() (loss float64, sents, correct, total int, err error) {
	t.model.ZeroGrad()

	batch, err := corpus.SampleAndBatch(t.trainDir, t.cfg.batchSize, true, t.rng)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	logits, err := t.model.Forward(batch)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	// The final flat sentence always ends a segment, so it is excluded
	// from the loss.
	loss, dLogits := nn.CrossEntropySum(logits, batch.Labels, batch.Len()-1)
	t.model.Backward(dLogits)
	t.opt.Step(t.model.Params())

	correct, total = t.boundaryDiagnostics(logits, batch)
	return loss, batch.Len(), correct, total, nil
}

// boundaryDiagnostics counts true boundaries recovered at argmax and logs
// the boundary-class probability of every true-boundary sentence. Diagnostic
// only; the decision threshold is not involved.
func (t *Trainer) boundaryDiagnostics(logits *mat.Dense, batch *corpus.Batch) (correct, total int) {
	probs := nn.SoftmaxRows(logits)
	for i, label := range batch.Labels {
		if label != 1 {
			continue
		}
		total++
		if probs.At(i, 1) > probs.At(i, 0) {
			correct++
		}
		t.logger.Debug("boundary probability", "sentence", i, "probability", probs.At(i, 1))
	}
	return correct, total
}

// Validate evaluates the model over every document under dir, in fixed-size
// chunks to bound memory. It returns segmentation metrics averaged across
// chunks and the cross-entropy loss normalized per sentence. Dropout is
// disabled for the duration.
func (t *Trainer) Validate(ctx context.Context, dir string) (map[string]float64, float64, error) {
	t.model.Eval()

	files, err := corpus.CrawlDirectory(dir)
	if err != nil {
		return nil, 0, err
	}

	var dicts []map[string]float64
	evalLoss := 0.0
	numSents := 0

	for _, chunk := range corpus.ChunkPaths(files, t.cfg.batchSize) {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		docs := make([]*corpus.Document, 0, len(chunk))
		for _, f := range chunk {
			doc, err := corpus.ReadDocument(f, false)
			if err != nil {
				return nil, 0, err
			}
			docs = append(docs, doc)
		}
		batch := corpus.NewBatch(docs)
		if batch.Len() == 0 {
			continue
		}

		preds, logits, err := t.PredictBatch(batch)
		if err != nil {
			return nil, 0, err
		}

		// Validation loss covers every sentence, unnormalized until the end.
		loss, _ := nn.CrossEntropySum(logits, batch.Labels, batch.Len())
		evalLoss += loss
		numSents += batch.Len()

		dicts = append(dicts, t.cfg.evaluate(batch, preds))
	}

	if numSents == 0 {
		return nil, 0, fmt.Errorf("validate %s: no sentences found", dir)
	}

	return segeval.AvgDicts(dicts), evalLoss / float64(numSents), nil
}

// Predict returns per-sentence boundary decisions for one document.
func (t *Trainer) Predict(doc *corpus.Document) ([]bool, error) {
	preds, _, err := t.PredictBatch(corpus.NewBatch([]*corpus.Document{doc}))
	return preds, err
}

// PredictBatch runs an inference-only forward pass and thresholds the
// boundary-class probability at θ: strictly greater means boundary, so a
// probability of exactly θ is not one. Raw logits are returned alongside
// the decisions.
func (t *Trainer) PredictBatch(batch *corpus.Batch) ([]bool, *mat.Dense, error) {
	t.model.Eval()

	logits, err := t.model.Forward(batch)
	if err != nil {
		return nil, nil, err
	}

	probs := nn.SoftmaxRows(logits)
	preds := make([]bool, batch.Len())
	for i := range preds {
		preds[i] = probs.At(i, 1) > t.cfg.theta
	}
	return preds, logits, nil
}

// Best returns the deep-copied snapshot of the model at its lowest
// validation loss, or nil if no validation has improved on the initial
// state yet.
func (t *Trainer) Best() *Model { return t.best }

// BestValLoss returns the lowest validation loss seen, +Inf before any
// validation.
func (t *Trainer) BestValLoss() float64 { return t.bestVal }

// Model returns the live training model.
func (t *Trainer) Model() *Model { return t.model }

// SaveModel persists the live model's parameter state to path.
func (t *Trainer) SaveModel(path string) error { return t.model.Save(path) }

// LoadModel restores parameter state from path onto the live model, which
// must have been constructed with a matching architecture.
func (t *Trainer) LoadModel(path string) error { return t.model.Load(path) }
