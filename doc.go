// Package topseg predicts topic-segmentation boundaries in long documents:
// each sentence is classified as either ending a topical segment or not.
//
// The model convolves pretrained word embeddings over several window sizes
// to build a fixed-width representation per sentence, then scores it with a
// small feed-forward network. Training, validation, best-checkpoint
// selection, and segmentation metrics are owned by Trainer.
//
// # Quick Start
//
//	store, err := vectors.Load("glove.840B.300d.txt", "vocabulary.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model, err := topseg.NewModel(store, topseg.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trainer := topseg.NewTrainer(model, "data/train", "data/val")
//	if err := trainer.Train(ctx, 100); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Training is single-threaded: the model's parameters are mutated only by
// the optimizer between forward passes, and the best-model snapshot is a
// deep copy that is never aliased with the live model.
package topseg
