package topseg

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidPooling indicates an unrecognized pooling method name.
	ErrInvalidPooling = errors.New("topseg: invalid pooling method")

	// ErrNoWindows indicates an empty convolution window list.
	ErrNoWindows = errors.New("topseg: convolution window list is empty")

	// ErrInvalidConfig indicates an out-of-range model hyperparameter.
	ErrInvalidConfig = errors.New("topseg: invalid model configuration")

	// ErrCheckpointMismatch indicates a checkpoint whose architecture does
	// not match the model it is being loaded onto.
	ErrCheckpointMismatch = errors.New("topseg: checkpoint architecture mismatch")

	// ErrEmptyBatch indicates a forward pass over a batch with no sentences.
	ErrEmptyBatch = errors.New("topseg: batch contains no sentences")
)
