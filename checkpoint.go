package topseg

import (
	"encoding/gob"
	"fmt"
	"os"
	"slices"
	"strings"
)

// CheckpointSuffix is appended to checkpoint paths that lack it.
const CheckpointSuffix = ".ckpt"

type checkpointParam struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

type checkpoint struct {
	HiddenDim int
	ScoreDim  int
	MaxLen    int
	Windows   []int
	Pooling   string
	EmbedDim  int
	Params    []checkpointParam
}

func checkpointPath(path string) string {
	if !strings.HasSuffix(path, CheckpointSuffix) {
		path += CheckpointSuffix
	}
	return path
}

// Save writes the model's parameter state to path, appending the checkpoint
// suffix when absent. Only parameters are persisted, not optimizer state.
func (m *Model) Save(path string) error {
	ck := checkpoint{
		HiddenDim: m.cfg.HiddenDim,
		ScoreDim:  m.cfg.ScoreDim,
		MaxLen:    m.cfg.MaxLen,
		Windows:   m.cfg.Windows,
		Pooling:   m.cfg.Pooling.String(),
		EmbedDim:  m.store.Dim(),
	}
	for _, p := range m.Params() {
		rows, cols := p.W.Dims()
		data := make([]float64, rows*cols)
		copy(data, p.W.RawMatrix().Data)
		ck.Params = append(ck.Params, checkpointParam{
			Name: p.Name,
			Rows: rows,
			Cols: cols,
			Data: data,
		})
	}

	f, err := os.Create(checkpointPath(path))
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := gob.NewEncoder(f).Encode(ck); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// Load restores parameter state from path onto the model. The model must
// have been constructed with the same architecture hyperparameters; any
// mismatch in layout or shape is fatal.
func (m *Model) Load(path string) error {
	f, err := os.Open(checkpointPath(path))
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	if ck.HiddenDim != m.cfg.HiddenDim || ck.ScoreDim != m.cfg.ScoreDim ||
		ck.MaxLen != m.cfg.MaxLen || ck.Pooling != m.cfg.Pooling.String() ||
		ck.EmbedDim != m.store.Dim() || !slices.Equal(ck.Windows, m.cfg.Windows) {
		return fmt.Errorf("%w: checkpoint %+v", ErrCheckpointMismatch, ckArch(ck))
	}

	params := m.Params()
	if len(ck.Params) != len(params) {
		return fmt.Errorf("%w: %d parameters, want %d", ErrCheckpointMismatch, len(ck.Params), len(params))
	}
	for i, p := range params {
		cp := ck.Params[i]
		rows, cols := p.W.Dims()
		if cp.Name != p.Name || cp.Rows != rows || cp.Cols != cols {
			return fmt.Errorf("%w: parameter %s is %dx%d, want %s %dx%d",
				ErrCheckpointMismatch, cp.Name, cp.Rows, cp.Cols, p.Name, rows, cols)
		}
		copy(p.W.RawMatrix().Data, cp.Data)
	}
	return nil
}

func ckArch(ck checkpoint) string {
	return fmt.Sprintf("hidden=%d score=%d maxlen=%d windows=%v pooling=%s dim=%d",
		ck.HiddenDim, ck.ScoreDim, ck.MaxLen, ck.Windows, ck.Pooling, ck.EmbedDim)
}
