package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.HiddenDim != 256 || cfg.ScoreDim != 256 {
		t.Errorf("dims = %d/%d, want 256/256", cfg.HiddenDim, cfg.ScoreDim)
	}
	if cfg.MaxLen != 64 {
		t.Errorf("MaxLen = %d, want 64", cfg.MaxLen)
	}
	if want := []int{3, 4, 5}; !reflect.DeepEqual(cfg.Windows, want) {
		t.Errorf("Windows = %v, want %v", cfg.Windows, want)
	}
	if cfg.Pooling != "max" {
		t.Errorf("Pooling = %q, want max", cfg.Pooling)
	}
	if cfg.Threshold != 0.50 {
		t.Errorf("Threshold = %v, want 0.50", cfg.Threshold)
	}
	if cfg.LearningRate != 1e-3 {
		t.Errorf("LearningRate = %v, want 1e-3", cfg.LearningRate)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_PartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	content := "hidden_dim: 64\nthreshold: 0.3\nwindows: [2, 3]\ntrain_dir: /data/train\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HiddenDim != 64 {
		t.Errorf("HiddenDim = %d, want 64", cfg.HiddenDim)
	}
	if cfg.Threshold != 0.3 {
		t.Errorf("Threshold = %v, want 0.3", cfg.Threshold)
	}
	if want := []int{2, 3}; !reflect.DeepEqual(cfg.Windows, want) {
		t.Errorf("Windows = %v, want %v", cfg.Windows, want)
	}
	if cfg.TrainDir != "/data/train" {
		t.Errorf("TrainDir = %q", cfg.TrainDir)
	}
	// Untouched keys keep their defaults.
	if cfg.ScoreDim != 256 {
		t.Errorf("ScoreDim = %d, want default 256", cfg.ScoreDim)
	}
	if cfg.BatchSize != 8 {
		t.Errorf("BatchSize = %d, want default 8", cfg.BatchSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("hidden_dim: [not an int\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
