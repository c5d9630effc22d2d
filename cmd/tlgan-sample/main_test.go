package main

import (
	"path/filepath"
	"strings"
	"testing"

	tlgan "github.com/LdDl/tl-gan"
)

func TestSampleGridSize(t *testing.T) {
	checkpoint := filepath.Join(t.TempDir(), "missing.gob")
	tests := []struct {
		batchNorm bool
		grid      int
		wantErr   string
	}{
		{true, 1, "single image"},
		{true, 0, "must be positive"},
		{false, 1, "Can't open checkpoint"},
		{true, 2, "Can't open checkpoint"},
	}
	for _, tt := range tests {
		cfg := tlgan.DefaultConfig()
		cfg.BatchNorm = tt.batchNorm
		cfg.GridSize = tt.grid
		cfg.GeneratorChannels = 16
		err := sample(cfg, checkpoint, filepath.Join(t.TempDir(), "grid.png"), 1)
		if err == nil {
			t.Fatalf("batch norm %v, grid %d: sample = nil error; want error", tt.batchNorm, tt.grid)
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("batch norm %v, grid %d: error = %q; want it to contain %q", tt.batchNorm, tt.grid, err.Error(), tt.wantErr)
		}
	}
}

func TestSampleNeedsCheckpoint(t *testing.T) {
	if err := sample(tlgan.DefaultConfig(), "", "grid.png", 1); err == nil {
		t.Error("sample without checkpoint = nil error; want error")
	}
}
