package tlgan

import (
	"path/filepath"
	"testing"
)

func smallNetwork() *Network {
	return &Network{
		Name: "small",
		Layers: []*Layer{
			NewLinear(4, 3, true, Rectify),
			NewReshape(3, 1, 1),
			NewConv(3, 2, 3, NoActivation),
			NewBranches([]*Layer{}, []*Layer{NewConv(2, 2, 1, Rectify)}),
		},
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	src := smallNetwork()
	for i, p := range src.Params() {
		data := p.Data().([]float64)
		for j := range data {
			data[j] = float64(i*100 + j)
		}
	}
	fname := filepath.Join(t.TempDir(), "generator_model_010.gob")
	if err := SaveCheckpoint(fname, src); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	dst := smallNetwork()
	if err := LoadCheckpoint(fname, dst); err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	srcParams, dstParams := src.Params(), dst.Params()
	if len(srcParams) != 4 {
		t.Fatalf("Params = %d; want 4 (linear weights, linear bias, conv kernel, branch kernel)", len(srcParams))
	}
	for i := range srcParams {
		a, b := srcParams[i].Data().([]float64), dstParams[i].Data().([]float64)
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("Param #%d element %d = %v; want %v", i, j, b[j], a[j])
			}
		}
	}
}

func TestCheckpointTopologyMismatch(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "model.gob")
	if err := SaveCheckpoint(fname, smallNetwork()); err != nil {
		t.Fatal(err)
	}
	other := &Network{Name: "small", Layers: []*Layer{NewLinear(4, 5, true, Rectify)}}
	if err := LoadCheckpoint(fname, other); err == nil {
		t.Error("LoadCheckpoint into different topology = nil error; want error")
	}
	if err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.gob"), other); err == nil {
		t.Error("LoadCheckpoint of missing file = nil error; want error")
	}
}
