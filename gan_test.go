package tlgan

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gorgonia.org/tensor"
)

func tinyConfig() Config {
	cfg := DefaultConfig()
	cfg.ImageHeight = 16
	cfg.ImageWidth = 16
	cfg.LatentDim = 4
	cfg.BatchSize = 4
	cfg.Epochs = 1
	cfg.SummaryEvery = 1
	cfg.SummarySamples = 49
	cfg.GeneratorChannels = 16
	cfg.DiscriminatorWidths = []int{2, 2, 2, 2}
	cfg.DiscriminatorTop = 2
	cfg.BatchNorm = false
	return cfg
}

func snapshot(params []*tensor.Dense) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64{}, p.Data().([]float64)...)
	}
	return out
}

func countChanged(before, after [][]float64) int {
	changed := 0
	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				changed++
			}
		}
	}
	return changed
}

func TestGeneratorShapes(t *testing.T) {
	tests := []struct {
		variant       GeneratorVariant
		height, width int
		batchNorm     bool
	}{
		{GeneratorPlain, 16, 16, false},
		{GeneratorPlain, 32, 16, false},
		{GeneratorPlain, 16, 16, true},
		{GeneratorPlain, 32, 48, true},
		{GeneratorSkip, 20, 36, false},
		{GeneratorSkip, 64, 64, false},
	}
	for _, tt := range tests {
		cfg := tinyConfig()
		cfg.GeneratorVariant = tt.variant
		cfg.ImageHeight, cfg.ImageWidth = tt.height, tt.width
		cfg.BatchNorm = tt.batchNorm
		gen, err := NewGenerator(cfg)
		if err != nil {
			t.Fatalf("%s (%d, %d): %v", tt.variant, tt.height, tt.width, err)
		}
		out, err := gen.Generate(LatentPoints(rand.New(rand.NewSource(1)), cfg.LatentDim, 3))
		if err != nil {
			t.Fatalf("%s (%d, %d): Generate: %v", tt.variant, tt.height, tt.width, err)
		}
		want := tensor.Shape{3, 3, tt.height, tt.width}
		if !out.Shape().Eq(want) {
			t.Errorf("%s (batch norm %v): output shape = %v; want %v", tt.variant, tt.batchNorm, out.Shape(), want)
		}
		if tt.variant == GeneratorPlain {
			for i, v := range out.Data().([]float64) {
				if v < -1 || v > 1 {
					t.Fatalf("Plain output #%d = %v is out of tanh range", i, v)
				}
			}
		}
		gen.Close()
	}
}

func TestGeneratorRejectsLatentShape(t *testing.T) {
	gen, err := NewGenerator(tinyConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Close()
	if _, err := gen.Generate(LatentPoints(rand.New(rand.NewSource(1)), 5, 2)); err == nil {
		t.Error("Generate with wrong latent size = nil error; want error")
	}
}

func TestGANFreezesDiscriminator(t *testing.T) {
	for _, batchNorm := range []bool{false, true} {
		cfg := tinyConfig()
		cfg.BatchNorm = batchNorm
		models, err := NewModels(cfg)
		if err != nil {
			t.Fatal(err)
		}
		gen := models.Generator.(*GeneratorNet)
		disc := models.Discriminator.(*DiscriminatorNet)
		discBefore := snapshot(disc.Network().Params())
		genBefore := snapshot(gen.Network().Params())

		rng := rand.New(rand.NewSource(1))
		loss, err := models.GAN.Step(LatentPoints(rng, cfg.LatentDim, cfg.BatchSize), Labels(cfg.BatchSize, 1))
		if err != nil {
			t.Fatalf("Batch norm %v: %v", batchNorm, err)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			t.Errorf("Batch norm %v: GAN loss = %v; want finite", batchNorm, loss)
		}
		if changed := countChanged(discBefore, snapshot(disc.Network().Params())); changed != 0 {
			t.Errorf("Batch norm %v: %d discriminator values changed during GAN step; want 0", batchNorm, changed)
		}
		if batchNorm {
			if changed := countChanged(genBefore, snapshot(gen.Network().Params())); changed == 0 {
				t.Error("Generator parameters did not change after GAN step")
			}
		}
		if _, err := models.GAN.Step(LatentPoints(rng, cfg.LatentDim, 2), Labels(2, 1)); err == nil {
			t.Errorf("Batch norm %v: GAN step with wrong batch size = nil error; want error", batchNorm)
		}
		models.Close()
	}
}

func TestBatchNormGeneratorLargeBatches(t *testing.T) {
	cfg := tinyConfig()
	cfg.BatchNorm = true
	gen, err := NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Close()
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{64, 150} {
		out, err := gen.Generate(LatentPoints(rng, cfg.LatentDim, n))
		if err != nil {
			t.Fatalf("Generate(%d): %v", n, err)
		}
		if !out.Shape().Eq(tensor.Shape{n, 3, cfg.ImageHeight, cfg.ImageWidth}) {
			t.Errorf("Generate(%d) shape = %v", n, out.Shape())
		}
		for i, v := range out.Data().([]float64) {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < -1 || v > 1 {
				t.Fatalf("Generate(%d) value #%d = %v; want finite value in [-1, 1]", n, i, v)
			}
		}
	}
}

func TestDiscriminatorStepAndEvaluate(t *testing.T) {
	cfg := tinyConfig()
	disc, err := NewDiscriminator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer disc.Close()
	ds := testDataset(t, 6, cfg.ImageHeight, cfg.ImageWidth)
	rng := rand.New(rand.NewSource(1))
	x, y, err := RealSamples(rng, ds, 2)
	if err != nil {
		t.Fatal(err)
	}
	loss, err := disc.Step(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if loss < 0 || math.IsNaN(loss) {
		t.Errorf("Discriminator loss = %v; want non-negative", loss)
	}
	x, y, _ = RealSamples(rng, ds, 5)
	before := snapshot(disc.Network().Params())
	_, acc, err := disc.Evaluate(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if acc < 0 || acc > 1 {
		t.Errorf("Accuracy = %v; want value in [0, 1]", acc)
	}
	after := snapshot(disc.Network().Params())
	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				t.Fatalf("Evaluate changed discriminator param #%d", i)
			}
		}
	}
}

func TestTrainSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in short mode")
	}
	for _, batchNorm := range []bool{false, true} {
		t.Run(fmt.Sprintf("batch_norm=%v", batchNorm), func(t *testing.T) {
			cfg := tinyConfig()
			cfg.BatchNorm = batchNorm
			trainSmoke(t, cfg)
		})
	}
}

func trainSmoke(t *testing.T, cfg Config) {
	t.Helper()
	models, err := NewModels(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer models.Close()
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer run.Close()
	rng := rand.New(rand.NewSource(1))
	trainer, err := NewTrainer(cfg, testDataset(t, 16, cfg.ImageHeight, cfg.ImageWidth), models, run, rng)
	if err != nil {
		t.Fatal(err)
	}
	if err := trainer.Train(); err != nil {
		t.Fatal(err)
	}
	if err := run.Close(); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, run.LogPath())
	// 2 batches + accuracy line
	if len(lines) != 3 {
		t.Fatalf("Log lines = %d; want 3: %q", len(lines), lines)
	}
	files := runFiles(t, run.Dir())
	want := []string{"generated_plot_e001.png", "generator_model_001.gob", "logs.txt"}
	if len(files) != len(want) {
		t.Fatalf("Run files = %v; want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Run file #%d = %s; want %s", i, files[i], want[i])
		}
	}

	// Saved generator reproduces the trained one
	restored, err := NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()
	if err := restored.Load(run.CheckpointPath(1)); err != nil {
		t.Fatal(err)
	}
	z := LatentPoints(rand.New(rand.NewSource(5)), cfg.LatentDim, 2)
	a, err := models.Generator.Generate(z)
	if err != nil {
		t.Fatal(err)
	}
	b, err := restored.Generate(z)
	if err != nil {
		t.Fatal(err)
	}
	ad, bd := a.Data().([]float64), b.Data().([]float64)
	for i := range ad {
		if math.Abs(ad[i]-bd[i]) > 1e-12 {
			t.Fatalf("Restored generator output #%d = %v; want %v", i, bd[i], ad[i])
		}
	}
}
