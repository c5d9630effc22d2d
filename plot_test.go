package tlgan

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gorgonia.org/tensor"
)

func TestToImage(t *testing.T) {
	// single 1x2 image: pixel 0 is (-1, 0, 1), pixel 1 is (1, 1, -1)
	batch := tensor.New(tensor.WithShape(1, 3, 1, 2), tensor.WithBacking([]float64{
		-1, 1,
		0, 1,
		1, -1,
	}))
	img, err := ToImage(batch, 0)
	if err != nil {
		t.Fatal(err)
	}
	p0 := img.RGBAAt(0, 0)
	if p0.R != 0 || p0.G != 128 || p0.B != 255 || p0.A != 255 {
		t.Errorf("Pixel 0 = %v; want {0 128 255 255}", p0)
	}
	p1 := img.RGBAAt(1, 0)
	if p1.R != 255 || p1.G != 255 || p1.B != 0 {
		t.Errorf("Pixel 1 = %v; want {255 255 0 255}", p1)
	}
	if _, err := ToImage(batch, 1); err == nil {
		t.Error("ToImage out of range = nil error; want error")
	}
}

func TestGridCanvases(t *testing.T) {
	n := 7
	plots := make([][]*plot.Plot, n)
	for i := range plots {
		plots[i] = make([]*plot.Plot, n)
		for j := range plots[i] {
			plots[i][j] = plot.New()
		}
	}
	tiles := gridCanvases(plots, draw.New(vgimg.New(4*vg.Inch, 4*vg.Inch)))
	if len(tiles) != n {
		t.Fatalf("Rows = %d; want %d", len(tiles), n)
	}
	count := 0
	for _, row := range tiles {
		count += len(row)
	}
	if count != 49 {
		t.Errorf("Tiles = %d; want 49", count)
	}
}

func TestSavePlot(t *testing.T) {
	g := &constGenerator{value: 0.5, height: 8, width: 8}
	batch, err := g.Generate(tensor.New(tensor.WithShape(50, 1), tensor.WithBacking(make([]float64, 50))))
	if err != nil {
		t.Fatal(err)
	}
	fname := filepath.Join(t.TempDir(), "grid.png")
	if err := SavePlot(batch, 7, fname); err != nil {
		t.Fatalf("SavePlot: %v", err)
	}
	f, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Plot is not PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Errorf("Plot has empty bounds %v", img.Bounds())
	}
}

func TestSavePlotNeedsEnoughImages(t *testing.T) {
	g := &constGenerator{value: 0, height: 4, width: 4}
	batch, _ := g.Generate(tensor.New(tensor.WithShape(48, 1), tensor.WithBacking(make([]float64, 48))))
	if err := SavePlot(batch, 7, filepath.Join(t.TempDir(), "grid.png")); err == nil {
		t.Error("SavePlot with 48 images for 7x7 grid = nil error; want error")
	}
}
