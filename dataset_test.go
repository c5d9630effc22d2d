package tlgan

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, fname string, img image.Image) {
	t.Helper()
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "face_1.png"), solidImage(20, 10, color.RGBA{R: 255, G: 0, B: 128, A: 255}))
	writePNG(t, filepath.Join(dir, "face_2.png"), solidImage(7, 7, color.RGBA{R: 0, G: 255, B: 0, A: 255}))
	// Does not match prefix
	writePNG(t, filepath.Join(dir, "other.png"), solidImage(3, 3, color.RGBA{A: 255}))

	ds, err := LoadDataset(filepath.Join(dir, "face_"), 8, 12)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Len != 2 {
		t.Fatalf("Len = %d; want 2", ds.Len)
	}
	shp := ds.Images.Shape()
	if len(shp) != 4 || shp[0] != 2 || shp[1] != 3 || shp[2] != 8 || shp[3] != 12 {
		t.Fatalf("Shape = %v; want (2, 3, 8, 12)", shp)
	}
	first := ds.Sample(0)
	plane := 8 * 12
	want := []float64{1, -1, Normalize(128)}
	for c := 0; c < 3; c++ {
		for i := 0; i < plane; i++ {
			if v := first[c*plane+i]; math.Abs(v-want[c]) > 1e-9 {
				t.Fatalf("Sample(0) channel %d pixel %d = %v; want %v", c, i, v, want[c])
			}
		}
	}
	for _, v := range ds.Images.Data().([]float64) {
		if v < -1 || v > 1 {
			t.Fatalf("Value %v is out of [-1, 1]", v)
		}
	}
}

func TestLoadDatasetNoFiles(t *testing.T) {
	if _, err := LoadDataset(filepath.Join(t.TempDir(), "missing_"), 8, 8); err == nil {
		t.Error("LoadDataset on empty match = nil error; want error")
	}
}

func TestLoadDatasetBadFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "img_1.png"), solidImage(4, 4, color.RGBA{A: 255}))
	if err := os.WriteFile(filepath.Join(dir, "img_2.png"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(filepath.Join(dir, "img_"), 8, 8); err == nil {
		t.Error("LoadDataset with undecodable file = nil error; want error")
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for p := 0; p < 256; p++ {
		if got := Denormalize(Normalize(uint8(p))); got != uint8(p) {
			t.Errorf("Denormalize(Normalize(%d)) = %d", p, got)
		}
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		x := rng.Float64()*2 - 1
		back := Normalize(Denormalize(x))
		if math.Abs(back-x) > 1.0/255 {
			t.Errorf("Normalize(Denormalize(%v)) = %v; error exceeds 1/255", x, back)
		}
	}
	if Denormalize(-3) != 0 || Denormalize(3) != 255 {
		t.Errorf("Denormalize must clip out of range values")
	}
}

func TestDatasetDropsAlpha(t *testing.T) {
	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	half := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			transparent.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
			half.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 0, A: 128})
		}
	}
	ds, err := DatasetFromImages([]image.Image{transparent, half}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		sample int
		want   []float64
	}{
		{0, []float64{1, 1, 1}},
		{1, []float64{Normalize(200), Normalize(100), Normalize(0)}},
	}
	for _, tt := range tests {
		data := ds.Sample(tt.sample)
		for c := 0; c < 3; c++ {
			for i := 0; i < 4; i++ {
				if v := data[c*4+i]; math.Abs(v-tt.want[c]) > 1e-9 {
					t.Fatalf("Sample(%d) channel %d pixel %d = %v; want %v", tt.sample, c, i, v, tt.want[c])
				}
			}
		}
	}
}

func TestLoadDatasetTransparentPNG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
		}
	}
	writePNG(t, filepath.Join(dir, "alpha_1.png"), img)
	ds, err := LoadDataset(filepath.Join(dir, "alpha_"), 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range ds.Sample(0) {
		if v != 1 {
			t.Fatalf("Transparent white value #%d = %v; want 1", i, v)
		}
	}
}

func TestLoadDatasetDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "img_1.png"), solidImage(4, 4, color.RGBA{A: 255}))
	if err := os.Mkdir(filepath.Join(dir, "img_dir"), 0755); err != nil {
		t.Fatal(err)
	}
	_, err := LoadDataset(filepath.Join(dir, "img_"), 8, 8)
	if err == nil {
		t.Fatal("LoadDataset with matching directory = nil error; want error")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Errorf("Error = %q; want it to name the directory", err.Error())
	}
}
