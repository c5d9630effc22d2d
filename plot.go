package tlgan

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gorgonia.org/tensor"
)

// ToImage Converts i-th image of batch (n, 3, H, W) with values in [-1, 1] to RGBA image.
// Values are rescaled to [0, 1] and clipped.
func ToImage(batch *tensor.Dense, i int) (*image.RGBA, error) {
	shp := batch.Shape()
	if shp.Dims() != 4 || shp[1] != 3 {
		return nil, fmt.Errorf("Image batch must have shape (n, 3, H, W), but got %v", shp)
	}
	if i < 0 || i >= shp[0] {
		return nil, fmt.Errorf("Image index %d is out of range [0, %d)", i, shp[0])
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Image batch has unexpected type %T", batch.Data())
	}
	height, width := shp[2], shp[3]
	plane := height * width
	offset := i * 3 * plane
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := offset + y*width + x
			img.SetRGBA(x, y, color.RGBA{
				R: Denormalize(data[idx]),
				G: Denormalize(data[idx+plane]),
				B: Denormalize(data[idx+2*plane]),
				A: 255,
			})
		}
	}
	return img, nil
}

// gridCanvases Splits canvas into n x n tiles, one per plot
func gridCanvases(plots [][]*plot.Plot, dc draw.Canvas) [][]draw.Canvas {
	n := len(plots)
	t := draw.Tiles{
		Rows: n,
		Cols: n,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	return plot.Align(plots, t, dc)
}

// SavePlot Renders first n*n images of batch (n, 3, H, W) as n x n grid without axes into PNG file
func SavePlot(batch *tensor.Dense, n int, fname string) error {
	if n < 1 {
		return fmt.Errorf("Grid size must be positive, but got %d", n)
	}
	if batch.Shape().Dims() != 4 || batch.Shape()[0] < n*n {
		return fmt.Errorf("Grid %dx%d needs %d images, but got batch of shape %v", n, n, n*n, batch.Shape())
	}
	height, width := float64(batch.Shape()[2]), float64(batch.Shape()[3])
	plots := make([][]*plot.Plot, n)
	for row := 0; row < n; row++ {
		plots[row] = make([]*plot.Plot, n)
		for col := 0; col < n; col++ {
			img, err := ToImage(batch, row*n+col)
			if err != nil {
				return errors.Wrap(err, "Can't convert sample to image")
			}
			p := plot.New()
			p.HideAxes()
			p.Add(plotter.NewImage(img, 0, 0, width, height))
			plots[row][col] = p
		}
	}
	canvas := vgimg.New(6.4*vg.Inch, 4.8*vg.Inch)
	dc := draw.New(canvas)
	tiles := gridCanvases(plots, dc)
	for row := range plots {
		for col := range plots[row] {
			plots[row][col].Draw(tiles[row][col])
		}
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create plot file '%s'", fname))
	}
	if _, err = (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		f.Close()
		return errors.Wrap(err, "Can't save plot")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't close plot file '%s'", fname))
	}
	return nil
}
