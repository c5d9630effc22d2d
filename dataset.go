package tlgan

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	// Registered decoders for dataset files
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// Dataset Real images of shape (N, 3, H, W) with values in [-1, 1]. Must not be modified after loading
type Dataset struct {
	Images *tensor.Dense
	Len    int
	Height int
	Width  int
}

// Normalize Rescales pixel intensity from [0, 255] to [-1, 1]
func Normalize(p uint8) float64 {
	return (float64(p) - 127.5) / 127.5
}

// Denormalize Rescales value from [-1, 1] to [0, 255] pixel intensity. Values outside of range are clipped
func Denormalize(v float64) uint8 {
	p := math.Round(v*127.5 + 127.5)
	if p < 0 {
		return 0
	}
	if p > 255 {
		return 255
	}
	return uint8(p)
}

// LoadDataset Loads every file matching '<prefix>*' as RGB image resized to (height, width).
// Fails if nothing matches or any file can't be decoded.
func LoadDataset(prefix string, height, width int) (*Dataset, error) {
	files, err := filepath.Glob(prefix + "*")
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't glob dataset path '%s'", prefix))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("Dataset path '%s' matches no files", prefix)
	}
	sort.Strings(files)
	imgs := make([]image.Image, 0, len(files))
	for _, fname := range files {
		img, err := decodeImage(fname)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return DatasetFromImages(imgs, height, width)
}

func decodeImage(fname string) (image.Image, error) {
	info, err := os.Stat(fname)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't stat image '%s'", fname))
	}
	if info.IsDir() {
		return nil, fmt.Errorf("Dataset path '%s' is a directory, not an image", fname)
	}
	f, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't open image '%s'", fname))
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't decode image '%s'", fname))
	}
	return img, nil
}

// DatasetFromImages Drops alpha channel, resizes images to (height, width) with nearest-neighbour interpolation and stacks them into Dataset
func DatasetFromImages(imgs []image.Image, height, width int) (*Dataset, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("Dataset can't be empty")
	}
	if height < 1 || width < 1 {
		return nil, fmt.Errorf("Target size (%d, %d) does not make sense", height, width)
	}
	plane := height * width
	sampleSize := 3 * plane
	data := make([]float64, len(imgs)*sampleSize)
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, img := range imgs {
		draw.NearestNeighbor.Scale(resized, resized.Bounds(), dropAlpha(img), img.Bounds(), draw.Src, nil)
		offset := i * sampleSize
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				px := resized.Pix[y*resized.Stride+4*x:]
				data[offset+y*width+x] = float64(px[0])
				data[offset+plane+y*width+x] = float64(px[1])
				data[offset+2*plane+y*width+x] = float64(px[2])
			}
		}
	}
	// scale from [0,255] to [-1,1]
	floats.AddConst(-127.5, data)
	floats.Scale(1/127.5, data)
	return &Dataset{
		Images: tensor.New(tensor.WithShape(len(imgs), 3, height, width), tensor.WithBacking(data)),
		Len:    len(imgs),
		Height: height,
		Width:  width,
	}, nil
}

// dropAlpha Returns opaque copy of image keeping straight (non-premultiplied) RGB values
func dropAlpha(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	opaque := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var c color.NRGBA
			switch src := img.At(x, y).(type) {
			case color.NRGBA:
				c = src
			case color.NRGBA64:
				c = color.NRGBA{R: uint8(src.R >> 8), G: uint8(src.G >> 8), B: uint8(src.B >> 8)}
			default:
				c = color.NRGBAModel.Convert(src).(color.NRGBA)
			}
			c.A = 255
			opaque.SetNRGBA(x, y, c)
		}
	}
	return opaque
}

// Sample Returns backing values of i-th image (3*H*W values, channel-major)
func (ds *Dataset) Sample(i int) []float64 {
	size := 3 * ds.Height * ds.Width
	return ds.Images.Data().([]float64)[i*size : (i+1)*size]
}
