package tensor

import (
	"fmt"
	"image"
	"image/color"
)

const (
	Channels          = 3
	PlaceholderWidth  = 512
	PlaceholderHeight = 512
)

// Image is laid out as [Batch][Height][Width][Channels] in Data.
type Image struct {
	Batch, Height, Width int
	Data                 []float32
}

func New(batch, height, width int) *Image {
	return &Image{
		Batch:  batch,
		Height: height,
		Width:  width,
		Data:   make([]float32, batch*height*width*Channels),
	}
}

func Placeholder() *Image {
	return New(1, PlaceholderHeight, PlaceholderWidth)
}

// FromImage converts src into a batch of one. Alpha is dropped.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	t := New(1, b.Dy(), b.Dx())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			t.Data[i] = float32(c.R) / 255
			t.Data[i+1] = float32(c.G) / 255
			t.Data[i+2] = float32(c.B) / 255
			i += Channels
		}
	}
	return t
}

func (t *Image) Shape() []int {
	return []int{t.Batch, t.Height, t.Width, Channels}
}

func (t *Image) At(n int) (image.Image, error) {
	if n < 0 || n >= t.Batch {
		return nil, fmt.Errorf("batch index %d out of range [0,%d)", n, t.Batch)
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	stride := t.Height * t.Width * Channels
	px := t.Data[n*stride : (n+1)*stride]
	for p := 0; p < t.Height*t.Width; p++ {
		img.Pix[p*4] = quantize(px[p*Channels])
		img.Pix[p*4+1] = quantize(px[p*Channels+1])
		img.Pix[p*4+2] = quantize(px[p*Channels+2])
		img.Pix[p*4+3] = 0xff
	}
	return img, nil
}

func quantize(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}
