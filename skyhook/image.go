package skyhook

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a packed RGB raster, three bytes per pixel in row-major order.
type Image struct {
	Width  int
	Height int
	Bytes  []byte
}

var (
	Green = [3]uint8{0, 255, 0}
	Red   = [3]uint8{255, 0, 0}
	Black = [3]uint8{0, 0, 0}
	White = [3]uint8{255, 255, 255}
)

func NewImage(width int, height int) Image {
	return Image{
		Width:  width,
		Height: height,
		Bytes:  make([]byte, 3*width*height),
	}
}

func ImageFromBytes(width int, height int, bytes []byte) Image {
	return Image{
		Width:  width,
		Height: height,
		Bytes:  bytes,
	}
}

func ImageFromGoImage(im image.Image) Image {
	rect := im.Bounds()
	width := rect.Dx()
	height := rect.Dy()
	bytes := make([]byte, width*height*3)
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			r, g, b, _ := im.At(i+rect.Min.X, j+rect.Min.Y).RGBA()
			bytes[(j*width+i)*3+0] = uint8(r >> 8)
			bytes[(j*width+i)*3+1] = uint8(g >> 8)
			bytes[(j*width+i)*3+2] = uint8(b >> 8)
		}
	}
	return Image{
		Width:  width,
		Height: height,
		Bytes:  bytes,
	}
}

// DecodeImage decodes any registered format (jpeg, png, bmp, tiff, webp).
func DecodeImage(rd io.Reader) (Image, error) {
	im, _, err := image.Decode(rd)
	if err != nil {
		return Image{}, err
	}
	return ImageFromGoImage(im), nil
}

func ImageFromFile(fname string) (Image, error) {
	file, err := os.Open(fname)
	if err != nil {
		return Image{}, err
	}
	defer file.Close()
	im, err := DecodeImage(file)
	if err != nil {
		return Image{}, errors.Wrapf(err, "decoding %s", fname)
	}
	return im, nil
}

func (im Image) AsImage() image.Image {
	pixbuf := make([]byte, im.Width*im.Height*4)
	j := 0
	channels := 0
	for i := range im.Bytes {
		pixbuf[j] = im.Bytes[i]
		j++
		channels++
		if channels == 3 {
			pixbuf[j] = 255
			j++
			channels = 0
		}
	}
	return &image.RGBA{
		Pix:    pixbuf,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// FormatFromExt maps a filename to the encoder name used by Encode.
func FormatFromExt(fname string) string {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	default:
		return ""
	}
}

func (im Image) Encode(format string, w io.Writer) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, im.AsImage(), &jpeg.Options{Quality: 95})
	case "png":
		return png.Encode(w, im.AsImage())
	case "bmp":
		return bmp.Encode(w, im.AsImage())
	case "tiff":
		return tiff.Encode(w, im.AsImage(), nil)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteFile encodes the image in the format implied by the extension of fname.
func (im Image) WriteFile(fname string) error {
	format := FormatFromExt(fname)
	if format == "" {
		return fmt.Errorf("cannot encode %s: unsupported extension %q", fname, filepath.Ext(fname))
	}
	buf := new(bytes.Buffer)
	if err := im.Encode(format, buf); err != nil {
		return err
	}
	return os.WriteFile(fname, buf.Bytes(), 0644)
}

func (im Image) ToBytes() []byte {
	return im.Bytes
}

func (im Image) SetRGB(i int, j int, color [3]uint8) {
	if i < 0 || i >= im.Width || j < 0 || j >= im.Height {
		return
	}
	for channel := 0; channel < 3; channel++ {
		im.Bytes[(j*im.Width+i)*3+channel] = color[channel]
	}
}

func (im Image) GetRGB(i int, j int) [3]uint8 {
	var color [3]uint8
	for channel := 0; channel < 3; channel++ {
		color[channel] = im.Bytes[(j*im.Width+i)*3+channel]
	}
	return color
}

func (im Image) FillRectangle(left, top, right, bottom int, color [3]uint8) {
	for i := left; i < right; i++ {
		for j := top; j < bottom; j++ {
			im.SetRGB(i, j, color)
		}
	}
}

func (im Image) Copy() Image {
	bytes := make([]byte, len(im.Bytes))
	copy(bytes, im.Bytes)
	return Image{
		Width:  im.Width,
		Height: im.Height,
		Bytes:  bytes,
	}
}

// DrawRectangle outlines the box; each edge is 2*width pixels thick,
// centered on the box boundary.
func (im Image) DrawRectangle(left, top, right, bottom int, width int, color [3]uint8) {
	im.FillRectangle(left-width, top-width, left+width, bottom+width, color)
	im.FillRectangle(right-width, top-width, right+width, bottom+width, color)
	im.FillRectangle(left, top-width, right, top+width, color)
	im.FillRectangle(left, bottom-width, right, bottom+width, color)
}

// Crop returns a copy of the region [left, right) x [top, bottom), clamped
// to the image bounds.
func (im Image) Crop(left, top, right, bottom int) Image {
	left = Clip(left, 0, im.Width)
	right = Clip(right, left, im.Width)
	top = Clip(top, 0, im.Height)
	bottom = Clip(bottom, top, im.Height)
	out := NewImage(right-left, bottom-top)
	for j := top; j < bottom; j++ {
		src := im.Bytes[(j*im.Width+left)*3 : (j*im.Width+right)*3]
		copy(out.Bytes[(j-top)*out.Width*3:], src)
	}
	return out
}

func (im Image) Resize(width, height int) Image {
	if width == im.Width && height == im.Height {
		return im
	}
	if im.Width == 0 || im.Height == 0 {
		return NewImage(width, height)
	}
	resized := resize.Resize(uint(width), uint(height), im.AsImage(), resize.Bilinear)
	return ImageFromGoImage(resized)
}

// Scale resizes by a percentage of the current dimensions (minimum 1x1).
func (im Image) Scale(percent int) Image {
	width := im.Width * percent / 100
	height := im.Height * percent / 100
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return im.Resize(width, height)
}

type RichText struct {
	Text string
	// Baseline origin of the first glyph.
	X int
	Y int
	Color [3]uint8
	// Fill a black box behind the text.
	Backdrop bool
}

func (im Image) DrawText(text RichText) {
	c := color.RGBA{text.Color[0], text.Color[1], text.Color[2], 255}
	d := &font.Drawer{
		Dst:  im,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(text.X, text.Y),
	}
	if text.Backdrop {
		rect, _ := d.BoundString(text.Text)
		sx, sy := rect.Min.X.Round(), rect.Min.Y.Round()
		ex, ey := rect.Max.X.Round(), rect.Max.Y.Round()
		im.FillRectangle(sx-3, sy-3, ex+3, ey+3, Black)
	}
	d.DrawString(text.Text)
}

// for image.Image / draw.Image

func (im Image) Set(i int, j int, c color.Color) {
	r, g, b, _ := c.RGBA()
	im.SetRGB(i, j, [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
}

func (im Image) At(i int, j int) color.Color {
	c := im.GetRGB(i, j)
	return color.RGBA{c[0], c[1], c[2], 255}
}

func (im Image) ColorModel() color.Model {
	return color.RGBAModel
}

func (im Image) Bounds() image.Rectangle {
	return image.Rectangle{image.Point{0, 0}, image.Point{im.Width, im.Height}}
}
