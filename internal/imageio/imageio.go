// Package imageio converts between image files and stack frames.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"allsky/internal/stack"
)

// jpegQuality matches the capture pipeline's default.
const jpegQuality = 90

// Extensions lists the file types Read understands.
var Extensions = []string{"jpg", "jpeg", "png", "tif", "tiff"}

// Read decodes the image at path.
func Read(path string) (*stack.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	frame, err := Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	frame.Source = path
	return frame, nil
}

// Decode reads any registered format. Gray images keep one channel; all
// others become RGB. 16-bit formats keep their depth.
func Decode(r io.Reader) (*stack.Frame, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// FromImage converts img into a frame.
func FromImage(img image.Image) (*stack.Frame, error) {
	b := img.Bounds()
	channels, depth := 3, 8
	switch img.(type) {
	case *image.Gray:
		channels = 1
	case *image.Gray16:
		channels, depth = 1, 16
	case *image.RGBA64, *image.NRGBA64:
		depth = 16
	}

	frame, err := stack.NewFrame(b.Dx(), b.Dy(), channels, depth)
	if err != nil {
		return nil, err
	}
	shift := uint32(0)
	if depth == 8 {
		shift = 8
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px, py := x-b.Min.X, y-b.Min.Y
			if channels == 1 {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				frame.Set(px, py, 0, uint16(uint32(g.Y)>>shift))
				continue
			}
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			frame.Set(px, py, 0, uint16(uint32(c.R)>>shift))
			frame.Set(px, py, 1, uint16(uint32(c.G)>>shift))
			frame.Set(px, py, 2, uint16(uint32(c.B)>>shift))
		}
	}
	return frame, nil
}

// ToImage converts a frame back into an image of matching depth.
func ToImage(f *stack.Frame) image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch {
	case f.Channels == 1 && f.Depth == 8:
		img := image.NewGray(rect)
		for i, v := range f.Pix {
			img.Pix[i] = uint8(v)
		}
		return img
	case f.Channels == 1:
		img := image.NewGray16(rect)
		for y := range f.Height {
			for x := range f.Width {
				img.SetGray16(x, y, color.Gray16{Y: f.At(x, y, 0)})
			}
		}
		return img
	case f.Depth == 8:
		img := image.NewNRGBA(rect)
		for y := range f.Height {
			for x := range f.Width {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(f.At(x, y, 0)), G: uint8(f.At(x, y, 1)), B: uint8(f.At(x, y, 2)), A: 0xff})
			}
		}
		return img
	default:
		img := image.NewNRGBA64(rect)
		for y := range f.Height {
			for x := range f.Width {
				img.SetNRGBA64(x, y, color.NRGBA64{R: f.At(x, y, 0), G: f.At(x, y, 1), B: f.At(x, y, 2), A: 0xffff})
			}
		}
		return img
	}
}

// Write encodes f to path, choosing the format from the extension. JPEG
// output is always 8-bit.
func Write(path string, f *stack.Frame) (err error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	var encode func(io.Writer, image.Image) error
	switch ext {
	case "png":
		encode = png.Encode
	case "jpg", "jpeg":
		encode = func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		}
	case "tif", "tiff":
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}

	if f.Depth == 16 && (ext == "jpg" || ext == "jpeg") {
		f = downsample(f)
	}
	img := ToImage(f)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	buf := bufio.NewWriter(file)
	if err := encode(buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return buf.Flush()
}

func downsample(f *stack.Frame) *stack.Frame {
	out := f.Clone()
	out.Depth = 8
	for i, v := range out.Pix {
		out.Pix[i] = v >> 8
	}
	return out
}
