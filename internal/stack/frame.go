package stack

import (
	"errors"
	"fmt"
)

// ErrGeometry reports frames whose dimensions, channels or depth differ.
var ErrGeometry = errors.New("frame geometry mismatch")

// Frame is a decoded image buffer. Pix holds Width*Height*Channels samples,
// interleaved per pixel, row-major. Depth is 8 or 16 bits per sample.
type Frame struct {
	Source   string
	Width    int
	Height   int
	Channels int
	Depth    int
	Pix      []uint16
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height, channels, depth int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if depth != 8 && depth != 16 {
		return nil, fmt.Errorf("unsupported sample depth %d", depth)
	}
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    depth,
		Pix:      make([]uint16, width*height*channels),
	}, nil
}

// MaxValue is the largest sample the frame depth can hold.
func (f *Frame) MaxValue() uint16 {
	if f.Depth == 8 {
		return 0xff
	}
	return 0xffff
}

// At returns the sample at (x, y) for channel c.
func (f *Frame) At(x, y, c int) uint16 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// Set stores a sample at (x, y) for channel c.
func (f *Frame) Set(x, y, c int, v uint16) {
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := *f
	out.Pix = append([]uint16(nil), f.Pix...)
	return &out
}

// SameGeometry reports whether o can be combined sample-for-sample with f.
func (f *Frame) SameGeometry(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Channels == o.Channels && f.Depth == o.Depth
}

func (f *Frame) validate() error {
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("%w: %s has %d samples, want %d", ErrGeometry, f.Source, len(f.Pix), want)
	}
	return nil
}

func checkStack(frames []*Frame) error {
	if len(frames) == 0 {
		return errors.New("no frames to stack")
	}
	ref := frames[0]
	if ref == nil {
		return errors.New("nil frame in stack")
	}
	if err := ref.validate(); err != nil {
		return err
	}
	for i, f := range frames[1:] {
		if f == nil {
			return fmt.Errorf("nil frame at index %d", i+1)
		}
		if !ref.SameGeometry(f) {
			return fmt.Errorf("%w: frame %d is %dx%dx%d/%d, reference is %dx%dx%d/%d", ErrGeometry, i+1,
				f.Width, f.Height, f.Channels, f.Depth, ref.Width, ref.Height, ref.Channels, ref.Depth)
		}
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}
