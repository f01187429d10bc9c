package imageio_test

import (
	"path/filepath"
	"slices"
	"testing"

	"allsky/internal/imageio"
	"allsky/internal/stack"
)

func gradient(t *testing.T, channels, depth int) *stack.Frame {
	t.Helper()
	f, err := stack.NewFrame(8, 4, channels, depth)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	for i := range f.Pix {
		f.Pix[i] = uint16(i * 7 % int(f.MaxValue()))
	}
	return f
}

func TestLosslessFormatsPreserveSamples(t *testing.T) {
	tests := []struct {
		name     string
		ext      string
		channels int
		depth    int
	}{
		{"png gray8", "png", 1, 8},
		{"png gray16", "png", 1, 16},
		{"png rgb8", "png", 3, 8},
		{"tiff rgb16", "tiff", 3, 16},
		{"tiff gray8", "tif", 1, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := gradient(t, tc.channels, tc.depth)
			path := filepath.Join(t.TempDir(), "frame."+tc.ext)
			if err := imageio.Write(path, in); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			out, err := imageio.Read(path)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !out.SameGeometry(in) {
				t.Fatalf("geometry changed: got %dx%dx%d/%d", out.Width, out.Height, out.Channels, out.Depth)
			}
			if !slices.Equal(out.Pix, in.Pix) {
				t.Fatalf("samples changed")
			}
			if out.Source != path {
				t.Fatalf("expected source %q, got %q", path, out.Source)
			}
		})
	}
}

func TestJPEGWritesEightBit(t *testing.T) {
	in := gradient(t, 3, 16)
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := imageio.Write(path, in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out, err := imageio.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if out.Depth != 8 || out.Width != in.Width || out.Height != in.Height {
		t.Fatalf("unexpected jpeg frame %dx%d depth %d", out.Width, out.Height, out.Depth)
	}
	if in.Depth != 16 {
		t.Fatal("input frame must not be modified")
	}
}

func TestWriteRejectsUnknownExtension(t *testing.T) {
	if err := imageio.Write(filepath.Join(t.TempDir(), "frame.bmp"), gradient(t, 1, 8)); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
