package stack

import "math"

// warp resamples f into a width x height frame so that each output pixel p
// takes the value of f at model^-1(p). Bilinear interpolation; samples that
// fall outside f are black.
func warp(f *Frame, model Similarity, width, height int) (*Frame, error) {
	inv, err := model.inverse()
	if err != nil {
		return nil, err
	}
	out, err := NewFrame(width, height, f.Channels, f.Depth)
	if err != nil {
		return nil, err
	}
	out.Source = f.Source

	maxX := float64(f.Width) - 0.5
	maxY := float64(f.Height) - 0.5
	ceiling := float64(f.MaxValue())

	for y := range height {
		for x := range width {
			src := inv.apply(point{X: float64(x), Y: float64(y)})
			if src.X < -0.5 || src.Y < -0.5 || src.X > maxX || src.Y > maxY {
				continue
			}
			x0 := int(math.Floor(src.X))
			y0 := int(math.Floor(src.Y))
			fx := src.X - float64(x0)
			fy := src.Y - float64(y0)
			xa, xb := clampIndex(x0, f.Width), clampIndex(x0+1, f.Width)
			ya, yb := clampIndex(y0, f.Height), clampIndex(y0+1, f.Height)

			for c := range f.Channels {
				top := float64(f.At(xa, ya, c))*(1-fx) + float64(f.At(xb, ya, c))*fx
				bottom := float64(f.At(xa, yb, c))*(1-fx) + float64(f.At(xb, yb, c))*fx
				v := math.Round(top*(1-fy) + bottom*fy)
				out.Set(x, y, c, uint16(math.Min(math.Max(v, 0), ceiling)))
			}
		}
	}
	return out, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
