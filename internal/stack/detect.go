package stack

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientSources reports a frame with too few detectable stars.
var ErrInsufficientSources = errors.New("insufficient sources for registration")

// minSources is the fewest control points a triangle needs.
const minSources = 3

// madScale converts a median absolute deviation into a gaussian sigma.
const madScale = 1.4826

type point struct {
	X, Y float64
}

type source struct {
	point
	flux float64
	area int
}

type detector struct {
	sigma    float64
	maxCount int
	minArea  int
}

// luminance flattens f to one float plane.
func luminance(f *Frame) []float64 {
	n := f.Width * f.Height
	out := make([]float64, n)
	if f.Channels == 1 {
		for i := range n {
			out[i] = float64(f.Pix[i])
		}
		return out
	}
	for i := range n {
		var sum float64
		for c := range f.Channels {
			sum += float64(f.Pix[i*f.Channels+c])
		}
		out[i] = sum / float64(f.Channels)
	}
	return out
}

// background returns the median and a robust spread of the pixels in region.
func background(plane []float64, width int, region image.Rectangle) (float64, float64) {
	values := make([]float64, 0, region.Dx()*region.Dy())
	for y := region.Min.Y; y < region.Max.Y; y++ {
		values = append(values, plane[y*width+region.Min.X:y*width+region.Max.X]...)
	}
	if len(values) == 0 {
		return 0, 1
	}
	sort.Float64s(values)
	median := stat.Quantile(0.5, stat.Empirical, values, nil)

	for i, v := range values {
		values[i] = math.Abs(v - median)
	}
	sort.Float64s(values)
	spread := madScale * stat.Quantile(0.5, stat.Empirical, values, nil)
	if spread < 1 {
		spread = 1
	}
	return median, spread
}

// detect finds bright connected blobs inside region and returns their
// flux-weighted centroids, brightest first.
func (d detector) detect(f *Frame, region image.Rectangle) ([]point, error) {
	region = region.Intersect(image.Rect(0, 0, f.Width, f.Height))
	if region.Empty() {
		return nil, fmt.Errorf("%w: empty detection region", ErrInsufficientSources)
	}

	plane := luminance(f)
	median, spread := background(plane, f.Width, region)
	threshold := median + d.sigma*spread

	seen := make([]bool, len(plane))
	var found []source
	var pending []int

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			idx := y*f.Width + x
			if seen[idx] || plane[idx] <= threshold {
				continue
			}
			seen[idx] = true
			pending = append(pending[:0], idx)

			var src source
			var sx, sy float64
			for len(pending) > 0 {
				cur := pending[len(pending)-1]
				pending = pending[:len(pending)-1]
				cx, cy := cur%f.Width, cur/f.Width
				w := plane[cur] - median
				sx += w * float64(cx)
				sy += w * float64(cy)
				src.flux += w
				src.area++

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := cx+dx, cy+dy
						if !image.Pt(nx, ny).In(region) {
							continue
						}
						n := ny*f.Width + nx
						if seen[n] || plane[n] <= threshold {
							continue
						}
						seen[n] = true
						pending = append(pending, n)
					}
				}
			}
			if src.area < d.minArea || src.flux <= 0 {
				continue
			}
			src.X = sx / src.flux
			src.Y = sy / src.flux
			found = append(found, src)
		}
	}

	if len(found) < minSources {
		return nil, fmt.Errorf("%w: found %d, need %d", ErrInsufficientSources, len(found), minSources)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].flux > found[j].flux })
	if d.maxCount > 0 && len(found) > d.maxCount {
		found = found[:d.maxCount]
	}
	points := make([]point, len(found))
	for i, s := range found {
		points[i] = s.point
	}
	return points, nil
}
