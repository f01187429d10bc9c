package stack

import (
	"fmt"
	"strings"
)

// Method names a reduction.
type Method string

const (
	MethodMean    Method = "mean"
	MethodMaximum Method = "maximum"
	MethodMinimum Method = "minimum"
)

// ParseMethod accepts the canonical names plus the aliases average, max and min.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mean", "average":
		return MethodMean, nil
	case "maximum", "max":
		return MethodMaximum, nil
	case "minimum", "min":
		return MethodMinimum, nil
	default:
		return "", fmt.Errorf("unknown stacking method %q", name)
	}
}

// Reduce combines frames with the named method.
func Reduce(method string, frames []*Frame) (*Frame, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	switch m {
	case MethodMaximum:
		return Maximum(frames)
	case MethodMinimum:
		return Minimum(frames)
	default:
		return Mean(frames)
	}
}

// Mean averages each sample across frames, truncating toward zero so the
// result never exceeds the true mean.
func Mean(frames []*Frame) (*Frame, error) {
	if err := checkStack(frames); err != nil {
		return nil, err
	}
	sums := make([]uint64, len(frames[0].Pix))
	for _, f := range frames {
		for i, v := range f.Pix {
			sums[i] += uint64(v)
		}
	}
	out := frames[0].Clone()
	out.Source = ""
	n := uint64(len(frames))
	for i, s := range sums {
		out.Pix[i] = uint16(s / n)
	}
	return out, nil
}

// Maximum keeps the brightest sample at each position.
func Maximum(frames []*Frame) (*Frame, error) {
	return fold(frames, func(a, b uint16) uint16 { return max(a, b) })
}

// Minimum keeps the darkest sample at each position.
func Minimum(frames []*Frame) (*Frame, error) {
	return fold(frames, func(a, b uint16) uint16 { return min(a, b) })
}

func fold(frames []*Frame, pick func(a, b uint16) uint16) (*Frame, error) {
	if err := checkStack(frames); err != nil {
		return nil, err
	}
	out := frames[0].Clone()
	out.Source = ""
	for _, f := range frames[1:] {
		for i, v := range f.Pix {
			out.Pix[i] = pick(out.Pix[i], v)
		}
	}
	return out, nil
}
