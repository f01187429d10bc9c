package stack

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Similarity maps frame coordinates onto reference coordinates:
//
//	x' = A*x - B*y + TX
//	y' = B*x + A*y + TY
//
// where A = scale*cos(rotation) and B = scale*sin(rotation).
type Similarity struct {
	A, B   float64
	TX, TY float64
}

// Identity leaves coordinates unchanged.
var Identity = Similarity{A: 1}

// Scale is the uniform scale factor.
func (s Similarity) Scale() float64 { return math.Hypot(s.A, s.B) }

// Rotation is the rotation angle in radians.
func (s Similarity) Rotation() float64 { return math.Atan2(s.B, s.A) }

// Translation returns (TX, TY).
func (s Similarity) Translation() (float64, float64) { return s.TX, s.TY }

func (s Similarity) apply(p point) point {
	return point{
		X: s.A*p.X - s.B*p.Y + s.TX,
		Y: s.B*p.X + s.A*p.Y + s.TY,
	}
}

// inverse returns the mapping from reference back to frame coordinates.
func (s Similarity) inverse() (Similarity, error) {
	det := s.A*s.A + s.B*s.B
	if det == 0 {
		return Similarity{}, errors.New("degenerate transform")
	}
	a, b := s.A/det, -s.B/det
	return Similarity{
		A:  a,
		B:  b,
		TX: -(a*s.TX - b*s.TY),
		TY: -(b*s.TX + a*s.TY),
	}, nil
}

// fitSimilarity solves the least-squares similarity taking src onto dst.
func fitSimilarity(src, dst []point) (Similarity, error) {
	if len(src) != len(dst) {
		return Similarity{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < 2 {
		return Similarity{}, errors.New("at least two point pairs required")
	}

	rows := 2 * len(src)
	design := mat.NewDense(rows, 4, nil)
	target := mat.NewVecDense(rows, nil)
	for i, p := range src {
		design.SetRow(2*i, []float64{p.X, -p.Y, 1, 0})
		design.SetRow(2*i+1, []float64{p.Y, p.X, 0, 1})
		target.SetVec(2*i, dst[i].X)
		target.SetVec(2*i+1, dst[i].Y)
	}

	var solution mat.VecDense
	if err := solution.SolveVec(design, target); err != nil {
		return Similarity{}, fmt.Errorf("solve similarity: %w", err)
	}
	s := Similarity{
		A:  solution.AtVec(0),
		B:  solution.AtVec(1),
		TX: solution.AtVec(2),
		TY: solution.AtVec(3),
	}
	if !isFinite(s.A) || !isFinite(s.B) || !isFinite(s.TX) || !isFinite(s.TY) || s.Scale() == 0 {
		return Similarity{}, errors.New("degenerate similarity fit")
	}
	return s, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func dist(a, b point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
