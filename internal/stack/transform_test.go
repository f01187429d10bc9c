package stack

import (
	"math"
	"testing"
)

func TestFitSimilarityRecoversRotationAndScale(t *testing.T) {
	want := Similarity{A: 1.02 * math.Cos(0.1), B: 1.02 * math.Sin(0.1), TX: 4, TY: -7}
	src := []point{{10, 10}, {80, 25}, {40, 90}, {120, 60}}
	dst := make([]point, len(src))
	for i, p := range src {
		dst[i] = want.apply(p)
	}

	got, err := fitSimilarity(src, dst)
	if err != nil {
		t.Fatalf("fitSimilarity failed: %v", err)
	}
	if math.Abs(got.Rotation()-0.1) > 1e-9 || math.Abs(got.Scale()-1.02) > 1e-9 {
		t.Fatalf("unexpected fit rotation=%g scale=%g", got.Rotation(), got.Scale())
	}
	if math.Abs(got.TX-4) > 1e-9 || math.Abs(got.TY+7) > 1e-9 {
		t.Fatalf("unexpected translation (%g, %g)", got.TX, got.TY)
	}
}

func TestSimilarityInverseRoundTrips(t *testing.T) {
	s := Similarity{A: 0.9, B: 0.3, TX: 12, TY: -5}
	inv, err := s.inverse()
	if err != nil {
		t.Fatalf("inverse failed: %v", err)
	}
	p := point{X: 33, Y: 71}
	back := inv.apply(s.apply(p))
	if dist(p, back) > 1e-9 {
		t.Fatalf("round trip drifted: %v -> %v", p, back)
	}
}

func TestFindTransformRecoversRotation(t *testing.T) {
	src := []point{
		{62, 71}, {101, 58}, {139, 77}, {75, 118}, {121, 109},
		{148, 133}, {88, 146}, {59, 96}, {113, 141}, {134, 55},
	}
	model := Similarity{A: math.Cos(0.05), B: math.Sin(0.05), TX: 2.5, TY: 1}
	dst := make([]point, len(src))
	for i, p := range src {
		// Reverse the order so correspondence must come from geometry.
		dst[len(src)-1-i] = model.apply(p)
	}

	got, matches, err := findTransform(src, dst)
	if err != nil {
		t.Fatalf("findTransform failed: %v", err)
	}
	if matches < 3 {
		t.Fatalf("expected several control points, got %d", matches)
	}
	if math.Abs(got.Rotation()-0.05) > 1e-6 || math.Abs(got.TX-2.5) > 1e-6 {
		t.Fatalf("unexpected model rotation=%g tx=%g", got.Rotation(), got.TX)
	}
}

func TestArrangeOrdersVerticesBySides(t *testing.T) {
	pts := []point{{0, 0}, {3, 0}, {0, 4}}
	tri, ok := arrange(pts, [3]int{0, 1, 2})
	if !ok {
		t.Fatal("expected valid triangle")
	}
	// Sides: 0-1 = 3 (short), 2-0 = 4 (mid), 1-2 = 5 (long).
	if tri.v != [3]int{0, 2, 1} {
		t.Fatalf("unexpected vertex order %v", tri.v)
	}
	if math.Abs(tri.invariant[0]-5.0/4) > 1e-12 || math.Abs(tri.invariant[1]-4.0/3) > 1e-12 {
		t.Fatalf("unexpected invariants %v", tri.invariant)
	}
}
