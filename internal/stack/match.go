package stack

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoModel reports that no similarity explained enough triangle matches.
var ErrNoModel = errors.New("no acceptable transform found")

const (
	// nearestNeighbours is the size of each star's local group, itself included.
	nearestNeighbours = 5
	// invariantRadius bounds the distance between matching invariants.
	invariantRadius = 0.1
	// pixelTolerance is the largest control point residual of an inlier.
	pixelTolerance = 2.0
	// minMatchFraction scales the inlier count a model must reach.
	minMatchFraction = 0.8
	maxModelTrials   = 2000
)

// triangle holds three vertex indices ordered so that matching triangles in
// two frames list corresponding stars in the same order.
type triangle struct {
	v         [3]int
	invariant [2]float64
}

type triangleMatch struct {
	src, dst triangle
	distance float64
}

// triangles builds the invariant set for points from each star's nearest
// neighbour group.
func triangles(points []point) []triangle {
	seen := make(map[[3]int]struct{})
	var out []triangle
	for i := range points {
		group := nearest(points, i, nearestNeighbours)
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				for c := b + 1; c < len(group); c++ {
					key := [3]int{group[a], group[b], group[c]}
					sort.Ints(key[:])
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					if tri, ok := arrange(points, key); ok {
						out = append(out, tri)
					}
				}
			}
		}
	}
	return out
}

// nearest returns i and its k-1 closest neighbours.
func nearest(points []point, i, k int) []int {
	idx := make([]int, len(points))
	for j := range idx {
		idx[j] = j
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return dist(points[i], points[idx[a]]) < dist(points[i], points[idx[b]])
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}

type side struct {
	a, b   int
	length float64
}

// shared returns the vertex common to s and t.
func (s side) shared(t side) int {
	if s.a == t.a || s.a == t.b {
		return s.a
	}
	return s.b
}

// arrange orders the triangle's vertices by the sides meeting there: the
// first joins the shortest and middle sides, the second the middle and
// longest, the third the longest and shortest.
func arrange(points []point, v [3]int) (triangle, bool) {
	sides := []side{
		{v[0], v[1], dist(points[v[0]], points[v[1]])},
		{v[1], v[2], dist(points[v[1]], points[v[2]])},
		{v[2], v[0], dist(points[v[2]], points[v[0]])},
	}
	sort.SliceStable(sides, func(i, j int) bool { return sides[i].length < sides[j].length })
	short, mid, long := sides[0], sides[1], sides[2]
	if short.length == 0 {
		return triangle{}, false
	}
	return triangle{
		v:         [3]int{short.shared(mid), mid.shared(long), long.shared(short)},
		invariant: [2]float64{long.length / mid.length, mid.length / short.length},
	}, true
}

func matchTriangles(src, dst []triangle) []triangleMatch {
	var out []triangleMatch
	for _, s := range src {
		for _, d := range dst {
			dd := math.Hypot(s.invariant[0]-d.invariant[0], s.invariant[1]-d.invariant[1])
			if dd < invariantRadius {
				out = append(out, triangleMatch{src: s, dst: d, distance: dd})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	return out
}

// residual is the largest vertex error of m under model.
func residual(model Similarity, m triangleMatch, srcPts, dstPts []point) float64 {
	var worst float64
	for k := range 3 {
		worst = max(worst, dist(model.apply(srcPts[m.src.v[k]]), dstPts[m.dst.v[k]]))
	}
	return worst
}

// findTransform estimates the similarity taking srcPts onto dstPts. It tries
// each triangle match as a candidate model, closest invariants first, and
// accepts the first one whose inliers reach the required count. The result
// is refitted on every inlier control point pair.
func findTransform(srcPts, dstPts []point) (Similarity, int, error) {
	matches := matchTriangles(triangles(srcPts), triangles(dstPts))
	if len(matches) == 0 {
		return Similarity{}, 0, fmt.Errorf("%w: no matching triangles", ErrNoModel)
	}
	need := max(1, min(10, int(float64(len(matches))*minMatchFraction)))

	trials := min(len(matches), maxModelTrials)
	for t := range trials {
		cand := matches[t]
		model, err := fitSimilarity(trianglePoints(cand.src, srcPts), trianglePoints(cand.dst, dstPts))
		if err != nil {
			continue
		}
		var inliers []triangleMatch
		for _, m := range matches {
			if residual(model, m, srcPts, dstPts) < pixelTolerance {
				inliers = append(inliers, m)
			}
		}
		if len(inliers) < need {
			continue
		}

		src, dst := controlPairs(inliers, srcPts, dstPts)
		refined, err := fitSimilarity(src, dst)
		if err != nil {
			continue
		}
		return refined, len(src), nil
	}
	return Similarity{}, 0, fmt.Errorf("%w: tried %d of %d triangle matches", ErrNoModel, trials, len(matches))
}

func trianglePoints(tri triangle, pts []point) []point {
	return []point{pts[tri.v[0]], pts[tri.v[1]], pts[tri.v[2]]}
}

// controlPairs flattens inlier triangles into unique point correspondences.
func controlPairs(inliers []triangleMatch, srcPts, dstPts []point) ([]point, []point) {
	seen := make(map[[2]int]struct{})
	var src, dst []point
	for _, m := range inliers {
		for k := range 3 {
			key := [2]int{m.src.v[k], m.dst.v[k]}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			src = append(src, srcPts[key[0]])
			dst = append(dst, dstPts[key[1]])
		}
	}
	return src, dst
}
