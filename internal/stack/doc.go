// Package stack fuses a burst of exposures into one composite.
//
// Frames are first aligned to the reference (the first frame) with a
// star-pattern registration: bright sources are detected inside a region of
// interest, matched between frames through triangle invariants, and a
// similarity transform (rotation, uniform scale, translation) is fitted to the
// matched control points. Frames that cannot be aligned are dropped. The
// aligned set is then reduced per sample with Mean, Maximum or Minimum.
package stack
