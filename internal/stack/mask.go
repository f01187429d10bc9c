package stack

import "image"

// RegionFromROI converts a configured [x1, y1, x2, y2] region, given in
// unbinned sensor pixels, into an inclusive pixel rectangle for frames
// captured at the given binning. It returns false when roi is incomplete.
func RegionFromROI(roi []int, binning int) (image.Rectangle, bool) {
	if len(roi) < 4 {
		return image.Rectangle{}, false
	}
	if binning < 1 {
		binning = 1
	}
	x1, y1 := roi[0]/binning, roi[1]/binning
	x2, y2 := roi[2]/binning, roi[3]/binning
	return image.Rect(x1, y1, x2+1, y2+1), true
}

// CentralRegion spans w/2 ± w/3 horizontally and h/2 ± h/3 vertically.
func CentralRegion(width, height int) image.Rectangle {
	w, h := float64(width), float64(height)
	x1 := int(w/2 - w/3)
	y1 := int(h/2 - h/3)
	x2 := int(w/2 + w/3)
	y2 := int(h/2 + h/3)
	return image.Rect(x1, y1, x2+1, y2+1)
}
