package stack

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"allsky/internal/logging"
)

// Recorder observes per-frame registration outcomes.
type Recorder interface {
	ObserveRegistration(outcome string)
}

// Registration outcome labels passed to Recorder.
const (
	OutcomeAligned             = "aligned"
	OutcomeInsufficientSources = "insufficient_sources"
	OutcomeNoModel             = "no_model"
	OutcomeGeometry            = "geometry"
	OutcomeError               = "error"
)

// Result describes the registration of one non-reference frame.
type Result struct {
	Source    string
	Transform Similarity
	Matches   int
	Err       error

	frame *Frame
}

// OK reports whether the frame was aligned.
func (r Result) OK() bool { return r.Err == nil }

// Option configures a Registrar.
type Option func(*Registrar)

// WithMask fixes the detection region instead of deriving it from the
// reference frame.
func WithMask(region image.Rectangle) Option {
	return func(r *Registrar) {
		r.region = region
		r.hasRegion = true
	}
}

// WithROI restricts detection to roi ([x1, y1, x2, y2] in unbinned pixels).
func WithROI(roi []int, binning int) Option {
	return func(r *Registrar) {
		r.roi = append([]int(nil), roi...)
		r.binning = binning
	}
}

// WithDetection overrides the source detection parameters.
func WithDetection(sigma float64, maxControlPoints, minArea int) Option {
	return func(r *Registrar) {
		if sigma > 0 {
			r.detector.sigma = sigma
		}
		if maxControlPoints > 0 {
			r.detector.maxCount = maxControlPoints
		}
		if minArea > 0 {
			r.detector.minArea = minArea
		}
	}
}

// WithLogger sets the registrar logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		r.logger = logging.NewComponentLogger(logger, "stack")
	}
}

// WithRecorder reports outcomes to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Registrar) {
		r.recorder = rec
	}
}

// Registrar aligns frames to the first frame of each batch. The detection
// region is fixed on first use and reused for later batches.
type Registrar struct {
	detector  detector
	roi       []int
	binning   int
	region    image.Rectangle
	hasRegion bool
	logger    *slog.Logger
	recorder  Recorder
}

// NewRegistrar returns a registrar with detection sigma 5, at most 150
// control points and a minimum blob area of 15 pixels.
func NewRegistrar(opts ...Option) *Registrar {
	r := &Registrar{
		detector: detector{sigma: 5, maxCount: 150, minArea: 15},
		binning:  1,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Region returns the detection region, if it has been fixed.
func (r *Registrar) Region() (image.Rectangle, bool) {
	return r.region, r.hasRegion
}

func (r *Registrar) ensureRegion(ref *Frame) {
	if r.hasRegion {
		return
	}
	if region, ok := RegionFromROI(r.roi, r.binning); ok {
		r.logger.Info("registration region from configured roi", logging.String("region", region.String()))
		r.region = region
	} else {
		r.logger.Warn("using central region for registration", logging.String(logging.FieldEventType, "registration_roi_default"))
		r.region = CentralRegion(ref.Width, ref.Height)
	}
	r.hasRegion = true
}

// Register aligns frames[1:] to frames[0]. The reference is returned first
// and unchanged, followed by the aligned frames in input order. Frames that
// fail are omitted from the output; results carries one entry per
// non-reference frame.
func (r *Registrar) Register(frames []*Frame) ([]*Frame, []Result) {
	if len(frames) == 0 {
		return nil, nil
	}
	ref := frames[0]
	aligned := []*Frame{ref}
	if len(frames) == 1 {
		return aligned, nil
	}

	start := time.Now()
	results := make([]Result, 0, len(frames)-1)

	var (
		refPoints []point
		refErr    error
	)
	switch {
	case ref == nil:
		refErr = fmt.Errorf("reference: %w: nil frame", ErrGeometry)
	default:
		if refErr = ref.validate(); refErr == nil {
			r.ensureRegion(ref)
			refPoints, refErr = r.detector.detect(ref, r.region)
		}
		if refErr != nil {
			refErr = fmt.Errorf("reference %s: %w", ref.Source, refErr)
		}
	}

	for _, f := range frames[1:] {
		res := r.registerOne(ref, refPoints, refErr, f)
		results = append(results, res)
		if res.Err != nil {
			r.observe(res.Err)
			logging.ErrorWithContext(r.logger, "image registration failure", "registration_failed",
				logging.String("source", res.Source),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "frame dropped from stack; check focus, clouds or roi"),
			)
			continue
		}
		r.observe(nil)
		aligned = append(aligned, res.frame)
		tx, ty := res.Transform.Translation()
		r.logger.Info("registration matches",
			logging.String("source", res.Source),
			logging.Int("matches", res.Matches),
			logging.Float64("rotation", res.Transform.Rotation()),
			logging.Float64("translation_x", tx),
			logging.Float64("translation_y", ty),
			logging.Float64("scale", res.Transform.Scale()),
		)
	}

	r.logger.Info(fmt.Sprintf("registered %d+1 images", len(frames)-1),
		logging.Int("aligned", len(aligned)-1),
		logging.Duration("elapsed", time.Since(start)),
	)
	return aligned, results
}

func (r *Registrar) registerOne(ref *Frame, refPoints []point, refErr error, f *Frame) Result {
	res := Result{}
	if f == nil {
		res.Err = fmt.Errorf("%w: nil frame", ErrGeometry)
		return res
	}
	res.Source = f.Source
	if refErr != nil {
		res.Err = refErr
		return res
	}
	if !ref.SameGeometry(f) {
		res.Err = fmt.Errorf("%w: %dx%dx%d vs reference %dx%dx%d", ErrGeometry,
			f.Width, f.Height, f.Channels, ref.Width, ref.Height, ref.Channels)
		return res
	}
	if err := f.validate(); err != nil {
		res.Err = err
		return res
	}

	points, err := r.detector.detect(f, r.region)
	if err != nil {
		res.Err = err
		return res
	}
	model, matches, err := findTransform(points, refPoints)
	if err != nil {
		res.Err = err
		return res
	}
	out, err := warp(f, model, ref.Width, ref.Height)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrNoModel, err)
		return res
	}
	res.Transform = model
	res.Matches = matches
	res.frame = out
	return res
}

func (r *Registrar) observe(err error) {
	if r.recorder == nil {
		return
	}
	outcome := OutcomeAligned
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientSources):
		outcome = OutcomeInsufficientSources
	case errors.Is(err, ErrNoModel):
		outcome = OutcomeNoModel
	case errors.Is(err, ErrGeometry):
		outcome = OutcomeGeometry
	default:
		outcome = OutcomeError
	}
	r.recorder.ObserveRegistration(outcome)
}
