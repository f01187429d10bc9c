package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"allsky/internal/catalog"
	"allsky/internal/config"
	"allsky/internal/frames"
	"allsky/internal/keogram"
	"allsky/internal/lock"
	"allsky/internal/logging"
	"allsky/internal/metrics"
	"allsky/internal/queue"
	"allsky/internal/timelapse"
)

// ErrBuildInProgress reports that another process holds the build lock.
var ErrBuildInProgress = errors.New("artifact build already in progress")

// Queue supplies build requests and accepts upload hand-offs.
type Queue interface {
	Next(ctx context.Context, interval time.Duration) (*queue.Request, error)
	EnqueueUpload(ctx context.Context, localPath, remotePath string) (*queue.Upload, error)
}

// Catalog is the metadata the worker reads frames from and records
// artifacts in.
type Catalog interface {
	frames.Source
	DeleteArtifactByPath(ctx context.Context, kind catalog.Kind, path string) (int64, error)
	CreateArtifact(ctx context.Context, a catalog.Artifact) (*catalog.Artifact, error)
	MarkUploaded(ctx context.Context, kind catalog.Kind, id int64) error
}

// VideoEncoder renders ordered frames into a video file.
type VideoEncoder interface {
	Encode(ctx context.Context, frames []string, output string) error
}

// Option configures a Worker.
type Option func(*Worker)

// WithEncoder replaces the ffmpeg encoder.
func WithEncoder(enc VideoEncoder) Option {
	return func(w *Worker) {
		if enc != nil {
			w.encoder = enc
		}
	}
}

// WithKeogramGenerator replaces the external keogram command.
func WithKeogramGenerator(gen keogram.Generator) Option {
	return func(w *Worker) {
		if gen != nil {
			w.keogram = gen
		}
	}
}

// WithMetrics records build outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker consumes build requests one at a time.
type Worker struct {
	cfg      *config.Config
	queue    Queue
	catalog  Catalog
	selector *frames.Selector
	lock     *lock.Lock
	encoder  VideoEncoder
	keogram  keogram.Generator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cameraID int64
}

// New wires a worker for the given camera.
func New(cfg *config.Config, q Queue, cat Catalog, cameraID int64, logger *slog.Logger, opts ...Option) *Worker {
	logger = logging.NewComponentLogger(logger, "worker")
	w := &Worker{
		cfg:      cfg,
		queue:    q,
		catalog:  cat,
		selector: frames.NewSelector(cat, logger),
		lock:     lock.New(cfg.Paths.LockFile),
		encoder:  timelapse.New(cfg.Timelapse, cfg.Paths.ScratchDir, logger),
		keogram:  keogram.NewExecGenerator(cfg.Keogram.Command, cfg.Paths.ScratchDir, logger),
		logger:   logger,
		cameraID: cameraID,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes requests until a stop request arrives, ctx ends, or the
// build lock is found held by someone else. Only the last case is an error.
func (w *Worker) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.Worker.QueuePollInterval) * time.Second
	w.logger.Info("worker started", logging.Int64("camera_id", w.cameraID), logging.Duration("poll_interval", interval))

	for {
		req, err := w.queue.Next(ctx, interval)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping", logging.String("reason", ctx.Err().Error()))
				return nil
			}
			return fmt.Errorf("next request: %w", err)
		}
		if req.Stop {
			w.metrics.IncRequest("stop")
			w.logger.Info("stop request received")
			return nil
		}
		w.metrics.IncRequest("build")

		if err := w.Process(ctx, *req); err != nil {
			if errors.Is(err, ErrBuildInProgress) {
				return err
			}
			w.logger.Error("request failed", logging.String(logging.FieldRequestID, req.UUID), logging.Error(err))
		}
	}
}

// Process builds the artifacts req asks for under the build lock. Sub-build
// problems are logged and do not fail the request.
func (w *Worker) Process(ctx context.Context, req queue.Request) error {
	ctx = logging.WithRequestID(ctx, req.UUID)
	ctx = logging.WithDayDate(ctx, req.DayDate, string(req.Partition))
	logger := logging.WithContext(ctx, w.logger)

	logger.Info("acquiring build lock", logging.String("lock", w.lock.Path()))
	if err := w.lock.TryAcquire(); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			w.metrics.IncLockContention()
			return fmt.Errorf("%w: %v", ErrBuildInProgress, err)
		}
		return err
	}
	w.metrics.SetBuilding(true)
	defer func() {
		w.metrics.SetBuilding(false)
		if err := w.lock.Release(); err != nil {
			logger.Warn("release build lock failed", logging.Error(err))
		}
		logger.Info("released build lock")
	}()

	folder := req.ImageFolder
	if folder == "" {
		folder = w.cfg.ImageFolder(req.DayDate)
	}
	if !isDir(folder) {
		logging.ErrorWithContext(logger, "image folder does not exist", "image_folder_missing",
			logging.String("image_folder", folder),
			logging.String(logging.FieldErrorHint, "check paths.image_dir or the request's image folder"),
		)
		return nil
	}

	if req.WantVideo {
		w.build(ctx, logger, req, folder, w.videoSpec())
	}
	if req.WantKeogram {
		w.build(ctx, logger, req, folder, w.keogramSpec())
	}
	return nil
}
