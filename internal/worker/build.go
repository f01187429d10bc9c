package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"allsky/internal/catalog"
	"allsky/internal/daydate"
	"allsky/internal/frames"
	"allsky/internal/keogram"
	"allsky/internal/logging"
	"allsky/internal/metrics"
	"allsky/internal/queue"
	"allsky/internal/timelapse"
)

// artifactSpec describes how one kind of artifact is named, produced and
// handed off.
type artifactSpec struct {
	kind         catalog.Kind
	prefix       string
	extension    string
	tool         string
	upload       bool
	remoteFolder string
	produce      func(ctx context.Context, paths []string, output string) error
}

func (w *Worker) videoSpec() artifactSpec {
	return artifactSpec{
		kind:         catalog.KindVideo,
		prefix:       "allsky-timelapse",
		extension:    "mp4",
		tool:         "ffmpeg",
		upload:       w.cfg.FileTransfer.UploadVideo,
		remoteFolder: w.cfg.FileTransfer.RemoteVideoFolder,
		produce:      w.encoder.Encode,
	}
}

func (w *Worker) keogramSpec() artifactSpec {
	geometry := keogram.GeometryFromConfig(w.cfg.Keogram)
	return artifactSpec{
		kind:         catalog.KindKeogram,
		prefix:       "allsky-keogram",
		extension:    "jpg",
		tool:         "keogram",
		upload:       w.cfg.FileTransfer.UploadKeogram,
		remoteFolder: w.cfg.FileTransfer.RemoteKeogramFolder,
		produce: func(ctx context.Context, paths []string, output string) error {
			return w.keogram.Generate(ctx, paths, geometry, output)
		},
	}
}

// OutputPath is where the artifact for (dayDate, partition) is written: a
// sibling of the image folder.
func OutputPath(imageFolder, prefix, dayDate string, partition daydate.Partition, ext string) string {
	parent := filepath.Dir(filepath.Clean(imageFolder))
	return filepath.Join(parent, fmt.Sprintf("%s-%s-%s.%s", prefix, dayDate, partition, ext))
}

func (w *Worker) build(ctx context.Context, logger *slog.Logger, req queue.Request, folder string, spec artifactSpec) {
	start := time.Now()
	kind := string(spec.kind)
	logger = logger.With(logging.String("artifact", kind))

	if _, err := daydate.Parse(req.DayDate); err != nil {
		logging.ErrorWithContext(logger, "invalid day date", "invalid_day_date",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "day date must be YYYYMMDD"),
		)
		w.metrics.ObserveBuild(kind, metrics.ResultAbandoned, 0)
		return
	}

	output := OutputPath(folder, spec.prefix, req.DayDate, req.Partition, spec.extension)
	logger = logger.With(logging.String("output", output))
	if _, err := os.Lstat(output); err == nil {
		logger.Warn("artifact already generated, skipping")
		w.metrics.ObserveBuild(kind, metrics.ResultSkipped, 0)
		return
	}

	removed, err := w.catalog.DeleteArtifactByPath(ctx, spec.kind, output)
	if err != nil {
		logger.Error("remove stale catalog record failed", logging.Error(err))
		w.metrics.ObserveBuild(kind, metrics.ResultFailed, 0)
		return
	}
	if removed > 0 {
		logger.Warn("removed orphaned catalog record", logging.Int64("rows", removed))
	}

	refs, err := w.selector.Select(ctx, req.DayDate, req.Night())
	if err != nil {
		logger.Error("select frames failed", logging.Error(err))
		w.metrics.ObserveBuild(kind, metrics.ResultFailed, 0)
		return
	}
	logger.Info("found frames", logging.Int("frames", len(refs)))
	if len(refs) == 0 {
		logging.WarnWithContext(logger, "no frames for artifact", "no_frames",
			logging.String(logging.FieldImpact, "artifact not generated"),
			logging.String(logging.FieldErrorHint, "check that frames were imported for this day date"),
		)
		w.metrics.ObserveBuild(kind, metrics.ResultAbandoned, 0)
		return
	}

	err = spec.produce(ctx, frames.Paths(refs), output)
	w.metrics.ObserveEncoder(spec.tool, err)
	if err != nil {
		attrs := []logging.Attr{logging.Error(err)}
		var exitErr *timelapse.ExitError
		if errors.As(err, &exitErr) {
			attrs = append(attrs, logging.Int("exit_code", exitErr.Code), logging.String("tool_output", exitErr.Output))
		}
		logging.ErrorWithContext(logger, "artifact generation failed", "generation_failed", attrs...)
		w.metrics.ObserveBuild(kind, metrics.ResultFailed, time.Since(start))
		return
	}

	record, err := w.catalog.CreateArtifact(ctx, catalog.Artifact{
		Kind:      spec.kind,
		Path:      output,
		CreatedAt: time.Now(),
		DayDate:   req.DayDate,
		Night:     req.Night(),
		CameraID:  w.cameraID,
	})
	if err != nil {
		logger.Error("record artifact failed", logging.Error(err))
		w.metrics.ObserveBuild(kind, metrics.ResultFailed, time.Since(start))
		return
	}

	if err := w.handOff(ctx, logger, spec, output); err != nil {
		logging.ErrorWithContext(logger, "enqueue upload failed", "upload_enqueue_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "artifact left marked as not uploaded"),
			logging.String(logging.FieldErrorHint, "check the queue database, then enqueue the upload by hand"),
		)
	} else if err := w.catalog.MarkUploaded(ctx, spec.kind, record.ID); err != nil {
		logger.Error("mark artifact uploaded failed", logging.Error(err))
	}

	elapsed := time.Since(start)
	w.metrics.ObserveBuild(kind, metrics.ResultBuilt, elapsed)
	logger.Info("artifact generated", logging.Duration("elapsed", elapsed))
}

// handOff queues the artifact for transfer when uploads of its kind are on.
// With uploads off it only logs and returns nil.
func (w *Worker) handOff(ctx context.Context, logger *slog.Logger, spec artifactSpec, output string) error {
	if !spec.upload {
		logger.Warn("uploading disabled for artifact kind")
		return nil
	}
	remote := path.Join(spec.remoteFolder, filepath.Base(output))
	if _, err := w.queue.EnqueueUpload(ctx, output, remote); err != nil {
		return fmt.Errorf("enqueue upload to %s: %w", remote, err)
	}
	w.metrics.IncUpload(string(spec.kind))
	logger.Info("artifact queued for upload", logging.String("remote", remote))
	return nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
