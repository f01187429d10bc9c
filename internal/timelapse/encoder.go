// Package timelapse encodes an ordered frame set into a video with ffmpeg.
//
// Frames are exposed to ffmpeg's image2 demuxer as a numbered symlink
// sequence in a private scratch directory, so the source files are never
// copied or renamed. The encoder runs at lowered CPU priority.
package timelapse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"allsky/internal/config"
	"allsky/internal/logging"
)

// ErrNoFrames reports an encode request without input frames.
var ErrNoFrames = errors.New("no frames to encode")

// sequencePattern names the symlinks handed to the image2 demuxer.
const sequencePattern = "%05d"

// ExitError is returned when ffmpeg fails. Output holds its combined
// stdout and stderr.
type ExitError struct {
	Code   int
	Output string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with status %d", e.Code)
	if tail := lastLines(e.Output, 3); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Encoder wraps the ffmpeg command line.
type Encoder struct {
	binary      string
	framerate   int
	bitrate     string
	codec       string
	pixelFormat string
	extension   string
	niceness    int
	scratchDir  string
	logger      *slog.Logger
}

// New builds an encoder from the timelapse settings. Scratch directories are
// created under scratchDir, or the system temp dir when empty.
func New(cfg config.Timelapse, scratchDir string, logger *slog.Logger) *Encoder {
	return &Encoder{
		binary:      cfg.FFmpegBinary,
		framerate:   cfg.Framerate,
		bitrate:     cfg.Bitrate,
		codec:       cfg.Codec,
		pixelFormat: cfg.PixelFormat,
		extension:   cfg.ImageFileType,
		niceness:    cfg.Niceness,
		scratchDir:  scratchDir,
		logger:      logging.NewComponentLogger(logger, "timelapse"),
	}
}

// Args returns the ffmpeg arguments for a sequence in dir written to output.
func (e *Encoder) Args(dir, output string) []string {
	return []string{
		"-y",
		"-f", "image2",
		"-r", strconv.Itoa(e.framerate),
		"-i", filepath.Join(dir, sequencePattern+"."+e.extension),
		"-vcodec", e.codec,
		"-b:v", e.bitrate,
		"-pix_fmt", e.pixelFormat,
		"-movflags", "+faststart",
		output,
	}
}

// Encode renders frames, in order, into output. A failed run removes any
// partial output and returns *ExitError.
func (e *Encoder) Encode(ctx context.Context, frames []string, output string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if e.scratchDir != "" {
		if err := os.MkdirAll(e.scratchDir, 0o755); err != nil {
			return fmt.Errorf("ensure scratch dir: %w", err)
		}
	}
	seqDir, err := os.MkdirTemp(e.scratchDir, "timelapse-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(seqDir); err != nil {
			e.logger.Warn("remove scratch dir failed", logging.String("dir", seqDir), logging.Error(err))
		}
	}()

	if err := linkSequence(seqDir, frames, e.extension); err != nil {
		return err
	}

	args := e.Args(seqDir, output)
	e.logger.Info("starting ffmpeg",
		logging.String("output", output),
		logging.Int("frames", len(frames)),
		logging.String("command", e.binary+" "+strings.Join(args, " ")),
	)

	start := time.Now()
	var combined bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...) //nolint:gosec
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, cmd.Process.Pid, e.niceness); err != nil {
		e.logger.Warn("lower ffmpeg priority failed", logging.Int("niceness", e.niceness), logging.Error(err))
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if waitErr != nil {
		_ = os.Remove(output)
		exitErr := &ExitError{Code: -1, Output: combined.String(), Err: waitErr}
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			exitErr.Code = ee.ExitCode()
		}
		return exitErr
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("ffmpeg did not produce output: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return fmt.Errorf("ffmpeg produced empty output %s", output)
	}

	e.logger.Info("timelapse encoded",
		logging.String("output", output),
		logging.Duration("elapsed", elapsed),
		logging.Int64("bytes", info.Size()),
	)
	e.logger.Debug("ffmpeg output", logging.String("output", combined.String()))
	return nil
}

// linkSequence creates 00000.<ext>, 00001.<ext>, ... in dir pointing at
// frames.
func linkSequence(dir string, frames []string, ext string) error {
	for i, frame := range frames {
		target, err := filepath.Abs(frame)
		if err != nil {
			return fmt.Errorf("resolve frame %s: %w", frame, err)
		}
		name := filepath.Join(dir, fmt.Sprintf(sequencePattern+".%s", i, ext))
		if err := os.Symlink(target, name); err != nil {
			return fmt.Errorf("link frame %d: %w", i, err)
		}
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
