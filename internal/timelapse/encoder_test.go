package timelapse_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"allsky/internal/logging"
	"allsky/internal/testsupport"
	"allsky/internal/timelapse"
)

func TestEncodeRunsFFmpegWithSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(0))
	frames := testsupport.WriteFrames(t, cfg.ImageFolder("20240521"), time.Now(), 3, "jpg")
	paths := []string{frames[0].Path, frames[1].Path, frames[2].Path}
	output := filepath.Join(cfg.Paths.ImageDir, "allsky-timelapse-20240521-night.mp4")

	enc := timelapse.New(cfg.Timelapse, cfg.Paths.ScratchDir, logging.NewNop())
	if err := enc.Encode(context.Background(), paths, output); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected output file, err=%v", err)
	}

	calls := testsupport.StubCalls(t, cfg, "ffmpeg")
	if len(calls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(calls))
	}
	for _, want := range []string{"-y -f image2 -r 25 -i", "%05d.jpg", "-vcodec libx264 -b:v 5000k -pix_fmt yuv420p -movflags +faststart " + output} {
		if !strings.Contains(calls[0], want) {
			t.Fatalf("ffmpeg args %q missing %q", calls[0], want)
		}
	}

	entries, err := os.ReadDir(cfg.Paths.ScratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dir to be cleaned, found %d entries", len(entries))
	}
}

func TestEncodeFailureRemovesPartialOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(3))
	frames := testsupport.WriteFrames(t, cfg.ImageFolder("20240521"), time.Now(), 2, "jpg")
	output := filepath.Join(cfg.Paths.ImageDir, "out.mp4")

	enc := timelapse.New(cfg.Timelapse, cfg.Paths.ScratchDir, nil)
	err := enc.Encode(context.Background(), []string{frames[0].Path, frames[1].Path}, output)

	var exitErr *timelapse.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Fatalf("expected exit code 3, got %d", exitErr.Code)
	}
	if !strings.Contains(exitErr.Output, "Conversion failed!") {
		t.Fatalf("expected captured output, got %q", exitErr.Output)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestEncodeRejectsEmptyFrameSet(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(0))
	enc := timelapse.New(cfg.Timelapse, cfg.Paths.ScratchDir, nil)
	if err := enc.Encode(context.Background(), nil, filepath.Join(t.TempDir(), "x.mp4")); !errors.Is(err, timelapse.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if calls := testsupport.StubCalls(t, cfg, "ffmpeg"); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(calls))
	}
}
