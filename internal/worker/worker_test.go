package worker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"allsky/internal/catalog"
	"allsky/internal/config"
	"allsky/internal/daydate"
	"allsky/internal/lock"
	"allsky/internal/logging"
	"allsky/internal/queue"
	"allsky/internal/testsupport"
	"allsky/internal/worker"
)

const testDay = "20240521"

// failingUploads rejects every upload hand-off.
type failingUploads struct {
	*queue.Store
}

func (failingUploads) EnqueueUpload(context.Context, string, string) (*queue.Upload, error) {
	return nil, errors.New("uploads table locked")
}

type fixture struct {
	cfg     *config.Config
	catalog *catalog.Store
	queue   *queue.Store
	worker  *worker.Worker
	camera  int64
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedFFmpeg(0), testsupport.WithStubbedKeogram()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cat := testsupport.MustOpenCatalog(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	cam := testsupport.MustRegisterCamera(t, cat, cfg.Camera.Name)

	return &fixture{
		cfg:     cfg,
		catalog: cat,
		queue:   q,
		worker:  worker.New(cfg, q, cat, cam.ID, logging.NewNop()),
		camera:  cam.ID,
	}
}

func (f *fixture) recordNight(t *testing.T, n int) []testsupport.CapturedFrame {
	t.Helper()

	start := time.Date(2024, 5, 21, 22, 0, 0, 0, time.Local)
	frames := testsupport.WriteFrames(t, f.cfg.ImageFolder(testDay), start, n, "jpg")
	testsupport.MustRecordFrames(t, f.catalog, f.camera, frames, true)
	return frames
}

func nightRequest(video, keogram bool) queue.Request {
	return queue.Request{
		UUID:        "req-1",
		DayDate:     testDay,
		Partition:   daydate.Night,
		WantVideo:   video,
		WantKeogram: keogram,
	}
}

func (f *fixture) videoPath() string {
	return filepath.Join(f.cfg.Paths.ImageDir, "allsky-timelapse-20240521-night.mp4")
}

func (f *fixture) keogramPath() string {
	return filepath.Join(f.cfg.Paths.ImageDir, "allsky-keogram-20240521-night.jpg")
}

func TestOutputPathIsSiblingOfImageFolder(t *testing.T) {
	got := worker.OutputPath("/var/allsky/images/20240521/", "allsky-timelapse", testDay, daydate.Day, "mp4")
	want := "/var/allsky/images/allsky-timelapse-20240521-day.mp4"
	if got != want {
		t.Fatalf("OutputPath = %q, want %q", got, want)
	}
}

func TestProcessBuildsVideoAndKeogram(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 3)

	if err := f.worker.Process(context.Background(), nightRequest(true, true)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, p := range []string{f.videoPath(), f.keogramPath()} {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected artifact %s, err=%v", p, err)
		}
	}

	video, err := f.catalog.ArtifactByPath(context.Background(), catalog.KindVideo, f.videoPath())
	if err != nil {
		t.Fatalf("ArtifactByPath failed: %v", err)
	}
	if video == nil {
		t.Fatal("expected video record")
	}
	if video.DayDate != testDay || !video.Night || video.CameraID != f.camera {
		t.Fatalf("unexpected video record: %+v", video)
	}
	if !video.Uploaded {
		t.Fatal("expected upload flag to be set even with uploads disabled")
	}

	keo, err := f.catalog.ArtifactByPath(context.Background(), catalog.KindKeogram, f.keogramPath())
	if err != nil || keo == nil {
		t.Fatalf("expected keogram record, err=%v", err)
	}

	calls := testsupport.StubCalls(t, f.cfg, "keogram")
	if len(calls) != 1 || !strings.Contains(calls[0], "--output "+f.keogramPath()) {
		t.Fatalf("unexpected keogram calls: %v", calls)
	}

	uploads, err := f.queue.PendingUploads(context.Background())
	if err != nil {
		t.Fatalf("PendingUploads failed: %v", err)
	}
	if len(uploads) != 0 {
		t.Fatalf("expected no uploads with uploads disabled, got %d", len(uploads))
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 2)
	ctx := context.Background()

	if err := f.worker.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	if err := f.worker.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	if calls := testsupport.StubCalls(t, f.cfg, "ffmpeg"); len(calls) != 1 {
		t.Fatalf("expected ffmpeg to run once, got %d calls", len(calls))
	}
	count, err := f.catalog.CountArtifacts(ctx, catalog.KindVideo)
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one video record, got %d", count)
	}
}

func TestProcessFailsFastWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 2)

	holder := lock.New(f.cfg.Paths.LockFile)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	t.Cleanup(func() { _ = holder.Release() })

	err := f.worker.Process(context.Background(), nightRequest(true, true))
	if !errors.Is(err, worker.ErrBuildInProgress) {
		t.Fatalf("expected ErrBuildInProgress, got %v", err)
	}
	if calls := testsupport.StubCalls(t, f.cfg, "ffmpeg"); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(calls))
	}
	if _, err := os.Stat(f.videoPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no video file, err=%v", err)
	}
	count, err := f.catalog.CountArtifacts(context.Background(), catalog.KindVideo)
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no records, got %d", count)
	}
}

func TestProcessRemovesOrphanedRecord(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 2)
	ctx := context.Background()

	orphan, err := f.catalog.CreateArtifact(ctx, catalog.Artifact{
		Kind:      catalog.KindVideo,
		Path:      f.videoPath(),
		CreatedAt: time.Now().Add(-time.Hour),
		DayDate:   testDay,
		Night:     true,
		CameraID:  f.camera,
	})
	if err != nil {
		t.Fatalf("CreateArtifact failed: %v", err)
	}

	if err := f.worker.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	records, err := f.catalog.ListArtifacts(ctx, catalog.KindVideo)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
	if records[0].ID == orphan.ID {
		t.Fatal("expected orphaned record to be replaced")
	}
}

func TestProcessAbandonsEmptyFrameSet(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.cfg.ImageFolder(testDay), 0o755); err != nil {
		t.Fatalf("mkdir image folder: %v", err)
	}

	if err := f.worker.Process(context.Background(), nightRequest(true, true)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if calls := testsupport.StubCalls(t, f.cfg, "ffmpeg"); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(calls))
	}
	if calls := testsupport.StubCalls(t, f.cfg, "keogram"); len(calls) != 0 {
		t.Fatalf("expected no keogram calls, got %d", len(calls))
	}
	if _, err := os.Stat(f.videoPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no video file, err=%v", err)
	}
}

func TestProcessSkipsMissingAndEmptyFrames(t *testing.T) {
	f := newFixture(t)
	frames := f.recordNight(t, 4)
	if err := os.Remove(frames[1].Path); err != nil {
		t.Fatalf("remove frame: %v", err)
	}
	testsupport.WriteFile(t, frames[2].Path, 0)

	if err := f.worker.Process(context.Background(), nightRequest(true, false)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, err := os.Stat(f.videoPath()); err != nil {
		t.Fatalf("expected video to be built from remaining frames: %v", err)
	}
}

func TestProcessFFmpegFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t, testsupport.WithStubbedFFmpeg(1), testsupport.WithUploads())
	f.recordNight(t, 2)
	ctx := context.Background()

	if err := f.worker.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, err := os.Stat(f.videoPath()); !os.IsNotExist(err) {
		t.Fatalf("expected partial video to be removed, err=%v", err)
	}
	count, err := f.catalog.CountArtifacts(ctx, catalog.KindVideo)
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no video record, got %d", count)
	}
	uploads, err := f.queue.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads failed: %v", err)
	}
	if len(uploads) != 0 {
		t.Fatalf("expected no uploads, got %d", len(uploads))
	}
}

func TestProcessMissingImageFolder(t *testing.T) {
	f := newFixture(t)
	req := nightRequest(true, true)
	req.ImageFolder = filepath.Join(f.cfg.Paths.ImageDir, "does-not-exist")

	if err := f.worker.Process(context.Background(), req); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if calls := testsupport.StubCalls(t, f.cfg, "ffmpeg"); len(calls) != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", len(calls))
	}
}

func TestProcessEnqueuesUploads(t *testing.T) {
	f := newFixture(t, testsupport.WithUploads())
	f.recordNight(t, 2)
	ctx := context.Background()

	if err := f.worker.Process(ctx, nightRequest(true, true)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	uploads, err := f.queue.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads failed: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("expected two uploads, got %d", len(uploads))
	}
	want := map[string]string{
		f.videoPath():   f.cfg.FileTransfer.RemoteVideoFolder + "/allsky-timelapse-20240521-night.mp4",
		f.keogramPath(): f.cfg.FileTransfer.RemoteKeogramFolder + "/allsky-keogram-20240521-night.jpg",
	}
	for _, up := range uploads {
		if want[up.LocalPath] != up.RemotePath {
			t.Fatalf("unexpected upload %s -> %s", up.LocalPath, up.RemotePath)
		}
	}
}

func TestProcessLeavesRecordUnmarkedWhenUploadEnqueueFails(t *testing.T) {
	f := newFixture(t, testsupport.WithUploads())
	f.recordNight(t, 2)
	ctx := context.Background()

	w := worker.New(f.cfg, failingUploads{f.queue}, f.catalog, f.camera, logging.NewNop())
	if err := w.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	video, err := f.catalog.ArtifactByPath(ctx, catalog.KindVideo, f.videoPath())
	if err != nil {
		t.Fatalf("ArtifactByPath failed: %v", err)
	}
	if video == nil {
		t.Fatal("expected video record for the built artifact")
	}
	if video.Uploaded {
		t.Fatal("record marked uploaded although no upload was queued")
	}
	uploads, err := f.queue.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads failed: %v", err)
	}
	if len(uploads) != 0 {
		t.Fatalf("expected no pending uploads, got %d", len(uploads))
	}
}

func TestProcessMarksUploadedAfterEnqueue(t *testing.T) {
	f := newFixture(t, testsupport.WithUploads())
	f.recordNight(t, 2)
	ctx := context.Background()

	if err := f.worker.Process(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	video, err := f.catalog.ArtifactByPath(ctx, catalog.KindVideo, f.videoPath())
	if err != nil || video == nil {
		t.Fatalf("expected video record, err=%v", err)
	}
	if !video.Uploaded {
		t.Fatal("expected record marked uploaded once the upload was queued")
	}
}

func TestRunStopsOnSentinel(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := f.queue.Enqueue(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := f.queue.EnqueueStop(ctx); err != nil {
		t.Fatalf("EnqueueStop failed: %v", err)
	}

	if err := f.worker.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run returned only after timeout")
	}
	if _, err := os.Stat(f.videoPath()); err != nil {
		t.Fatalf("expected video before stop: %v", err)
	}
}

func TestRunReturnsWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	f.recordNight(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	holder := lock.New(f.cfg.Paths.LockFile)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	t.Cleanup(func() { _ = holder.Release() })

	if _, err := f.queue.Enqueue(ctx, nightRequest(true, false)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := f.worker.Run(ctx); !errors.Is(err, worker.ErrBuildInProgress) {
		t.Fatalf("expected ErrBuildInProgress, got %v", err)
	}
}
