package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"allsky/internal/daydate"
	"allsky/internal/lock"
	"allsky/internal/logging"
	"allsky/internal/queue"
	"allsky/internal/testsupport"
	"allsky/internal/worker"
)

func TestRunWithConfigStopsOnSentinel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(0))
	store := testsupport.MustOpenQueue(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := store.EnqueueStop(ctx); err != nil {
		t.Fatalf("EnqueueStop failed: %v", err)
	}

	if err := runWithConfig(ctx, cfg, logging.NewNop(), prometheus.NewRegistry()); err != nil {
		t.Fatalf("runWithConfig failed: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("runWithConfig returned only after timeout")
	}

	cat := testsupport.MustOpenCatalog(t, cfg)
	cam, err := cat.CameraByName(ctx, cfg.Camera.Name)
	if err != nil || cam == nil {
		t.Fatalf("expected camera to be registered, err=%v", err)
	}
}

func TestRunWithConfigReportsLockContention(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedFFmpeg(0))
	store := testsupport.MustOpenQueue(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	holder := lock.New(cfg.Paths.LockFile)
	if err := holder.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	t.Cleanup(func() { _ = holder.Release() })

	req := queue.Request{DayDate: "20240521", Partition: daydate.Night, WantVideo: true}
	if _, err := store.Enqueue(ctx, req); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	err := runWithConfig(ctx, cfg, logging.NewNop(), prometheus.NewRegistry())
	if !errors.Is(err, worker.ErrBuildInProgress) {
		t.Fatalf("expected ErrBuildInProgress, got %v", err)
	}
}
