package testsupport

import (
	"testing"

	"allsky/internal/catalog"
	"allsky/internal/config"
	"allsky/internal/queue"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustRegisterCamera registers a camera for tests.
func MustRegisterCamera(t testing.TB, store *catalog.Store, name string) *catalog.Camera {
	t.Helper()

	cam, err := store.RegisterCamera(t.Context(), name)
	if err != nil {
		t.Fatalf("store.RegisterCamera: %v", err)
	}
	return cam
}

// MustRecordFrames writes frames to disk and records them in the catalog.
func MustRecordFrames(t testing.TB, store *catalog.Store, cameraID int64, frames []CapturedFrame, night bool) {
	t.Helper()

	for _, f := range frames {
		if _, err := store.AddFrame(t.Context(), cameraID, f.Path, f.Captured, night, 64); err != nil {
			t.Fatalf("store.AddFrame: %v", err)
		}
	}
}
