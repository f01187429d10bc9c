package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile fills path with size bytes of a repeating pattern. A size <= 0
// creates an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, max(size, 0))
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// CapturedFrame describes a fake frame written by WriteFrames.
type CapturedFrame struct {
	Path     string
	Captured time.Time
}

// WriteFrames creates n non-empty frame files in dir, one minute apart
// starting at start, named like the capture pipeline names them.
func WriteFrames(t testing.TB, dir string, start time.Time, n int, ext string) []CapturedFrame {
	t.Helper()

	out := make([]CapturedFrame, 0, n)
	for i := range n {
		ts := start.Add(time.Duration(i) * time.Minute)
		path := filepath.Join(dir, fmt.Sprintf("ccd1_%s.%s", ts.Format("20060102150405"), ext))
		WriteFile(t, path, 64)
		out = append(out, CapturedFrame{Path: path, Captured: ts})
	}
	return out
}
