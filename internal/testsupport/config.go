package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"allsky/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory. Every
// path, including the lock file, lives under that directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ImageDir = filepath.Join(base, "images")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockFile = filepath.Join(base, "run", "timelapse_video.lock")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Camera.Name = "test-camera"
	cfgVal.Worker.QueuePollInterval = 1
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithUploads enables upload hand-off for both artifact kinds.
func WithUploads() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FileTransfer.UploadVideo = true
		b.cfg.FileTransfer.UploadKeogram = true
	}
}

// WithStubbedFFmpeg installs a fake ffmpeg that records each invocation and
// writes a small file to its last argument. A non-zero exitCode makes the
// stub print an error, leave a partial file and fail. Version queries are
// answered without being recorded.
func WithStubbedFFmpeg(exitCode int) ConfigOption {
	return func(b *configBuilder) {
		body := `for last; do :; done
case "$last" in
  -version) echo "ffmpeg version stub"; exit 0 ;;
esac
echo "$@" >> "%s"
if [ %d -ne 0 ]; then
  echo "partial" > "$last"
  echo "Conversion failed!" >&2
  exit %d
fi
echo "video" > "$last"
`
		b.cfg.Timelapse.FFmpegBinary = b.writeStub("ffmpeg", fmt.Sprintf(body, b.callLog("ffmpeg"), exitCode, exitCode))
	}
}

// WithStubbedKeogram installs a fake keogram command that records each
// invocation and writes its --output file.
func WithStubbedKeogram() ConfigOption {
	return func(b *configBuilder) {
		body := `echo "$@" >> "%s"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then out="$2"; fi
  shift
done
echo "keogram" > "$out"
`
		b.cfg.Keogram.Command = b.writeStub("keogram", fmt.Sprintf(body, b.callLog("keogram")))
	}
}

func (b *configBuilder) callLog(name string) string {
	return filepath.Join(b.baseDir, name+".calls")
}

func (b *configBuilder) writeStub(name, body string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// StubCalls returns the argument lines recorded by a stub installed with
// WithStubbedFFmpeg or WithStubbedKeogram.
func StubCalls(t testing.TB, cfg *config.Config, name string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(BaseDir(cfg), name+".calls"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read stub calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
