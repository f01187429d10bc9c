package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"allsky/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantImages := filepath.Join(tempHome, ".local", "share", "allsky", "images")
	if cfg.Paths.ImageDir != wantImages {
		t.Fatalf("unexpected image dir: got %q want %q", cfg.Paths.ImageDir, wantImages)
	}
	if cfg.Paths.LockFile != "/tmp/timelapse_video.lock" {
		t.Fatalf("unexpected lock file: %q", cfg.Paths.LockFile)
	}
	if cfg.Timelapse.Framerate != 25 || cfg.Timelapse.Bitrate != "5000k" {
		t.Fatalf("unexpected timelapse defaults: %+v", cfg.Timelapse)
	}
	if cfg.Timelapse.Niceness != 19 {
		t.Fatalf("expected niceness 19, got %d", cfg.Timelapse.Niceness)
	}
	if cfg.Stacking.DetectionSigma != 5 || cfg.Stacking.MaxControlPoints != 150 || cfg.Stacking.MinArea != 15 {
		t.Fatalf("unexpected stacking defaults: %+v", cfg.Stacking)
	}
	if cfg.FileTransfer.UploadVideo || cfg.FileTransfer.UploadKeogram {
		t.Fatal("expected uploads disabled by default")
	}
	if cfg.CatalogPath() != filepath.Join(cfg.Paths.DataDir, "catalog.db") {
		t.Fatalf("unexpected catalog path %q", cfg.CatalogPath())
	}
	if got := cfg.ImageFolder("20240521"); got != filepath.Join(wantImages, "20240521") {
		t.Fatalf("unexpected image folder %q", got)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
image_dir = "~/sky"
data_dir = "~/data"

[timelapse]
framerate = 30
image_file_type = ".PNG"

[stacking]
method = "Maximum"
roi = [100, 100, 900, 700]
binning = 2

[file_transfer]
upload_video = true
remote_video_folder = "/remote/videos"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got resolved=%q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.ImageDir != filepath.Join(tempHome, "sky") {
		t.Fatalf("unexpected image dir: %q", cfg.Paths.ImageDir)
	}
	if cfg.Timelapse.Framerate != 30 {
		t.Fatalf("expected framerate 30, got %d", cfg.Timelapse.Framerate)
	}
	if cfg.Timelapse.ImageFileType != "png" {
		t.Fatalf("expected normalized file type png, got %q", cfg.Timelapse.ImageFileType)
	}
	if cfg.Stacking.Method != "maximum" || cfg.Stacking.Binning != 2 {
		t.Fatalf("unexpected stacking config: %+v", cfg.Stacking)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"framerate", func(c *config.Config) { c.Timelapse.Framerate = 0 }, "timelapse.framerate"},
		{"roi length", func(c *config.Config) { c.Stacking.ROI = []int{1, 2, 3} }, "stacking.roi"},
		{"roi empty", func(c *config.Config) { c.Stacking.ROI = []int{10, 10, 5, 20} }, "stacking.roi"},
		{"method", func(c *config.Config) { c.Stacking.Method = "median" }, "stacking.method"},
		{"upload folder", func(c *config.Config) {
			c.FileTransfer.UploadKeogram = true
			c.FileTransfer.RemoteKeogramFolder = ""
		}, "remote_keogram_folder"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Timelapse.FFmpegBinary != "ffmpeg" {
		t.Fatalf("unexpected sample ffmpeg binary %q", cfg.Timelapse.FFmpegBinary)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestEnsureDirectoriesReportsImageDirFailure(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Chdir(base)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	blocker := filepath.Join(base, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockFile = filepath.Join(base, "run", "timelapse_video.lock")
	cfg.Paths.ScratchDir = ""
	cfg.Paths.ImageDir = filepath.Join(blocker, "images")

	err = cfg.EnsureDirectories()
	if err == nil {
		t.Fatal("expected EnsureDirectories to fail when the image dir cannot be created")
	}
	if !strings.Contains(err.Error(), "image directory") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Paths.ImageDir = filepath.Join(base, "images")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.ImageDir); err != nil || !info.IsDir() {
		t.Fatalf("image dir not created: %v", err)
	}
}
