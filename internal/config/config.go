package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	ImageDir   string `toml:"image_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	LockFile   string `toml:"lock_file"`
	ScratchDir string `toml:"scratch_dir"`
}

// Camera identifies the camera artifacts are attributed to.
type Camera struct {
	Name string `toml:"name"`
}

// Timelapse contains configuration for the external video encoder.
type Timelapse struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	Framerate     int    `toml:"framerate"`
	Bitrate       string `toml:"bitrate"`
	Codec         string `toml:"codec"`
	PixelFormat   string `toml:"pixel_format"`
	ImageFileType string `toml:"image_file_type"`
	Niceness      int    `toml:"niceness"`
}

// Keogram contains the geometry handed to the keogram generator.
type Keogram struct {
	Command string  `toml:"command"`
	Angle   float64 `toml:"angle"`
	HScale  int     `toml:"h_scale"`
	VScale  int     `toml:"v_scale"`
}

// Stacking contains configuration for burst registration and reduction.
type Stacking struct {
	Method           string  `toml:"method"`
	Register         bool    `toml:"register"`
	ROI              []int   `toml:"roi"`
	Binning          int     `toml:"binning"`
	DetectionSigma   float64 `toml:"detection_sigma"`
	MaxControlPoints int     `toml:"max_control_points"`
	MinArea          int     `toml:"min_area"`
}

// FileTransfer controls hand-off of finished artifacts to the upload queue.
type FileTransfer struct {
	UploadVideo         bool   `toml:"upload_video"`
	UploadKeogram       bool   `toml:"upload_keogram"`
	RemoteVideoFolder   string `toml:"remote_video_folder"`
	RemoteKeogramFolder string `toml:"remote_keogram_folder"`
}

// Worker contains configuration for the artifact worker loop.
type Worker struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for allsky.
//
// Configuration sections by subsystem:
//   - Paths: image, data, log, lock, and scratch locations
//   - Camera: camera name artifacts are recorded against
//   - Timelapse: ffmpeg invocation settings
//   - Keogram: external keogram command and geometry
//   - Stacking: registration region and detection parameters
//   - FileTransfer: upload queue hand-off switches and remote folders
//   - Worker: queue polling interval
//   - Metrics: Prometheus endpoint
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Camera       Camera       `toml:"camera"`
	Timelapse    Timelapse    `toml:"timelapse"`
	Keogram      Keogram      `toml:"keogram"`
	Stacking     Stacking     `toml:"stacking"`
	FileTransfer FileTransfer `toml:"file_transfer"`
	Worker       Worker       `toml:"worker"`
	Metrics      Metrics      `toml:"metrics"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("allsky.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for worker operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.LockFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ScratchDir) != "" {
		if err := os.MkdirAll(c.Paths.ScratchDir, 0o755); err != nil {
			return fmt.Errorf("create scratch directory %q: %w", c.Paths.ScratchDir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ImageDir) != "" {
		if err := os.MkdirAll(c.Paths.ImageDir, 0o755); err != nil {
			return fmt.Errorf("create image directory %q: %w", c.Paths.ImageDir, err)
		}
	}
	return nil
}

// CatalogPath returns the SQLite file backing the frame and artifact catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// QueuePath returns the SQLite file backing the request and upload queues.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// ImageFolder returns the default capture folder for a compact day-date.
func (c *Config) ImageFolder(dayDate string) string {
	return filepath.Join(c.Paths.ImageDir, dayDate)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
