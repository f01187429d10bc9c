package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTimelapse()
	c.normalizeStacking()
	c.normalizeFileTransfer()
	c.normalizeLogging()
	c.Camera.Name = strings.TrimSpace(c.Camera.Name)
	if c.Camera.Name == "" {
		c.Camera.Name = defaultCameraName
	}
	c.Keogram.Command = strings.TrimSpace(c.Keogram.Command)
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ImageDir, err = expandPath(c.Paths.ImageDir); err != nil {
		return fmt.Errorf("paths.image_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockFile) == "" {
		c.Paths.LockFile = defaultLockFile
	}
	if c.Paths.LockFile, err = expandPath(c.Paths.LockFile); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) != "" {
		if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
			return fmt.Errorf("paths.scratch_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTimelapse() {
	c.Timelapse.FFmpegBinary = strings.TrimSpace(c.Timelapse.FFmpegBinary)
	if c.Timelapse.FFmpegBinary == "" {
		c.Timelapse.FFmpegBinary = defaultFFmpegBinary
	}
	c.Timelapse.Bitrate = strings.TrimSpace(c.Timelapse.Bitrate)
	if c.Timelapse.Bitrate == "" {
		c.Timelapse.Bitrate = defaultBitrate
	}
	c.Timelapse.Codec = strings.TrimSpace(c.Timelapse.Codec)
	if c.Timelapse.Codec == "" {
		c.Timelapse.Codec = defaultCodec
	}
	c.Timelapse.PixelFormat = strings.TrimSpace(c.Timelapse.PixelFormat)
	if c.Timelapse.PixelFormat == "" {
		c.Timelapse.PixelFormat = defaultPixelFormat
	}
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Timelapse.ImageFileType)), ".")
	if ext == "" {
		ext = defaultImageFileType
	}
	c.Timelapse.ImageFileType = ext
}

func (c *Config) normalizeStacking() {
	c.Stacking.Method = strings.ToLower(strings.TrimSpace(c.Stacking.Method))
	if c.Stacking.Method == "" {
		c.Stacking.Method = defaultStackMethod
	}
	if c.Stacking.Binning <= 0 {
		c.Stacking.Binning = defaultBinning
	}
}

func (c *Config) normalizeFileTransfer() {
	c.FileTransfer.RemoteVideoFolder = strings.TrimSpace(c.FileTransfer.RemoteVideoFolder)
	c.FileTransfer.RemoteKeogramFolder = strings.TrimSpace(c.FileTransfer.RemoteKeogramFolder)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
