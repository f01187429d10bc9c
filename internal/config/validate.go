package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTimelapse(); err != nil {
		return err
	}
	if err := c.validateKeogram(); err != nil {
		return err
	}
	if err := c.validateStacking(); err != nil {
		return err
	}
	if err := c.validateFileTransfer(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ImageDir) == "" {
		return errors.New("paths.image_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateTimelapse() error {
	if c.Timelapse.Framerate <= 0 {
		return errors.New("timelapse.framerate must be positive")
	}
	if c.Timelapse.Niceness < 0 || c.Timelapse.Niceness > 19 {
		return errors.New("timelapse.niceness must be between 0 and 19")
	}
	return nil
}

func (c *Config) validateKeogram() error {
	if c.Keogram.HScale <= 0 || c.Keogram.HScale > 100 {
		return errors.New("keogram.h_scale must be between 1 and 100")
	}
	if c.Keogram.VScale <= 0 || c.Keogram.VScale > 100 {
		return errors.New("keogram.v_scale must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateStacking() error {
	switch c.Stacking.Method {
	case "mean", "average", "maximum", "max", "minimum", "min":
	default:
		return fmt.Errorf("stacking.method: unsupported value %q", c.Stacking.Method)
	}
	if n := len(c.Stacking.ROI); n != 0 && n != 4 {
		return fmt.Errorf("stacking.roi must contain 4 values (x1, y1, x2, y2), got %d", n)
	}
	if len(c.Stacking.ROI) == 4 {
		roi := c.Stacking.ROI
		if roi[0] < 0 || roi[1] < 0 || roi[2] <= roi[0] || roi[3] <= roi[1] {
			return fmt.Errorf("stacking.roi %v must describe a non-empty rectangle", roi)
		}
	}
	if c.Stacking.DetectionSigma <= 0 {
		return errors.New("stacking.detection_sigma must be positive")
	}
	if c.Stacking.MaxControlPoints < 3 {
		return errors.New("stacking.max_control_points must be at least 3")
	}
	if c.Stacking.MinArea <= 0 {
		return errors.New("stacking.min_area must be positive")
	}
	return nil
}

func (c *Config) validateFileTransfer() error {
	if c.FileTransfer.UploadVideo && c.FileTransfer.RemoteVideoFolder == "" {
		return errors.New("file_transfer.remote_video_folder must be set when file_transfer.upload_video is true")
	}
	if c.FileTransfer.UploadKeogram && c.FileTransfer.RemoteKeogramFolder == "" {
		return errors.New("file_transfer.remote_keogram_folder must be set when file_transfer.upload_keogram is true")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.QueuePollInterval <= 0 {
		return errors.New("worker.queue_poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "color":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
