package config

const (
	defaultConfigPath        = "~/.config/allsky/config.toml"
	defaultImageDir          = "~/.local/share/allsky/images"
	defaultDataDir           = "~/.local/share/allsky"
	defaultLogDir            = "~/.local/share/allsky/logs"
	defaultLockFile          = "/tmp/timelapse_video.lock"
	defaultCameraName        = "allsky"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFramerate         = 25
	defaultBitrate           = "5000k"
	defaultCodec             = "libx264"
	defaultPixelFormat       = "yuv420p"
	defaultImageFileType     = "jpg"
	defaultNiceness          = 19
	defaultKeogramHScale     = 100
	defaultKeogramVScale     = 33
	defaultStackMethod       = "mean"
	defaultBinning           = 1
	defaultDetectionSigma    = 5
	defaultMaxControlPoints  = 150
	defaultMinArea           = 15
	defaultRemoteVideoFolder = "/allsky/videos"
	defaultRemoteKeogramDir  = "/allsky/keograms"
	defaultQueuePollInterval = 5
	defaultMetricsBind       = "127.0.0.1:9464"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ImageDir: defaultImageDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			LockFile: defaultLockFile,
		},
		Camera: Camera{
			Name: defaultCameraName,
		},
		Timelapse: Timelapse{
			FFmpegBinary:  defaultFFmpegBinary,
			Framerate:     defaultFramerate,
			Bitrate:       defaultBitrate,
			Codec:         defaultCodec,
			PixelFormat:   defaultPixelFormat,
			ImageFileType: defaultImageFileType,
			Niceness:      defaultNiceness,
		},
		Keogram: Keogram{
			HScale: defaultKeogramHScale,
			VScale: defaultKeogramVScale,
		},
		Stacking: Stacking{
			Method:           defaultStackMethod,
			Register:         true,
			Binning:          defaultBinning,
			DetectionSigma:   defaultDetectionSigma,
			MaxControlPoints: defaultMaxControlPoints,
			MinArea:          defaultMinArea,
		},
		FileTransfer: FileTransfer{
			RemoteVideoFolder:   defaultRemoteVideoFolder,
			RemoteKeogramFolder: defaultRemoteKeogramDir,
		},
		Worker: Worker{
			QueuePollInterval: defaultQueuePollInterval,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
