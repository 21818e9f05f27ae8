package config

const (
	defaultWorkspaceDir = "~/.local/share/inkmark/workspace"
	defaultOutputDir    = "~/.local/share/inkmark/output"
	defaultLogDir       = "~/.local/share/inkmark/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultWatermarkImage    = "/logo.png"
	defaultWatermarkPosition = "bottom-right"
	defaultWatermarkOpacity  = 0.7
	defaultWatermarkScale    = 0.15
	defaultWatermarkMargin   = 20

	defaultLoaderMaxAttempts   = 3
	defaultLoaderBackoffBase   = 1.0
	defaultLoaderImageTimeout  = 10
	defaultLoaderVideoTimeout  = 30
	defaultFrameRate           = 30
	defaultChunkSliceSeconds   = 1
	defaultSafetyBufferSecs    = 10
	defaultSafetyBufferFrac    = 0.10
	defaultSoftChunkCeiling    = 1000
	defaultAudioBitrateKbps    = 128
	defaultTranscodeFloorSecs  = 120
	defaultTranscodeSecsPerMB  = 120
	defaultTranscodePreset     = "medium"
	defaultTranscodeCRF        = 23
	defaultPipelineRetryLimit  = 2
	defaultPipelineRetryDelay  = 2
	defaultMemoryMinAvailMB    = 300
	defaultMemoryWarnAvailMB   = 800
	defaultValidateMaxSizeMB   = 200
	defaultValidateWarnSizeMB  = 100
	defaultValidateWarnSecs    = 120
	defaultValidateWarnWidth   = 1920
	defaultValidateWarnHeight  = 1080
	defaultNtfyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		Watermark: Watermark{
			Image:    defaultWatermarkImage,
			Position: defaultWatermarkPosition,
			Opacity:  defaultWatermarkOpacity,
			Scale:    defaultWatermarkScale,
			Margin:   defaultWatermarkMargin,
		},
		Loader: Loader{
			MaxAttempts:         defaultLoaderMaxAttempts,
			BackoffBaseSeconds:  defaultLoaderBackoffBase,
			ImageTimeoutSeconds: defaultLoaderImageTimeout,
			VideoTimeoutSeconds: defaultLoaderVideoTimeout,
		},
		Recorder: Recorder{
			FrameRate:            defaultFrameRate,
			ChunkSliceSeconds:    defaultChunkSliceSeconds,
			SafetyBufferSeconds:  defaultSafetyBufferSecs,
			SafetyBufferFraction: defaultSafetyBufferFrac,
			SoftChunkCeiling:     defaultSoftChunkCeiling,
			AudioBitrateKbps:     defaultAudioBitrateKbps,
		},
		Transcode: Transcode{
			TimeoutFloorSeconds: defaultTranscodeFloorSecs,
			TimeoutSecondsPerMB: defaultTranscodeSecsPerMB,
			Preset:              defaultTranscodePreset,
			CRF:                 defaultTranscodeCRF,
		},
		Pipeline: Pipeline{
			RetryLimit:        defaultPipelineRetryLimit,
			RetryDelaySeconds: defaultPipelineRetryDelay,
		},
		Memory: Memory{
			MinAvailableMB:  defaultMemoryMinAvailMB,
			WarnAvailableMB: defaultMemoryWarnAvailMB,
		},
		Validation: Validation{
			MaxSizeMB:           defaultValidateMaxSizeMB,
			WarnSizeMB:          defaultValidateWarnSizeMB,
			WarnDurationSeconds: defaultValidateWarnSecs,
			WarnWidth:           defaultValidateWarnWidth,
			WarnHeight:          defaultValidateWarnHeight,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
