package config

const (
	defaultDataDir                = "~/.local/share/emotrack"
	defaultLogDir                 = "~/.local/share/emotrack/logs"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultInferenceStreamURL     = "wss://api.hume.ai/v0/stream/models"
	defaultInferenceBatchURL      = "https://api.hume.ai/v0/batch/jobs"
	defaultInferenceTimeoutMillis = 5000
	defaultRotationCooldownMillis = 1000
	defaultGenerationBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultGenerationModel        = "gemini-pro"
	defaultGenerationTemperature  = 0.7
	defaultGenerationMaxTokens    = 1000
	defaultGenerationTimeout      = 30
	defaultGenerationMinPoints    = 5
	defaultCaptureIntervalMillis  = 1500
	defaultReadinessDelayMillis   = 500
	defaultCaptureMaxAttempts     = 3
	defaultBackoffBaseMillis      = 500
	defaultSeriesCapacity         = 800
	defaultJPEGQuality            = 70
	defaultServerBind             = "127.0.0.1:7490"
	defaultProxyRatePerSecond     = 5
	defaultProxyBurst             = 10
	defaultMaxBodyBytes           = 8 << 20
	defaultLiveChannelPrefix      = "emotrack:live"
	defaultNotifyRequestTimeout   = 10

	// Environment variables are numbered from 1; unset slots are skipped.
	inferenceKeyEnvPrefix  = "HUME_API_KEY_"
	inferenceKeyEnvSlots   = 10
	generationKeyEnvPrefix = "GEMINI_API_KEY_"
	generationKeyEnvSlots  = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Inference: Inference{
			StreamURL:              defaultInferenceStreamURL,
			BatchURL:               defaultInferenceBatchURL,
			TimeoutMillis:          defaultInferenceTimeoutMillis,
			RotationCooldownMillis: defaultRotationCooldownMillis,
		},
		Generation: Generation{
			BaseURL:         defaultGenerationBaseURL,
			Model:           defaultGenerationModel,
			Temperature:     defaultGenerationTemperature,
			MaxOutputTokens: defaultGenerationMaxTokens,
			TimeoutSeconds:  defaultGenerationTimeout,
			MinPoints:       defaultGenerationMinPoints,
		},
		Capture: Capture{
			IntervalMillis:       defaultCaptureIntervalMillis,
			ReadinessDelayMillis: defaultReadinessDelayMillis,
			MaxAttempts:          defaultCaptureMaxAttempts,
			BackoffBaseMillis:    defaultBackoffBaseMillis,
			SeriesCapacity:       defaultSeriesCapacity,
			JPEGQuality:          defaultJPEGQuality,
		},
		Server: Server{
			Bind:               defaultServerBind,
			ProxyRatePerSecond: defaultProxyRatePerSecond,
			ProxyBurst:         defaultProxyBurst,
			MaxBodyBytes:       defaultMaxBodyBytes,
		},
		Live: Live{
			ChannelPrefix: defaultLiveChannelPrefix,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			SessionCompleted: true,
			Errors:           true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
