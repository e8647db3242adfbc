package config

const (
	defaultOutputDir        = "~/.local/share/convertupload/saved"
	defaultLogDir           = "~/.local/share/convertupload/logs"
	defaultDataDir          = "~/.local/share/convertupload/data"
	defaultProjectName      = "EnhanceTemplate"
	defaultEngineAddress    = "127.0.0.1:5454"
	defaultAttachAttempts   = 30
	defaultAttachInterval   = 1
	defaultPollIntervalMS   = 500
	defaultLogInterval      = 5
	defaultRenderFormat     = "mp4"
	defaultVideoCodec       = "H.265"
	defaultEncoder          = "NVIDIA"
	defaultQuality          = "Best"
	defaultRateControl      = "VBR"
	defaultRenderPreset     = "Fast"
	defaultChunkSizeMiB     = 1
	defaultRequestTimeout   = 30
	defaultShareTemplate    = "https://drive.google.com/file/d/%s/view?usp=sharing"
	defaultSMTPPort         = 587
	defaultEmailSubject     = "Your Video from Pod"
	defaultPreviewPlayer    = "ffplay"
	defaultPreviewFrameRate = 24
	defaultPlaybackPollMS   = 500
	defaultKeepAlive        = 1
	defaultProgressInterval = 1
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

func defaultCarrierGateways() map[string]string {
	return map[string]string{
		"ATT":     "@txt.att.net",
		"Verizon": "@vtext.com",
		"TMobile": "@tmomail.net",
		"Sprint":  "@messaging.sprint.com",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
		},
		Render: Render{
			EngineAddress:  defaultEngineAddress,
			EngineArgs:     []string{"-nogui"},
			ProjectName:    defaultProjectName,
			AttachAttempts: defaultAttachAttempts,
			AttachInterval: defaultAttachInterval,
			PollIntervalMS: defaultPollIntervalMS,
			LogInterval:    defaultLogInterval,
			Format:         defaultRenderFormat,
			VideoCodec:     defaultVideoCodec,
			Encoder:        defaultEncoder,
			Quality:        defaultQuality,
			RateControl:    defaultRateControl,
			Preset:         defaultRenderPreset,
		},
		Upload: Upload{
			ChunkSizeMiB:      defaultChunkSizeMiB,
			RequestTimeout:    defaultRequestTimeout,
			ShareLinkTemplate: defaultShareTemplate,
		},
		Delivery: Delivery{
			SMTPPort:        defaultSMTPPort,
			EmailSubject:    defaultEmailSubject,
			CarrierGateways: defaultCarrierGateways(),
		},
		Preview: Preview{
			Enabled:      true,
			PlayerBinary: defaultPreviewPlayer,
			FrameRate:    defaultPreviewFrameRate,
		},
		Workflow: Workflow{
			PlaybackPollIntervalMS: defaultPlaybackPollMS,
			KeepAliveInterval:      defaultKeepAlive,
			ProgressInterval:       defaultProgressInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
