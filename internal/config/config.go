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

// Paths contains directory and input configuration.
type Paths struct {
	InputVideo string `toml:"input_video"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	DataDir    string `toml:"data_dir"`
}

// Render contains configuration for the external rendering engine.
type Render struct {
	EngineBinary    string   `toml:"engine_binary"`
	EngineArgs      []string `toml:"engine_args"`
	EngineAddress   string   `toml:"engine_address"`
	ProjectName     string   `toml:"project_name"`
	ProjectTemplate string   `toml:"project_template"`
	AttachAttempts  int      `toml:"attach_attempts"`
	AttachInterval  int      `toml:"attach_interval"`
	PollIntervalMS  int      `toml:"poll_interval_ms"`
	LogInterval     int      `toml:"log_interval"`
	// PollTimeout bounds render polling in seconds. Zero keeps polling
	// unbounded, matching the engine's own behavior.
	PollTimeout int    `toml:"poll_timeout"`
	Format      string `toml:"format"`
	VideoCodec  string `toml:"video_codec"`
	Encoder     string `toml:"encoder"`
	Quality     string `toml:"quality"`
	RateControl string `toml:"rate_control"`
	Preset      string `toml:"preset"`
}

// Upload contains configuration for the remote storage service.
type Upload struct {
	Endpoint          string `toml:"endpoint"`
	APIToken          string `toml:"api_token"`
	ChunkSizeMiB      int    `toml:"chunk_size_mib"`
	RequestTimeout    int    `toml:"request_timeout"`
	ShareLinkTemplate string `toml:"share_link_template"`
}

// Delivery contains configuration for email and SMS-gateway delivery.
type Delivery struct {
	SMTPHost        string            `toml:"smtp_host"`
	SMTPPort        int               `toml:"smtp_port"`
	SMTPUsername    string            `toml:"smtp_username"`
	SMTPPassword    string            `toml:"smtp_password"`
	FromAddress     string            `toml:"from_address"`
	EmailSubject    string            `toml:"email_subject"`
	CarrierGateways map[string]string `toml:"carrier_gateways"`
}

// Preview contains configuration for auxiliary-display preview loops.
type Preview struct {
	Enabled      bool   `toml:"enabled"`
	PlayerBinary string `toml:"player_binary"`
	FrameRate    int    `toml:"frame_rate"`
}

// Workflow contains configuration for foreground loop and progress cadences.
type Workflow struct {
	PlaybackPollIntervalMS int `toml:"playback_poll_interval_ms"`
	KeepAliveInterval      int `toml:"keep_alive_interval"`
	ProgressInterval       int `toml:"progress_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the kiosk pipeline.
//
// Configuration sections by subsystem:
//   - Paths: input clip, output directory, log and data directories
//   - Render: engine binary, scripting address, project, settings bundle
//   - Upload: storage endpoint, chunking, share link template
//   - Delivery: SMTP transport and carrier SMS gateways
//   - Preview: auxiliary-display loop player
//   - Workflow: foreground and progress cadences
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Render   Render   `toml:"render"`
	Upload   Upload   `toml:"upload"`
	Delivery Delivery `toml:"delivery"`
	Preview  Preview  `toml:"preview"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/convertupload/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves a leading ~ against the current home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the sample configuration to target.
func CreateSample(target string) error {
	return os.WriteFile(target, []byte(sampleConfig), 0o644)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("convertupload.toml")
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

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.DataDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for lossless trims.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.InputVideo, err = expandPath(c.Paths.InputVideo); err != nil {
		return fmt.Errorf("paths.input_video: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Render.ProjectTemplate, err = expandPath(c.Render.ProjectTemplate); err != nil {
		return fmt.Errorf("render.project_template: %w", err)
	}

	c.Upload.Endpoint = strings.TrimRight(strings.TrimSpace(c.Upload.Endpoint), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Delivery.CarrierGateways) == 0 {
		c.Delivery.CarrierGateways = defaultCarrierGateways()
	}
	return nil
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
