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
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InputVideo) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/convertupload/config.toml"
		}
		return fmt.Errorf("paths.input_video is required. Edit %s (create with 'convertupload config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateRender() error {
	if strings.TrimSpace(c.Render.ProjectName) == "" {
		return errors.New("render.project_name must be set")
	}
	if strings.TrimSpace(c.Render.EngineAddress) == "" {
		return errors.New("render.engine_address must be set")
	}
	if c.Render.AttachAttempts <= 0 {
		return errors.New("render.attach_attempts must be positive")
	}
	if c.Render.AttachInterval < 0 {
		return errors.New("render.attach_interval must not be negative")
	}
	if c.Render.PollIntervalMS <= 0 {
		return errors.New("render.poll_interval_ms must be positive")
	}
	if c.Render.LogInterval <= 0 {
		return errors.New("render.log_interval must be positive")
	}
	if c.Render.PollTimeout < 0 {
		return errors.New("render.poll_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if strings.TrimSpace(c.Upload.Endpoint) == "" {
		return errors.New("upload.endpoint must be set")
	}
	if c.Upload.ChunkSizeMiB <= 0 {
		return errors.New("upload.chunk_size_mib must be positive")
	}
	if !strings.Contains(c.Upload.ShareLinkTemplate, "%s") {
		return errors.New("upload.share_link_template must contain a %s placeholder for the file identifier")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if strings.TrimSpace(c.Delivery.SMTPHost) == "" {
		return errors.New("delivery.smtp_host must be set")
	}
	if c.Delivery.SMTPPort <= 0 || c.Delivery.SMTPPort > 65535 {
		return errors.New("delivery.smtp_port must be a valid TCP port")
	}
	if strings.TrimSpace(c.Delivery.FromAddress) == "" {
		return errors.New("delivery.from_address must be set")
	}
	for carrier, suffix := range c.Delivery.CarrierGateways {
		if !strings.HasPrefix(suffix, "@") {
			return fmt.Errorf("delivery.carrier_gateways[%s] must start with '@', got %q", carrier, suffix)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PlaybackPollIntervalMS <= 0 {
		return errors.New("workflow.playback_poll_interval_ms must be positive")
	}
	if c.Workflow.KeepAliveInterval <= 0 {
		return errors.New("workflow.keep_alive_interval must be positive")
	}
	if c.Workflow.ProgressInterval <= 0 {
		return errors.New("workflow.progress_interval must be positive")
	}
	return nil
}
