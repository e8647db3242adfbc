package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"convertupload/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[paths]
input_video = "/tmp/capture.mp4"
output_dir = "/tmp/out"

[render]
project_name = "EnhanceTemplate"

[upload]
endpoint = "https://storage.example.com/upload/v1/"

[delivery]
smtp_host = "smtp.example.com"
from_address = "kiosk@example.com"
`

func TestLoadAppliesDefaultsAndNormalizes(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Render.AttachAttempts != 30 {
		t.Fatalf("attach_attempts default = %d, want 30", cfg.Render.AttachAttempts)
	}
	if cfg.Upload.ChunkSizeMiB != 1 {
		t.Fatalf("chunk_size_mib default = %d, want 1", cfg.Upload.ChunkSizeMiB)
	}
	if strings.HasSuffix(cfg.Upload.Endpoint, "/") {
		t.Fatalf("endpoint not trimmed: %q", cfg.Upload.Endpoint)
	}
	if len(cfg.Delivery.CarrierGateways) == 0 {
		t.Fatal("expected default carrier gateways")
	}
	if got := cfg.Delivery.CarrierGateways["Verizon"]; got != "@vtext.com" {
		t.Fatalf("verizon gateway = %q", got)
	}
}

func TestLoadRejectsMissingInput(t *testing.T) {
	path := writeConfig(t, `
[upload]
endpoint = "https://storage.example.com"

[delivery]
smtp_host = "smtp.example.com"
from_address = "kiosk@example.com"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for missing paths.input_video")
	}
}

func TestValidateRejectsMalformedGateway(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.InputVideo = "/tmp/capture.mp4"
	cfg.Upload.Endpoint = "https://storage.example.com"
	cfg.Delivery.SMTPHost = "smtp.example.com"
	cfg.Delivery.FromAddress = "kiosk@example.com"
	cfg.Delivery.CarrierGateways = map[string]string{"ATT": "txt.att.net"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for gateway suffix without '@'")
	}
}

func TestValidateRejectsShareTemplateWithoutPlaceholder(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.InputVideo = "/tmp/capture.mp4"
	cfg.Upload.Endpoint = "https://storage.example.com"
	cfg.Upload.ShareLinkTemplate = "https://example.com/view"
	cfg.Delivery.SMTPHost = "smtp.example.com"
	cfg.Delivery.FromAddress = "kiosk@example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for share link template without placeholder")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := writeConfig(t, config.SampleConfig())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
