package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("output = %q", output)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[render]") {
		t.Fatal("sample config missing render section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := executeCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init must refuse to overwrite")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite init: %v", err)
	}
}

func TestConfigShowPrintsSample(t *testing.T) {
	output, err := executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, section := range []string{"[paths]", "[render]", "[upload]", "[delivery]"} {
		if !strings.Contains(output, section) {
			t.Fatalf("sample output missing %s", section)
		}
	}
}
