package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# ofio Configuration File",
		"logging:",
		"telemetry:",
		"metrics:",
		"pipeline:",
		"chunk_size: 64KiB",
		"backend:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if loaded.Pipeline.Depth != 10 {
		t.Errorf("Expected depth 10 from generated config, got %d", loaded.Pipeline.Depth)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("garbage: ["), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}
	if _, err := Load(configPath); err != nil {
		t.Errorf("Recreated config does not load: %v", err)
	}
}

func TestInitConfigToPath_Success(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created at %s", configPath)
	}
}

func TestWriteConfig_Custom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")

	cfg := GetDefaultConfig()
	cfg.Backend.Type = "memory"
	cfg.Pipeline.Depth = 4

	if err := WriteConfig(path, cfg, false); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Backend.Type != "memory" {
		t.Errorf("Expected backend memory, got %q", loaded.Backend.Type)
	}
	if loaded.Pipeline.Depth != 4 {
		t.Errorf("Expected depth 4, got %d", loaded.Pipeline.Depth)
	}

	if err := WriteConfig(path, cfg, false); err == nil {
		t.Error("Expected error when file exists without force")
	}
	if err := WriteConfig(path, cfg, true); err != nil {
		t.Errorf("WriteConfig with force failed: %v", err)
	}
}
