package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return os.ErrInvalid
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CFG_TEST_TOKEN", "sekrit")
	path := writeFile(t, "name: demo\ntoken: ${CFG_TEST_TOKEN}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "sekrit" {
		t.Errorf("token = %q, want sekrit", cfg.Token)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "token: x\n")

	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil {
		t.Fatal("expected validation error for missing name")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadIfPresent_MissingKeepsDefaults(t *testing.T) {
	cfg := testConfig{Name: "default"}
	if err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("LoadIfPresent: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q, want default", cfg.Name)
	}
}

func TestLoadIfPresent_MissingStillValidates(t *testing.T) {
	var cfg testConfig
	if err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("invalid defaults should fail validation")
	}
}

func TestLoadIfPresent_ReadsExisting(t *testing.T) {
	path := writeFile(t, "name: from-file\n")

	cfg := testConfig{Name: "default"}
	if err := LoadIfPresent(path, &cfg); err != nil {
		t.Fatalf("LoadIfPresent: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("name = %q, want from-file", cfg.Name)
	}
}
