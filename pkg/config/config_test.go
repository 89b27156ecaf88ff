package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must be non-negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("MELACONV_TEST_NAME", "from-env")
	p := writeFile(t, "name: ${MELACONV_TEST_NAME}\n")

	cfg := sample{Limit: 7}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Limit != 7 {
		t.Errorf("limit = %d, default lost", cfg.Limit)
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	p := writeFile(t, "limit: -1\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeFile(t, "name: [unterminated\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := sample{Name: "default"}
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q", cfg.Name)
	}

	bad := sample{Limit: -5}
	if err := LoadOptional("", &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOptional_PresentFile(t *testing.T) {
	p := writeFile(t, "name: file\n")
	var cfg sample
	if err := LoadOptional(p, &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "file" {
		t.Errorf("name = %q", cfg.Name)
	}
}
