package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPopulatesBaseline(t *testing.T) {
	cfg := Default()
	if cfg.EmbeddingDim != 384 {
		t.Errorf("EmbeddingDim = %d, want 384", cfg.EmbeddingDim)
	}
	if cfg.BodyTruncateLimit == 0 {
		t.Errorf("BodyTruncateLimit should have a non-zero default")
	}
	if len(cfg.SensitiveHeaders) == 0 {
		t.Errorf("SensitiveHeaders should have a non-empty default set")
	}
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("DATABASE_URL", "")

	cfgDir := filepath.Join(dir, "redwire")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yamlContent := "database_url: postgres://test/db\nembedding_dim: 512\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://test/db" {
		t.Errorf("DatabaseURL = %q, want postgres://test/db", cfg.DatabaseURL)
	}
	if cfg.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %d, want 512 (from yaml)", cfg.EmbeddingDim)
	}
	if len(cfg.SensitiveHeaders) == 0 {
		t.Errorf("SensitiveHeaders should retain default when not overridden")
	}
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfgDir := filepath.Join(dir, "redwire")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("database_url: postgres://yaml/db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/db" {
		t.Errorf("DATABASE_URL env var should win, got %q", cfg.DatabaseURL)
	}
}
