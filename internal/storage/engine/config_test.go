package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "num_ht_entries: 128\nnum_buf: 64\ndata_dir: /var/lib/tinykv\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NumHTEntries != 128 {
		t.Errorf("NumHTEntries = %d, want 128", cfg.NumHTEntries)
	}
	if cfg.NumBuf != 64 {
		t.Errorf("NumBuf = %d, want 64", cfg.NumBuf)
	}
	if cfg.DataDir != "/var/lib/tinykv" {
		t.Errorf("DataDir = %q, want /var/lib/tinykv", cfg.DataDir)
	}
}

func TestLoadConfig_MissingFileFails(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
