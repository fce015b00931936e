package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.AdbPath != "adb" || cfg.Shell != "sh" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %s", cfg.Timeout())
	}
	if cfg.Backup {
		t.Error("Backup should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	if !strings.HasSuffix(ConfigPath(), "config.toml") {
		t.Errorf("Expected config.toml, got %s", ConfigPath())
	}
}

func TestLoadNonexistent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PREFEDITOR_HOME", home)
	cfg, err := Load(filepath.Join(home, "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ScriptsDir != filepath.Join(home, "scripts") || cfg.DataDir != filepath.Join(home, "data") {
		t.Errorf("Directories not resolved from home: %+v", cfg)
	}
}

func TestLoadFormats(t *testing.T) {
	files := map[string]string{
		"config.toml": "adb_path = \"/opt/adb\"\nbackup = true\ntimeout_seconds = 20\n[log]\nlevel = \"debug\"\n",
		"config.json": `{"adb_path": "/opt/adb", "backup": true, "timeout_seconds": 20, "log": {"level": "debug"}}`,
		"config.yaml": "adb_path: /opt/adb\nbackup: true\ntimeout_seconds: 20\nlog:\n  level: debug\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.AdbPath != "/opt/adb" || !cfg.Backup || cfg.TimeoutSeconds != 20 || cfg.Log.Level != "debug" {
				t.Errorf("Unexpected config %+v", cfg)
			}
			if cfg.Shell != "sh" {
				t.Errorf("Unset fields should keep defaults, shell = %q", cfg.Shell)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("this is = = not toml"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for invalid TOML")
	}

	unknown := filepath.Join(dir, "config.ini")
	os.WriteFile(unknown, []byte("x=1"), 0o644)
	if _, err := Load(unknown); err == nil {
		t.Error("Expected error for unsupported extension")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	os.WriteFile(invalid, []byte("timeout_seconds = 0\nadb_path = \"\"\n"), 0o644)
	_, err := Load(invalid)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 2 {
		t.Errorf("Expected 2 validation errors, got %v", verrs)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PREFEDITOR_ADB", "/env/adb")
	t.Setenv("PREFEDITOR_BACKUP", "true")
	t.Setenv("PREFEDITOR_TIMEOUT", "30")
	t.Setenv("PREFEDITOR_LOG_LEVEL", "warn")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.AdbPath != "/env/adb" || !cfg.Backup || cfg.TimeoutSeconds != 30 || cfg.Log.Level != "warn" {
		t.Errorf("Overrides not applied: %+v", cfg)
	}

	t.Setenv("PREFEDITOR_TIMEOUT", "soon")
	cfg = Default()
	cfg.ApplyEnvOverrides()
	if cfg.TimeoutSeconds != 10 {
		t.Errorf("Unparseable timeout should be ignored, got %d", cfg.TimeoutSeconds)
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.HomeDir = dir
	cfg.Backup = true
	cfg.LaunchRate = 2.5
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Backup || loaded.LaunchRate != 2.5 || loaded.HomeDir != dir {
		t.Errorf("Round trip lost fields: %+v", loaded)
	}
}

func TestEnsureDirectories(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	cfg := &Config{HomeDir: home}
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.ScriptsDir, cfg.DataDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("Directory %s not created", dir)
		}
	}
	if filepath.Dir(cfg.HistoryPath()) != cfg.DataDir {
		t.Errorf("History should live in the data dir: %s", cfg.HistoryPath())
	}
}
