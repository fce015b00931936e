// Package config loads the PrefEditor configuration: adb location, script and data
// directories, backup policy and command limits.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppName names the per-user configuration directory
const AppName = "PrefEditor"

// Config is passed explicitly to every component that needs a path or a policy.
type Config struct {
	// HomeDir holds config.toml and is the default parent of ScriptsDir and DataDir
	HomeDir    string `toml:"home_dir" json:"home_dir" yaml:"home_dir"`
	ScriptsDir string `toml:"scripts_dir" json:"scripts_dir" yaml:"scripts_dir"`
	DataDir    string `toml:"data_dir" json:"data_dir" yaml:"data_dir"`

	AdbPath string `toml:"adb_path" json:"adb_path" yaml:"adb_path"`
	Shell   string `toml:"shell" json:"shell" yaml:"shell"`

	// Backup makes every in-place edit keep a timestamped copy of the file
	Backup         bool    `toml:"backup" json:"backup" yaml:"backup"`
	TimeoutSeconds int     `toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
	LaunchRate     float64 `toml:"launch_rate" json:"launch_rate" yaml:"launch_rate"`

	Log LogConfig `toml:"log" json:"log" yaml:"log"`
}

// LogConfig configures the zerolog output
type LogConfig struct {
	Level string `toml:"level" json:"level" yaml:"level"`
	// File enables the rotating persistent log in DataDir/logs when true
	File bool `toml:"file" json:"file" yaml:"file"`
}

// DefaultHome returns <user config dir>/PrefEditor, falling back to ~/.prefeditor
func DefaultHome() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prefeditor")
}

// ConfigPath returns the default configuration file path
func ConfigPath() string {
	return filepath.Join(DefaultHome(), "config.toml")
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		HomeDir:        DefaultHome(),
		AdbPath:        "adb",
		Shell:          "sh",
		TimeoutSeconds: 10,
		Log:            LogConfig{Level: "info"},
	}
}

// ApplyEnvOverrides lets PREFEDITOR_* variables win over the file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PREFEDITOR_HOME"); v != "" {
		c.HomeDir = v
	}
	if v := os.Getenv("PREFEDITOR_ADB"); v != "" {
		c.AdbPath = v
	}
	if v := os.Getenv("PREFEDITOR_BACKUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Backup = b
		}
	}
	if v := os.Getenv("PREFEDITOR_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("PREFEDITOR_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Resolve fills directories left empty from HomeDir
func (c *Config) Resolve() {
	if c.HomeDir == "" {
		c.HomeDir = DefaultHome()
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = filepath.Join(c.HomeDir, "scripts")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.HomeDir, "data")
	}
}

// Timeout returns the per-command timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HistoryPath returns the SQLite edit history database path
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// CachePath returns the device/app cache file path
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.json")
}

// LogDir returns the persistent log directory
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// EnsureDirectories creates the directories the application writes to
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.HomeDir, c.ScriptsDir, c.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
