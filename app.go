package main

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"PrefEditor/pkg/cache"
	"PrefEditor/pkg/config"
	"PrefEditor/pkg/edit"
	"PrefEditor/pkg/process"
	"PrefEditor/pkg/types"
)

// appCacheTTL bounds how long a device's package list is reused
const appCacheTTL = 10 * time.Minute

// historyRetention bounds the age of recorded edits
const historyRetention = 90 * 24 * time.Hour

// App wires configuration, the subprocess runner, persistent settings and the edit history
// together and owns the open edit sessions.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     *config.Config
	adbPath string

	runner   process.Runner
	commands *edit.CommandBuilder

	cacheService *cache.Service
	editStore    *EditStore

	// Open edit sessions keyed by target
	sessions   map[string]*EditSession
	sessionsMu sync.Mutex

	version string
}

// NewApp creates a new App instance
func NewApp(cfg *config.Config, version string) *App {
	return &App{
		cfg:      cfg,
		sessions: make(map[string]*EditSession),
		version:  version,
	}
}

// startup prepares directories, scripts and stores. It must run before any other method.
func (a *App) startup(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := installScripts(a.cfg.ScriptsDir); err != nil {
		return fmt.Errorf("failed to install scripts: %w", err)
	}
	a.setupAdb()

	if a.runner == nil {
		proc := process.New(a.cfg.ScriptsDir)
		proc.Timeout = a.cfg.Timeout()
		if a.cfg.LaunchRate > 0 {
			proc.Limiter = rate.NewLimiter(rate.Limit(a.cfg.LaunchRate), 1)
		}
		a.runner = proc
	}
	a.commands = edit.NewCommandBuilder(a.adbPath, a.cfg.Backup)
	a.commands.Shell = a.cfg.Shell

	cs, err := cache.New(cache.Config{
		Dir: a.cfg.DataDir,
		TTL: appCacheTTL,
		LogFunc: func(format string, args ...interface{}) {
			LogWarn("cache").Msgf(format, args...)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	a.cacheService = cs

	store, err := NewEditStore(a.cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open edit history: %w", err)
	}
	a.editStore = store
	if n, err := store.CleanupOlderThan(historyRetention); err != nil {
		LogWarn("app").Err(err).Msg("Failed to prune edit history")
	} else if n > 0 {
		LogDebug("app").Int("removed", n).Msg("Pruned edit history")
	}

	LogInfo("app").Str("version", a.version).Str("adb", a.adbPath).Str("scripts", a.cfg.ScriptsDir).Bool("backup", a.cfg.Backup).Msg("PrefEditor started")
	return nil
}

// Shutdown closes every session and persists the settings
func (a *App) Shutdown() {
	a.sessionsMu.Lock()
	for key, s := range a.sessions {
		s.Close()
		delete(a.sessions, key)
	}
	a.sessionsMu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	if a.cacheService != nil {
		if err := a.cacheService.Close(); err != nil {
			LogWarn("app").Err(err).Msg("Failed to save settings")
		}
	}
	if a.editStore != nil {
		a.editStore.Close()
	}
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

// setupAdb resolves the adb executable. A bare name is looked up on PATH; if that
// fails the name is kept so the error surfaces on first use.
func (a *App) setupAdb() {
	a.adbPath = a.cfg.AdbPath
	if a.adbPath == "" {
		a.adbPath = "adb"
	}
	if path, err := exec.LookPath(a.adbPath); err == nil {
		a.adbPath = path
	} else {
		LogWarn("app").Str("adb", a.adbPath).Msg("adb not found on PATH")
	}
	DeviceLog().Str("path", a.adbPath).Msg("Final ADB path")
}

// adb runs an adb command through the runner
func (a *App) adb(ctx context.Context, args ...string) (process.Result, error) {
	return a.runner.Run(ctx, append([]string{a.adbPath}, args...))
}

// updateLastActive records device use for ordering
func (a *App) updateLastActive(serial string) {
	if serial == "" || a.cacheService == nil {
		return
	}
	a.cacheService.Touch(serial)
	if err := a.cacheService.SaveSettings(); err != nil {
		LogWarn("cache").Err(err).Msg("Failed to save settings")
	}
}

// DeviceTarget builds and validates a target for a file of an app on a device
func (a *App) DeviceTarget(serial, pkg, file string) (edit.Target, error) {
	if err := ValidateDeviceID(serial); err != nil {
		return edit.Target{}, err
	}
	if err := ValidatePackageName(pkg); err != nil {
		return edit.Target{}, err
	}
	t := edit.DeviceTarget(serial, pkg, file, fileTypeOf(file))
	return t, t.Validate()
}

// OpenSession returns the loaded session for target, creating it on first use
func (a *App) OpenSession(ctx context.Context, target edit.Target) (*EditSession, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	key := target.String()

	a.sessionsMu.Lock()
	s, ok := a.sessions[key]
	if !ok {
		var recorder EditRecorder
		if a.editStore != nil {
			recorder = a.editStore
		}
		s = NewEditSession(a.ctx, target, a.runner, a.commands, recorder)
		a.sessions[key] = s
	}
	a.sessionsMu.Unlock()

	if ok && s.Document() != nil {
		return s, nil
	}
	if err := s.Load(ctx); err != nil {
		a.CloseSession(target)
		return nil, err
	}
	if target.Kind == edit.TargetDevice {
		a.updateLastActive(target.Serial)
	}
	if a.cacheService != nil {
		a.cacheService.AddRecentFile(key)
	}
	return s, nil
}

// CloseSession closes and forgets the session of target
func (a *App) CloseSession(target edit.Target) {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	if s, ok := a.sessions[target.String()]; ok {
		s.Close()
		delete(a.sessions, target.String())
	}
}

// History returns recorded edits, newest first
func (a *App) History(q EditQuery) ([]types.EditRecord, error) {
	if a.editStore == nil {
		return nil, fmt.Errorf("edit history is not initialized")
	}
	return a.editStore.ListEdits(q)
}

// RecentFiles returns the recently opened preference files, most recent first
func (a *App) RecentFiles() []cache.RecentFile {
	if a.cacheService == nil {
		return nil
	}
	return a.cacheService.RecentFiles()
}
