package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AppList is the cached package list of one device
type AppList struct {
	Packages  []string `json:"packages"`
	FetchedAt int64    `json:"fetchedAt"`
}

// RecentFile is a preference file opened earlier
type RecentFile struct {
	Target   string `json:"target"`
	OpenedAt int64  `json:"openedAt"`
}

// Settings represents persistent device selection state
type Settings struct {
	LastActive   map[string]int64 `json:"lastActive"`
	PinnedSerial string           `json:"pinnedSerial"`
	RecentFiles  []RecentFile     `json:"recentFiles,omitempty"`
}

const maxRecentFiles = 20

// Service keeps device selection state and per-device app lists on disk
type Service struct {
	dir          string
	cachePath    string
	settingsPath string

	// TTL bounds how long an app list is served from cache; zero disables expiry
	TTL time.Duration

	apps   map[string]AppList
	appsMu sync.RWMutex

	lastActive   map[string]int64
	pinnedSerial string
	recent       []RecentFile
	settingsMu   sync.RWMutex

	logFunc func(format string, args ...interface{})
}

// Config for creating a new Service
type Config struct {
	Dir     string
	TTL     time.Duration
	LogFunc func(format string, args ...interface{})
}

// New creates a Service rooted at cfg.Dir and loads what was persisted there
func New(cfg Config) (*Service, error) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "PrefEditor")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		dir:          cfg.Dir,
		cachePath:    filepath.Join(cfg.Dir, "apps_cache.json"),
		settingsPath: filepath.Join(cfg.Dir, "settings.json"),
		TTL:          cfg.TTL,
		apps:         make(map[string]AppList),
		lastActive:   make(map[string]int64),
		logFunc:      cfg.LogFunc,
	}
	s.loadCache()
	s.loadSettings()
	return s, nil
}

func (s *Service) log(format string, args ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// Apps returns the cached package list of a device if present and fresh
func (s *Service) Apps(serial string) ([]string, bool) {
	s.appsMu.RLock()
	defer s.appsMu.RUnlock()
	list, ok := s.apps[serial]
	if !ok {
		return nil, false
	}
	if s.TTL > 0 && time.Since(time.UnixMilli(list.FetchedAt)) > s.TTL {
		return nil, false
	}
	return append([]string(nil), list.Packages...), true
}

// SetApps caches the package list of a device
func (s *Service) SetApps(serial string, packages []string) {
	s.appsMu.Lock()
	s.apps[serial] = AppList{Packages: append([]string(nil), packages...), FetchedAt: time.Now().UnixMilli()}
	s.appsMu.Unlock()
}

// InvalidateApps drops the cached list of a device, or of all devices when serial is empty
func (s *Service) InvalidateApps(serial string) {
	s.appsMu.Lock()
	defer s.appsMu.Unlock()
	if serial == "" {
		s.apps = make(map[string]AppList)
		return
	}
	delete(s.apps, serial)
}

// SaveCache persists the app lists
func (s *Service) SaveCache() error {
	s.appsMu.RLock()
	data, err := json.Marshal(s.apps)
	s.appsMu.RUnlock()
	if err != nil {
		s.log("Error marshaling cache: %v", err)
		return err
	}
	if err := os.WriteFile(s.cachePath, data, 0644); err != nil {
		s.log("Error saving cache to %s: %v", s.cachePath, err)
		return err
	}
	return nil
}

func (s *Service) loadCache() {
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return
	}
	s.appsMu.Lock()
	defer s.appsMu.Unlock()
	if err := json.Unmarshal(data, &s.apps); err != nil {
		s.log("Ignoring corrupt cache %s: %v", s.cachePath, err)
		s.apps = make(map[string]AppList)
	}
}

// LastActive returns the last time a device was used, in unix seconds
func (s *Service) LastActive(serial string) int64 {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.lastActive[serial]
}

// Touch records that a device was used now
func (s *Service) Touch(serial string) {
	s.settingsMu.Lock()
	s.lastActive[serial] = time.Now().Unix()
	s.settingsMu.Unlock()
}

// PinnedSerial returns the pinned device serial
func (s *Service) PinnedSerial() string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.pinnedSerial
}

// SetPinnedSerial pins a device; an empty serial unpins
func (s *Service) SetPinnedSerial(serial string) {
	s.settingsMu.Lock()
	s.pinnedSerial = serial
	s.settingsMu.Unlock()
}

// AddRecentFile moves target to the front of the recent file list
func (s *Service) AddRecentFile(target string) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	recent := []RecentFile{{Target: target, OpenedAt: time.Now().Unix()}}
	for _, r := range s.recent {
		if r.Target != target && len(recent) < maxRecentFiles {
			recent = append(recent, r)
		}
	}
	s.recent = recent
}

// RecentFiles returns the recent files, most recent first
func (s *Service) RecentFiles() []RecentFile {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return append([]RecentFile(nil), s.recent...)
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	s.settingsMu.RLock()
	settings := Settings{
		LastActive:   make(map[string]int64, len(s.lastActive)),
		PinnedSerial: s.pinnedSerial,
		RecentFiles:  s.recent,
	}
	for k, v := range s.lastActive {
		settings.LastActive[k] = v
	}
	data, err := json.Marshal(settings)
	s.settingsMu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		s.log("Ignoring corrupt settings %s: %v", s.settingsPath, err)
		return
	}

	s.settingsMu.Lock()
	if settings.LastActive != nil {
		s.lastActive = settings.LastActive
	}
	s.pinnedSerial = settings.PinnedSerial
	s.recent = settings.RecentFiles
	s.settingsMu.Unlock()
}

// Dir returns the directory holding the cache files
func (s *Service) Dir() string {
	return s.dir
}

// Close saves the cache and settings
func (s *Service) Close() error {
	if err := s.SaveCache(); err != nil {
		s.log("Error saving cache on close: %v", err)
	}
	if err := s.SaveSettings(); err != nil {
		s.log("Error saving settings on close: %v", err)
	}
	return nil
}
