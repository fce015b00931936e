package mcp

import (
	"context"
	"errors"
	"sync"

	"PrefEditor/pkg/types"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockPrefApp is a mock implementation of PrefApp for testing
type MockPrefApp struct {
	mu    sync.Mutex
	Calls []MockCall

	AppVersion string

	GetDevicesResult    []Device
	GetDevicesError     error
	ListPackagesResult  []string
	ListPackagesError   error
	ListPrefFilesResult []PrefFile
	ListPrefFilesError  error

	ReadPreferencesResult *PrefSnapshot
	ReadPreferencesError  error
	ApplyEditsResult      *SaveSummary
	ApplyEditsError       error
	PreviewEditsResult    string
	PreviewEditsError     error

	ListEditHistoryResult []EditRecord
	ListEditHistoryError  error
}

// NewMockPrefApp creates a new mock with default empty results
func NewMockPrefApp() *MockPrefApp {
	return &MockPrefApp{
		Calls:              make([]MockCall, 0),
		AppVersion:         "1.0.0-test",
		GetDevicesResult:   []Device{},
		ListPackagesResult: []string{},
		ApplyEditsResult:   &SaveSummary{},
	}
}

func (m *MockPrefApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// WasMethodCalled checks if a method was called
func (m *MockPrefApp) WasMethodCalled(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if call.Method == method {
			return true
		}
	}
	return false
}

// GetLastCallByMethod returns the last call to a specific method
func (m *MockPrefApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			call := m.Calls[i]
			return &call
		}
	}
	return nil
}

func (m *MockPrefApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}

func (m *MockPrefApp) GetDevices(ctx context.Context) ([]Device, error) {
	m.recordCall("GetDevices")
	return m.GetDevicesResult, m.GetDevicesError
}

func (m *MockPrefApp) ListPackages(ctx context.Context, deviceId string, refresh bool) ([]string, error) {
	m.recordCall("ListPackages", deviceId, refresh)
	return m.ListPackagesResult, m.ListPackagesError
}

func (m *MockPrefApp) ListPrefFiles(ctx context.Context, deviceId, packageName string) ([]PrefFile, error) {
	m.recordCall("ListPrefFiles", deviceId, packageName)
	return m.ListPrefFilesResult, m.ListPrefFilesError
}

func (m *MockPrefApp) ReadPreferences(ctx context.Context, ref FileRef) (*PrefSnapshot, error) {
	m.recordCall("ReadPreferences", ref)
	return m.ReadPreferencesResult, m.ReadPreferencesError
}

func (m *MockPrefApp) ApplyEdits(ctx context.Context, ref FileRef, edits []PrefEdit) (*SaveSummary, error) {
	m.recordCall("ApplyEdits", ref, edits)
	return m.ApplyEditsResult, m.ApplyEditsError
}

func (m *MockPrefApp) PreviewEdits(ctx context.Context, ref FileRef, edits []PrefEdit) (string, error) {
	m.recordCall("PreviewEdits", ref, edits)
	return m.PreviewEditsResult, m.PreviewEditsError
}

func (m *MockPrefApp) ListEditHistory(target string, limit int) ([]EditRecord, error) {
	m.recordCall("ListEditHistory", target, limit)
	return m.ListEditHistoryResult, m.ListEditHistoryError
}

// Common test errors
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrRunAsDenied    = errors.New("run-as: package not debuggable")
)

// SampleDevice creates a sample device for testing
func SampleDevice(serial string) Device {
	return Device{
		Serial:     serial,
		Type:       types.ConnectionDevice,
		Model:      "Pixel 6",
		Product:    "oriole",
		LastActive: 1700000000,
	}
}

// SampleSnapshot creates a sample preference snapshot for testing
func SampleSnapshot() *PrefSnapshot {
	return &PrefSnapshot{
		Target: "emulator-5554:com.example.app/shared_prefs/settings.xml",
		Type:   types.FileTypeKeyValue,
		Entries: []PrefEntry{
			{Key: "dark_mode", Kind: "boolean", Value: "true", State: "none"},
			{Key: "tags", Kind: "set", Entries: []string{"a", "b"}, State: "none"},
		},
	}
}
