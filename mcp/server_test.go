package mcp

import (
	"testing"
)

// TestNewMCPServer tests server creation
func TestNewMCPServer(t *testing.T) {
	mock := NewMockPrefApp()
	server := NewMCPServer(mock)

	if server == nil {
		t.Fatal("NewMCPServer should not return nil")
	}
	if server.app == nil {
		t.Error("server.app should not be nil")
	}
	if server.server == nil {
		t.Error("server.server (underlying MCP server) should not be nil")
	}
	if !mock.WasMethodCalled("GetAppVersion") {
		t.Error("GetAppVersion should be called during server creation")
	}
}

// TestMCPServer_IsRunning tests the IsRunning method
func TestMCPServer_IsRunning(t *testing.T) {
	server := NewMCPServer(NewMockPrefApp())
	if server.IsRunning() {
		t.Error("Server should not be running initially")
	}
}

// TestMCPServer_Stop tests the Stop method
func TestMCPServer_Stop(t *testing.T) {
	server := NewMCPServer(NewMockPrefApp())
	server.Stop()
	if server.IsRunning() {
		t.Error("Server should not be running after Stop")
	}
}

// TestMockPrefApp_Interface verifies MockPrefApp implements PrefApp
func TestMockPrefApp_Interface(t *testing.T) {
	var _ PrefApp = (*MockPrefApp)(nil)
}

// TestMockPrefApp_RecordsCalls tests call recording
func TestMockPrefApp_RecordsCalls(t *testing.T) {
	mock := NewMockPrefApp()
	mock.ListEditHistory("t", 5)

	call := mock.GetLastCallByMethod("ListEditHistory")
	if call == nil {
		t.Fatal("Expected recorded call")
	}
	if call.Args[0] != "t" || call.Args[1] != 5 {
		t.Errorf("Unexpected args %v", call.Args)
	}
	if mock.GetLastCallByMethod("ApplyEdits") != nil {
		t.Error("ApplyEdits was never called")
	}
}
