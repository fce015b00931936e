package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"PrefEditor/pkg/types"
)

// Helper to create a CallToolRequest with arguments
func makeToolRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// Helper to get text content from result
func getTextContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// ==================== device_list ====================

func TestHandleDeviceList_Success(t *testing.T) {
	mock := NewMockPrefApp()
	pinned := SampleDevice("device2")
	pinned.IsPinned = true
	mock.GetDevicesResult = []Device{pinned, SampleDevice("device1")}
	server := NewMCPServer(mock)

	result, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "device1") || !strings.Contains(text, "device2") {
		t.Errorf("Result should contain both devices: %s", text)
	}
	if !strings.Contains(text, "2 device") {
		t.Error("Result should mention 2 devices")
	}
	if !strings.Contains(text, "device2 [pinned]") {
		t.Errorf("Pinned device should be marked: %s", text)
	}
	if len(result.Content) != 2 {
		t.Error("Expected a JSON content block")
	}
}

func TestHandleDeviceList_NoDevices(t *testing.T) {
	server := NewMCPServer(NewMockPrefApp())

	result, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(strings.ToLower(getTextContent(result)), "no device") {
		t.Errorf("Result should indicate no devices, got: %s", getTextContent(result))
	}
}

func TestHandleDeviceList_Error(t *testing.T) {
	mock := NewMockPrefApp()
	mock.GetDevicesError = ErrDeviceNotFound
	server := NewMCPServer(mock)

	_, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected wrapped ErrDeviceNotFound, got %v", err)
	}
}

// ==================== app_list ====================

func TestHandleAppList_Success(t *testing.T) {
	mock := NewMockPrefApp()
	mock.ListPackagesResult = []string{"com.alpha", "com.beta"}
	server := NewMCPServer(mock)

	result, err := server.handleAppList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"refresh":   true,
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	text := getTextContent(result)
	if !strings.Contains(text, "2 package") || !strings.Contains(text, "com.beta") {
		t.Errorf("Unexpected result: %s", text)
	}
	call := mock.GetLastCallByMethod("ListPackages")
	if call == nil || call.Args[0] != "emulator-5554" || call.Args[1] != true {
		t.Errorf("Unexpected call %+v", call)
	}
}

func TestHandleAppList_MissingDevice(t *testing.T) {
	server := NewMCPServer(NewMockPrefApp())
	if _, err := server.handleAppList(context.Background(), makeToolRequest(map[string]interface{}{})); err == nil {
		t.Error("Expected error for missing device_id")
	}
}

func TestHandleAppList_Empty(t *testing.T) {
	server := NewMCPServer(NewMockPrefApp())
	result, err := server.handleAppList(context.Background(), makeToolRequest(map[string]interface{}{"device_id": "d"}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(getTextContent(result), "No third-party packages") {
		t.Errorf("Unexpected result: %s", getTextContent(result))
	}
}

// ==================== pref_file_list ====================

func TestHandlePrefFileList_Success(t *testing.T) {
	mock := NewMockPrefApp()
	mock.ListPrefFilesResult = []PrefFile{
		{Name: "settings.xml", Type: types.FileTypeKeyValue},
		{Name: "user.preferences_pb", Type: types.FileTypeDataStore},
	}
	server := NewMCPServer(mock)

	result, err := server.handlePrefFileList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id":    "emulator-5554",
		"package_name": "com.example.app",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	text := getTextContent(result)
	if !strings.Contains(text, "settings.xml (KEY_VALUE)") || !strings.Contains(text, "user.preferences_pb (DATA_STORE)") {
		t.Errorf("Unexpected result: %s", text)
	}
}

func TestHandlePrefFileList_Errors(t *testing.T) {
	mock := NewMockPrefApp()
	mock.ListPrefFilesError = ErrRunAsDenied
	server := NewMCPServer(mock)

	if _, err := server.handlePrefFileList(context.Background(), makeToolRequest(map[string]interface{}{"device_id": "d"})); err == nil {
		t.Error("Expected error for missing package_name")
	}
	_, err := server.handlePrefFileList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id":    "d",
		"package_name": "com.example.app",
	}))
	if !errors.Is(err, ErrRunAsDenied) {
		t.Errorf("Expected ErrRunAsDenied, got %v", err)
	}
}
