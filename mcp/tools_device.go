package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDeviceTools registers device, app and file listing tools
func (s *MCPServer) registerDeviceTools() {
	// device_list - List connected devices
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List all connected Android devices, pinned and recently used first"),
		),
		s.handleDeviceList,
	)

	// app_list - List installed third-party packages
	s.server.AddTool(
		mcp.NewTool("app_list",
			mcp.WithDescription("List third-party packages installed on a device"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device serial"),
			),
			mcp.WithBoolean("refresh",
				mcp.Description("Bypass the package cache"),
			),
		),
		s.handleAppList,
	)

	// pref_file_list - List preference files of an app
	s.server.AddTool(
		mcp.NewTool("pref_file_list",
			mcp.WithDescription("List SharedPreferences (.xml) and DataStore (.preferences_pb) files of a debuggable app"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device serial"),
			),
			mcp.WithString("package_name",
				mcp.Required(),
				mcp.Description("Application package name"),
			),
		),
		s.handlePrefFileList,
	)
}

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.app.GetDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	if len(devices) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No devices connected"),
			},
		}, nil
	}

	result := fmt.Sprintf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		pinned := ""
		if d.IsPinned {
			pinned = " [pinned]"
		}
		result += fmt.Sprintf("%d. %s%s\n   Model: %s, State: %s\n", i+1, d.Serial, pinned, d.Model, d.Type)
	}

	jsonData, _ := json.MarshalIndent(devices, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(result),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}

func (s *MCPServer) handleAppList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, ok := args["device_id"].(string)
	if !ok || deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	refresh, _ := args["refresh"].(bool)

	packages, err := s.app.ListPackages(ctx, deviceID, refresh)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	if len(packages) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("No third-party packages on %s", deviceID)),
			},
		}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Found %d package(s) on %s:\n%s", len(packages), deviceID, strings.Join(packages, "\n"))),
		},
	}, nil
}

func (s *MCPServer) handlePrefFileList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, ok := args["device_id"].(string)
	if !ok || deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	packageName, ok := args["package_name"].(string)
	if !ok || packageName == "" {
		return nil, fmt.Errorf("package_name is required")
	}

	files, err := s.app.ListPrefFiles(ctx, deviceID, packageName)
	if err != nil {
		return nil, fmt.Errorf("failed to list preference files: %w", err)
	}
	if len(files) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("No preference files found for %s (is the app debuggable?)", packageName)),
			},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d preference file(s) for %s:\n", len(files), packageName)
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Type)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
		},
	}, nil
}
