package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleDevicesResource handles the prefeditor://devices resource
func (s *MCPServer) handleDevicesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	devices, err := s.app.GetDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return jsonResource(request.Params.URI, devices)
}

// handleDeviceAppsResource handles the prefeditor://devices/{deviceId}/apps resource template
func (s *MCPServer) handleDeviceAppsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	rest := strings.TrimPrefix(uri, "prefeditor://devices/")
	deviceID := strings.TrimSuffix(rest, "/apps")
	if rest == uri || deviceID == rest || deviceID == "" || strings.Contains(deviceID, "/") {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}

	packages, err := s.app.ListPackages(ctx, deviceID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	if packages == nil {
		packages = []string{}
	}
	return jsonResource(uri, packages)
}

// handleHistoryResource handles the prefeditor://history resource
func (s *MCPServer) handleHistoryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := s.app.ListEditHistory("", 50)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if records == nil {
		records = []EditRecord{}
	}
	return jsonResource(request.Params.URI, records)
}
