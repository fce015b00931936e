// Package mcp provides the MCP (Model Context Protocol) server of PrefEditor.
// It lets AI clients list devices and apps and read and edit app preference files.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"PrefEditor/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from shared types package
type (
	Device       = types.Device
	PrefFile     = types.PrefFile
	PrefEntry    = types.PrefEntry
	FileRef      = types.FileRef
	PrefEdit     = types.PrefEdit
	PrefSnapshot = types.PrefSnapshot
	SaveSummary  = types.SaveSummary
	EditRecord   = types.EditRecord
)

// PrefApp defines the methods the MCP server needs from the main App
type PrefApp interface {
	GetAppVersion() string

	// Devices and apps
	GetDevices(ctx context.Context) ([]Device, error)
	ListPackages(ctx context.Context, deviceId string, refresh bool) ([]string, error)
	ListPrefFiles(ctx context.Context, deviceId, packageName string) ([]PrefFile, error)

	// Preferences
	ReadPreferences(ctx context.Context, ref FileRef) (*PrefSnapshot, error)
	ApplyEdits(ctx context.Context, ref FileRef, edits []PrefEdit) (*SaveSummary, error)
	PreviewEdits(ctx context.Context, ref FileRef, edits []PrefEdit) (string, error)

	// History
	ListEditHistory(target string, limit int) ([]EditRecord, error)
}

// MCPServer wraps the MCP server with PrefApp integration
type MCPServer struct {
	app       PrefApp
	server    *server.MCPServer
	stdio     *server.StdioServer
	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app PrefApp) *MCPServer {
	mcpServer := server.NewMCPServer(
		"prefeditor",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithElicitation(),
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// registerTools registers all MCP tools
func (s *MCPServer) registerTools() {
	s.registerDeviceTools()
	s.registerPrefTools()
}

// registerResources registers all MCP resources
func (s *MCPServer) registerResources() {
	s.server.AddResource(
		mcp.NewResource(
			"prefeditor://devices",
			"Connected Android devices",
			mcp.WithMIMEType("application/json"),
		),
		s.handleDevicesResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"prefeditor://devices/{deviceId}/apps",
			"Third-party packages installed on a device",
		),
		s.handleDeviceAppsResource,
	)

	s.server.AddResource(
		mcp.NewResource(
			"prefeditor://history",
			"Recent preference edits",
			mcp.WithMIMEType("application/json"),
		),
		s.handleHistoryResource,
	)
}

// Start starts the MCP server on stdio and blocks until it shuts down
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run()
}

func (s *MCPServer) run() error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(os.Stderr, "[MCP] PrefEditor MCP Server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
	return err
}

// Stop marks the server stopped; it exits when stdin closes
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
}

// IsRunning returns whether the MCP server is running
func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// requestConfirmation asks the client to confirm a destructive operation
func (s *MCPServer) requestConfirmation(ctx context.Context, operation, details string) (bool, error) {
	elicitationRequest := mcp.ElicitationRequest{
		Params: mcp.ElicitationParams{
			Message: fmt.Sprintf("Destructive operation: %s\n\nDetails: %s\n\nDo you want to proceed?", operation, details),
			RequestedSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Confirm to proceed with this operation",
					},
				},
				"required": []string{"confirm"},
			},
		},
	}

	result, err := s.server.RequestElicitation(ctx, elicitationRequest)
	if err != nil {
		return false, fmt.Errorf("failed to request confirmation: %w", err)
	}
	if result.Action != mcp.ElicitationResponseActionAccept {
		return false, nil
	}
	data, ok := result.Content.(map[string]any)
	if !ok {
		return false, fmt.Errorf("unexpected response format")
	}
	confirm, ok := data["confirm"].(bool)
	if !ok {
		return false, fmt.Errorf("invalid confirmation response")
	}
	return confirm, nil
}
