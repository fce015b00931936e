package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"PrefEditor/pkg/types"
)

// targetOptions are the arguments every preference tool accepts to address a file
func targetOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("device_id",
			mcp.Description("Device serial (with package_name and file)"),
		),
		mcp.WithString("package_name",
			mcp.Description("Application package name"),
		),
		mcp.WithString("file",
			mcp.Description("Preference file name, e.g. settings.xml"),
		),
		mcp.WithString("path",
			mcp.Description("Local file path, instead of device_id/package_name/file"),
		),
	}
}

func newPrefTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := append([]mcp.ToolOption{mcp.WithDescription(description)}, targetOptions()...)
	return mcp.NewTool(name, append(all, opts...)...)
}

// registerPrefTools registers the preference read/edit tools
func (s *MCPServer) registerPrefTools() {
	// pref_read - Read a preference file
	s.server.AddTool(
		newPrefTool("pref_read", "Read all entries of a preference file"),
		s.handlePrefRead,
	)

	// pref_set - Change one value
	s.server.AddTool(
		newPrefTool("pref_set", "Change the value of an existing preference and save it",
			mcp.WithString("key", mcp.Required(), mcp.Description("Preference key")),
			mcp.WithString("value", mcp.Description("New value (for string sets use entries)")),
			mcp.WithArray("entries", mcp.Description("New entries of a string set"), mcp.WithStringItems()),
		),
		s.handlePrefSet,
	)

	// pref_add - Add one preference
	s.server.AddTool(
		newPrefTool("pref_add", "Add a new preference to the file",
			mcp.WithString("key", mcp.Required(), mcp.Description("Preference key")),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Value type"),
				mcp.Enum("boolean", "int", "long", "float", "string", "set")),
			mcp.WithString("value", mcp.Description("Value (for sets use entries)")),
			mcp.WithArray("entries", mcp.Description("Entries of a string set"), mcp.WithStringItems()),
		),
		s.handlePrefAdd,
	)

	// pref_delete - Delete one preference
	s.server.AddTool(
		newPrefTool("pref_delete", "Delete a preference from the file. Requires confirmation.",
			mcp.WithString("key", mcp.Required(), mcp.Description("Preference key")),
		),
		s.handlePrefDelete,
	)

	// pref_save - Apply a batch of edits
	s.server.AddTool(
		newPrefTool("pref_save", "Apply a batch of edits in order. Stops at the first failing edit.",
			mcp.WithString("edits", mcp.Required(),
				mcp.Description(`JSON array of edits, e.g. [{"action":"set","key":"k","value":"1"},{"action":"delete","key":"old"},{"action":"add","key":"n","kind":"int","value":"2"}]`)),
		),
		s.handlePrefSave,
	)

	// pref_preview - Dry run of a batch of edits
	s.server.AddTool(
		newPrefTool("pref_preview", "Show the diff a batch of edits would produce without writing",
			mcp.WithString("edits", mcp.Required(), mcp.Description("JSON array of edits, same format as pref_save")),
		),
		s.handlePrefPreview,
	)

	// pref_history - Recent edits
	s.server.AddTool(
		mcp.NewTool("pref_history",
			mcp.WithDescription("List recently applied or failed edits, newest first"),
			mcp.WithString("target", mcp.Description("Only edits of this target (serial:package/dir/file or a local path)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of records (default: 20)")),
		),
		s.handlePrefHistory,
	)
}

// fileRefFromArgs reads the target arguments
func fileRefFromArgs(args map[string]interface{}) (FileRef, error) {
	var ref FileRef
	ref.Path, _ = args["path"].(string)
	if ref.Path != "" {
		return ref, nil
	}
	ref.DeviceID, _ = args["device_id"].(string)
	ref.Package, _ = args["package_name"].(string)
	ref.File, _ = args["file"].(string)
	if ref.DeviceID == "" || ref.Package == "" || ref.File == "" {
		return ref, fmt.Errorf("either path or device_id, package_name and file are required")
	}
	return ref, nil
}

func describeRef(ref FileRef) string {
	if ref.Path != "" {
		return ref.Path
	}
	return fmt.Sprintf("%s:%s/%s", ref.DeviceID, ref.Package, ref.File)
}

func stringList(v interface{}) ([]string, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out, true
}

// parseEdits decodes the edits argument, given either as a JSON string or as an array
func parseEdits(raw interface{}) ([]PrefEdit, error) {
	var result gjson.Result
	switch v := raw.(type) {
	case string:
		if !gjson.Valid(v) {
			return nil, fmt.Errorf("edits is not valid JSON")
		}
		result = gjson.Parse(v)
	case nil:
		return nil, fmt.Errorf("edits is required")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("invalid edits: %w", err)
		}
		result = gjson.ParseBytes(data)
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("edits must be a JSON array")
	}

	var edits []PrefEdit
	var parseErr error
	result.ForEach(func(_, item gjson.Result) bool {
		e := PrefEdit{
			Action: item.Get("action").String(),
			Key:    item.Get("key").String(),
			Kind:   item.Get("kind").String(),
			Value:  item.Get("value").String(),
		}
		if entries := item.Get("entries"); entries.IsArray() {
			e.Entries = []string{}
			for _, entry := range entries.Array() {
				e.Entries = append(e.Entries, entry.String())
			}
		}
		switch e.Action {
		case types.ActionSet, types.ActionDelete, types.ActionAdd:
		default:
			parseErr = fmt.Errorf("edit %d: unknown action %q", len(edits), e.Action)
			return false
		}
		if e.Key == "" {
			parseErr = fmt.Errorf("edit %d: key is required", len(edits))
			return false
		}
		edits = append(edits, e)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("edits is empty")
	}
	return edits, nil
}

func (s *MCPServer) handlePrefRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := fileRefFromArgs(request.GetArguments())
	if err != nil {
		return nil, err
	}
	snap, err := s.app.ReadPreferences(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d entr", snap.Target, snap.Type, len(snap.Entries))
	if len(snap.Entries) == 1 {
		b.WriteString("y\n")
	} else {
		b.WriteString("ies\n")
	}
	for _, e := range snap.Entries {
		value := e.Value
		if e.Kind == "set" {
			value = "[" + strings.Join(e.Entries, ", ") + "]"
		}
		fmt.Fprintf(&b, "- %s (%s) = %s\n", e.Key, e.Kind, value)
	}
	if len(snap.Duplicates) > 0 {
		fmt.Fprintf(&b, "Duplicate keys (last value kept): %s\n", strings.Join(snap.Duplicates, ", "))
	}
	if len(snap.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped entries of unsupported type: %s\n", strings.Join(snap.Skipped, ", "))
	}

	jsonData, _ := json.MarshalIndent(snap, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}

func (s *MCPServer) applyEdits(ctx context.Context, ref FileRef, edits []PrefEdit) (*mcp.CallToolResult, error) {
	summary, err := s.app.ApplyEdits(ctx, ref, edits)
	if err != nil {
		if summary != nil && summary.Applied > 0 {
			return nil, fmt.Errorf("failed after %d applied edit(s): %w", summary.Applied, err)
		}
		return nil, fmt.Errorf("failed to save: %w", err)
	}
	text := fmt.Sprintf("Applied %d edit(s) to %s", summary.Applied, describeRef(ref))
	if summary.Patch != "" {
		text += "\n\n" + summary.Patch
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}, nil
}

func (s *MCPServer) handlePrefSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, err := fileRefFromArgs(args)
	if err != nil {
		return nil, err
	}
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("key is required")
	}
	e := PrefEdit{Action: types.ActionSet, Key: key}
	if entries, ok := stringList(args["entries"]); ok {
		e.Entries = entries
	} else if value, ok := args["value"].(string); ok {
		e.Value = value
	} else {
		return nil, fmt.Errorf("value or entries is required")
	}
	return s.applyEdits(ctx, ref, []PrefEdit{e})
}

func (s *MCPServer) handlePrefAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, err := fileRefFromArgs(args)
	if err != nil {
		return nil, err
	}
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("key is required")
	}
	kind, ok := args["kind"].(string)
	if !ok || kind == "" {
		return nil, fmt.Errorf("kind is required")
	}
	e := PrefEdit{Action: types.ActionAdd, Key: key, Kind: kind}
	e.Value, _ = args["value"].(string)
	if entries, ok := stringList(args["entries"]); ok {
		e.Entries = entries
	}
	return s.applyEdits(ctx, ref, []PrefEdit{e})
}

func (s *MCPServer) handlePrefDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, err := fileRefFromArgs(args)
	if err != nil {
		return nil, err
	}
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("key is required")
	}

	confirmed, err := s.requestConfirmation(ctx, "Delete preference",
		fmt.Sprintf("File: %s\nKey: %s", describeRef(ref), key))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Deletion cancelled by user"),
			},
		}, nil
	}
	return s.applyEdits(ctx, ref, []PrefEdit{{Action: types.ActionDelete, Key: key}})
}

func (s *MCPServer) handlePrefSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, err := fileRefFromArgs(args)
	if err != nil {
		return nil, err
	}
	edits, err := parseEdits(args["edits"])
	if err != nil {
		return nil, err
	}
	return s.applyEdits(ctx, ref, edits)
}

func (s *MCPServer) handlePrefPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, err := fileRefFromArgs(args)
	if err != nil {
		return nil, err
	}
	edits, err := parseEdits(args["edits"])
	if err != nil {
		return nil, err
	}
	diff, err := s.app.PreviewEdits(ctx, ref, edits)
	if err != nil {
		return nil, fmt.Errorf("failed to preview: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Preview of %d edit(s) on %s:\n```diff\n%s```", len(edits), describeRef(ref), diff)),
		},
	}, nil
}

func (s *MCPServer) handlePrefHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	target, _ := args["target"].(string)
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	records, err := s.app.ListEditHistory(target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No edits recorded"),
			},
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d edit(s):\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "- [%s] %s %s: %s", r.Status, r.Operation, r.Target, r.Matcher)
		if r.Error != "" {
			fmt.Fprintf(&b, " (%s)", r.Error)
		}
		b.WriteByte('\n')
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
		},
	}, nil
}
