package main

import (
	"context"
	"fmt"
	"path/filepath"

	"PrefEditor/mcp"
	"PrefEditor/pkg/edit"
	"PrefEditor/pkg/preference"
	"PrefEditor/pkg/types"
)

// MCPBridge bridges the main App to the MCP server. Every call works on its own
// session, so no edit outlives the request that made it.
type MCPBridge struct {
	app *App
}

// NewMCPBridge creates a new MCP bridge
func NewMCPBridge(app *App) *MCPBridge {
	return &MCPBridge{app: app}
}

// Implement mcp.PrefApp interface

func (b *MCPBridge) GetAppVersion() string {
	return b.app.GetAppVersion()
}

func (b *MCPBridge) GetDevices(ctx context.Context) ([]mcp.Device, error) {
	return b.app.GetDevices(ctx)
}

func (b *MCPBridge) ListPackages(ctx context.Context, deviceId string, refresh bool) ([]string, error) {
	return b.app.ListPackages(ctx, deviceId, refresh)
}

func (b *MCPBridge) ListPrefFiles(ctx context.Context, deviceId, packageName string) ([]mcp.PrefFile, error) {
	return b.app.ListPrefFiles(ctx, deviceId, packageName)
}

func (b *MCPBridge) ReadPreferences(ctx context.Context, ref mcp.FileRef) (*mcp.PrefSnapshot, error) {
	s, done, err := b.open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer done()
	return snapshot(s), nil
}

func (b *MCPBridge) ApplyEdits(ctx context.Context, ref mcp.FileRef, edits []mcp.PrefEdit) (*mcp.SaveSummary, error) {
	s, done, err := b.open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer done()

	adds, err := stageEdits(s, edits)
	if err != nil {
		return nil, err
	}

	if s.CanSave() {
		res, err := s.Save(ctx)
		return &mcp.SaveSummary{Applied: res.Applied, Pending: res.Pending, Patch: res.Patch}, err
	}

	// Only additions: each is written on its own
	summary := &mcp.SaveSummary{}
	before := s.Raw()
	for _, p := range adds {
		if err := s.Reset(p.Key); err != nil {
			return summary, err
		}
		if err := s.Add(ctx, p); err != nil {
			summary.Pending = len(adds) - summary.Applied
			return summary, err
		}
		summary.Applied++
	}
	if summary.Applied > 0 {
		summary.Patch = edit.Patch(string(before), string(s.Raw()))
	}
	return summary, nil
}

func (b *MCPBridge) PreviewEdits(ctx context.Context, ref mcp.FileRef, edits []mcp.PrefEdit) (string, error) {
	s, done, err := b.open(ctx, ref)
	if err != nil {
		return "", err
	}
	defer done()

	if _, err := stageEdits(s, edits); err != nil {
		return "", err
	}
	return s.Preview()
}

func (b *MCPBridge) ListEditHistory(target string, limit int) ([]mcp.EditRecord, error) {
	return b.app.History(EditQuery{Target: target, Limit: limit})
}

// open loads a session for ref; done closes it
func (b *MCPBridge) open(ctx context.Context, ref mcp.FileRef) (*EditSession, func(), error) {
	target, err := b.app.ResolveTarget(ref)
	if err != nil {
		return nil, nil, err
	}
	s, err := b.app.OpenSession(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { b.app.CloseSession(target) }, nil
}

// ResolveTarget turns a remote file reference into a validated target.
// Desktop paths are made absolute since edit scripts run from the scripts directory.
func (a *App) ResolveTarget(ref types.FileRef) (edit.Target, error) {
	if ref.Path != "" {
		abs, err := filepath.Abs(ref.Path)
		if err != nil {
			return edit.Target{}, fmt.Errorf("invalid path %q: %w", ref.Path, err)
		}
		return edit.DesktopTarget(abs), nil
	}
	return a.DeviceTarget(ref.DeviceID, ref.Package, ref.File)
}

// stageEdits applies set and delete edits to the session and stages additions,
// which are returned. The first invalid edit aborts with the session unchanged.
func stageEdits(s *EditSession, edits []types.PrefEdit) ([]preference.Preference, error) {
	var adds []preference.Preference
	for i, e := range edits {
		var err error
		switch e.Action {
		case types.ActionSet:
			if e.Entries != nil {
				err = s.ChangeEntries(e.Key, e.Entries)
			} else {
				err = s.Change(e.Key, e.Value)
			}
		case types.ActionDelete:
			err = s.Delete(e.Key)
		case types.ActionAdd:
			kind, ok := preference.KindForTag(e.Kind)
			if !ok {
				err = fmt.Errorf("%w: %q", preference.ErrUnsupportedKind, e.Kind)
				break
			}
			p := preference.Preference{Kind: kind, Key: e.Key, Value: e.Value, Entries: e.Entries}
			if err = s.Stage(p); err == nil {
				adds = append(adds, p)
			}
		default:
			err = fmt.Errorf("%w: %q", edit.ErrUnsupportedOperation, e.Action)
		}
		if err != nil {
			s.ResetAll()
			return nil, fmt.Errorf("edit %d (%s %s): %w", i, e.Action, e.Key, err)
		}
	}
	return adds, nil
}

func snapshot(s *EditSession) *mcp.PrefSnapshot {
	doc := s.Document()
	snap := &mcp.PrefSnapshot{
		Target:     s.Target().String(),
		Type:       s.Target().FileType,
		Entries:    []mcp.PrefEntry{},
		Duplicates: doc.Duplicates,
		Skipped:    doc.Skipped,
	}
	for _, e := range s.Entries() {
		snap.Entries = append(snap.Entries, mcp.PrefEntry{
			Key:     e.Key(),
			Kind:    e.Preference.Kind.Tag(),
			Value:   e.Preference.Value,
			Entries: e.Preference.Entries,
			State:   e.State.String(),
		})
	}
	return snap
}
