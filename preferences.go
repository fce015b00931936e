package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"PrefEditor/pkg/edit"
	"PrefEditor/pkg/preference"
	"PrefEditor/pkg/process"
	"PrefEditor/pkg/types"
)

var (
	// ErrNotLoaded is returned by operations that need a document before Load
	ErrNotLoaded = errors.New("preference file not loaded")
	// ErrUnknownKey is returned when editing a key that is not in the session
	ErrUnknownKey = errors.New("unknown preference key")
	// ErrKeyExists is returned when adding a key that is already present
	ErrKeyExists = errors.New("preference key already exists")
	// ErrNothingToSave is returned by Save when no Changed or Deleted entry is pending
	ErrNothingToSave = errors.New("nothing to save")
	// ErrSessionClosed is the cancellation cause of operations interrupted by Close
	ErrSessionClosed = errors.New("edit session closed")
)

// EditRecorder persists dispatched edits
type EditRecorder interface {
	RecordEdit(rec types.EditRecord) error
}

// SaveResult describes a completed Save
type SaveResult struct {
	Applied int    `json:"applied"`
	Pending int    `json:"pending"`
	Patch   string `json:"patch,omitempty"`
}

// EditSession edits one preference file. Edits are collected in memory and written
// as a batch; the file is re-read after every write so the model matches disk.
//
// mu guards the entry map. io serialises subprocess work so that a read never
// overlaps a write of the same session.
type EditSession struct {
	id       string
	target   edit.Target
	runner   process.Runner
	commands *edit.CommandBuilder
	recorder EditRecorder

	ctx    context.Context
	cancel context.CancelFunc

	io sync.Mutex

	mu        sync.Mutex
	doc       *preference.Document
	raw       []byte
	entries   map[string]*edit.UIPreference
	newKeys   []string
	editOrder []string
}

// NewEditSession creates a session for target. recorder may be nil.
func NewEditSession(parent context.Context, target edit.Target, runner process.Runner, commands *edit.CommandBuilder, recorder EditRecorder) *EditSession {
	ctx, cancel := context.WithCancel(parent)
	return &EditSession{
		id:       uuid.New().String(),
		target:   target,
		runner:   runner,
		commands: commands,
		recorder: recorder,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*edit.UIPreference),
	}
}

// ID returns the session identifier used in the edit history
func (s *EditSession) ID() string { return s.id }

// Target returns the edited file
func (s *EditSession) Target() edit.Target { return s.target }

// Close cancels any outstanding command of the session
func (s *EditSession) Close() {
	s.cancel()
}

// join derives a context that is cancelled by either ctx or Close
func (s *EditSession) join(ctx context.Context) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(s.ctx, func() { cancel(ErrSessionClosed) })
	return joined, func() {
		stop()
		cancel(nil)
	}
}

// Load reads the file and rebuilds the session. Pending edits are rebased on the new content.
func (s *EditSession) Load(ctx context.Context) error {
	ctx, cancel := s.join(ctx)
	defer cancel()

	s.io.Lock()
	defer s.io.Unlock()
	return s.reload(ctx)
}

// Refresh is Load under another name, used after external modification
func (s *EditSession) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// reload must be called with io held
func (s *EditSession) reload(ctx context.Context) error {
	argv, err := s.commands.ReadCommand(s.target)
	if err != nil {
		return err
	}
	res, err := s.runner.Run(ctx, argv)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.target, err)
	}
	doc, err := preference.Decode(s.target.FileType, []byte(res.Stdout))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.target, err)
	}
	if len(doc.Duplicates) > 0 {
		LogWarn("preferences").Str("target", s.target.String()).Strs("keys", doc.Duplicates).Msg("Duplicate keys in file, last occurrence wins")
	}
	if len(doc.Skipped) > 0 {
		LogWarn("preferences").Str("target", s.target.String()).Strs("keys", doc.Skipped).Msg("Skipped entries of unsupported type")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebase(doc)
	s.raw = []byte(res.Stdout)
	PrefLog().Str("target", s.target.String()).Int("entries", doc.Len()).Int("pending", len(s.editOrder)).Msg("Loaded preferences")
	return nil
}

// rebase replaces the document and carries pending edits over to it.
// Edits that now match the file are dropped. Must be called with mu held.
func (s *EditSession) rebase(doc *preference.Document) {
	old := s.entries
	oldOrder := s.editOrder

	s.doc = doc
	s.entries = make(map[string]*edit.UIPreference, doc.Len())
	s.newKeys = nil
	s.editOrder = nil
	for _, p := range doc.Preferences {
		original := p.Clone()
		s.entries[p.Key] = &edit.UIPreference{Preference: p.Clone(), Original: &original}
	}

	for _, key := range oldOrder {
		pending := old[key]
		if pending == nil {
			continue
		}
		current, onDisk := s.entries[key]
		switch pending.State {
		case edit.StateChanged, edit.StateNew:
			if !onDisk {
				if pending.State == edit.StateChanged {
					LogWarn("preferences").Str("key", key).Msg("Changed preference no longer in file, dropping edit")
					continue
				}
				s.entries[key] = &edit.UIPreference{Preference: pending.Preference, State: edit.StateNew}
				s.newKeys = append(s.newKeys, key)
				s.editOrder = append(s.editOrder, key)
				continue
			}
			if current.Original.SameValue(pending.Preference) {
				continue
			}
			current.Preference = pending.Preference.Clone()
			current.State = edit.StateChanged
			s.editOrder = append(s.editOrder, key)
		case edit.StateDeleted:
			if !onDisk {
				continue
			}
			current.State = edit.StateDeleted
			s.editOrder = append(s.editOrder, key)
		}
	}
}

func (s *EditSession) loaded() error {
	if s.doc == nil {
		return ErrNotLoaded
	}
	return nil
}

// Document returns the last document read from disk
func (s *EditSession) Document() *preference.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Raw returns the last content read from disk
func (s *EditSession) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.raw)
}

// Entries returns every entry in file order followed by staged new entries
func (s *EditSession) Entries() []edit.UIPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	out := make([]edit.UIPreference, 0, len(s.entries))
	for _, p := range s.doc.Preferences {
		out = append(out, copyEntry(s.entries[p.Key]))
	}
	for _, key := range s.newKeys {
		out = append(out, copyEntry(s.entries[key]))
	}
	return out
}

// Entry returns the entry for key
func (s *EditSession) Entry(key string) (edit.UIPreference, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return edit.UIPreference{}, false
	}
	return copyEntry(e), true
}

// Pending returns the edited entries in the order they were first edited
func (s *EditSession) Pending() []edit.UIPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *EditSession) pendingLocked() []edit.UIPreference {
	out := make([]edit.UIPreference, 0, len(s.editOrder))
	for _, key := range s.editOrder {
		out = append(out, copyEntry(s.entries[key]))
	}
	return out
}

// HasEdits reports whether at least one entry is Changed or Deleted
func (s *EditSession) HasEdits() bool {
	return edit.HasEdits(s.Pending())
}

// CanSave reports whether Save would write anything
func (s *EditSession) CanSave() bool {
	return edit.Saveable(s.Pending())
}

// Change sets a new value for key. An invalid value is rejected without touching the
// entry; a value equal to the file's value reverts the entry to unedited.
// String sets take their members through ChangeEntries.
func (s *EditSession) Change(key, value string) error {
	return s.update(key, func(p *preference.Preference) error {
		if p.Kind == preference.KindStringSet {
			return &preference.ValidationError{Kind: p.Kind, Value: value, Reason: "string sets are changed by entries"}
		}
		p.Value = value
		return nil
	})
}

// ChangeEntries sets new entries for a string set
func (s *EditSession) ChangeEntries(key string, entries []string) error {
	return s.update(key, func(p *preference.Preference) error {
		if p.Kind != preference.KindStringSet {
			return &preference.ValidationError{Kind: p.Kind, Value: strings.Join(entries, ","), Reason: "only string sets hold entries"}
		}
		p.Entries = append([]string{}, entries...)
		return nil
	})
}

func (s *EditSession) update(key string, apply func(p *preference.Preference) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	candidate := entry.Preference.Clone()
	if err := apply(&candidate); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := preference.ValidatePreference(candidate); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	entry.Preference = candidate

	switch {
	case entry.State == edit.StateNew:
	case entry.Original.SameValue(candidate):
		entry.State = edit.StateNone
		s.forget(key)
	default:
		entry.State = edit.StateChanged
		s.remember(key)
	}
	return nil
}

// Delete marks key for deletion. A staged new entry is simply dropped.
func (s *EditSession) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if entry.State == edit.StateNew {
		s.dropNew(key)
		return nil
	}
	entry.Preference = entry.Original.Clone()
	entry.State = edit.StateDeleted
	s.remember(key)
	return nil
}

// Reset discards the pending edit of key
func (s *EditSession) Reset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if entry.State == edit.StateNew {
		s.dropNew(key)
		return nil
	}
	entry.Preference = entry.Original.Clone()
	entry.State = edit.StateNone
	s.forget(key)
	return nil
}

// ResetAll discards every pending edit
func (s *EditSession) ResetAll() {
	s.mu.Lock()
	keys := slices.Clone(s.editOrder)
	s.mu.Unlock()
	for _, key := range keys {
		_ = s.Reset(key)
	}
}

// Stage queues a new preference to be written by the next Save
func (s *EditSession) Stage(p preference.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkNew(p); err != nil {
		return err
	}
	s.entries[p.Key] = &edit.UIPreference{Preference: p.Clone(), State: edit.StateNew}
	s.newKeys = append(s.newKeys, p.Key)
	s.remember(p.Key)
	return nil
}

func (s *EditSession) checkNew(p preference.Preference) error {
	if err := s.loaded(); err != nil {
		return err
	}
	if err := preference.ValidatePreference(p); err != nil {
		return fmt.Errorf("%s: %w", p.Key, err)
	}
	if _, ok := s.entries[p.Key]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, p.Key)
	}
	return nil
}

// Add writes a single new preference immediately and re-reads the file
func (s *EditSession) Add(ctx context.Context, p preference.Preference) error {
	if s.target.FileType == types.FileTypeDataStore {
		return fmt.Errorf("%w: %s files are read-only", edit.ErrUnsupportedOperation, s.target.FileType)
	}
	ctx, cancel := s.join(ctx)
	defer cancel()

	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	err := s.checkNew(p)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	edits, err := edit.Encode([]edit.UIPreference{{Preference: p, State: edit.StateNew}}, nil)
	if err != nil {
		return err
	}
	writeErr := s.write(ctx, edits[0])
	if err := s.reload(ctx); err != nil {
		return errors.Join(writeErr, err)
	}
	return writeErr
}

// Save writes the pending edits in edit order. It stops at the first failing edit;
// edits already written stay applied and the rest stay pending.
func (s *EditSession) Save(ctx context.Context) (SaveResult, error) {
	if s.target.FileType == types.FileTypeDataStore {
		return SaveResult{}, fmt.Errorf("%w: %s files are read-only", edit.ErrUnsupportedOperation, s.target.FileType)
	}
	ctx, cancel := s.join(ctx)
	defer cancel()

	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	if err := s.loaded(); err != nil {
		s.mu.Unlock()
		return SaveResult{}, err
	}
	pending := s.pendingLocked()
	doc := s.doc
	before := string(s.raw)
	s.mu.Unlock()

	for _, p := range pending {
		if p.State == edit.StateChanged || p.State == edit.StateNew {
			if err := preference.ValidatePreference(p.Preference); err != nil {
				return SaveResult{}, fmt.Errorf("%s: %w", p.Key(), err)
			}
		}
	}
	if !edit.Saveable(pending) {
		return SaveResult{}, ErrNothingToSave
	}
	edits, err := edit.Encode(pending, doc)
	if err != nil {
		return SaveResult{}, err
	}

	timer := StartOperation("edit", "save").AddDetail("target", s.target.String()).AddDetail("edits", len(edits))
	result := SaveResult{}
	var writeErr error
	for _, e := range edits {
		if writeErr = s.write(ctx, e); writeErr != nil {
			break
		}
		result.Applied++
	}

	if err := s.reload(ctx); err != nil {
		timer.EndWithError(err)
		return result, errors.Join(writeErr, err)
	}
	timer.EndWithError(writeErr)

	s.mu.Lock()
	result.Pending = len(s.editOrder)
	result.Patch = edit.Patch(before, string(s.raw))
	s.mu.Unlock()
	return result, writeErr
}

// Preview renders the diff the pending edits would produce
func (s *EditSession) Preview() (string, error) {
	if s.target.FileType == types.FileTypeDataStore {
		return "", fmt.Errorf("%w: %s files are read-only", edit.ErrUnsupportedOperation, s.target.FileType)
	}
	s.mu.Lock()
	if err := s.loaded(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	pending := s.pendingLocked()
	doc := s.doc
	raw := string(s.raw)
	s.mu.Unlock()

	edits, err := edit.Encode(pending, doc)
	if err != nil {
		return "", err
	}
	return edit.Preview(raw, edits)
}

func (s *EditSession) write(ctx context.Context, e edit.Edit) error {
	argv, err := s.commands.WriteCommand(s.target, e)
	if err != nil {
		return err
	}
	_, runErr := s.runner.Run(ctx, argv)

	rec := types.EditRecord{
		SessionID: s.id,
		Target:    s.target.String(),
		Operation: string(e.Op),
		Matcher:   e.Matcher,
		Content:   e.Content,
		Status:    EditStatusApplied,
	}
	if runErr != nil {
		rec.Status = EditStatusFailed
		rec.Error = runErr.Error()
		LogError("edit").Err(runErr).Str("target", rec.Target).Str("op", rec.Operation).Str("key", e.Key).Msg("Edit failed")
	} else {
		EditLog().Str("target", rec.Target).Str("op", rec.Operation).Str("key", e.Key).Msg("Edit applied")
	}
	if s.recorder != nil {
		if err := s.recorder.RecordEdit(rec); err != nil {
			LogWarn("edit").Err(err).Msg("Failed to record edit history")
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s %s: %w", e.Op, e.Key, runErr)
	}
	return nil
}

func (s *EditSession) remember(key string) {
	if !slices.Contains(s.editOrder, key) {
		s.editOrder = append(s.editOrder, key)
	}
}

func (s *EditSession) forget(key string) {
	s.editOrder = slices.DeleteFunc(s.editOrder, func(k string) bool { return k == key })
}

func (s *EditSession) dropNew(key string) {
	delete(s.entries, key)
	s.newKeys = slices.DeleteFunc(s.newKeys, func(k string) bool { return k == key })
	s.forget(key)
}

func copyEntry(e *edit.UIPreference) edit.UIPreference {
	c := edit.UIPreference{Preference: e.Preference.Clone(), State: e.State}
	if e.Original != nil {
		o := e.Original.Clone()
		c.Original = &o
	}
	return c
}
