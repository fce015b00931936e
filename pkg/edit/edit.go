// Package edit turns edited preferences into text-substitution edits and the
// subprocess commands that apply them to a preference file.
package edit

import (
	"errors"
	"fmt"

	"PrefEditor/pkg/preference"
)

var (
	// ErrInvariant marks a caller contract violation, such as encoding an unedited entry
	ErrInvariant = errors.New("edit invariant violated")
	// ErrUnsupportedOperation is returned for operations the write pipeline does not implement
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrNoMatch is returned by Simulate when a matcher does not occur in the text
	ErrNoMatch = errors.New("matcher not found")
)

// EditState is the lifecycle state of a preference inside an edit session
type EditState int

const (
	StateNone EditState = iota
	StateNew
	StateChanged
	StateDeleted
)

func (s EditState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateNew:
		return "new"
	case StateChanged:
		return "changed"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UIPreference pairs a preference with its edit state.
// Original is the value last read from disk; it is nil for New entries.
type UIPreference struct {
	Preference preference.Preference
	Original   *preference.Preference
	State      EditState
}

// Key returns the key of the wrapped preference
func (u UIPreference) Key() string {
	return u.Preference.Key
}

// Op is the write operation understood by the edit scripts
type Op string

const (
	OpAdd    Op = "add"
	OpChange Op = "change"
	OpDelete Op = "delete"
)

// Valid reports whether the scripts implement op
func (o Op) Valid() bool {
	switch o {
	case OpAdd, OpChange, OpDelete:
		return true
	default:
		return false
	}
}

// HasContent reports whether the operation carries a content argument
func (o Op) HasContent() bool {
	return o == OpAdd || o == OpChange
}

// Edit is one text substitution against a preference file.
// Matcher and Content are single serialized entries; Add always matches the closing root tag.
type Edit struct {
	Op      Op     `json:"op"`
	Key     string `json:"key,omitempty"`
	Matcher string `json:"matcher,omitempty"`
	Content string `json:"content,omitempty"`
}

// NewAdd creates an edit inserting content before the closing root tag
func NewAdd(content string) Edit {
	return Edit{Op: OpAdd, Matcher: preference.RootCloseTag, Content: content}
}

// NewChange creates an edit replacing matcher with content
func NewChange(matcher, content string) Edit {
	return Edit{Op: OpChange, Matcher: matcher, Content: content}
}

// NewDelete creates an edit removing the line holding matcher
func NewDelete(matcher string) Edit {
	return Edit{Op: OpDelete, Matcher: matcher}
}

// Validate checks the field invariants of the operation
func (e Edit) Validate() error {
	if !e.Op.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedOperation, e.Op)
	}
	if e.Matcher == "" {
		return fmt.Errorf("%w: %s edit without matcher", ErrInvariant, e.Op)
	}
	if e.Op.HasContent() && e.Content == "" {
		return fmt.Errorf("%w: %s edit without content", ErrInvariant, e.Op)
	}
	if !e.Op.HasContent() && e.Content != "" {
		return fmt.Errorf("%w: %s edit carries content", ErrInvariant, e.Op)
	}
	return nil
}

// HasEdits reports whether at least one entry is Changed or Deleted
func HasEdits(entries []UIPreference) bool {
	for _, e := range entries {
		if e.State == StateChanged || e.State == StateDeleted {
			return true
		}
	}
	return false
}

// Saveable reports whether a batch can be saved: it has edits and every Changed or
// New entry carries a valid value. A Changed entry equal to its original does not count.
func Saveable(entries []UIPreference) bool {
	edited := false
	for _, e := range entries {
		switch e.State {
		case StateChanged:
			if e.Original != nil && e.Original.SameValue(e.Preference) {
				continue
			}
			if preference.ValidatePreference(e.Preference) != nil {
				return false
			}
			edited = true
		case StateNew:
			if preference.ValidatePreference(e.Preference) != nil {
				return false
			}
		case StateDeleted:
			edited = true
		}
	}
	return edited
}
