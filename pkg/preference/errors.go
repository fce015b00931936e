package preference

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedContent is returned when a preference file cannot be decoded
	ErrMalformedContent = errors.New("malformed preference content")
	// ErrInvalidValue is returned when a value does not parse as its declared kind
	ErrInvalidValue = errors.New("invalid preference value")
	// ErrUnsupportedKind is returned for a Kind outside Kinds
	ErrUnsupportedKind = errors.New("unsupported preference kind")
)

// FormatError describes why a document failed to decode
type FormatError struct {
	Tag    string
	Key    string
	Reason string
}

func (e *FormatError) Error() string {
	switch {
	case e.Tag != "" && e.Key != "":
		return fmt.Sprintf("malformed preference content: <%s name=%q>: %s", e.Tag, e.Key, e.Reason)
	case e.Tag != "":
		return fmt.Sprintf("malformed preference content: <%s>: %s", e.Tag, e.Reason)
	default:
		return "malformed preference content: " + e.Reason
	}
}

func (e *FormatError) Unwrap() error {
	return ErrMalformedContent
}

// ValidationError rejects a candidate value for a kind
type ValidationError struct {
	Kind   Kind
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %s", e.Kind, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}
