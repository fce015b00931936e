package preference

import (
	"errors"
	"strconv"
	"strings"
)

// Validate checks whether value is acceptable for kind. It is a pure function of its inputs.
func Validate(kind Kind, value string) error {
	switch kind {
	case KindBoolean:
		if value != "true" && value != "false" {
			return &ValidationError{Kind: kind, Value: value, Reason: `expected "true" or "false"`}
		}
		return nil
	case KindInt:
		return parseInteger(kind, value, 32)
	case KindLong:
		return parseInteger(kind, value, 64)
	case KindFloat:
		return parseFloat(value)
	case KindString, KindStringSet:
		return nil
	default:
		return &ValidationError{Kind: kind, Value: value, Reason: ErrUnsupportedKind.Error()}
	}
}

// IsValid is the boolean form of Validate
func IsValid(kind Kind, value string) bool {
	return Validate(kind, value) == nil
}

// ValidatePreference validates the value carried by p
func ValidatePreference(p Preference) error {
	if p.Key == "" {
		return &ValidationError{Kind: p.Kind, Value: p.Value, Reason: "empty key"}
	}
	return Validate(p.Kind, p.Value)
}

func parseInteger(kind Kind, value string, bits int) error {
	if _, err := strconv.ParseInt(value, 10, bits); err != nil {
		reason := "not an integer"
		if errors.Is(err, strconv.ErrRange) {
			reason = "out of range"
		}
		return &ValidationError{Kind: kind, Value: value, Reason: reason}
	}
	return nil
}

func parseFloat(value string) error {
	switch value {
	case "NaN", "Infinity", "-Infinity":
		return nil
	}
	// ParseFloat also takes hex floats, digit separators and any spelling of inf or nan
	if strings.Trim(value, "0123456789.eE+-") != "" {
		return &ValidationError{Kind: KindFloat, Value: value, Reason: "not a decimal float"}
	}
	if _, err := strconv.ParseFloat(value, 32); err != nil {
		reason := "not a float"
		if errors.Is(err, strconv.ErrRange) {
			reason = "out of range"
		}
		return &ValidationError{Kind: KindFloat, Value: value, Reason: reason}
	}
	return nil
}
