package edit

import (
	"fmt"

	"PrefEditor/pkg/preference"
)

// Encode converts edited entries into edits against existing, one edit per entry in input order.
// Contract violations (a None entry, a Changed entry that is absent from existing or
// equal to its original) fail with ErrInvariant.
func Encode(entries []UIPreference, existing *preference.Document) ([]Edit, error) {
	edits := make([]Edit, 0, len(entries))
	for _, entry := range entries {
		e, err := encodeEntry(entry, existing)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func encodeEntry(entry UIPreference, existing *preference.Document) (Edit, error) {
	key := entry.Key()
	switch entry.State {
	case StateChanged:
		original, ok := existing.Lookup(key)
		if !ok {
			return Edit{}, fmt.Errorf("%w: changed preference %q is not in the file", ErrInvariant, key)
		}
		if original.SameValue(entry.Preference) {
			return Edit{}, fmt.Errorf("%w: changed preference %q equals its original", ErrInvariant, key)
		}
		matcher, err := preference.EncodeTag(original)
		if err != nil {
			return Edit{}, err
		}
		content, err := preference.EncodeTag(entry.Preference)
		if err != nil {
			return Edit{}, err
		}
		e := NewChange(matcher, content)
		e.Key = key
		return e, nil
	case StateNew:
		content, err := preference.EncodeTag(entry.Preference)
		if err != nil {
			return Edit{}, err
		}
		e := NewAdd(content)
		e.Key = key
		return e, nil
	case StateDeleted:
		original, ok := existing.Lookup(key)
		if !ok {
			return Edit{}, fmt.Errorf("%w: deleted preference %q is not in the file", ErrInvariant, key)
		}
		matcher, err := preference.EncodeTag(original)
		if err != nil {
			return Edit{}, err
		}
		e := NewDelete(matcher)
		e.Key = key
		return e, nil
	default:
		return Edit{}, fmt.Errorf("%w: preference %q has state %s", ErrInvariant, key, entry.State)
	}
}
