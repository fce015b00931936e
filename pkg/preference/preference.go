// Package preference models Android application preferences and decodes/encodes
// the two on-disk formats: SharedPreferences XML and Jetpack DataStore protobuf.
package preference

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"PrefEditor/pkg/types"
)

// Kind is the primitive type tag of a preference
type Kind int

const (
	KindBoolean Kind = iota + 1
	KindInt
	KindLong
	KindFloat
	KindString
	KindStringSet
)

// Kinds lists every supported preference kind. Adding a kind starts here.
var Kinds = []Kind{KindBoolean, KindInt, KindLong, KindFloat, KindString, KindStringSet}

// Tag returns the XML tag name used by SharedPreferences for the kind
func (k Kind) Tag() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStringSet:
		return "set"
	default:
		return ""
	}
}

func (k Kind) String() string {
	if tag := k.Tag(); tag != "" {
		return tag
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindForTag maps an XML tag name back to its kind
func KindForTag(tag string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Tag() == tag {
			return k, true
		}
	}
	return 0, false
}

// Preference is a single typed entry of a preference document.
// Primitive values keep the raw string form found on disk; numeric parsing
// happens at the use sites. StringSet entries live in Entries.
type Preference struct {
	Kind    Kind     `json:"kind"`
	Key     string   `json:"key"`
	Value   string   `json:"value,omitempty"`
	Entries []string `json:"entries,omitempty"`
}

// Boolean creates a boolean preference
func Boolean(key string, v bool) Preference {
	return Preference{Kind: KindBoolean, Key: key, Value: strconv.FormatBool(v)}
}

// Int creates a 32-bit integer preference
func Int(key string, v int32) Preference {
	return Preference{Kind: KindInt, Key: key, Value: strconv.FormatInt(int64(v), 10)}
}

// Long creates a 64-bit integer preference
func Long(key string, v int64) Preference {
	return Preference{Kind: KindLong, Key: key, Value: strconv.FormatInt(v, 10)}
}

// Float creates a single precision float preference
func Float(key string, v float32) Preference {
	return Preference{Kind: KindFloat, Key: key, Value: FormatFloat(v)}
}

// String creates a string preference
func String(key, v string) Preference {
	return Preference{Kind: KindString, Key: key, Value: v}
}

// StringSet creates a string set preference, keeping the entry order
func StringSet(key string, entries ...string) Preference {
	return Preference{Kind: KindStringSet, Key: key, Entries: append([]string{}, entries...)}
}

// FormatFloat renders a float the way Android writes it: always with a decimal point
func FormatFloat(v float32) string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'f', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Bool parses the value of a boolean preference
func (p Preference) Bool() (bool, error) {
	if err := Validate(KindBoolean, p.Value); err != nil {
		return false, err
	}
	return p.Value == "true", nil
}

// Int32 parses the value of an int preference
func (p Preference) Int32() (int32, error) {
	if err := Validate(KindInt, p.Value); err != nil {
		return 0, err
	}
	v, _ := strconv.ParseInt(p.Value, 10, 32)
	return int32(v), nil
}

// Int64 parses the value of a long preference
func (p Preference) Int64() (int64, error) {
	if err := Validate(KindLong, p.Value); err != nil {
		return 0, err
	}
	return strconv.ParseInt(p.Value, 10, 64)
}

// Float32 parses the value of a float preference
func (p Preference) Float32() (float32, error) {
	if err := Validate(KindFloat, p.Value); err != nil {
		return 0, err
	}
	v, _ := strconv.ParseFloat(p.Value, 32)
	return float32(v), nil
}

// SameValue reports whether two preferences carry the same kind and value, ignoring the key
func (p Preference) SameValue(o Preference) bool {
	if p.Kind != o.Kind {
		return false
	}
	if p.Kind == KindStringSet {
		return slices.Equal(p.Entries, o.Entries)
	}
	return p.Value == o.Value
}

// Equal reports whether two preferences are identical
func (p Preference) Equal(o Preference) bool {
	return p.Key == o.Key && p.SameValue(o)
}

// Clone returns a deep copy of the preference
func (p Preference) Clone() Preference {
	c := p
	if p.Entries != nil {
		c.Entries = append([]string{}, p.Entries...)
	}
	return c
}

// DisplayValue renders the value for listings
func (p Preference) DisplayValue() string {
	if p.Kind == KindStringSet {
		return "[" + strings.Join(p.Entries, ", ") + "]"
	}
	return p.Value
}

// Document is an ordered preference file
type Document struct {
	Type        types.FileType `json:"type"`
	Preferences []Preference   `json:"preferences"`

	// Duplicates lists keys that appeared more than once while decoding.
	// The last occurrence wins.
	Duplicates []string `json:"duplicates,omitempty"`
	// Skipped lists entries that have no supported Kind (DataStore double/bytes values)
	Skipped []string `json:"skipped,omitempty"`
}

// NewDocument creates an empty document of the given type
func NewDocument(t types.FileType, prefs ...Preference) *Document {
	return &Document{Type: t, Preferences: prefs}
}

// Len returns the number of preferences
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Preferences)
}

// Lookup returns the preference with the given key
func (d *Document) Lookup(key string) (Preference, bool) {
	if d == nil {
		return Preference{}, false
	}
	for _, p := range d.Preferences {
		if p.Key == key {
			return p, true
		}
	}
	return Preference{}, false
}

// Keys returns the keys in document order
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.Preferences))
	for i, p := range d.Preferences {
		keys[i] = p.Key
	}
	return keys
}

// put appends p or, when the key already exists, replaces the earlier entry in place
func (d *Document) put(p Preference) {
	for i := range d.Preferences {
		if d.Preferences[i].Key == p.Key {
			d.Preferences[i] = p
			if !slices.Contains(d.Duplicates, p.Key) {
				d.Duplicates = append(d.Duplicates, p.Key)
			}
			return
		}
	}
	d.Preferences = append(d.Preferences, p)
}
