package preference

import (
	"bytes"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"PrefEditor/pkg/types"
)

// Field numbers of the Preferences DataStore schema:
//
//	message PreferenceMap { map<string, Value> preferences = 1; }
//	message Value { oneof value { bool boolean = 1; float float = 2; int32 integer = 3; int64 long = 4;
//	                string string = 5; StringSet string_set = 6; double double = 7; bytes bytes = 8; } }
//	message StringSet { repeated string strings = 1; }
const (
	fieldPreferences protowire.Number = 1

	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2

	fieldBoolean   protowire.Number = 1
	fieldFloat     protowire.Number = 2
	fieldInteger   protowire.Number = 3
	fieldLong      protowire.Number = 4
	fieldString    protowire.Number = 5
	fieldStringSet protowire.Number = 6
	fieldDouble    protowire.Number = 7
	fieldBytes     protowire.Number = 8

	fieldStrings protowire.Number = 1
)

// DecodeDataStore parses a Preferences DataStore file. An empty input is an empty document.
// Values without a Kind (double, bytes) are recorded in Document.Skipped.
func DecodeDataStore(data []byte) (*Document, error) {
	doc := NewDocument(types.FileTypeDataStore)
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		if num != fieldPreferences {
			return nil
		}
		if typ != protowire.BytesType {
			return &FormatError{Reason: fmt.Sprintf("preferences field has wire type %d", typ)}
		}
		key, value, err := decodeMapEntry(raw)
		if err != nil {
			return err
		}
		p, ok, err := decodeValue(key, value)
		if err != nil {
			return err
		}
		if !ok {
			doc.Skipped = append(doc.Skipped, key)
			return nil
		}
		doc.put(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// walkFields calls fn for every field of a message. For varint and fixed fields raw holds
// the encoded value bytes; for length-delimited fields it holds the payload.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &FormatError{Reason: protowire.ParseError(n).Error()}
		}
		b = b[n:]

		var raw []byte
		if typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return &FormatError{Reason: protowire.ParseError(m).Error()}
			}
			raw, n = v, m
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return &FormatError{Reason: protowire.ParseError(n).Error()}
			}
			raw = b[:n]
		}
		if err := fn(num, typ, raw); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func decodeMapEntry(b []byte) (string, []byte, error) {
	var key string
	var value []byte
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldEntryKey:
			key = string(raw)
		case fieldEntryValue:
			value = raw
		}
		return nil
	})
	return key, value, err
}

func decodeValue(key string, b []byte) (Preference, bool, error) {
	var p Preference
	set := false
	wrongType := func(name string) error {
		return &FormatError{Key: key, Reason: name + " value has an unexpected wire type"}
	}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		switch num {
		case fieldBoolean, fieldInteger, fieldLong:
			if typ != protowire.VarintType {
				return wrongType("integer")
			}
			v, _ := protowire.ConsumeVarint(raw)
			switch num {
			case fieldBoolean:
				p = Boolean(key, protowire.DecodeBool(v))
			case fieldInteger:
				p = Int(key, int32(v))
			default:
				p = Long(key, int64(v))
			}
		case fieldFloat:
			if typ != protowire.Fixed32Type {
				return wrongType("float")
			}
			v, _ := protowire.ConsumeFixed32(raw)
			p = Float(key, math.Float32frombits(v))
		case fieldString:
			if typ != protowire.BytesType {
				return wrongType("string")
			}
			p = String(key, string(raw))
		case fieldStringSet:
			if typ != protowire.BytesType {
				return wrongType("string set")
			}
			entries := []string{}
			if err := walkFields(raw, func(n protowire.Number, t protowire.Type, s []byte) error {
				if n == fieldStrings && t == protowire.BytesType {
					entries = append(entries, string(s))
				}
				return nil
			}); err != nil {
				return err
			}
			p = StringSet(key, entries...)
		case fieldDouble, fieldBytes:
			p = Preference{}
			set = false
			return nil
		default:
			return nil
		}
		set = true
		return nil
	})
	if err != nil {
		return Preference{}, false, err
	}
	return p, set, nil
}

// EncodeDataStore serializes a document in the Preferences DataStore format, in document order
func EncodeDataStore(doc *Document) ([]byte, error) {
	var out []byte
	if doc == nil {
		return out, nil
	}
	for _, p := range doc.Preferences {
		value, err := encodeValue(p)
		if err != nil {
			return nil, err
		}
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, p.Key)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, value)

		out = protowire.AppendTag(out, fieldPreferences, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}
	return out, nil
}

func encodeValue(p Preference) ([]byte, error) {
	var b []byte
	switch p.Kind {
	case KindBoolean:
		v, err := p.Bool()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldBoolean, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v))
	case KindInt:
		v, err := p.Int32()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldInteger, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(v)))
	case KindLong:
		v, err := p.Int64()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldLong, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case KindFloat:
		v, err := p.Float32()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	case KindString:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		b = protowire.AppendString(b, p.Value)
	case KindStringSet:
		var set []byte
		for _, e := range p.Entries {
			set = protowire.AppendTag(set, fieldStrings, protowire.BytesType)
			set = protowire.AppendString(set, e)
		}
		b = protowire.AppendTag(b, fieldStringSet, protowire.BytesType)
		b = protowire.AppendBytes(b, set)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, p.Kind)
	}
	return b, nil
}

// Decode dispatches to the decoder of the given file type
func Decode(t types.FileType, data []byte) (*Document, error) {
	switch t {
	case types.FileTypeKeyValue:
		return DecodeXML(bytes.NewReader(data))
	case types.FileTypeDataStore:
		return DecodeDataStore(data)
	default:
		return nil, fmt.Errorf("%w: unknown file type %q", ErrMalformedContent, t)
	}
}

// Encode dispatches to the encoder of the document's file type
func Encode(doc *Document) ([]byte, error) {
	if doc != nil && doc.Type == types.FileTypeDataStore {
		return EncodeDataStore(doc)
	}
	return EncodeXML(doc)
}
