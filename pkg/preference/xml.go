package preference

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"PrefEditor/pkg/types"
)

// XMLHeader is the declaration SharedPreferences writes at the top of every file
const XMLHeader = "<?xml version='1.0' encoding='utf-8' standalone='yes' ?>"

const (
	rootTag   = "map"
	setEntry  = "string"
	indent    = "    "
	attrName  = "name"
	attrValue = "value"
)

// RootCloseTag is the closing root tag; new entries are inserted right before it
const RootCloseTag = "</" + rootTag + ">"

// DecodeXML parses a SharedPreferences document.
// Unknown tags are skipped with their subtree. Attribute count or order violations fail
// the whole decode; no partial document is returned.
func DecodeXML(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, &FormatError{Reason: "missing <map> root element"}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != rootTag {
			return nil, &FormatError{Tag: start.Name.Local, Reason: "root element must be <map>"}
		}
		doc := NewDocument(types.FileTypeKeyValue)
		if err := decodeMap(dec, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// DecodeXMLString is a convenience wrapper around DecodeXML
func DecodeXMLString(s string) (*Document, error) {
	return DecodeXML(strings.NewReader(s))
}

func decodeMap(dec *xml.Decoder, doc *Document) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return unexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			kind, ok := KindForTag(t.Name.Local)
			if !ok {
				if err := dec.Skip(); err != nil {
					return unexpected(err)
				}
				continue
			}
			p, err := decodeEntry(dec, kind, t)
			if err != nil {
				return err
			}
			doc.put(p)
		case xml.EndElement:
			return nil
		}
	}
}

func decodeEntry(dec *xml.Decoder, kind Kind, start xml.StartElement) (Preference, error) {
	switch kind {
	case KindBoolean, KindInt, KindLong, KindFloat:
		attrs := start.Attr
		if len(attrs) != 2 || attrs[0].Name.Local != attrName || attrs[1].Name.Local != attrValue {
			return Preference{}, &FormatError{Tag: kind.Tag(), Key: keyOf(attrs), Reason: "expected exactly the attributes name and value"}
		}
		if err := dec.Skip(); err != nil {
			return Preference{}, unexpected(err)
		}
		return Preference{Kind: kind, Key: attrs[0].Value, Value: attrs[1].Value}, nil
	case KindString:
		key, err := singleName(kind, start)
		if err != nil {
			return Preference{}, err
		}
		text, err := readText(dec)
		if err != nil {
			return Preference{}, err
		}
		return Preference{Kind: kind, Key: key, Value: text}, nil
	case KindStringSet:
		key, err := singleName(kind, start)
		if err != nil {
			return Preference{}, err
		}
		entries, err := readSetEntries(dec, key)
		if err != nil {
			return Preference{}, err
		}
		return Preference{Kind: kind, Key: key, Entries: entries}, nil
	default:
		return Preference{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func singleName(kind Kind, start xml.StartElement) (string, error) {
	if len(start.Attr) != 1 || start.Attr[0].Name.Local != attrName {
		return "", &FormatError{Tag: kind.Tag(), Key: keyOf(start.Attr), Reason: "expected exactly the attribute name"}
	}
	return start.Attr[0].Value, nil
}

func keyOf(attrs []xml.Attr) string {
	for _, a := range attrs {
		if a.Name.Local == attrName {
			return a.Value
		}
	}
	return ""
}

// readText collects character data up to the end of the current element
func readText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", unexpected(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", unexpected(err)
			}
		case xml.EndElement:
			return b.String(), nil
		}
	}
}

func readSetEntries(dec *xml.Decoder, key string) ([]string, error) {
	entries := []string{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != setEntry {
				if err := dec.Skip(); err != nil {
					return nil, unexpected(err)
				}
				continue
			}
			if len(t.Attr) != 0 {
				return nil, &FormatError{Tag: KindStringSet.Tag(), Key: key, Reason: "set entries take no attributes"}
			}
			text, err := readText(dec)
			if err != nil {
				return nil, err
			}
			entries = append(entries, text)
		case xml.EndElement:
			return entries, nil
		}
	}
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return &FormatError{Reason: "unexpected end of document"}
	}
	return fmt.Errorf("%w: %v", ErrMalformedContent, err)
}

// EncodeTag serializes a single preference as a one-line XML fragment without the document wrapper.
// The output is byte-compatible with what Android writes, so it can be used as a literal matcher.
func EncodeTag(p Preference) (string, error) {
	name := escapeXML(p.Key)
	switch p.Kind {
	case KindBoolean, KindInt, KindLong, KindFloat:
		return fmt.Sprintf(`<%s name="%s" value="%s" />`, p.Kind.Tag(), name, escapeXML(p.Value)), nil
	case KindString:
		return fmt.Sprintf(`<string name="%s">%s</string>`, name, escapeXML(p.Value)), nil
	case KindStringSet:
		if len(p.Entries) == 0 {
			return fmt.Sprintf(`<set name="%s" />`, name), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, `<set name="%s">`, name)
		for _, e := range p.Entries {
			b.WriteString("<string>")
			b.WriteString(escapeXML(e))
			b.WriteString("</string>")
		}
		b.WriteString("</set>")
		return b.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, p.Kind)
	}
}

// EncodeXML serializes a whole document with the standalone declaration, one entry per line
func EncodeXML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(XMLHeader)
	buf.WriteByte('\n')
	buf.WriteString("<" + rootTag + ">\n")
	if doc != nil {
		for _, p := range doc.Preferences {
			tag, err := EncodeTag(p)
			if err != nil {
				return nil, err
			}
			buf.WriteString(indent)
			buf.WriteString(tag)
			buf.WriteByte('\n')
		}
	}
	buf.WriteString(RootCloseTag)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// escapeXML mirrors Android's FastXmlSerializer escape table
func escapeXML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r == '"':
			b.WriteString("&quot;")
		case r < 0x20:
			fmt.Fprintf(&b, "&#%d;", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
