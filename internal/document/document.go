// Package document models the candidate documents accepted by the rerank
// API. A document arrives on the wire as either a bare JSON string or a JSON
// object of named fields; both shapes flow through the pipeline as a
// Document value.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies which variant a Document holds.
type Kind int

const (
	// KindInvalid marks a document that was neither a string nor an object.
	// Operations on it fail with *UnsupportedTypeError.
	KindInvalid Kind = iota
	// KindText is a bare string document.
	KindText
	// KindRecord is a structured document with named fields.
	KindRecord
)

// Document is a closed union over the two accepted document shapes.
// The zero value is invalid; construct with Text or Record, or unmarshal
// from JSON.
type Document struct {
	kind     Kind
	text     string
	fields   map[string]any
	jsonType string
}

// Text returns a plain-text Document.
func Text(s string) Document {
	return Document{kind: KindText, text: s}
}

// Record returns a structured Document with the given fields.
func Record(fields map[string]any) Document {
	return Document{kind: KindRecord, fields: fields}
}

// Kind reports which variant this Document holds.
func (d Document) Kind() Kind {
	return d.kind
}

// UnsupportedTypeError reports a document that was neither a plain string
// nor an object. The whole request aborts; no partial results are returned.
type UnsupportedTypeError struct {
	JSONType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q: documents must be strings or objects", e.JSONType)
}

// UnmarshalJSON accepts a JSON string or object. Any other JSON value is
// retained as an invalid Document rather than failing the decode, so the
// pipeline can reject the request with a typed error instead of a generic
// parse failure.
func (d *Document) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		d.kind = KindInvalid
		d.jsonType = "empty"
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*d = Text(s)
	case '{':
		var fields map[string]any
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return err
		}
		*d = Record(fields)
	default:
		*d = Document{kind: KindInvalid, jsonType: jsonTypeName(trimmed[0])}
	}

	return nil
}

// MarshalJSON renders the document in its wire shape.
func (d Document) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case KindText:
		return json.Marshal(d.text)
	case KindRecord:
		return json.Marshal(d.fields)
	default:
		return nil, &UnsupportedTypeError{JSONType: d.jsonType}
	}
}

// ExtractText produces the passage to be scored for this document.
//
// Plain-text documents return their string verbatim; rankFields is ignored.
// Records with no rankFields return the "text" field, or "" if absent.
// Records with rankFields join the coerced values of the named fields with
// single spaces, in the given field order; missing fields contribute "".
func (d Document) ExtractText(rankFields []string) (string, error) {
	switch d.kind {
	case KindText:
		return d.text, nil
	case KindRecord:
		if len(rankFields) == 0 {
			return coerceString(d.fields["text"]), nil
		}
		parts := make([]string, len(rankFields))
		for i, name := range rankFields {
			parts[i] = coerceString(d.fields[name])
		}
		return strings.Join(parts, " "), nil
	default:
		return "", &UnsupportedTypeError{JSONType: d.jsonType}
	}
}

// Project produces the optional echoed document payload for a result item.
// Returns nil when returnDocuments is false. Field selection via rank_fields
// never affects the echoed payload: records echo their full field set.
func (d Document) Project(returnDocuments bool) (map[string]any, error) {
	if !returnDocuments {
		return nil, nil
	}

	switch d.kind {
	case KindText:
		return map[string]any{"text": d.text}, nil
	case KindRecord:
		fields := make(map[string]any, len(d.fields))
		for k, v := range d.fields {
			fields[k] = v
		}
		return fields, nil
	default:
		return nil, &UnsupportedTypeError{JSONType: d.jsonType}
	}
}

// coerceString renders a record field value as text for scoring. Strings
// pass through verbatim; missing fields (nil) become ""; everything else is
// rendered as its compact JSON encoding so numbers and nested values stay
// readable.
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}

// jsonTypeName names the JSON type starting with the given byte.
func jsonTypeName(b byte) string {
	switch b {
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
