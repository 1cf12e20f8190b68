package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sentinel is the on-disk spelling of an absent value. It is only ever
// produced or consumed by Value's JSON methods.
const Sentinel = "Not found"

// Kind tags the content of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindText
	KindList
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindBytes:
		return "bytes"
	default:
		return "absent"
	}
}

// Value is a single record cell: absent, a string, a list of strings or raw bytes.
type Value struct {
	kind  Kind
	text  string
	list  []string
	bytes []byte
}

// NotFound is the absent value.
var NotFound = Value{}

// TextValue wraps a string.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// ListValue wraps a list of strings. A nil list is stored as an empty one.
func ListValue(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{kind: KindList, list: items}
}

// BytesValue wraps raw bytes, e.g. an image.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsEmpty reports whether the value is absent or holds nothing.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return v.text == ""
	case KindList:
		return len(v.list) == 0
	case KindBytes:
		return len(v.bytes) == 0
	default:
		return true
	}
}

// Text returns the string content if the value is text.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// List returns the list content if the value is a list.
func (v Value) List() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Bytes returns the byte content if the value holds bytes.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.bytes, true
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		return fmt.Sprint(v.list)
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.bytes))
	default:
		return "<absent>"
	}
}

type bytesEnvelope struct {
	Bytes []byte `json:"bytes"`
}

// MarshalJSON encodes absent values as the sentinel string, lists as arrays
// and bytes as {"bytes": "<base64>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		return json.Marshal(v.list)
	case KindBytes:
		return json.Marshal(bytesEnvelope{Bytes: v.bytes})
	default:
		return json.Marshal(Sentinel)
	}
}

// UnmarshalJSON maps the sentinel string and null back to NotFound.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NotFound
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == Sentinel {
			*v = NotFound
			return nil
		}
		*v = TextValue(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = ListValue(items)
	case '{':
		var env bytesEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		*v = BytesValue(env.Bytes)
	case 'f':
		// false marks a missing value in older record files.
		*v = NotFound
	default:
		return fmt.Errorf("unsupported record value %s", string(data))
	}
	return nil
}
