// Package domain holds the record shapes shared by the normalization engine
// and the storage/transport boundary.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindString is the zero kind; the zero Value is the empty string.
	KindString Kind = iota
	KindNumber
	KindTags
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTags:
		return "tags"
	default:
		return "string"
	}
}

// Value is a single bank or canonical cell: a string, a number, or a tag list.
type Value struct {
	kind Kind
	str  string
	num  float64
	tags []TagRef
}

// StringValue wraps s.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps f.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// TagsValue wraps a list of tag references. A nil list is kept as an empty list.
func TagsValue(refs []TagRef) Value {
	if refs == nil {
		refs = []TagRef{}
	}
	return Value{kind: KindTags, tags: refs}
}

// ResolvedTagsValue wraps fully resolved tags as inline references.
func ResolvedTagsValue(tags []Tag) Value {
	refs := make([]TagRef, 0, len(tags))
	for _, t := range tags {
		refs = append(refs, InlineTag(t))
	}
	return Value{kind: KindTags, tags: refs}
}

func (v Value) Kind() Kind { return v.kind }

// Number returns the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// TagRefs returns the tag payload, or nil when v is not a tag list.
func (v Value) TagRefs() []TagRef {
	if v.kind != KindTags {
		return nil
	}
	return v.tags
}

// IsList reports whether v holds a tag list.
func (v Value) IsList() bool { return v.kind == KindTags }

// String renders v the way cells are compared and displayed: numbers in their
// shortest decimal form, tag lists as comma separated names (or ids).
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindTags:
		parts := make([]string, 0, len(v.tags))
		for _, r := range v.tags {
			parts = append(parts, r.Label())
		}
		return strings.Join(parts, ", ")
	default:
		return v.str
	}
}

// IsEmpty reports whether the stringified, trimmed value is empty.
func (v Value) IsEmpty() bool {
	if v.kind == KindTags {
		return len(v.tags) == 0
	}
	return strings.TrimSpace(v.String()) == ""
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindTags:
		if len(v.tags) != len(o.tags) {
			return false
		}
		for i := range v.tags {
			if !v.tags[i].Equal(o.tags[i]) {
				return false
			}
		}
		return true
	default:
		return v.str == o.str
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindTags:
		return json.Marshal(v.tags)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = StringValue("")
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("Value: decoding string: %w", err)
		}
		*v = StringValue(s)
	case '[':
		var refs []TagRef
		if err := json.Unmarshal(data, &refs); err != nil {
			return fmt.Errorf("Value: decoding tag list: %w", err)
		}
		*v = TagsValue(refs)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("Value: decoding bool: %w", err)
		}
		*v = StringValue(strconv.FormatBool(b))
	case '{':
		return fmt.Errorf("Value: objects are not supported cell values")
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("Value: decoding number: %w", err)
		}
		*v = NumberValue(f)
	}
	return nil
}
