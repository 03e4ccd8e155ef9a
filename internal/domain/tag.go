package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultColor is used for tags synthesized from dangling references.
const DefaultColor = "#9e9e9e"

// Tag is a user-defined label. Color is a display hint only.
type Tag struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
}

// TagRef is how a transaction points at a tag: either a bare id or an inline
// tag object copied onto the transaction when it was tagged.
type TagRef struct {
	ID     string
	Inline *Tag
}

// TagID builds a bare id reference.
func TagID(id string) TagRef {
	return TagRef{ID: id}
}

// InlineTag builds an inline reference.
func InlineTag(t Tag) TagRef {
	tag := t
	return TagRef{ID: t.ID, Inline: &tag}
}

// Key returns the referenced tag id.
func (r TagRef) Key() string {
	if r.Inline != nil && r.Inline.ID != "" {
		return r.Inline.ID
	}
	return r.ID
}

// Label is the display form: the inline name when known, otherwise the id.
func (r TagRef) Label() string {
	if r.Inline != nil && r.Inline.Name != "" {
		return r.Inline.Name
	}
	return r.Key()
}

// Complete reports whether the reference carries both a name and a color.
func (r TagRef) Complete() bool {
	return r.Inline != nil && r.Inline.Name != "" && r.Inline.Color != ""
}

func (r TagRef) Equal(o TagRef) bool {
	if (r.Inline == nil) != (o.Inline == nil) {
		return false
	}
	if r.Inline != nil {
		return *r.Inline == *o.Inline
	}
	return r.ID == o.ID
}

func (r TagRef) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.ID)
}

func (r *TagRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("TagRef: empty input")
	}

	if data[0] == '{' {
		var t Tag
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("TagRef: decoding inline tag: %w", err)
		}
		*r = InlineTag(t)
		return nil
	}

	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("TagRef: decoding tag id: %w", err)
	}
	*r = TagID(id)
	return nil
}
