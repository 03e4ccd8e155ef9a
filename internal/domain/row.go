package domain

import (
	"encoding/json"
	"strings"
)

// ColumnTags is the reserved canonical column holding resolved tags.
const ColumnTags = "Tags"

// Header is an ordered, duplicate-free list of canonical columns that always
// contains ColumnTags.
type Header []string

// NewHeader trims and de-duplicates cols, drops empty names, and appends
// ColumnTags when it is missing.
func NewHeader(cols ...string) Header {
	seen := make(map[string]bool, len(cols)+1)
	h := make(Header, 0, len(cols)+1)
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		h = append(h, c)
	}
	if !seen[ColumnTags] {
		h = append(h, ColumnTags)
	}
	return h
}

func (h Header) Contains(col string) bool {
	for _, c := range h {
		if c == col {
			return true
		}
	}
	return false
}

// CanonicalRow is one transaction expressed in the canonical schema.
type CanonicalRow struct {
	ID     string
	Values map[string]Value
}

// Get returns the cell for col, or the empty string value.
func (r CanonicalRow) Get(col string) Value {
	return r.Values[col]
}

// Tags returns the resolved tags held in the Tags column.
func (r CanonicalRow) Tags() []Tag {
	refs := r.Values[ColumnTags].TagRefs()
	tags := make([]Tag, 0, len(refs))
	for _, ref := range refs {
		if ref.Inline != nil {
			tags = append(tags, *ref.Inline)
			continue
		}
		tags = append(tags, Tag{ID: ref.ID, Name: ref.ID})
	}
	return tags
}

func (r CanonicalRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[KeyID] = r.ID
	return json.Marshal(out)
}
