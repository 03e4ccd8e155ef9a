// Package tags reconciles tag references stored on transactions against the
// user's tag catalog.
package tags

import (
	"github.com/dvloznov/superbank/internal/domain"
)

// Catalog is an id-indexed snapshot of the tag catalog.
type Catalog struct {
	byID  map[string]domain.Tag
	order []domain.Tag
}

// NewCatalog indexes tags by id. Entries without an id are ignored; for
// duplicate ids the last entry wins.
func NewCatalog(tags []domain.Tag) *Catalog {
	c := &Catalog{byID: make(map[string]domain.Tag, len(tags))}
	for _, t := range tags {
		if t.ID == "" {
			continue
		}
		if _, seen := c.byID[t.ID]; !seen {
			c.order = append(c.order, t)
		} else {
			for i := range c.order {
				if c.order[i].ID == t.ID {
					c.order[i] = t
				}
			}
		}
		c.byID[t.ID] = t
	}
	return c
}

// Get looks up a tag by id.
func (c *Catalog) Get(id string) (domain.Tag, bool) {
	if c == nil {
		return domain.Tag{}, false
	}
	t, ok := c.byID[id]
	return t, ok
}

// Tags returns the catalog in its original order.
func (c *Catalog) Tags() []domain.Tag {
	if c == nil {
		return nil
	}
	return c.order
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

// Resolve maps each reference to a full tag, preserving order and duplicates.
//
//   - an inline tag carrying name and color is kept, unless the catalog has an
//     entry with the same id, which wins
//   - a bare id, or an inline tag missing name or color, is looked up by id
//   - an id the catalog does not know becomes a placeholder named after the
//     inline name or the id, colored DefaultColor
//
// A complete inline tag without an id is kept as-is. Other references with
// an empty id are dropped.
func Resolve(refs []domain.TagRef, catalog *Catalog) []domain.Tag {
	out := make([]domain.Tag, 0, len(refs))
	for _, ref := range refs {
		id := ref.Key()
		if id == "" {
			if ref.Complete() {
				out = append(out, *ref.Inline)
			}
			continue
		}
		if t, ok := catalog.Get(id); ok {
			out = append(out, t)
			continue
		}
		if ref.Complete() {
			out = append(out, *ref.Inline)
			continue
		}
		out = append(out, placeholder(id, ref))
	}
	return out
}

func placeholder(id string, ref domain.TagRef) domain.Tag {
	t := domain.Tag{ID: id, Name: id, Color: domain.DefaultColor}
	if ref.Inline != nil {
		if ref.Inline.Name != "" {
			t.Name = ref.Inline.Name
		}
		if ref.Inline.Color != "" {
			t.Color = ref.Inline.Color
		}
	}
	return t
}
