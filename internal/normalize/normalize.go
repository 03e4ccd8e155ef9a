// Package normalize turns raw bank transactions into canonical rows.
package normalize

import (
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
	"github.com/dvloznov/superbank/internal/rules"
	"github.com/dvloznov/superbank/internal/tags"
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDateColumns rewrites parseable dates in cols to dd/mm/yyyy. Cells that
// do not parse are left as they are.
func WithDateColumns(cols ...string) Option {
	return func(n *Normalizer) {
		for _, c := range cols {
			n.dateColumns[c] = true
		}
	}
}

// Normalizer is stateless apart from its options and safe for concurrent use.
type Normalizer struct {
	dateColumns map[string]bool
}

// New builds a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{dateColumns: map[string]bool{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize uses a Normalizer with no options.
func Normalize(raw domain.RawTransaction, mapping *domain.BankMapping, header domain.Header, catalog *tags.Catalog) domain.CanonicalRow {
	return New().Normalize(raw, mapping, header, catalog)
}

// Normalize fills every column of header for raw. For each column the first
// source that yields a value wins:
//
//  1. Tags: a list-valued raw field whose name contains "tag", else raw.Tags,
//     resolved against catalog
//  2. the first matching condition of mapping that sets the column
//  3. the raw column mapped onto it, when present and non-empty
//  4. a raw field with the column's own name
//  5. the empty string
//
// mapping may be nil for banks that have not been configured yet.
func (n *Normalizer) Normalize(raw domain.RawTransaction, mapping *domain.BankMapping, header domain.Header, catalog *tags.Catalog) domain.CanonicalRow {
	row := domain.CanonicalRow{
		ID:     raw.ID,
		Values: make(map[string]domain.Value, len(header)),
	}
	reverse := mapping.ReverseMapping()

	for _, col := range header {
		if col == domain.ColumnTags {
			row.Values[col] = domain.ResolvedTagsValue(tags.Resolve(tagRefs(raw), catalog))
			continue
		}

		v := resolveColumn(raw, mapping, reverse, col)
		if n.dateColumns[col] {
			v = displayDate(v)
		}
		row.Values[col] = v
	}
	return row
}

func resolveColumn(raw domain.RawTransaction, mapping *domain.BankMapping, reverse map[string]string, col string) domain.Value {
	if v, ok := rules.EvaluateMapping(mapping, raw, col); ok {
		return v
	}
	if rawCol, ok := reverse[col]; ok {
		if v, ok := raw.Fields[rawCol]; ok && !v.IsEmpty() {
			return v
		}
	}
	if v, ok := raw.Fields[col]; ok {
		return v
	}
	return domain.StringValue("")
}

// tagRefs picks the tag source for raw: the first list-valued field, in name
// order, whose name contains "tag", falling back to the reserved tags field.
func tagRefs(raw domain.RawTransaction) []domain.TagRef {
	for _, name := range raw.FieldNames() {
		v := raw.Fields[name]
		if v.IsList() && strings.Contains(strings.ToLower(name), "tag") {
			return v.TagRefs()
		}
	}
	return raw.Tags
}

func displayDate(v domain.Value) domain.Value {
	if v.IsList() {
		return v
	}
	t, ok := parse.ParseDateStrict(v.String())
	if !ok {
		return v
	}
	return domain.StringValue(parse.FormatDateDDMMYYYY(t))
}
