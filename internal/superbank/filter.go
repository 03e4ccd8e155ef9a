package superbank

import (
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
)

// Filter narrows the Super Bank rows. Empty fields do not filter.
type Filter struct {
	BankIDs      []string
	AccountIDs   []string
	StatementIDs []string

	// Tags matches rows carrying any of the given tag ids or names.
	Tags []string

	// From and To bound the row date, inclusive. To covers its whole day.
	// Rows whose date does not parse are excluded when either bound is set.
	From time.Time
	To   time.Time

	// DateColumn defaults to "Date".
	DateColumn string

	// Search is a case-insensitive substring matched against every cell.
	Search string
}

// IsZero reports whether f filters nothing.
func (f Filter) IsZero() bool {
	return len(f.BankIDs) == 0 && len(f.AccountIDs) == 0 && len(f.StatementIDs) == 0 &&
		len(f.Tags) == 0 && f.From.IsZero() && f.To.IsZero() && strings.TrimSpace(f.Search) == ""
}

// Apply returns the rows that pass f. sources supply bank, account and
// statement ids; rows without a source fail any id filter.
func (f Filter) Apply(rows []domain.CanonicalRow, sources []domain.RawTransaction) []domain.CanonicalRow {
	if f.IsZero() {
		return rows
	}

	bySource := make(map[string]*domain.RawTransaction, len(sources))
	for i := range sources {
		bySource[sources[i].ID] = &sources[i]
	}
	banks := toSet(f.BankIDs)
	accounts := toSet(f.AccountIDs)
	statements := toSet(f.StatementIDs)
	wantTags := toSet(f.Tags)
	search := strings.ToLower(strings.TrimSpace(f.Search))
	dateCol := f.DateColumn
	if dateCol == "" {
		dateCol = "Date"
	}
	var until time.Time
	if !f.To.IsZero() {
		y, m, d := f.To.Date()
		until = time.Date(y, m, d+1, 0, 0, 0, 0, f.To.Location())
	}

	out := make([]domain.CanonicalRow, 0, len(rows))
	for _, row := range rows {
		src := bySource[row.ID]
		if !idMatches(banks, src, func(t *domain.RawTransaction) string { return t.BankID }) ||
			!idMatches(accounts, src, func(t *domain.RawTransaction) string { return t.AccountID }) ||
			!idMatches(statements, src, func(t *domain.RawTransaction) string { return t.StatementID }) {
			continue
		}
		if len(wantTags) > 0 && !hasTag(row, wantTags) {
			continue
		}
		if !f.From.IsZero() || !f.To.IsZero() {
			d := parse.ParseDate(row.Get(dateCol).String())
			if parse.IsEpoch(d) || (!f.From.IsZero() && d.Before(f.From)) || (!until.IsZero() && !d.Before(until)) {
				continue
			}
		}
		if search != "" && !rowContains(row, search) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	return set
}

func idMatches(set map[string]bool, src *domain.RawTransaction, id func(*domain.RawTransaction) string) bool {
	if len(set) == 0 {
		return true
	}
	return src != nil && set[id(src)]
}

func hasTag(row domain.CanonicalRow, want map[string]bool) bool {
	for _, t := range row.Tags() {
		if want[t.ID] || want[t.Name] {
			return true
		}
	}
	return false
}

func rowContains(row domain.CanonicalRow, needle string) bool {
	for _, v := range row.Values {
		if strings.Contains(strings.ToLower(v.String()), needle) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
