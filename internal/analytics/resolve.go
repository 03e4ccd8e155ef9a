package analytics

import (
	"sort"
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
	"github.com/dvloznov/superbank/internal/rules"
)

// Direction is the credit/debit side of a transaction.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionCredit
	DirectionDebit
)

func (d Direction) String() string {
	switch d {
	case DirectionCredit:
		return "credit"
	case DirectionDebit:
		return "debit"
	default:
		return "unknown"
	}
}

// Column names normalized to lower-case letters only, e.g. "Cr/Dr" -> "crdr".
var directionColumns = map[string]bool{
	"type":            true,
	"crdr":            true,
	"drcr":            true,
	"creditdebit":     true,
	"debitcredit":     true,
	"transactiontype": true,
	"txntype":         true,
}

// ClassifyDirection reads a CR/DR marker. CR, CREDIT and C are credits; any
// other non-blank marker is a debit.
func ClassifyDirection(marker string) Direction {
	m := strings.ToUpper(strings.TrimSpace(marker))
	switch m {
	case "":
		return DirectionUnknown
	case "CR", "CREDIT", "C":
		return DirectionCredit
	default:
		return DirectionDebit
	}
}

// ResolveAmount returns the rule result for the amount column when a
// condition matches, otherwise the parsed canonical amount, otherwise a raw
// field of the same name, otherwise 0.
func (a *Aggregator) ResolveAmount(row domain.CanonicalRow, src *domain.RawTransaction, mapping *domain.BankMapping) float64 {
	if src != nil {
		if v, ok := rules.EvaluateMapping(mapping, *src, a.opts.AmountColumn); ok {
			return parse.AmountOf(v)
		}
	}
	v := row.Get(a.opts.AmountColumn)
	if v.IsEmpty() && src != nil {
		if rv, ok := src.Fields[a.opts.AmountColumn]; ok {
			v = rv
		}
	}
	return parse.AmountOf(v)
}

// ResolveDirection tries the rule result for the type column, then a
// canonical CR/DR-like column, then (if enabled) the sign of amount.
func (a *Aggregator) ResolveDirection(row domain.CanonicalRow, src *domain.RawTransaction, mapping *domain.BankMapping, amount float64) Direction {
	if src != nil {
		if v, ok := rules.EvaluateMapping(mapping, *src, a.opts.TypeColumn); ok {
			if d := ClassifyDirection(v.String()); d != DirectionUnknown {
				return d
			}
		}
	}

	if v, ok := a.directionCell(row); ok {
		return ClassifyDirection(v.String())
	}

	if a.opts.TypeFromSign {
		switch {
		case amount > 0:
			return DirectionCredit
		case amount < 0:
			return DirectionDebit
		}
	}
	return DirectionUnknown
}

// directionCell finds the first non-blank CR/DR-like canonical cell, checking
// the configured type column before the others in name order.
func (a *Aggregator) directionCell(row domain.CanonicalRow) (domain.Value, bool) {
	if v, ok := row.Values[a.opts.TypeColumn]; ok && !v.IsList() && !v.IsEmpty() {
		return v, true
	}

	cols := make([]string, 0, len(row.Values))
	for col := range row.Values {
		if directionColumns[lettersOnly(col)] {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	for _, col := range cols {
		v := row.Values[col]
		if !v.IsList() && !v.IsEmpty() {
			return v, true
		}
	}
	return domain.Value{}, false
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
