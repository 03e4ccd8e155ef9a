// Package rules evaluates a bank's ordered condition list against a raw
// transaction.
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/parse"
)

// Evaluate walks conditions in order and resolves target from the first
// condition whose predicate holds and whose "then" sets target. Conditions
// that hold but do not mention target are skipped.
func Evaluate(conditions []domain.Condition, row domain.RawTransaction, target string) (domain.Value, bool) {
	for _, c := range conditions {
		expr, ok := c.Then[target]
		if !ok {
			continue
		}
		if !Matches(c.If, row) {
			continue
		}
		return Resolve(expr, row), true
	}
	return domain.Value{}, false
}

// EvaluateMapping is Evaluate over m's conditions; a nil mapping never matches.
func EvaluateMapping(m *domain.BankMapping, row domain.RawTransaction, target string) (domain.Value, bool) {
	if m == nil {
		return domain.Value{}, false
	}
	return Evaluate(m.Conditions, row, target)
}

// Matches evaluates a single predicate. Unknown operators never match.
func Matches(p domain.Predicate, row domain.RawTransaction) bool {
	v, _ := row.Field(p.Field)

	switch p.Op {
	case domain.OpPresent:
		return present(v)
	case domain.OpNotPresent:
		return !present(v)
	case domain.OpEq, domain.OpNe, domain.OpGte, domain.OpLte, domain.OpGt, domain.OpLt:
		return Compare(v.String(), p.Op, p.Value)
	}
	return false
}

func present(v domain.Value) bool {
	if v.IsList() {
		return len(v.TagRefs()) > 0
	}
	return strings.TrimSpace(v.String()) != ""
}

// Compare applies op to the two operands. When both trim to valid numbers the
// comparison is numeric; otherwise only == and != apply, as exact string
// comparisons of the trimmed operands, and ordering operators report false.
func Compare(left string, op domain.Operator, right string) bool {
	l := strings.TrimSpace(left)
	r := strings.TrimSpace(right)

	lf, lok := number(l)
	rf, rok := number(r)
	if lok && rok {
		switch op {
		case domain.OpEq:
			return lf == rf
		case domain.OpNe:
			return lf != rf
		case domain.OpGte:
			return lf >= rf
		case domain.OpLte:
			return lf <= rf
		case domain.OpGt:
			return lf > rf
		case domain.OpLt:
			return lf < rf
		}
		return false
	}

	switch op {
	case domain.OpEq:
		return l == r
	case domain.OpNe:
		return l != r
	}
	return false
}

// number is a strict parse: grouping separators are not accepted here so that
// identifiers like "1,2" compare as strings.
func number(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Resolve turns a ValueExpr into a cell value for row.
//
// A negated reference to a field the row does not have resolves to its own
// source text, so a literal such as "-1" survives unchanged.
func Resolve(expr domain.ValueExpr, row domain.RawTransaction) domain.Value {
	switch expr.Kind {
	case domain.ExprNegatedFieldRef:
		v, ok := row.Field(expr.Text)
		if !ok {
			return domain.StringValue(expr.Source())
		}
		n := -parse.AmountOf(v)
		if n == 0 {
			n = 0 // drop negative zero
		}
		return domain.NumberValue(n)
	case domain.ExprFieldRef:
		if v, ok := row.Field(expr.Text); ok {
			return v
		}
		return domain.StringValue(expr.Text)
	default:
		return domain.StringValue(expr.Text)
	}
}
