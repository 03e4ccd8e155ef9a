package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidMapping is wrapped by every BankMapping validation failure.
var ErrInvalidMapping = errors.New("invalid bank mapping")

// Operator is a predicate comparator.
type Operator string

const (
	OpPresent    Operator = "present"
	OpNotPresent Operator = "not_present"
	OpEq         Operator = "=="
	OpNe         Operator = "!="
	OpGte        Operator = ">="
	OpLte        Operator = "<="
	OpGt         Operator = ">"
	OpLt         Operator = "<"
)

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpPresent, OpNotPresent, OpEq, OpNe, OpGte, OpLte, OpGt, OpLt:
		return true
	}
	return false
}

// Predicate is the "if" half of a condition.
type Predicate struct {
	Field string   `json:"field" yaml:"field"`
	Op    Operator `json:"op" yaml:"op"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// ExprKind tags a ValueExpr variant.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprFieldRef
	ExprNegatedFieldRef
)

// ValueExpr is the right-hand side of a condition's "then" entry.
type ValueExpr struct {
	Kind ExprKind
	Text string
}

// Literal always resolves to s.
func Literal(s string) ValueExpr { return ValueExpr{Kind: ExprLiteral, Text: s} }

// FieldRef resolves to the named raw field, or to the name itself when the row
// has no such field.
func FieldRef(name string) ValueExpr { return ValueExpr{Kind: ExprFieldRef, Text: name} }

// NegatedFieldRef resolves to the numeric negation of the named raw field.
func NegatedFieldRef(name string) ValueExpr {
	return ValueExpr{Kind: ExprNegatedFieldRef, Text: name}
}

// ParseValueExpr reads the persisted string form: "-Name" is a negated
// reference, anything else a field reference that degrades to a literal.
func ParseValueExpr(s string) ValueExpr {
	if len(s) > 1 && strings.HasPrefix(s, "-") {
		return NegatedFieldRef(s[1:])
	}
	return FieldRef(s)
}

// Source renders the persisted string form.
func (e ValueExpr) Source() string {
	if e.Kind == ExprNegatedFieldRef {
		return "-" + e.Text
	}
	return e.Text
}

func (e ValueExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Source())
}

func (e *ValueExpr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ValueExpr: %w", err)
	}
	*e = ParseValueExpr(s)
	return nil
}

func (e ValueExpr) MarshalYAML() (any, error) {
	return e.Source(), nil
}

func (e *ValueExpr) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("ValueExpr: %w", err)
	}
	*e = ParseValueExpr(s)
	return nil
}

// Condition is one entry of a bank's decision list.
type Condition struct {
	If   Predicate            `json:"if" yaml:"if"`
	Then map[string]ValueExpr `json:"then" yaml:"then"`
}

// BankMapping translates one bank's columns into the canonical schema.
type BankMapping struct {
	// Name is the bank name; it doubles as the record id.
	Name       string            `json:"id" yaml:"id"`
	BankID     string            `json:"bankId,omitempty" yaml:"bankId,omitempty"`
	Header     []string          `json:"header" yaml:"header"`
	Mapping    map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Conditions []Condition       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Validate checks the rules enforced when a mapping is saved. The engine
// itself tolerates mappings that fail these checks.
func (m *BankMapping) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: bank name is required", ErrInvalidMapping)
	}

	header := make(map[string]bool, len(m.Header))
	for _, h := range m.Header {
		header[h] = true
	}

	targets := make(map[string]string, len(m.Mapping))
	for _, raw := range sortedKeys(m.Mapping) {
		canonical := m.Mapping[raw]
		if len(m.Header) > 0 && !header[raw] {
			return fmt.Errorf("%w: column %q is not in the bank header", ErrInvalidMapping, raw)
		}
		if strings.TrimSpace(canonical) == "" {
			return fmt.Errorf("%w: column %q maps to an empty canonical column", ErrInvalidMapping, raw)
		}
		if canonical == ColumnTags {
			return fmt.Errorf("%w: column %q cannot map to the reserved %s column", ErrInvalidMapping, raw, ColumnTags)
		}
		if prev, ok := targets[canonical]; ok {
			return fmt.Errorf("%w: columns %q and %q both map to %q", ErrInvalidMapping, prev, raw, canonical)
		}
		targets[canonical] = raw
	}

	for i, c := range m.Conditions {
		if strings.TrimSpace(c.If.Field) == "" {
			return fmt.Errorf("%w: condition %d has no field", ErrInvalidMapping, i+1)
		}
		if !c.If.Op.Valid() {
			return fmt.Errorf("%w: condition %d has unknown operator %q", ErrInvalidMapping, i+1, c.If.Op)
		}
		if len(c.Then) == 0 {
			return fmt.Errorf("%w: condition %d sets no columns", ErrInvalidMapping, i+1)
		}
	}
	return nil
}

// ReverseMapping inverts Mapping to canonical -> raw. If two raw columns
// target the same canonical column the lexicographically first one wins.
func (m *BankMapping) ReverseMapping() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	rev := make(map[string]string, len(m.Mapping))
	for _, raw := range sortedKeys(m.Mapping) {
		canonical := m.Mapping[raw]
		if _, ok := rev[canonical]; !ok {
			rev[canonical] = raw
		}
	}
	return rev
}

// RuleTargets lists the canonical columns set by any condition, in first
// appearance order.
func (m *BankMapping) RuleTargets() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range m.Conditions {
		for _, col := range sortedKeys(c.Then) {
			if !seen[col] {
				seen[col] = true
				out = append(out, col)
			}
		}
	}
	return out
}

// Registry resolves the mapping that applies to a transaction's bank.
type Registry interface {
	Lookup(bankID string) (*BankMapping, bool)
}

// MapRegistry is an in-memory Registry keyed by bank id and by bank name.
type MapRegistry struct {
	byID   map[string]*BankMapping
	byName map[string]*BankMapping
	all    []*BankMapping
}

// NewMapRegistry indexes mappings. Later entries with a duplicate key replace
// earlier ones.
func NewMapRegistry(mappings []BankMapping) *MapRegistry {
	r := &MapRegistry{
		byID:   make(map[string]*BankMapping, len(mappings)),
		byName: make(map[string]*BankMapping, len(mappings)),
	}
	for i := range mappings {
		m := &mappings[i]
		r.all = append(r.all, m)
		if m.BankID != "" {
			r.byID[m.BankID] = m
		}
		if m.Name != "" {
			r.byName[m.Name] = m
		}
	}
	return r
}

// Lookup tries the bank id first and then the bank name.
func (r *MapRegistry) Lookup(bankID string) (*BankMapping, bool) {
	if r == nil || bankID == "" {
		return nil, false
	}
	if m, ok := r.byID[bankID]; ok {
		return m, true
	}
	m, ok := r.byName[bankID]
	return m, ok
}

// All returns the registered mappings in insertion order.
func (r *MapRegistry) All() []*BankMapping {
	if r == nil {
		return nil
	}
	return r.all
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
