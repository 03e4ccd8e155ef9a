package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved raw transaction keys. Every other key is a bank column.
const (
	KeyID          = "id"
	KeyBankID      = "bankId"
	KeyAccountID   = "accountId"
	KeyStatementID = "statementId"
	KeyTags        = "tags"
)

// RawTransaction is one statement line as sliced from a bank CSV. Fields is
// keyed by the bank's own column names.
type RawTransaction struct {
	ID          string
	BankID      string
	AccountID   string
	StatementID string
	Tags        []TagRef
	Fields      map[string]Value
}

// Field looks up a bank column. The reserved identifiers are also reachable
// so rules can branch on them.
func (t RawTransaction) Field(name string) (Value, bool) {
	if v, ok := t.Fields[name]; ok {
		return v, true
	}
	switch name {
	case KeyID:
		return StringValue(t.ID), true
	case KeyBankID:
		return StringValue(t.BankID), true
	case KeyAccountID:
		return StringValue(t.AccountID), true
	case KeyStatementID:
		return StringValue(t.StatementID), true
	}
	return Value{}, false
}

// FieldNames returns the bank column names in lexicographic order.
func (t RawTransaction) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (t RawTransaction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Fields)+5)
	for k, v := range t.Fields {
		out[k] = v
	}
	out[KeyID] = t.ID
	out[KeyBankID] = t.BankID
	out[KeyAccountID] = t.AccountID
	out[KeyStatementID] = t.StatementID
	tags := t.Tags
	if tags == nil {
		tags = []TagRef{}
	}
	out[KeyTags] = tags
	return json.Marshal(out)
}

func (t *RawTransaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("RawTransaction: decoding object: %w", err)
	}

	*t = RawTransaction{Fields: make(map[string]Value, len(raw))}
	for k, msg := range raw {
		var err error
		switch k {
		case KeyID:
			err = decodeOptionalString(msg, &t.ID)
		case KeyBankID:
			err = decodeOptionalString(msg, &t.BankID)
		case KeyAccountID:
			err = decodeOptionalString(msg, &t.AccountID)
		case KeyStatementID:
			err = decodeOptionalString(msg, &t.StatementID)
		case KeyTags:
			err = json.Unmarshal(msg, &t.Tags)
		default:
			var v Value
			err = json.Unmarshal(msg, &v)
			t.Fields[k] = v
		}
		if err != nil {
			return fmt.Errorf("RawTransaction: field %q: %w", k, err)
		}
	}
	return nil
}

func decodeOptionalString(msg json.RawMessage, dst *string) error {
	var s *string
	if err := json.Unmarshal(msg, &s); err != nil {
		return err
	}
	if s != nil {
		*dst = *s
	}
	return nil
}
