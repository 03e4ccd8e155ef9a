package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRawTransaction_UnmarshalJSON(t *testing.T) {
	input := `{
		"id": "tx-1",
		"bankId": "hdfc",
		"accountId": null,
		"statementId": "st-9",
		"tags": ["t1", {"id": "t2", "name": "Food", "color": "#fff"}],
		"Narration": "UPI-SWIGGY",
		"Withdrawal Amt.": 500,
		"Labels": ["t3"],
		"Flag": true
	}`

	var tx RawTransaction
	if err := json.Unmarshal([]byte(input), &tx); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if tx.ID != "tx-1" || tx.BankID != "hdfc" || tx.AccountID != "" || tx.StatementID != "st-9" {
		t.Errorf("reserved fields not decoded: %+v", tx)
	}
	if len(tx.Tags) != 2 || tx.Tags[0].Key() != "t1" || !tx.Tags[1].Complete() {
		t.Errorf("tags not decoded: %+v", tx.Tags)
	}
	if f, ok := tx.Fields["Withdrawal Amt."].Number(); !ok || f != 500 {
		t.Errorf("number field: %v", tx.Fields["Withdrawal Amt."])
	}
	if !tx.Fields["Labels"].IsList() {
		t.Errorf("list field should decode as tags: %v", tx.Fields["Labels"])
	}
	if got := tx.Fields["Flag"].String(); got != "true" {
		t.Errorf("bool field = %q", got)
	}
	if _, ok := tx.Fields["bankId"]; ok {
		t.Error("reserved keys must not leak into Fields")
	}

	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var again RawTransaction
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("Unmarshal of marshaled form: %v", err)
	}
	if again.ID != tx.ID || len(again.Fields) != len(tx.Fields) || !again.Fields["Narration"].Equal(tx.Fields["Narration"]) {
		t.Errorf("flat form did not survive: %s", out)
	}
}

func TestRawTransaction_RejectsObjectCell(t *testing.T) {
	var tx RawTransaction
	err := json.Unmarshal([]byte(`{"id":"x","Nested":{"a":1}}`), &tx)
	if err == nil || !strings.Contains(err.Error(), "Nested") {
		t.Errorf("expected error naming the field, got %v", err)
	}
}

func TestRawTransaction_Field(t *testing.T) {
	tx := RawTransaction{ID: "1", BankID: "b", Fields: map[string]Value{"bankId": StringValue("shadow")}}
	if v, _ := tx.Field("bankId"); v.String() != "shadow" {
		t.Errorf("bank column should shadow the reserved id, got %q", v.String())
	}
	if v, ok := tx.Field("id"); !ok || v.String() != "1" {
		t.Errorf("Field(id) = %q, %v", v.String(), ok)
	}
	if _, ok := tx.Field("missing"); ok {
		t.Error("missing field reported present")
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NumberValue(1111111), "1111111"},
		{NumberValue(-0.5), "-0.5"},
		{StringValue(" x "), " x "},
		{TagsValue([]TagRef{TagID("a"), InlineTag(Tag{ID: "b", Name: "Bee"})}), "a, Bee"},
		{Value{}, ""},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if !StringValue("  ").IsEmpty() || !TagsValue(nil).IsEmpty() || NumberValue(0).IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}

func TestNewHeader(t *testing.T) {
	got := NewHeader("Date", " Amount ", "", "Date", "Tags", "Type")
	want := Header{"Date", "Amount", "Tags", "Type"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NewHeader = %v, want %v", got, want)
	}
	if h := NewHeader(); !h.Contains(ColumnTags) {
		t.Error("empty header must still contain Tags")
	}
}

func TestBankMapping_Validate(t *testing.T) {
	base := func() BankMapping {
		return BankMapping{
			Name:    "HDFC",
			Header:  []string{"Date", "Narration", "Debit"},
			Mapping: map[string]string{"Date": "Date", "Narration": "Description"},
			Conditions: []Condition{{
				If:   Predicate{Field: "Debit", Op: OpPresent},
				Then: map[string]ValueExpr{"Amount": ParseValueExpr("-Debit")},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*BankMapping)
		errMsg string
	}{
		{name: "valid", mutate: func(*BankMapping) {}},
		{name: "missing name", mutate: func(m *BankMapping) { m.Name = " " }, errMsg: "bank name"},
		{name: "many to one", mutate: func(m *BankMapping) { m.Mapping["Debit"] = "Date" }, errMsg: "both map to"},
		{name: "unknown raw column", mutate: func(m *BankMapping) { m.Mapping["Balance"] = "Balance" }, errMsg: "not in the bank header"},
		{name: "reserved target", mutate: func(m *BankMapping) { m.Mapping["Debit"] = ColumnTags }, errMsg: "reserved"},
		{name: "bad operator", mutate: func(m *BankMapping) { m.Conditions[0].If.Op = "~" }, errMsg: "unknown operator"},
		{name: "no field", mutate: func(m *BankMapping) { m.Conditions[0].If.Field = "" }, errMsg: "has no field"},
		{name: "empty then", mutate: func(m *BankMapping) { m.Conditions[0].Then = nil }, errMsg: "sets no columns"},
		{name: "empty header skips column check", mutate: func(m *BankMapping) { m.Header = nil; m.Mapping["Anything"] = "Other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)
			err := m.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("error = %v, want substring %q", err, tt.errMsg)
			}
			if !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("error should wrap ErrInvalidMapping: %v", err)
			}
		})
	}
}

func TestBankMapping_JSON(t *testing.T) {
	input := `{
		"id": "HDFC",
		"bankId": null,
		"header": ["Withdrawal Amt."],
		"conditions": [{"if": {"field": "Withdrawal Amt.", "op": "present"},
		                "then": {"Amount": "-Withdrawal Amt.", "Type": "DR"}}]
	}`
	var m BankMapping
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Name != "HDFC" || m.BankID != "" {
		t.Errorf("identity fields: %+v", m)
	}
	amount := m.Conditions[0].Then["Amount"]
	if amount.Kind != ExprNegatedFieldRef || amount.Text != "Withdrawal Amt." {
		t.Errorf("Amount expr = %+v", amount)
	}
	if typ := m.Conditions[0].Then["Type"]; typ.Kind != ExprFieldRef || typ.Source() != "DR" {
		t.Errorf("Type expr = %+v", typ)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"-Withdrawal Amt."`) {
		t.Errorf("negated reference not persisted in string form: %s", out)
	}
}

func TestReverseMapping_Deterministic(t *testing.T) {
	m := &BankMapping{Mapping: map[string]string{"b": "X", "a": "X", "c": "Y"}}
	got := m.ReverseMapping()
	want := map[string]string{"X": "a", "Y": "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReverseMapping = %v, want %v", got, want)
	}

	var nilMapping *BankMapping
	if len(nilMapping.ReverseMapping()) != 0 {
		t.Error("nil mapping should reverse to an empty map")
	}
}

func TestMapRegistry_Lookup(t *testing.T) {
	r := NewMapRegistry([]BankMapping{
		{Name: "HDFC", BankID: "bank-1"},
		{Name: "Monzo"},
	})

	if m, ok := r.Lookup("bank-1"); !ok || m.Name != "HDFC" {
		t.Errorf("lookup by id failed: %v %v", m, ok)
	}
	if m, ok := r.Lookup("Monzo"); !ok || m.Name != "Monzo" {
		t.Errorf("lookup by name failed: %v %v", m, ok)
	}
	if _, ok := r.Lookup(""); ok {
		t.Error("empty bank id should not match")
	}
	if _, ok := r.Lookup("unknown"); ok {
		t.Error("unknown bank should not match")
	}
	if len(r.All()) != 2 {
		t.Errorf("All() = %d entries", len(r.All()))
	}
}
