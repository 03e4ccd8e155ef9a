package superbank

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/dvloznov/superbank/internal/analytics"
	"github.com/dvloznov/superbank/internal/domain"
)

func fixture() Input {
	return Input{
		Mappings: []domain.BankMapping{
			{
				Name:   "HDFC",
				BankID: "hdfc",
				Header: []string{"Txn Date", "Narration", "Withdrawal Amt.", "Deposit Amt."},
				Mapping: map[string]string{
					"Txn Date":  "Date",
					"Narration": "Description",
				},
				Conditions: []domain.Condition{
					{
						If: domain.Predicate{Field: "Withdrawal Amt.", Op: domain.OpPresent},
						Then: map[string]domain.ValueExpr{
							"Amount": domain.ParseValueExpr("-Withdrawal Amt."),
							"Type":   domain.ParseValueExpr("DR"),
						},
					},
					{
						If: domain.Predicate{Field: "Deposit Amt.", Op: domain.OpPresent},
						Then: map[string]domain.ValueExpr{
							"Amount": domain.ParseValueExpr("Deposit Amt."),
							"Type":   domain.ParseValueExpr("CR"),
						},
					},
				},
			},
			{
				Name:   "Monzo",
				BankID: "monzo",
				Header: []string{"Date", "Name", "Amount"},
				Mapping: map[string]string{
					"Date":   "Date",
					"Name":   "Description",
					"Amount": "Amount",
				},
			},
		},
		Tags: []domain.Tag{
			{ID: "t-food", Name: "Food", Color: "#f00"},
			{ID: "t-pay", Name: "Salary", Color: "#0f0"},
		},
		Transactions: []domain.RawTransaction{
			{
				ID: "1", BankID: "hdfc", AccountID: "acc-1", StatementID: "st-1",
				Tags: []domain.TagRef{domain.TagID("t-food")},
				Fields: map[string]domain.Value{
					"Txn Date":        domain.StringValue("05/03/23"),
					"Narration":       domain.StringValue("Swiggy"),
					"Withdrawal Amt.": domain.StringValue("450.00"),
					"Deposit Amt.":    domain.StringValue(""),
				},
			},
			{
				ID: "2", BankID: "hdfc", AccountID: "acc-1", StatementID: "st-1",
				Tags: []domain.TagRef{domain.TagID("t-pay")},
				Fields: map[string]domain.Value{
					"Txn Date":        domain.StringValue("31/03/23"),
					"Narration":       domain.StringValue("ACME PAYROLL"),
					"Withdrawal Amt.": domain.StringValue(""),
					"Deposit Amt.":    domain.StringValue("1,00,000.00"),
				},
			},
			{
				ID: "3", BankID: "monzo", AccountID: "acc-2", StatementID: "st-2",
				Fields: map[string]domain.Value{
					"Date":   domain.StringValue("2023-04-02"),
					"Name":   domain.StringValue("Pret"),
					"Amount": domain.NumberValue(-5.5),
				},
			},
		},
	}
}

func TestBuildHeader(t *testing.T) {
	got := BuildHeader(fixture().Mappings, "Notes")
	want := domain.Header{"Date", "Description", "Amount", "Type", "Notes", "Tags"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildHeader = %v, want %v", got, want)
	}
}

func TestEngine_Build(t *testing.T) {
	for _, workers := range []int{0, 4} {
		e := New(Config{Workers: workers, DateColumns: []string{"Date"}})

		view, err := e.Build(context.Background(), fixture(), Filter{})
		if err != nil {
			t.Fatalf("workers=%d: Build: %v", workers, err)
		}
		if view.Count != 3 {
			t.Fatalf("workers=%d: Count = %d, want 3", workers, view.Count)
		}

		first := view.Rows[0]
		if got := first.Get("Date").String(); got != "05/03/2023" {
			t.Errorf("workers=%d: Date = %q", workers, got)
		}
		if got := first.Get("Amount").String(); got != "-450" {
			t.Errorf("workers=%d: Amount = %q", workers, got)
		}
		if tags := first.Tags(); len(tags) != 1 || tags[0].Name != "Food" {
			t.Errorf("workers=%d: Tags = %+v", workers, tags)
		}

		s := view.Summary
		if s.TotalAmount != 100000-450-5.5 {
			t.Errorf("workers=%d: TotalAmount = %v", workers, s.TotalAmount)
		}
		if s.TotalCredit != 100000 || s.TotalDebit != 455.5 {
			t.Errorf("workers=%d: credit/debit = %v/%v", workers, s.TotalCredit, s.TotalDebit)
		}
		if len(s.Months) != 2 || s.Months[0].Month != "2023-03" || s.Months[1].Month != "2023-04" {
			t.Errorf("workers=%d: Months = %+v", workers, s.Months)
		}
	}
}

func TestEngine_BuildUnmappedBank(t *testing.T) {
	in := Input{
		Mappings: []domain.BankMapping{{Name: "New Bank", BankID: "nb", Header: []string{"Date", "Amount"}}},
		Transactions: []domain.RawTransaction{{
			ID: "1", BankID: "nb",
			Fields: map[string]domain.Value{
				"Date":   domain.StringValue("05/03/2023"),
				"Amount": domain.StringValue("250"),
			},
		}},
	}

	view, err := New(Config{}).Build(context.Background(), in, Filter{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantHeader := domain.Header{"Date", "Amount", "Tags"}
	if !reflect.DeepEqual(view.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", view.Header, wantHeader)
	}
	if got := view.Rows[0].Get("Amount").String(); got != "250" {
		t.Errorf("Amount = %q, want 250", got)
	}
	if view.Summary.TotalAmount != 250 {
		t.Errorf("TotalAmount = %v, want 250", view.Summary.TotalAmount)
	}
	if len(view.Summary.Months) != 1 || view.Summary.Months[0].Amount != 250 {
		t.Errorf("Months = %+v", view.Summary.Months)
	}
}

func TestEngine_BuildWithoutTypeFallback(t *testing.T) {
	e := New(Config{Analytics: &analytics.Options{TypeFromSign: false}})
	view, err := e.Build(context.Background(), fixture(), Filter{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// the Monzo row has no rule and no CR/DR column
	if view.Summary.TotalDebit != 450 {
		t.Errorf("TotalDebit = %v, want 450", view.Summary.TotalDebit)
	}
}

func TestFilter_Apply(t *testing.T) {
	in := fixture()
	e := New(Config{})
	view, err := e.Build(context.Background(), in, Filter{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"1", "2", "3"}},
		{"bank", Filter{BankIDs: []string{"monzo"}}, []string{"3"}},
		{"account", Filter{AccountIDs: []string{"acc-1"}}, []string{"1", "2"}},
		{"statement", Filter{StatementIDs: []string{"st-2"}}, []string{"3"}},
		{"tag by name", Filter{Tags: []string{"Salary"}}, []string{"2"}},
		{"tag by id", Filter{Tags: []string{"t-food"}}, []string{"1"}},
		{"search", Filter{Search: "pret"}, []string{"3"}},
		{
			"date range",
			Filter{From: time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), To: time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)},
			[]string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.filter.Apply(view.Rows, in.Transactions)
			var ids []string
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestFilter_ApplyToCoversWholeDay(t *testing.T) {
	rows := []domain.CanonicalRow{
		{ID: "a", Values: map[string]domain.Value{"Date": domain.StringValue("2023-03-31T10:00:00Z")}},
		{ID: "b", Values: map[string]domain.Value{"Date": domain.StringValue("2023-04-01T00:00:00Z")}},
	}
	f := Filter{To: time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)}

	got := f.Apply(rows, nil)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Apply = %+v, want only row a", got)
	}
}
