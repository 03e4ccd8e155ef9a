package parse

import (
	"testing"
	"time"

	"github.com/dvloznov/superbank/internal/domain"
)

func TestParseAmountOrZero(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "indian grouping", in: "11,11,111.00", want: 1111111},
		{name: "western grouping", in: "1,234.50", want: 1234.5},
		{name: "plain", in: "250", want: 250},
		{name: "negative", in: "-42.10", want: -42.1},
		{name: "surrounding spaces", in: "  7.5 ", want: 7.5},
		{name: "letters", in: "abc", want: 0},
		{name: "empty", in: "", want: 0},
		{name: "nan", in: "NaN", want: 0},
		{name: "infinity", in: "Inf", want: 0},
		{name: "trailing junk", in: "12abc", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAmountOrZero(tt.in); got != tt.want {
				t.Errorf("ParseAmountOrZero(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAmountOf(t *testing.T) {
	if got := AmountOf(domain.NumberValue(12.5)); got != 12.5 {
		t.Errorf("number value: got %v", got)
	}
	if got := AmountOf(domain.StringValue("1,000")); got != 1000 {
		t.Errorf("string value: got %v", got)
	}
	if got := AmountOf(domain.TagsValue([]domain.TagRef{domain.TagID("t1")})); got != 0 {
		t.Errorf("tag list: got %v", got)
	}
}

func TestParseDate(t *testing.T) {
	march5 := time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "short year slash", in: "05/03/23", want: march5},
		{name: "iso", in: "2023-03-05", want: march5},
		{name: "long year slash", in: "05/03/2023", want: march5},
		{name: "long year dash", in: "05-03-2023", want: march5},
		{name: "short year dash", in: "05-03-23", want: march5},
		{name: "single digits", in: "5/3/2023", want: march5},
		{name: "month name", in: "05 Mar 2023", want: march5},
		{name: "rfc3339", in: "2023-03-05T00:00:00Z", want: march5},
		{name: "impossible day", in: "31/02/2023", want: Epoch},
		{name: "garbage", in: "not a date", want: Epoch},
		{name: "empty", in: "", want: Epoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatting(t *testing.T) {
	d := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	if got := FormatDateDDMMYYYY(d); got != "09/01/2024" {
		t.Errorf("FormatDateDDMMYYYY = %q", got)
	}
	if got := MonthKey(d); got != "2024-01" {
		t.Errorf("MonthKey = %q", got)
	}
	if !IsEpoch(ParseDate("??")) {
		t.Error("expected epoch sentinel for unparseable input")
	}
}
