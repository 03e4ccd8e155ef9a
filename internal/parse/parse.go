// Package parse converts bank-formatted numbers and dates. Every function here
// is total: bad input produces a zero amount or the Epoch date instead of an
// error.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/superbank/internal/domain"
)

// Epoch is returned for dates that cannot be parsed.
var Epoch = time.Unix(0, 0).UTC()

const (
	displayLayout = "02/01/2006"
	monthLayout   = "2006-01"
)

var dayFirst = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})$`)

// Layouts tried after the day-first forms.
var genericLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseAmountOrZero strips grouping separators and parses s as a float.
// Anything unparseable, including NaN and infinities, yields 0.
func ParseAmountOrZero(s string) float64 {
	f, ok := ParseAmount(s)
	if !ok {
		return 0
	}
	return f
}

// ParseAmount is the strict form of ParseAmountOrZero.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// AmountOf reads a numeric amount from a cell.
func AmountOf(v domain.Value) float64 {
	if f, ok := v.Number(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	if v.IsList() {
		return 0
	}
	return ParseAmountOrZero(v.String())
}

// ParseDate accepts dd/mm/yyyy, dd-mm-yyyy and their two-digit-year forms
// (yy becomes 20yy), then a set of common layouts. It returns Epoch when
// nothing matches.
func ParseDate(s string) time.Time {
	t, ok := ParseDateStrict(s)
	if !ok {
		return Epoch
	}
	return t
}

// ParseDateStrict is ParseDate with an explicit success flag.
func ParseDateStrict(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch, false
	}

	if m := dayFirst.FindStringSubmatch(s); m != nil {
		if t, ok := dayMonthYear(m[1], m[2], m[3]); ok {
			return t, true
		}
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return Epoch, false
}

func dayMonthYear(ds, ms, ys string) (time.Time, bool) {
	day, _ := strconv.Atoi(ds)
	month, _ := strconv.Atoi(ms)
	year, _ := strconv.Atoi(ys)
	if len(ys) == 2 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// IsEpoch reports whether t is the unparseable-date sentinel.
func IsEpoch(t time.Time) bool {
	return t.Equal(Epoch)
}

// FormatDateDDMMYYYY renders t in the canonical display form.
func FormatDateDDMMYYYY(t time.Time) string {
	return t.Format(displayLayout)
}

// MonthKey returns the year-month bucket for t, e.g. "2023-03".
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}
