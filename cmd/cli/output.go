package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/superbank/internal/parse"
	"github.com/dvloznov/superbank/internal/superbank"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildFilter turns the shared command flags into a row filter. Dates accept
// every format the date parser understands.
func buildFilter(banks, tags, from, to, search string) (superbank.Filter, error) {
	f := superbank.Filter{
		BankIDs: splitList(banks),
		Tags:    splitList(tags),
		Search:  search,
	}
	if strings.TrimSpace(from) != "" {
		t, ok := parse.ParseDateStrict(from)
		if !ok {
			return f, fmt.Errorf("invalid -from date %q", from)
		}
		f.From = t
	}
	if strings.TrimSpace(to) != "" {
		t, ok := parse.ParseDateStrict(to)
		if !ok {
			return f, fmt.Errorf("invalid -to date %q", to)
		}
		f.To = t
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
