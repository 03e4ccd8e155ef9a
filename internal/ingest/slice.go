// Package ingest slices uploaded CSV statements into raw transactions.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/google/uuid"
)

// ErrNoRows is returned when a statement has a header but no data rows.
var ErrNoRows = errors.New("ingest: statement has no data rows")

// SliceMeta carries the identifiers stamped onto every sliced row.
type SliceMeta struct {
	BankID      string
	AccountID   string
	StatementID string
}

// SliceCSV parses a CSV export into raw transactions. The header row is the
// first row holding every column of mapping.Header, or the first non-blank
// row when the mapping has no header or none matches. Preamble lines before
// the header and blank rows are dropped.
func SliceCSV(data []byte, mapping *domain.BankMapping, meta SliceMeta) ([]domain.RawTransaction, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, fmt.Errorf("SliceCSV: %w", err)
	}

	var want []string
	if mapping != nil {
		want = mapping.Header
	}
	headerAt := findHeader(records, want)
	if headerAt < 0 {
		return nil, fmt.Errorf("SliceCSV: %w", ErrNoRows)
	}
	header := trimAll(records[headerAt])

	var txs []domain.RawTransaction
	for _, rec := range records[headerAt+1:] {
		if isBlank(rec) {
			continue
		}
		fields := make(map[string]domain.Value, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			cell := ""
			if i < len(rec) {
				cell = strings.TrimSpace(rec[i])
			}
			fields[col] = domain.StringValue(cell)
		}
		txs = append(txs, domain.RawTransaction{
			ID:          uuid.NewString(),
			BankID:      meta.BankID,
			AccountID:   meta.AccountID,
			StatementID: meta.StatementID,
			Fields:      fields,
		})
	}

	if len(txs) == 0 {
		return nil, fmt.Errorf("SliceCSV: %w", ErrNoRows)
	}
	return txs, nil
}

// Preview returns the likely header of an unmapped export and up to maxRows
// data rows after it. Without a mapping to match against, the header is the
// first row with the most non-blank cells, which skips short preamble lines.
func Preview(data []byte, maxRows int) ([]string, [][]string, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, nil, fmt.Errorf("Preview: %w", err)
	}

	headerAt, widest := -1, 0
	for i, rec := range records {
		if n := nonBlank(rec); n > widest {
			headerAt, widest = i, n
		}
	}
	if headerAt < 0 {
		return nil, nil, fmt.Errorf("Preview: %w", ErrNoRows)
	}

	var sample [][]string
	for _, rec := range records[headerAt+1:] {
		if len(sample) >= maxRows {
			break
		}
		if !isBlank(rec) {
			sample = append(sample, trimAll(rec))
		}
	}
	return trimAll(records[headerAt]), sample, nil
}

func nonBlank(rec []string) int {
	n := 0
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func readRecords(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func findHeader(records [][]string, want []string) int {
	if len(want) > 0 {
		for i, rec := range records {
			if containsAll(rec, want) {
				return i
			}
		}
	}
	for i, rec := range records {
		if !isBlank(rec) {
			return i
		}
	}
	return -1
}

func containsAll(rec, want []string) bool {
	have := make(map[string]bool, len(rec))
	for _, c := range rec {
		have[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, w := range want {
		if !have[strings.ToLower(strings.TrimSpace(w))] {
			return false
		}
	}
	return true
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
