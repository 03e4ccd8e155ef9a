package store

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		cause   error
		wantLen int
	}{
		{"nil", nil, 0},
		{"short", errors.New("boom"), 4},
		{"ascii truncated", errors.New(strings.Repeat("x", 2500)), 2000},
		// 1999 ASCII bytes then a 3-byte rune straddling the limit
		{"rune at the limit", errors.New(strings.Repeat("x", 1999) + "€€"), 1999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorMessage(tt.cause)
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
			if !utf8.ValidString(got) {
				t.Error("ErrorMessage returned invalid UTF-8")
			}
		})
	}
}
