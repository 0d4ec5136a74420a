package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bookhub/pkg/models"
)

func TestTruncateWords(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 31))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short summary untouched", in: "A short summary.", want: "A short summary."},
		{name: "exactly thirty words", in: strings.TrimSpace(strings.Repeat("word ", 30)), want: strings.TrimSpace(strings.Repeat("word ", 30))},
		{name: "thirty one words", in: long, want: strings.TrimSpace(strings.Repeat("word ", 30)) + "..."},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateWords(tt.in, 30))
		})
	}
}

func TestNewFundEntry(t *testing.T) {
	e := NewFundEntry(models.Book{ID: 1, Title: "Dune", Available: false, Summary: "Spice."})
	assert.Equal(t, "Not Available", e.AvailabilityStatus)
	assert.Equal(t, "Spice.", e.Summary)

	assert.Equal(t, "Available", AvailabilityStatus(true))
}
