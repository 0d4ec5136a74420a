package catalog

import (
	"strings"

	"bookhub/pkg/models"
)

const (
	summaryWords = 30

	StatusAvailable    = "Available"
	StatusNotAvailable = "Not Available"
)

// FundEntry is a book as shown in the library fund listing.
type FundEntry struct {
	models.Book
	AvailabilityStatus string `json:"availability_status"`
}

func NewFundEntry(b models.Book) FundEntry {
	b.Summary = TruncateWords(b.Summary, summaryWords)
	return FundEntry{Book: b, AvailabilityStatus: AvailabilityStatus(b.Available)}
}

func AvailabilityStatus(available bool) string {
	if available {
		return StatusAvailable
	}
	return StatusNotAvailable
}

// TruncateWords keeps the first n words of s and appends "..." when anything
// was cut.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
