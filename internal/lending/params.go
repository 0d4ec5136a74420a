package lending

import (
	"strings"
	"time"

	"bookhub/internal/apperr"
	"bookhub/pkg/models"
)

const MsgInvalidDueDate = "due_date: expected YYYY-MM-DD or RFC3339."

// ParseDueDate reads the due_date input of an approve. An empty string yields
// nil so the engine can report the missing value itself.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		return nil, apperr.Validation(MsgInvalidDueDate)
	}
	return &t, nil
}
