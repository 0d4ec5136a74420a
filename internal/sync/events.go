package sync

import "time"

// BorrowEvent is broadcast after every committed lifecycle change.
type BorrowEvent struct {
	Type       string    `json:"type"` // "borrow.<action>", e.g. "borrow.approve"
	RequestID  int64     `json:"request_id"`
	BookID     int64     `json:"book_id"`
	BorrowerID string    `json:"borrower_id"`
	Status     string    `json:"status"`
	Available  bool      `json:"book_available"`
	Overdue    bool      `json:"overdue,omitempty"`
	At         time.Time `json:"at"`
}
