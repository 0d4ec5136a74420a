package models

import "time"

type Status int

const (
	StatusPending   Status = 1
	StatusApproved  Status = 2
	StatusCollected Status = 3
	StatusComplete  Status = 4
	StatusDeclined  Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusCollected:
		return "Collected"
	case StatusComplete:
		return "Complete"
	case StatusDeclined:
		return "Declined"
	default:
		return "Unknown"
	}
}

// Active reports whether a request in this status holds the book.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCollected
}

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusDeclined
}

type BorrowRequest struct {
	ID           int64      `json:"id" db:"id"`
	BookID       int64      `json:"book" db:"book_id"`
	BorrowerID   string     `json:"borrower" db:"borrower_id"`
	Status       Status     `json:"status" db:"status"`
	Overdue      bool       `json:"overdue" db:"overdue"`
	RequestDate  time.Time  `json:"request_date" db:"request_date"`
	ApprovalDate *time.Time `json:"approval_date" db:"approval_date"`
	DueDate      *time.Time `json:"due_date" db:"due_date"`
	CompleteDate *time.Time `json:"complete_date" db:"complete_date"`
}
