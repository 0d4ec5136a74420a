// Package lending is the borrow-request lifecycle engine.
//
// The Decide functions are pure: they take the current request and book and
// return the next state of both, or an error and no change. Service applies a
// decision to the stores inside a single transaction.
//
//	PENDING -> APPROVED -> COLLECTED -> COMPLETE
//	PENDING -> DECLINED
package lending

import (
	"fmt"
	"strings"
	"time"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
	"bookhub/pkg/models"
)

type Action string

const (
	ActionBorrow   Action = "borrow"
	ActionApprove  Action = "approve"
	ActionCollect  Action = "collect"
	ActionComplete Action = "complete"
	ActionDecline  Action = "decline"
)

const (
	MsgBookNotFound      = "Book not found."
	MsgRequestNotFound   = "Borrow request not found."
	MsgAlreadyRequested  = "You already have a pending or approved request for this book."
	MsgBookNotAvailable  = "The book is not available."
	MsgDueDateRequired   = "Due date is required to approve a borrow request."
	MsgInvalidAction     = "Invalid action."
	MsgNoApprovedRequest = "No approved request found for this book."
)

// transitions maps each action to the only status it may be applied from.
var transitions = map[Action]models.Status{
	ActionApprove:  models.StatusPending,
	ActionCollect:  models.StatusApproved,
	ActionComplete: models.StatusCollected,
	ActionDecline:  models.StatusPending,
}

var targets = map[Action]models.Status{
	ActionApprove:  models.StatusApproved,
	ActionCollect:  models.StatusCollected,
	ActionComplete: models.StatusComplete,
	ActionDecline:  models.StatusDeclined,
}

// ParseAction accepts the transition actions only; borrow is not a transition
// of an existing request.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := transitions[a]; !ok {
		return "", apperr.Validation(MsgInvalidAction)
	}
	return a, nil
}

func (a Action) policyAction() policy.Action {
	return policy.Action(a)
}

// Params carries the caller-supplied inputs of a transition.
type Params struct {
	DueDate *time.Time
}

// Decision is the outcome of a successful Decide call.
type Decision struct {
	Request     models.BorrowRequest
	Book        models.Book
	BookChanged bool
}

// DecideBorrow creates a PENDING request for borrowerID. book is nil when the
// book does not exist; hasActive reports whether the borrower already holds
// an active request for it.
func DecideBorrow(book *models.Book, borrowerID string, hasActive bool, now time.Time) (Decision, error) {
	if book == nil {
		return Decision{}, apperr.NotFound(MsgBookNotFound)
	}
	if hasActive {
		return Decision{}, apperr.Conflict(MsgAlreadyRequested)
	}
	if !book.Available {
		return Decision{}, apperr.Conflict(MsgBookNotAvailable)
	}

	next := *book
	next.Available = false

	return Decision{
		Request: models.BorrowRequest{
			BookID:      book.ID,
			BorrowerID:  borrowerID,
			Status:      models.StatusPending,
			RequestDate: now.UTC(),
		},
		Book:        next,
		BookChanged: true,
	}, nil
}

// DecideTransition applies action to req. The guard is checked before any
// effect; on error the returned Decision is empty and req and book are
// untouched.
func DecideTransition(req models.BorrowRequest, book models.Book, action Action, p Params, now time.Time) (Decision, error) {
	from, ok := transitions[action]
	if !ok {
		return Decision{}, apperr.Validation(MsgInvalidAction)
	}
	if req.Status != from {
		return Decision{}, apperr.InvalidTransition(fmt.Sprintf(
			"Cannot %s a borrow request that is %s.", action, strings.ToLower(req.Status.String()),
		))
	}
	if action == ActionApprove && p.DueDate == nil {
		return Decision{}, apperr.Validation(MsgDueDateRequired)
	}

	now = now.UTC()
	next := req
	nextBook := book
	next.Status = targets[action]

	switch action {
	case ActionApprove:
		due := p.DueDate.UTC()
		next.ApprovalDate = &now
		next.DueDate = &due
		nextBook.Available = false
	case ActionComplete:
		next.CompleteDate = &now
		nextBook.Available = true
	case ActionDecline:
		// A pending request was only possible on an available book, so the
		// book goes back to the state it had before the request.
		nextBook.Available = true
	}

	return Decision{
		Request:     next,
		Book:        nextBook,
		BookChanged: nextBook.Available != book.Available,
	}, nil
}
