package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
	"bookhub/internal/sync"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

// BookStore is the part of the catalog the engine needs. Every method runs on
// the caller's transaction.
type BookStore interface {
	LockBook(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Book, error)
	SetAvailable(ctx context.Context, q sqlx.ExtContext, id int64, available bool) error
}

type RequestStore interface {
	Lock(ctx context.Context, q sqlx.ExtContext, id int64) (*models.BorrowRequest, error)
	HasActive(ctx context.Context, q sqlx.ExtContext, bookID int64, borrowerID string) (bool, error)
	FindApprovedForBook(ctx context.Context, q sqlx.ExtContext, bookID int64) (*models.BorrowRequest, error)
	Insert(ctx context.Context, q sqlx.ExtContext, r *models.BorrowRequest) error
	Update(ctx context.Context, q sqlx.ExtContext, r models.BorrowRequest) error
	ActiveBookIDsForBorrower(ctx context.Context, q sqlx.ExtContext, borrowerID string) ([]int64, error)
	DeleteByBorrower(ctx context.Context, q sqlx.ExtContext, borrowerID string) error
}

type Publisher interface {
	BroadcastJSON(v any)
}

// Publishers fans an event out to several publishers in order.
type Publishers []Publisher

func (ps Publishers) BroadcastJSON(v any) {
	for _, p := range ps {
		p.BroadcastJSON(v)
	}
}

type Service struct {
	DB       *sqlx.DB
	Books    BookStore
	Requests RequestStore
	Events   Publisher
	Now      func() time.Time
}

func NewService(db *sqlx.DB, books BookStore, requests RequestStore, events Publisher) *Service {
	return &Service{
		DB:       db,
		Books:    books,
		Requests: requests,
		Events:   events,
		Now:      time.Now,
	}
}

// Borrow creates a PENDING request for the caller and marks the book
// unavailable, both in one transaction.
func (s *Service) Borrow(ctx context.Context, id policy.Identity, bookID int64) (Decision, error) {
	if err := policy.CanCreateBorrowRequest(id); err != nil {
		return Decision{}, err
	}

	var d Decision
	err := database.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		book, err := s.Books.LockBook(ctx, tx, bookID)
		if err != nil {
			return err
		}

		hasActive := false
		if book != nil {
			if hasActive, err = s.Requests.HasActive(ctx, tx, bookID, id.UserID); err != nil {
				return err
			}
		}

		d, err = DecideBorrow(book, id.UserID, hasActive, s.Now())
		if err != nil {
			return err
		}
		if err := s.Requests.Insert(ctx, tx, &d.Request); err != nil {
			return err
		}
		return s.applyBook(ctx, tx, d)
	})
	if err != nil {
		return Decision{}, err
	}

	s.publish(ActionBorrow, d)
	return d, nil
}

// Transition applies a staff action to an existing request.
func (s *Service) Transition(ctx context.Context, id policy.Identity, requestID int64, action Action, p Params) (Decision, error) {
	if _, ok := transitions[action]; !ok {
		return Decision{}, apperr.Validation(MsgInvalidAction)
	}

	var d Decision
	err := database.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		req, err := s.Requests.Lock(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound(MsgRequestNotFound)
		}
		if err := policy.CanTransition(id, req.BorrowerID, action.policyAction()); err != nil {
			return err
		}

		d, err = s.decideAndApply(ctx, tx, *req, action, p)
		return err
	})
	if err != nil {
		return Decision{}, err
	}

	s.publish(action, d)
	return d, nil
}

// CollectForBook hands out the book against its approved request, whoever
// the borrower is. It backs the "collect" action of the book detail surfaces.
func (s *Service) CollectForBook(ctx context.Context, id policy.Identity, bookID int64) (Decision, error) {
	if err := policy.CanTransition(id, "", policy.ActionCollect); err != nil {
		return Decision{}, err
	}

	var d Decision
	err := database.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		req, err := s.Requests.FindApprovedForBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.InvalidTransition(MsgNoApprovedRequest)
		}

		d, err = s.decideAndApply(ctx, tx, *req, ActionCollect, Params{})
		return err
	})
	if err != nil {
		return Decision{}, err
	}

	s.publish(ActionCollect, d)
	return d, nil
}

func (s *Service) decideAndApply(ctx context.Context, tx *sqlx.Tx, req models.BorrowRequest, action Action, p Params) (Decision, error) {
	book, err := s.Books.LockBook(ctx, tx, req.BookID)
	if err != nil {
		return Decision{}, err
	}
	if book == nil {
		return Decision{}, apperr.NotFound(MsgBookNotFound)
	}

	d, err := DecideTransition(req, *book, action, p, s.Now())
	if err != nil {
		return Decision{}, err
	}
	if err := s.Requests.Update(ctx, tx, d.Request); err != nil {
		return Decision{}, err
	}
	if err := s.applyBook(ctx, tx, d); err != nil {
		return Decision{}, err
	}
	return d, nil
}

func (s *Service) applyBook(ctx context.Context, tx *sqlx.Tx, d Decision) error {
	if !d.BookChanged {
		return nil
	}
	return s.Books.SetAvailable(ctx, tx, d.Book.ID, d.Book.Available)
}

// PurgeBorrower deletes a user together with their borrow requests. Books
// held by the user's active requests become available again.
func (s *Service) PurgeBorrower(ctx context.Context, id policy.Identity, userID string, deleteUser func(context.Context, sqlx.ExtContext) error) error {
	if err := policy.Authorize(id, policy.Target{Resource: policy.ResourceUser}, policy.ActionDelete); err != nil {
		return err
	}

	return database.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		bookIDs, err := s.Requests.ActiveBookIDsForBorrower(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, bookID := range bookIDs {
			if err := s.Books.SetAvailable(ctx, tx, bookID, true); err != nil {
				return err
			}
		}
		if err := s.Requests.DeleteByBorrower(ctx, tx, userID); err != nil {
			return err
		}
		if err := deleteUser(ctx, tx); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

func (s *Service) publish(action Action, d Decision) {
	if s.Events == nil {
		return
	}
	ev := sync.BorrowEvent{
		Type:       "borrow." + string(action),
		RequestID:  d.Request.ID,
		BookID:     d.Request.BookID,
		BorrowerID: d.Request.BorrowerID,
		Status:     d.Request.Status.String(),
		Available:  d.Book.Available,
		Overdue:    d.Request.Overdue,
		At:         s.Now().UTC(),
	}
	go s.Events.BroadcastJSON(ev)
}
