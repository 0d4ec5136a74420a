package borrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

const selectColumns = `
	SELECT id, book_id, borrower_id, status, overdue, request_date, approval_date, due_date, complete_date
	FROM borrow_requests
`

var activeStatuses = []models.Status{models.StatusPending, models.StatusApproved, models.StatusCollected}

type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Get(ctx context.Context, id int64) (*models.BorrowRequest, error) {
	return r.get(ctx, r.DB, selectColumns+` WHERE id = ?`, id)
}

// Lock reads a request and, on postgres, holds its row lock until the
// transaction ends.
func (r *Repo) Lock(ctx context.Context, q sqlx.ExtContext, id int64) (*models.BorrowRequest, error) {
	return r.get(ctx, q, selectColumns+` WHERE id = ?`+database.ForUpdate(q), id)
}

func (r *Repo) get(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (*models.BorrowRequest, error) {
	var br models.BorrowRequest
	if err := sqlx.GetContext(ctx, q, &br, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get borrow request: %w", err)
	}
	return &br, nil
}

// List returns requests newest first. An empty borrowerID lists everyone's.
func (r *Repo) List(ctx context.Context, borrowerID string, limit, offset int) ([]models.BorrowRequest, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	var args []any
	if borrowerID != "" {
		where = ` WHERE borrower_id = ?`
		args = append(args, borrowerID)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.DB, &total, r.DB.Rebind(`SELECT COUNT(*) FROM borrow_requests`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count borrow requests: %w", err)
	}

	out := make([]models.BorrowRequest, 0, limit)
	query := selectColumns + where + ` ORDER BY request_date DESC, id DESC LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, r.DB, &out, r.DB.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list borrow requests: %w", err)
	}
	return out, total, nil
}

// LatestForBorrower returns the borrower's most recent request for a book.
func (r *Repo) LatestForBorrower(ctx context.Context, bookID int64, borrowerID string) (*models.BorrowRequest, error) {
	return r.get(ctx, r.DB,
		selectColumns+` WHERE book_id = ? AND borrower_id = ? ORDER BY request_date DESC, id DESC LIMIT 1`,
		bookID, borrowerID)
}

// FindApprovedForBook locks the book's approved request. A book holds at most
// one active request, so there is at most one.
func (r *Repo) FindApprovedForBook(ctx context.Context, q sqlx.ExtContext, bookID int64) (*models.BorrowRequest, error) {
	return r.get(ctx, q,
		selectColumns+` WHERE book_id = ? AND status = ? ORDER BY id DESC LIMIT 1`+database.ForUpdate(q),
		bookID, models.StatusApproved)
}

func (r *Repo) HasActive(ctx context.Context, q sqlx.ExtContext, bookID int64, borrowerID string) (bool, error) {
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM borrow_requests WHERE book_id = ? AND borrower_id = ? AND status IN (?)`,
		bookID, borrowerID, activeStatuses,
	)
	if err != nil {
		return false, fmt.Errorf("build active query: %w", err)
	}

	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("count active requests: %w", err)
	}
	return n > 0, nil
}

// CountActiveForBook is used to check the availability invariant.
func (r *Repo) CountActiveForBook(ctx context.Context, bookID int64) (int, error) {
	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM borrow_requests WHERE book_id = ? AND status IN (?)`,
		bookID, activeStatuses,
	)
	if err != nil {
		return 0, fmt.Errorf("build active query: %w", err)
	}

	var n int
	if err := sqlx.GetContext(ctx, r.DB, &n, r.DB.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count active requests: %w", err)
	}
	return n, nil
}

func (r *Repo) Insert(ctx context.Context, q sqlx.ExtContext, br *models.BorrowRequest) error {
	row := q.QueryRowxContext(ctx, q.Rebind(`
		INSERT INTO borrow_requests (book_id, borrower_id, status, overdue, request_date, approval_date, due_date, complete_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), br.BookID, br.BorrowerID, br.Status, br.Overdue, br.RequestDate, br.ApprovalDate, br.DueDate, br.CompleteDate)

	if err := row.Scan(&br.ID); err != nil {
		return fmt.Errorf("insert borrow request: %w", err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, q sqlx.ExtContext, br models.BorrowRequest) error {
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE borrow_requests
		SET status = ?, overdue = ?, approval_date = ?, due_date = ?, complete_date = ?
		WHERE id = ?
	`), br.Status, br.Overdue, br.ApprovalDate, br.DueDate, br.CompleteDate, br.ID)
	if err != nil {
		return fmt.Errorf("update borrow request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update borrow request rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update borrow request %d: no rows affected", br.ID)
	}
	return nil
}

func (r *Repo) ActiveBookIDsForBorrower(ctx context.Context, q sqlx.ExtContext, borrowerID string) ([]int64, error) {
	query, args, err := sqlx.In(
		`SELECT DISTINCT book_id FROM borrow_requests WHERE borrower_id = ? AND status IN (?)`,
		borrowerID, activeStatuses,
	)
	if err != nil {
		return nil, fmt.Errorf("build active books query: %w", err)
	}

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list active books: %w", err)
	}
	return ids, nil
}

func (r *Repo) DeleteByBorrower(ctx context.Context, q sqlx.ExtContext, borrowerID string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM borrow_requests WHERE borrower_id = ?`), borrowerID); err != nil {
		return fmt.Errorf("delete borrow requests: %w", err)
	}
	return nil
}

// MarkOverdue flags approved and collected requests whose due date is before
// now. It returns the requests it flagged.
func (r *Repo) MarkOverdue(ctx context.Context, now time.Time) ([]models.BorrowRequest, error) {
	var flagged []models.BorrowRequest
	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(
			selectColumns+` WHERE overdue = ? AND status IN (?) AND due_date IS NOT NULL AND due_date < ?`,
			false, []models.Status{models.StatusApproved, models.StatusCollected}, now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("build overdue query: %w", err)
		}
		if err := sqlx.SelectContext(ctx, tx, &flagged, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("list overdue candidates: %w", err)
		}

		for i := range flagged {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE borrow_requests SET overdue = ? WHERE id = ?`), true, flagged[i].ID); err != nil {
				return fmt.Errorf("mark overdue %d: %w", flagged[i].ID, err)
			}
			flagged[i].Overdue = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}
