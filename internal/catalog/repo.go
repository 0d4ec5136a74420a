package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"bookhub/internal/apperr"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

const (
	MsgBookNotFound   = "Book not found."
	MsgAuthorNotFound = "Author not found."
	MsgGenreNotFound  = "Genre not found."
	MsgDuplicateISBN  = "A book with this isbn already exists."
)

const bookColumns = `id, title, summary, isbn, available, published_date, publisher`

type Repo struct {
	DB  *sqlx.DB
	Now func() time.Time
}

type ListQuery struct {
	Q         string // title or isbn substring
	Available *bool
	Limit     int
	Offset    int
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db, Now: time.Now}
}

func (r *Repo) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	b, err := r.getBook(ctx, r.DB, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	if err != nil || b == nil {
		return b, err
	}
	books := []models.Book{*b}
	if err := loadRelations(ctx, r.DB, books); err != nil {
		return nil, err
	}
	return &books[0], nil
}

// LockBook reads a book inside a lifecycle transaction. Relations are not
// loaded.
func (r *Repo) LockBook(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Book, error) {
	return r.getBook(ctx, q, `SELECT `+bookColumns+` FROM books WHERE id = ?`+database.ForUpdate(q), id)
}

func (r *Repo) getBook(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (*models.Book, error) {
	var b models.Book
	if err := sqlx.GetContext(ctx, q, &b, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (r *Repo) SetAvailable(ctx context.Context, q sqlx.ExtContext, id int64, available bool) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE books SET available = ? WHERE id = ?`), available, id)
	if err != nil {
		return fmt.Errorf("set available: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(MsgBookNotFound)
	}
	return nil
}

func buildListSQL(q ListQuery, count bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(q.Q); s != "" {
		where = append(where, `(LOWER(title) LIKE ? OR isbn LIKE ?)`)
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	if q.Available != nil {
		where = append(where, `available = ?`)
		args = append(args, *q.Available)
	}

	sb := strings.Builder{}
	if count {
		sb.WriteString(`SELECT COUNT(*) FROM books`)
	} else {
		sb.WriteString(`SELECT ` + bookColumns + ` FROM books`)
	}
	if len(where) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	if !count {
		sb.WriteString(` ORDER BY title, id`)
		if q.Limit > 0 {
			sb.WriteString(` LIMIT ? OFFSET ?`)
			args = append(args, q.Limit, q.Offset)
		}
	}
	return sb.String(), args
}

func (r *Repo) CountBooks(ctx context.Context, q ListQuery) (int, error) {
	query, args := buildListSQL(q, true)
	var total int
	if err := sqlx.GetContext(ctx, r.DB, &total, r.DB.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return total, nil
}

// ListBooks returns books ordered by title. A zero Limit returns every book.
func (r *Repo) ListBooks(ctx context.Context, q ListQuery) ([]models.Book, error) {
	if q.Offset < 0 {
		q.Offset = 0
	}
	query, args := buildListSQL(q, false)

	out := []models.Book{}
	if err := sqlx.SelectContext(ctx, r.DB, &out, r.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if err := loadRelations(ctx, r.DB, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	if err := in.check(r.Now()); err != nil {
		return nil, err
	}

	var id int64
	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		if err := checkRefs(ctx, tx, in); err != nil {
			return err
		}

		row := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO books (title, summary, isbn, available, published_date, publisher)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`), in.Title, in.Summary, in.ISBN, true, in.PublishedDate, in.Publisher)
		if err := row.Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict(MsgDuplicateISBN)
			}
			return fmt.Errorf("insert book: %w", err)
		}
		return replaceRelations(ctx, tx, id, in)
	})
	if err != nil {
		return nil, err
	}
	return r.GetBook(ctx, id)
}

// UpdateBook replaces the descriptive fields of a book. Availability belongs
// to the lending engine and is left alone.
func (r *Repo) UpdateBook(ctx context.Context, id int64, in BookInput) (*models.Book, error) {
	if err := in.check(r.Now()); err != nil {
		return nil, err
	}

	err := database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		if err := checkRefs(ctx, tx, in); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE books
			SET title = ?, summary = ?, isbn = ?, published_date = ?, publisher = ?
			WHERE id = ?
		`), in.Title, in.Summary, in.ISBN, in.PublishedDate, in.Publisher, id)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict(MsgDuplicateISBN)
			}
			return fmt.Errorf("update book: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound(MsgBookNotFound)
		}
		return replaceRelations(ctx, tx, id, in)
	})
	if err != nil {
		return nil, err
	}
	return r.GetBook(ctx, id)
}

// DeleteBook removes a book with its borrow requests and catalog links.
func (r *Repo) DeleteBook(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM borrow_requests WHERE book_id = ?`,
			`DELETE FROM book_authors WHERE book_id = ?`,
			`DELETE FROM book_genres WHERE book_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return fmt.Errorf("delete book dependents: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM books WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound(MsgBookNotFound)
		}
		return nil
	})
}

func checkRefs(ctx context.Context, q sqlx.ExtContext, in BookInput) error {
	if err := checkIDs(ctx, q, "authors", in.Authors); err != nil {
		return err
	}
	return checkIDs(ctx, q, "genres", in.Genres)
}

func checkIDs(ctx context.Context, q sqlx.ExtContext, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("build %s check: %w", table, err)
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if n != len(ids) {
		return apperr.Validation(fmt.Sprintf("%s: unknown id", table))
	}
	return nil
}

type relation struct {
	BookID int64 `db:"book_id"`
	RefID  int64 `db:"ref_id"`
}

var relationTables = []struct {
	table, column string
	set           func(b *models.Book, ids []int64)
	get           func(in BookInput) []int64
}{
	{"book_authors", "author_id", func(b *models.Book, ids []int64) { b.Authors = ids }, func(in BookInput) []int64 { return in.Authors }},
	{"book_genres", "genre_id", func(b *models.Book, ids []int64) { b.Genres = ids }, func(in BookInput) []int64 { return in.Genres }},
}

func replaceRelations(ctx context.Context, tx *sqlx.Tx, bookID int64, in BookInput) error {
	for _, rt := range relationTables {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+rt.table+` WHERE book_id = ?`), bookID); err != nil {
			return fmt.Errorf("clear %s: %w", rt.table, err)
		}
		for _, ref := range rt.get(in) {
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO `+rt.table+` (book_id, `+rt.column+`) VALUES (?, ?)`),
				bookID, ref,
			); err != nil {
				return fmt.Errorf("insert %s: %w", rt.table, err)
			}
		}
	}
	return nil
}

func loadRelations(ctx context.Context, q sqlx.ExtContext, books []models.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]int64, len(books))
	index := make(map[int64]int, len(books))
	for i, b := range books {
		ids[i] = b.ID
		index[b.ID] = i
	}

	for _, rt := range relationTables {
		query, args, err := sqlx.In(
			`SELECT book_id, `+rt.column+` AS ref_id FROM `+rt.table+` WHERE book_id IN (?) ORDER BY `+rt.column,
			ids,
		)
		if err != nil {
			return fmt.Errorf("build %s query: %w", rt.table, err)
		}

		var rows []relation
		if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
			return fmt.Errorf("load %s: %w", rt.table, err)
		}

		grouped := make(map[int64][]int64, len(books))
		for _, row := range rows {
			grouped[row.BookID] = append(grouped[row.BookID], row.RefID)
		}
		for id, i := range index {
			refs := grouped[id]
			if refs == nil {
				refs = []int64{}
			}
			rt.set(&books[i], refs)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}
