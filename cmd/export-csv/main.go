package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"bookhub/internal/catalog"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

func main() {
	var (
		booksOut   = flag.String("books", "data/books.csv", "output CSV path for books")
		historyOut = flag.String("history", "data/borrow_history.csv", "output CSV path for borrow history")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := writeFile(*booksOut, func(w io.Writer) error {
		return exportBooks(ctx, db, w)
	}); err != nil {
		log.Fatalf("export books failed: %v", err)
	}
	if err := writeFile(*historyOut, func(w io.Writer) error {
		return exportHistory(ctx, db, w)
	}); err != nil {
		log.Fatalf("export borrow history failed: %v", err)
	}

	log.Printf("✅ exported books to %s and borrow history to %s", *booksOut, *historyOut)
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// exportBooks writes the catalog in the column layout import-csv reads, so an
// export can seed another database.
func exportBooks(ctx context.Context, db *sqlx.DB, out io.Writer) error {
	repo := catalog.NewRepo(db)

	books, err := repo.ListBooks(ctx, catalog.ListQuery{})
	if err != nil {
		return err
	}
	authors, err := repo.ListAuthors(ctx)
	if err != nil {
		return err
	}
	genres, err := repo.ListGenres(ctx)
	if err != nil {
		return err
	}

	authorNames := make(map[int64]string, len(authors))
	for _, a := range authors {
		authorNames[a.ID] = a.Name
	}
	genreNames := make(map[int64]string, len(genres))
	for _, g := range genres {
		genreNames[g.ID] = g.Name
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"title", "summary", "isbn", "published_date", "publisher", "available", "authors", "genres"}); err != nil {
		return err
	}
	for _, b := range books {
		if err := w.Write([]string{
			b.Title,
			b.Summary,
			b.ISBN,
			b.PublishedDate.String(),
			b.Publisher,
			strconv.FormatBool(b.Available),
			joinNames(b.Authors, authorNames),
			joinNames(b.Genres, genreNames),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

type historyRow struct {
	models.BorrowRequest
	Title    string `db:"title"`
	Username string `db:"username"`
}

func exportHistory(ctx context.Context, db *sqlx.DB, out io.Writer) error {
	var rows []historyRow
	if err := sqlx.SelectContext(ctx, db, &rows, `
		SELECT br.id, br.book_id, br.borrower_id, br.status, br.overdue,
		       br.request_date, br.approval_date, br.due_date, br.complete_date,
		       b.title, u.username
		FROM borrow_requests br
		JOIN books b ON b.id = br.book_id
		JOIN users u ON u.id = br.borrower_id
		ORDER BY br.request_date DESC, br.id DESC
	`); err != nil {
		return fmt.Errorf("select borrow history: %w", err)
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{
		"request_id", "book_id", "title", "borrower", "status", "overdue",
		"request_date", "approval_date", "due_date", "complete_date",
	}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.BookID, 10),
			r.Title,
			r.Username,
			r.Status.String(),
			strconv.FormatBool(r.Overdue),
			r.RequestDate.UTC().Format(time.RFC3339),
			formatTime(r.ApprovalDate),
			formatTime(r.DueDate),
			formatTime(r.CompleteDate),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func joinNames(ids []int64, names map[int64]string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok {
			out = append(out, n)
		}
	}
	return strings.Join(out, "|")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
