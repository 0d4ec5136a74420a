package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"bookhub/internal/apperr"
	"bookhub/internal/catalog"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

func main() {
	booksIn := flag.String("books", "data/books.csv", "input CSV path for books")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	f, err := os.Open(*booksIn)
	if err != nil {
		log.Fatalf("open %s: %v", *booksIn, err)
	}
	defer f.Close()

	res, err := importBooks(ctx, catalog.NewRepo(db), f)
	if err != nil {
		log.Fatalf("import books failed: %v", err)
	}

	log.Printf("✅ imported %d book(s) from %s (%d skipped)", res.Created, *booksIn, res.Skipped)
}

type result struct {
	Created int
	Skipped int
}

// importBooks reads rows of title, summary, isbn, published_date, publisher,
// authors, genres. Author and genre cells hold names separated by "|" or ";"
// and are created on first sight. Rows that fail validation or repeat an
// existing isbn are logged and skipped.
func importBooks(ctx context.Context, repo *catalog.Repo, in io.Reader) (result, error) {
	var res result

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return res, err
	}

	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		line++
		if len(row) == 0 {
			continue
		}

		input, err := bookInput(ctx, repo, header, row)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		if _, err := repo.CreateBook(ctx, input); err != nil {
			if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrValidation) {
				log.Printf("[import] line %d skipped: %s", line, apperr.Message(err, "invalid row"))
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Created++
	}

	return res, nil
}

func bookInput(ctx context.Context, repo *catalog.Repo, header map[string]int, row []string) (catalog.BookInput, error) {
	in := catalog.BookInput{
		Title:     valueAt(header, row, "title"),
		Summary:   valueAt(header, row, "summary"),
		ISBN:      valueAt(header, row, "isbn"),
		Publisher: valueAt(header, row, "publisher"),
	}

	if raw := valueAt(header, row, "published_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return in, fmt.Errorf("parse published_date %q: %w", raw, err)
		}
		in.PublishedDate = d
	}

	for _, name := range splitNames(valueAt(header, row, "authors")) {
		id, err := repo.FindOrCreateAuthor(ctx, name)
		if err != nil {
			return in, err
		}
		in.Authors = append(in.Authors, id)
	}
	for _, name := range splitNames(valueAt(header, row, "genres")) {
		id, err := repo.FindOrCreateGenre(ctx, name)
		if err != nil {
			return in, err
		}
		in.Genres = append(in.Genres, id)
	}
	return in, nil
}

func splitNames(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ';' })
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
