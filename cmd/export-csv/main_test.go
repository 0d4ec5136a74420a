package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/borrow"
	"bookhub/internal/catalog"
	"bookhub/internal/lending"
	"bookhub/internal/policy"
	"bookhub/internal/testutil"
)

func TestExportBooksRoundTripsImportLayout(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := catalog.NewRepo(db)

	authorID, err := repo.FindOrCreateAuthor(ctx, "Ursula K. Le Guin")
	require.NoError(t, err)
	genreID, err := repo.FindOrCreateGenre(ctx, "Fantasy")
	require.NoError(t, err)
	testutil.SeedBook(t, db, "Earthsea", "9780553383041", true)
	_, err = db.Exec(`INSERT INTO book_authors (book_id, author_id) SELECT id, ? FROM books`, authorID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO book_genres (book_id, genre_id) SELECT id, ? FROM books`, genreID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exportBooks(ctx, db, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "title", records[0][0])
	assert.Equal(t, []string{
		"Earthsea", "A book about Earthsea.", "9780553383041", "2001-01-01", "Test Press", "true",
		"Ursula K. Le Guin", "Fantasy",
	}, records[1])
}

func TestExportHistory(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "u-1", "reader", false, false)
	bookID := testutil.SeedBook(t, db, "Earthsea", "9780553383041", true)

	svc := lending.NewService(db, catalog.NewRepo(db), borrow.NewRepo(db), nil)
	_, err := svc.Borrow(ctx, policy.Identity{UserID: "u-1", Username: "reader"}, bookID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exportHistory(ctx, db, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "request_id,book_id,title,borrower,status"))
	assert.Contains(t, lines[1], ",Earthsea,reader,Pending,false,")
}
