package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/catalog"
	"bookhub/internal/testutil"
)

const booksCSV = `Title,Summary,ISBN,Published_Date,Publisher,Authors,Genres
Dune,Spice and sand,9780441013593,1965-08-01,Chilton,Frank Herbert,Science Fiction|Adventure
Children of Dune,More sand,9780441104024,1976-04-01,Putnam,frank herbert,science fiction
Duplicate,Same isbn,9780441013593,1965-08-01,Chilton,,
Future,Not yet,9999999999999,2999-01-01,Nobody,,
`

func TestImportBooks(t *testing.T) {
	db := testutil.NewDB(t)
	repo := catalog.NewRepo(db)
	ctx := context.Background()

	res, err := importBooks(ctx, repo, strings.NewReader(booksCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Skipped)

	authors, err := repo.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 1, "author names match case-insensitively")

	genres, err := repo.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, genres, 2)

	books, err := repo.ListBooks(ctx, catalog.ListQuery{})
	require.NoError(t, err)
	require.Len(t, books, 2)
	for _, b := range books {
		assert.True(t, b.Available)
		assert.Len(t, b.Authors, 1)
	}
}

func TestImportBooksBadDate(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := importBooks(context.Background(), catalog.NewRepo(db), strings.NewReader(
		"title,summary,isbn,published_date,publisher\nX,Y,123,not-a-date,Z\n",
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, splitNames(" A | B;C ;"))
	assert.Empty(t, splitNames(""))
}
