package borrow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/testutil"
	"bookhub/pkg/models"
)

func insert(t *testing.T, r *Repo, br models.BorrowRequest) models.BorrowRequest {
	t.Helper()
	require.NoError(t, r.Insert(context.Background(), r.DB, &br))
	require.NotZero(t, br.ID)
	return br
}

func TestRepoInsertGetList(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "u1", "alice", false, false)
	testutil.SeedUser(t, db, "u2", "bob", false, false)
	b1 := testutil.SeedBook(t, db, "Dune", "1", true)
	b2 := testutil.SeedBook(t, db, "Emma", "2", true)

	r := NewRepo(db)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	first := insert(t, r, models.BorrowRequest{BookID: b1, BorrowerID: "u1", Status: models.StatusComplete, RequestDate: base})
	second := insert(t, r, models.BorrowRequest{BookID: b1, BorrowerID: "u1", Status: models.StatusPending, RequestDate: base.Add(time.Hour)})
	insert(t, r, models.BorrowRequest{BookID: b2, BorrowerID: "u2", Status: models.StatusPending, RequestDate: base.Add(2 * time.Hour)})

	got, err := r.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusComplete, got.Status)
	assert.True(t, got.RequestDate.Equal(base))

	missing, err := r.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	latest, err := r.LatestForBorrower(ctx, b1, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	mine, total, err := r.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	all, total, err := r.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	active, err := r.HasActive(ctx, db, b1, "u1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = r.HasActive(ctx, db, b2, "u1")
	require.NoError(t, err)
	assert.False(t, active)

	n, err := r.CountActiveForBook(ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := r.ActiveBookIDsForBorrower(ctx, db, "u2")
	require.NoError(t, err)
	assert.Equal(t, []int64{b2}, ids)
}

func TestRepoMarkOverdue(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "u1", "alice", false, false)
	r := NewRepo(db)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name    string
		status  models.Status
		due     *time.Time
		overdue bool
	}{
		{name: "collected past due", status: models.StatusCollected, due: &past, overdue: true},
		{name: "approved past due", status: models.StatusApproved, due: &past, overdue: true},
		{name: "collected not yet due", status: models.StatusCollected, due: &future},
		{name: "complete past due", status: models.StatusComplete, due: &past},
		{name: "pending without due date", status: models.StatusPending},
	}

	ids := make([]int64, len(tests))
	for i, tt := range tests {
		bookID := testutil.SeedBook(t, db, tt.name, string(rune('a'+i)), false)
		br := insert(t, r, models.BorrowRequest{
			BookID: bookID, BorrowerID: "u1", Status: tt.status,
			RequestDate: past.Add(-time.Hour), DueDate: tt.due,
		})
		ids[i] = br.ID
	}

	flagged, err := r.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Len(t, flagged, 2)

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Get(ctx, ids[i])
			require.NoError(t, err)
			assert.Equal(t, tt.overdue, got.Overdue)
			assert.Equal(t, tt.status, got.Status, "status is never changed")
		})
	}

	again, err := r.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRepoFindApprovedForBook(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "u1", "alice", false, false)
	testutil.SeedUser(t, db, "u2", "bob", false, false)
	b1 := testutil.SeedBook(t, db, "Dune", "1", false)
	b2 := testutil.SeedBook(t, db, "Emma", "2", true)

	r := NewRepo(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	insert(t, r, models.BorrowRequest{BookID: b1, BorrowerID: "u1", Status: models.StatusComplete, RequestDate: now})
	approved := insert(t, r, models.BorrowRequest{BookID: b1, BorrowerID: "u2", Status: models.StatusApproved, RequestDate: now.Add(time.Hour)})
	insert(t, r, models.BorrowRequest{BookID: b2, BorrowerID: "u1", Status: models.StatusPending, RequestDate: now})

	got, err := r.FindApprovedForBook(ctx, db, b1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, approved.ID, got.ID)
	assert.Equal(t, "u2", got.BorrowerID)

	none, err := r.FindApprovedForBook(ctx, db, b2)
	require.NoError(t, err)
	assert.Nil(t, none)
}
