package lending_test

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookhub/internal/apperr"
	"bookhub/internal/borrow"
	"bookhub/internal/catalog"
	"bookhub/internal/lending"
	"bookhub/internal/policy"
	"bookhub/internal/sync"
	"bookhub/internal/testutil"
	"bookhub/pkg/models"
)

var (
	reader    = policy.Identity{UserID: "reader-1", Username: "reader"}
	reader2   = policy.Identity{UserID: "reader-2", Username: "reader2"}
	librarian = policy.Identity{UserID: "lib-1", Username: "librarian", IsStaff: true}
	admin     = policy.Identity{UserID: "admin-1", Username: "admin", IsSuperuser: true}
)

type recorder struct {
	mu     stdsync.Mutex
	events []sync.BorrowEvent
}

func (r *recorder) BroadcastJSON(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := v.(sync.BorrowEvent); ok {
		r.events = append(r.events, ev)
	}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *sqlx.DB
	svc      *lending.Service
	requests *borrow.Repo
	events   *recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	for _, id := range []policy.Identity{reader, reader2, librarian, admin} {
		testutil.SeedUser(t, db, id.UserID, id.Username, id.IsStaff, id.IsSuperuser)
	}

	requests := borrow.NewRepo(db)
	events := &recorder{}
	svc := lending.NewService(db, catalog.NewRepo(db), requests, events)
	svc.Now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return fixture{db: db, svc: svc, requests: requests, events: events}
}

func dueIn(days int) *time.Time {
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return &d
}

func TestServiceRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Dune", "9780441013593", true)

	d, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, d.Request.Status)
	assert.False(t, testutil.BookAvailable(t, f.db, bookID))

	reqID := d.Request.ID
	d, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionApprove, lending.Params{DueDate: dueIn(14)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, d.Request.Status)
	assert.False(t, testutil.BookAvailable(t, f.db, bookID))

	d, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionCollect, lending.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, d.Request.Status)

	d, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionComplete, lending.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, d.Request.Status)
	assert.True(t, testutil.BookAvailable(t, f.db, bookID))

	stored, err := f.requests.Get(ctx, reqID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusComplete, stored.Status)
	require.NotNil(t, stored.ApprovalDate)
	require.NotNil(t, stored.DueDate)
	require.NotNil(t, stored.CompleteDate)
	assert.True(t, stored.DueDate.Equal(*dueIn(14)))

	// the borrower may start over once the request is complete
	_, err = f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f.events.types()) == 5 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]string{"borrow.borrow", "borrow.approve", "borrow.collect", "borrow.complete", "borrow.borrow"},
		f.events.types())
}

func TestServiceBorrowConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Emma", "9780141439587", true)

	_, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, reader, bookID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, lending.MsgAlreadyRequested, apperr.Message(err, ""))

	_, err = f.svc.Borrow(ctx, reader2, bookID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, lending.MsgBookNotAvailable, apperr.Message(err, ""))

	assert.Equal(t, 1, testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM borrow_requests WHERE book_id = ?`, bookID))

	_, err = f.svc.Borrow(ctx, reader, 9999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Borrow(ctx, policy.Anonymous(), bookID)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestServiceTransitionFailuresLeaveStateUntouched(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Ulysses", "9780199535675", true)

	d, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)
	reqID := d.Request.ID

	_, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionApprove, lending.Params{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Transition(ctx, reader, reqID, lending.ActionApprove, lending.Params{DueDate: dueIn(7)})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionComplete, lending.Params{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = f.svc.Transition(ctx, librarian, 4242, lending.ActionApprove, lending.Params{DueDate: dueIn(7)})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	stored, err := f.requests.Get(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ApprovalDate)
	assert.Nil(t, stored.DueDate)

	_, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionApprove, lending.Params{DueDate: dueIn(7)})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, librarian, reqID, lending.ActionApprove, lending.Params{DueDate: dueIn(30)})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	stored, err = f.requests.Get(ctx, reqID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.True(t, stored.DueDate.Equal(*dueIn(7)))
}

func TestServiceDeclineReleasesBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Beloved", "9781400033416", true)

	d, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, librarian, d.Request.ID, lending.ActionDecline, lending.Params{})
	require.NoError(t, err)
	assert.True(t, testutil.BookAvailable(t, f.db, bookID))

	_, err = f.svc.Borrow(ctx, reader2, bookID)
	assert.NoError(t, err)
}

func TestServiceCollectForBook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Middlemarch", "9780141439549", true)

	_, err := f.svc.CollectForBook(ctx, librarian, bookID)
	require.Error(t, err)
	assert.Equal(t, lending.MsgNoApprovedRequest, apperr.Message(err, ""))

	d, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)

	// Pending is not collectable.
	_, err = f.svc.CollectForBook(ctx, librarian, bookID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = f.svc.Transition(ctx, librarian, d.Request.ID, lending.ActionApprove, lending.Params{DueDate: dueIn(14)})
	require.NoError(t, err)

	_, err = f.svc.CollectForBook(ctx, reader, bookID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	got, err := f.svc.CollectForBook(ctx, librarian, bookID)
	require.NoError(t, err)
	assert.Equal(t, d.Request.ID, got.Request.ID)
	assert.Equal(t, reader.UserID, got.Request.BorrowerID)
	assert.Equal(t, models.StatusCollected, got.Request.Status)
	assert.False(t, testutil.BookAvailable(t, f.db, bookID))

	stored, err := f.requests.Get(ctx, d.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, stored.Status)
}

func TestServiceConcurrentBorrowSingleWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Hamlet", "9780743477123", true)

	callers := []policy.Identity{reader, reader2, librarian, admin}
	errs := make([]error, len(callers))

	var wg stdsync.WaitGroup
	for i, id := range callers {
		wg.Add(1)
		go func(i int, id policy.Identity) {
			defer wg.Done()
			_, errs[i] = f.svc.Borrow(ctx, id, bookID)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM borrow_requests WHERE book_id = ?`, bookID))
}

func TestServicePurgeBorrower(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookID := testutil.SeedBook(t, f.db, "Persuasion", "9780141439686", true)

	_, err := f.svc.Borrow(ctx, reader, bookID)
	require.NoError(t, err)

	deleteUser := func(ctx context.Context, q sqlx.ExtContext) error {
		_, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM users WHERE id = ?`), reader.UserID)
		return err
	}

	err = f.svc.PurgeBorrower(ctx, librarian, reader.UserID, deleteUser)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	require.NoError(t, f.svc.PurgeBorrower(ctx, admin, reader.UserID, deleteUser))
	assert.True(t, testutil.BookAvailable(t, f.db, bookID))
	assert.Zero(t, testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM borrow_requests WHERE borrower_id = ?`, reader.UserID))
	assert.Zero(t, testutil.CountRows(t, f.db, `SELECT COUNT(*) FROM users WHERE id = ?`, reader.UserID))
}

func TestPublishersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	ps := lending.Publishers{a, b}

	ps.BroadcastJSON(sync.BorrowEvent{Type: "borrow.collect"})
	ps.BroadcastJSON("ignored")

	assert.Equal(t, []string{"borrow.collect"}, a.types())
	assert.Equal(t, []string{"borrow.collect"}, b.types())
}
