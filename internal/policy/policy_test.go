package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
)

var (
	anon      = policy.Anonymous()
	reader    = policy.Identity{UserID: "reader-1", Username: "reader"}
	otherUser = policy.Identity{UserID: "reader-2", Username: "other"}
	librarian = policy.Identity{UserID: "staff-1", Username: "librarian", IsStaff: true}
	admin     = policy.Identity{UserID: "admin-1", Username: "admin", IsSuperuser: true}
)

func TestAuthorize(t *testing.T) {
	own := policy.Target{Resource: policy.ResourceBorrowRequest, OwnerID: reader.UserID}

	tests := []struct {
		name   string
		id     policy.Identity
		target policy.Target
		action policy.Action
		want   apperr.Kind // KindInternal means allowed
	}{
		{"anonymous_reads_books", anon, policy.Target{Resource: policy.ResourceBook}, policy.ActionRead, apperr.KindInternal},
		{"anonymous_cannot_create_book", anon, policy.Target{Resource: policy.ResourceBook}, policy.ActionCreate, apperr.KindUnauthorized},
		{"reader_cannot_create_book", reader, policy.Target{Resource: policy.ResourceBook}, policy.ActionCreate, apperr.KindForbidden},
		{"librarian_creates_book", librarian, policy.Target{Resource: policy.ResourceBook}, policy.ActionCreate, apperr.KindInternal},
		{"librarian_deletes_book", librarian, policy.Target{Resource: policy.ResourceBook}, policy.ActionDelete, apperr.KindInternal},
		{"librarian_updates_author", librarian, policy.Target{Resource: policy.ResourceAuthor}, policy.ActionUpdate, apperr.KindInternal},
		{"librarian_cannot_delete_author", librarian, policy.Target{Resource: policy.ResourceAuthor}, policy.ActionDelete, apperr.KindForbidden},
		{"librarian_cannot_delete_genre", librarian, policy.Target{Resource: policy.ResourceGenre}, policy.ActionDelete, apperr.KindForbidden},
		{"admin_deletes_genre", admin, policy.Target{Resource: policy.ResourceGenre}, policy.ActionDelete, apperr.KindInternal},
		{"anonymous_cannot_borrow", anon, policy.Target{Resource: policy.ResourceBorrowRequest}, policy.ActionCreate, apperr.KindUnauthorized},
		{"reader_borrows", reader, policy.Target{Resource: policy.ResourceBorrowRequest}, policy.ActionCreate, apperr.KindInternal},
		{"owner_reads_own_request", reader, own, policy.ActionRead, apperr.KindInternal},
		{"other_user_cannot_read_request", otherUser, own, policy.ActionRead, apperr.KindForbidden},
		{"librarian_reads_any_request", librarian, own, policy.ActionRead, apperr.KindInternal},
		{"owner_cannot_approve", reader, own, policy.ActionApprove, apperr.KindForbidden},
		{"owner_cannot_collect", reader, own, policy.ActionCollect, apperr.KindForbidden},
		{"librarian_approves", librarian, own, policy.ActionApprove, apperr.KindInternal},
		{"admin_completes", admin, own, policy.ActionComplete, apperr.KindInternal},
		{"librarian_declines", librarian, own, policy.ActionDecline, apperr.KindInternal},
		{"librarian_cannot_manage_users", librarian, policy.Target{Resource: policy.ResourceUser}, policy.ActionDelete, apperr.KindForbidden},
		{"admin_manages_users", admin, policy.Target{Resource: policy.ResourceUser}, policy.ActionDelete, apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Authorize(tt.id, tt.target, tt.action)
			if tt.want == apperr.KindInternal {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestCapabilities(t *testing.T) {
	assert.False(t, anon.Authenticated())
	assert.True(t, admin.Staff(), "superusers carry the staff capability")
	assert.False(t, librarian.Admin())
	assert.True(t, policy.SeesAllBorrowRequests(librarian))
	assert.False(t, policy.SeesAllBorrowRequests(reader))
}
