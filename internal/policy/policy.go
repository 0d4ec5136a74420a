// Package policy decides which identity may perform which action on which
// resource. Checks are capability based: staff covers librarians and admins,
// admin covers superusers only.
package policy

import (
	"fmt"

	"bookhub/internal/apperr"
)

// Identity is the caller of an operation. The zero value is anonymous.
type Identity struct {
	UserID      string
	Username    string
	IsStaff     bool
	IsSuperuser bool
}

func Anonymous() Identity { return Identity{} }

func (i Identity) Authenticated() bool { return i.UserID != "" }

func (i Identity) Staff() bool { return i.IsStaff || i.IsSuperuser }

func (i Identity) Admin() bool { return i.IsSuperuser }

type Resource string

const (
	ResourceBook          Resource = "book"
	ResourceAuthor        Resource = "author"
	ResourceGenre         Resource = "genre"
	ResourceBorrowRequest Resource = "borrow_request"
	ResourceUser          Resource = "user"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionApprove  Action = "approve"
	ActionCollect  Action = "collect"
	ActionComplete Action = "complete"
	ActionDecline  Action = "decline"
)

// Target names the resource being acted on. OwnerID is set for resources that
// belong to a user (borrow requests).
type Target struct {
	Resource Resource
	OwnerID  string
}

const msgNoCredentials = "Authentication credentials were not provided."

// Authorize returns nil when id may perform action on target, an Unauthorized
// error when the action needs a login and id is anonymous, and Forbidden
// otherwise.
func Authorize(id Identity, target Target, action Action) error {
	switch target.Resource {
	case ResourceBook:
		return authorizeCatalog(id, action, false)
	case ResourceAuthor, ResourceGenre:
		return authorizeCatalog(id, action, true)
	case ResourceBorrowRequest:
		return authorizeBorrowRequest(id, target, action)
	case ResourceUser:
		if !id.Authenticated() {
			return apperr.Unauthorized(msgNoCredentials)
		}
		if !id.Admin() {
			return apperr.Forbidden("Only administrators can manage users.")
		}
		return nil
	default:
		return apperr.Forbidden(fmt.Sprintf("unknown resource %q", target.Resource))
	}
}

func authorizeCatalog(id Identity, action Action, adminDelete bool) error {
	if action == ActionRead {
		return nil
	}
	if !id.Authenticated() {
		return apperr.Unauthorized(msgNoCredentials)
	}
	switch action {
	case ActionCreate, ActionUpdate:
		if id.Staff() {
			return nil
		}
		return apperr.Forbidden("Only librarians can change the catalog.")
	case ActionDelete:
		if adminDelete && !id.Admin() {
			return apperr.Forbidden("Only administrators can delete authors and genres.")
		}
		if id.Staff() {
			return nil
		}
		return apperr.Forbidden("Only librarians can change the catalog.")
	default:
		return apperr.Forbidden(fmt.Sprintf("action %q is not allowed on the catalog", action))
	}
}

func authorizeBorrowRequest(id Identity, target Target, action Action) error {
	if !id.Authenticated() {
		return apperr.Unauthorized(msgNoCredentials)
	}
	switch action {
	case ActionCreate:
		return nil
	case ActionRead:
		if id.Staff() || id.UserID == target.OwnerID {
			return nil
		}
		return apperr.Forbidden("You do not have permission to view this borrow request.")
	case ActionApprove, ActionCollect, ActionComplete, ActionDecline:
		if id.Staff() {
			return nil
		}
		return apperr.Forbidden(fmt.Sprintf("Only librarians can %s borrow requests.", action))
	default:
		return apperr.Forbidden(fmt.Sprintf("action %q is not allowed on borrow requests", action))
	}
}

func CanCreateBorrowRequest(id Identity) error {
	return Authorize(id, Target{Resource: ResourceBorrowRequest}, ActionCreate)
}

func CanReadBorrowRequest(id Identity, ownerID string) error {
	return Authorize(id, Target{Resource: ResourceBorrowRequest, OwnerID: ownerID}, ActionRead)
}

func CanTransition(id Identity, ownerID string, action Action) error {
	return Authorize(id, Target{Resource: ResourceBorrowRequest, OwnerID: ownerID}, action)
}

// SeesAllBorrowRequests reports whether listings for id are unfiltered.
func SeesAllBorrowRequests(id Identity) bool {
	return id.Staff()
}
