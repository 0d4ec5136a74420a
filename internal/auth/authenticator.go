package auth

import (
	"context"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
)

const (
	MsgNoCredentials = "Authentication credentials were not provided."
	MsgInvalidToken  = "Invalid token."
	MsgTokenExpired  = "Token has expired"
	MsgUserNotFound  = "User not found."
)

// Authenticator turns a raw token into an Identity. The current user row is
// the source of truth for roles and revocation.
type Authenticator struct {
	Tokens TokenService
	Repo   *Repo
}

func NewAuthenticator(tokens TokenService, repo *Repo) *Authenticator {
	return &Authenticator{Tokens: tokens, Repo: repo}
}

func (a *Authenticator) Authenticate(ctx context.Context, raw string) (policy.Identity, error) {
	claims, err := a.Tokens.Parse(raw)
	if err != nil {
		return policy.Anonymous(), apperr.Unauthorized(MsgInvalidToken)
	}

	u, err := a.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return policy.Anonymous(), err
	}
	if u == nil || u.TokenVersion != claims.TokenVersion {
		return policy.Anonymous(), apperr.Unauthorized(MsgInvalidToken)
	}
	if a.Tokens.Expired(claims, u.IsSuperuser) {
		return policy.Anonymous(), apperr.Unauthorized(MsgTokenExpired)
	}
	return u.Identity(), nil
}
