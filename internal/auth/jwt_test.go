package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := TokenService{Secret: []byte("s3cret"), Issuer: "bookhub", TTL: time.Minute}
	tok, err := ts.Sign(&User{ID: "u1", Username: "alice", TokenVersion: 3})
	require.NoError(t, err)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Nil(t, claims.ExpiresAt)

	other := TokenService{Secret: []byte("other"), Issuer: "bookhub"}
	_, err = other.Parse(tok)
	assert.Error(t, err)

	wrongIssuer := TokenService{Secret: []byte("s3cret"), Issuer: "someone-else"}
	_, err = wrongIssuer.Parse(tok)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	current := issued

	ts := TokenService{
		Secret: []byte("s3cret"),
		Issuer: "bookhub",
		TTL:    time.Minute,
		Now:    func() time.Time { return current },
	}
	tok, err := ts.Sign(&User{ID: "u1"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		age       time.Duration
		superuser bool
		want      bool
	}{
		{name: "fresh", age: 30 * time.Second, want: false},
		{name: "exactly ttl", age: time.Minute, want: false},
		{name: "two minutes old", age: 2 * time.Minute, want: true},
		{name: "two minutes old superuser", age: 2 * time.Minute, superuser: true, want: false},
		{name: "a year old superuser", age: 365 * 24 * time.Hour, superuser: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current = issued.Add(tt.age)
			claims, err := ts.Parse(tok)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ts.Expired(claims, tt.superuser))
		})
	}
}
