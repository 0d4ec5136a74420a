package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool      `json:"is_superuser" db:"is_superuser"`
	TokenVersion int       `json:"-" db:"token_version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (u *User) Identity() policy.Identity {
	return policy.Identity{
		UserID:      u.ID,
		Username:    u.Username,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}

const userColumns = `id, username, first_name, last_name, password_hash, is_staff, is_superuser, token_version, created_at`

type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO users (id, username, first_name, last_name, password_hash, is_staff, is_superuser, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Username, u.FirstName, u.LastName, u.PasswordHash, u.IsStaff, u.IsSuperuser, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	if err := sqlx.GetContext(ctx, r.DB, &u, r.DB.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.get(ctx, `username = ?`, strings.TrimSpace(username))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = ?
	`), id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump token version rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("bump token version: user not found")
	}
	return nil
}

// UpdateRole sets the staff flags and password of an existing user.
func (r *Repo) UpdateRole(ctx context.Context, id, passwordHash string, staff, superuser bool) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		UPDATE users
		SET password_hash = ?, is_staff = ?, is_superuser = ?, token_version = token_version + 1
		WHERE id = ?
	`), passwordHash, staff, superuser, id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// DeleteUser runs on the caller's transaction so it can be combined with the
// removal of the user's borrow requests.
func (r *Repo) DeleteUser(ctx context.Context, q sqlx.ExtContext, id string) error {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(MsgUserNotFound)
	}
	return nil
}
