package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"bookhub/internal/apperr"
	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

func (r *Repo) ListAuthors(ctx context.Context) ([]models.Author, error) {
	out := []models.Author{}
	if err := sqlx.SelectContext(ctx, r.DB, &out, `SELECT id, name, bio FROM authors ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return out, nil
}

func (r *Repo) GetAuthor(ctx context.Context, id int64) (*models.Author, error) {
	var a models.Author
	if err := sqlx.GetContext(ctx, r.DB, &a, r.DB.Rebind(`SELECT id, name, bio FROM authors WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get author: %w", err)
	}
	return &a, nil
}

func (r *Repo) CreateAuthor(ctx context.Context, in AuthorInput) (*models.Author, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}

	a := models.Author{Name: in.Name, Bio: in.Bio}
	row := r.DB.QueryRowxContext(ctx, r.DB.Rebind(`INSERT INTO authors (name, bio) VALUES (?, ?) RETURNING id`), a.Name, a.Bio)
	if err := row.Scan(&a.ID); err != nil {
		return nil, fmt.Errorf("insert author: %w", err)
	}
	return &a, nil
}

func (r *Repo) UpdateAuthor(ctx context.Context, id int64, in AuthorInput) (*models.Author, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE authors SET name = ?, bio = ? WHERE id = ?`), in.Name, in.Bio, id)
	if err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound(MsgAuthorNotFound)
	}
	return &models.Author{ID: id, Name: in.Name, Bio: in.Bio}, nil
}

func (r *Repo) DeleteAuthor(ctx context.Context, id int64) error {
	return deleteWithLinks(ctx, r.DB, "authors", "book_authors", "author_id", id, MsgAuthorNotFound)
}

// FindOrCreateAuthor looks an author up by name, ignoring case. Used by the
// importer.
func (r *Repo) FindOrCreateAuthor(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	var id int64
	err := sqlx.GetContext(ctx, r.DB, &id, r.DB.Rebind(`SELECT id FROM authors WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`), name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find author: %w", err)
	}
	a, err := r.CreateAuthor(ctx, AuthorInput{Name: name})
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

func (r *Repo) ListGenres(ctx context.Context) ([]models.Genre, error) {
	out := []models.Genre{}
	if err := sqlx.SelectContext(ctx, r.DB, &out, `SELECT id, name FROM genres ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return out, nil
}

func (r *Repo) GetGenre(ctx context.Context, id int64) (*models.Genre, error) {
	var g models.Genre
	if err := sqlx.GetContext(ctx, r.DB, &g, r.DB.Rebind(`SELECT id, name FROM genres WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get genre: %w", err)
	}
	return &g, nil
}

func (r *Repo) CreateGenre(ctx context.Context, in GenreInput) (*models.Genre, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}

	g := models.Genre{Name: in.Name}
	row := r.DB.QueryRowxContext(ctx, r.DB.Rebind(`INSERT INTO genres (name) VALUES (?) RETURNING id`), g.Name)
	if err := row.Scan(&g.ID); err != nil {
		return nil, fmt.Errorf("insert genre: %w", err)
	}
	return &g, nil
}

func (r *Repo) UpdateGenre(ctx context.Context, id int64, in GenreInput) (*models.Genre, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(&in); err != nil {
		return nil, err
	}

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE genres SET name = ? WHERE id = ?`), in.Name, id)
	if err != nil {
		return nil, fmt.Errorf("update genre: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound(MsgGenreNotFound)
	}
	return &models.Genre{ID: id, Name: in.Name}, nil
}

func (r *Repo) DeleteGenre(ctx context.Context, id int64) error {
	return deleteWithLinks(ctx, r.DB, "genres", "book_genres", "genre_id", id, MsgGenreNotFound)
}

func (r *Repo) FindOrCreateGenre(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	var id int64
	err := sqlx.GetContext(ctx, r.DB, &id, r.DB.Rebind(`SELECT id FROM genres WHERE LOWER(name) = LOWER(?) ORDER BY id LIMIT 1`), name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find genre: %w", err)
	}
	g, err := r.CreateGenre(ctx, GenreInput{Name: name})
	if err != nil {
		return 0, err
	}
	return g.ID, nil
}

func deleteWithLinks(ctx context.Context, db *sqlx.DB, table, linkTable, linkColumn string, id int64, notFound string) error {
	return database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+linkTable+` WHERE `+linkColumn+` = ?`), id); err != nil {
			return fmt.Errorf("delete %s links: %w", table, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound(notFound)
		}
		return nil
	})
}
