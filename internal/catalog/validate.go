package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bookhub/internal/apperr"
	"bookhub/pkg/models"
)

const MsgFuturePublication = "Publication date cannot be in the future."

var validate = validator.New()

type BookInput struct {
	Title         string      `json:"title" validate:"required,max=255"`
	Summary       string      `json:"summary" validate:"required"`
	ISBN          string      `json:"isbn" validate:"required,max=13"`
	PublishedDate models.Date `json:"published_date"`
	Publisher     string      `json:"publisher" validate:"required,max=255"`
	Genres        []int64     `json:"genres"`
	Authors       []int64     `json:"authors"`
}

type AuthorInput struct {
	Name string `json:"name" validate:"required,max=255"`
	Bio  string `json:"bio"`
}

type GenreInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Genres = dedupe(in.Genres)
	in.Authors = dedupe(in.Authors)
}

// check validates a book write. now is the reference for the publication
// date rule.
func (in *BookInput) check(now time.Time) error {
	in.normalize()
	if err := checkStruct(in); err != nil {
		return err
	}
	if in.PublishedDate.IsZero() {
		return apperr.Validation("published_date: required")
	}
	if in.PublishedDate.After(now) {
		return apperr.Validation(MsgFuturePublication)
	}
	return nil
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate: %w", err)
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", jsonName(fe.Field()), msg))
	}
	return apperr.Validation(strings.Join(parts, "; "))
}

func jsonName(field string) string {
	switch field {
	case "ISBN":
		return "isbn"
	case "PublishedDate":
		return "published_date"
	default:
		return strings.ToLower(field)
	}
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
