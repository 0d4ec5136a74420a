package catalog

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bookhub/internal/apperr"
	"bookhub/internal/auth"
	"bookhub/internal/policy"
)

type Handler struct {
	Repo *Repo
	Auth *auth.Authenticator
}

func NewHandler(repo *Repo, authn *auth.Authenticator) *Handler {
	return &Handler{Repo: repo, Auth: authn}
}

// RegisterRoutes mounts catalog CRUD. GET /books/:id is the book detail view
// and lives with the borrow handlers.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	optional := auth.TokenAuth(h.Auth, false)

	rg.GET("/books", optional, h.listBooks)
	rg.POST("/books", optional, h.createBook)
	rg.PUT("/books/:id", optional, h.updateBook)
	rg.DELETE("/books/:id", optional, h.deleteBook)

	rg.GET("/authors", optional, h.listAuthors)
	rg.GET("/authors/:id", optional, h.getAuthor)
	rg.POST("/authors", optional, h.createAuthor)
	rg.PUT("/authors/:id", optional, h.updateAuthor)
	rg.DELETE("/authors/:id", optional, h.deleteAuthor)

	rg.GET("/genres", optional, h.listGenres)
	rg.GET("/genres/:id", optional, h.getGenre)
	rg.POST("/genres", optional, h.createGenre)
	rg.PUT("/genres/:id", optional, h.updateGenre)
	rg.DELETE("/genres/:id", optional, h.deleteGenre)
}

// allow writes the error response and returns false when the caller may not
// perform action on res.
func allow(c *gin.Context, res policy.Resource, action policy.Action) bool {
	if err := policy.Authorize(auth.IdentityFrom(c), policy.Target{Resource: res}, action); err != nil {
		fail(c, err, "forbidden")
		return false
	}
	return true
}

func (h *Handler) listBooks(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if s := c.Query("available"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			q.Available = &b
		}
	}

	total, err := h.Repo.CountBooks(c.Request.Context(), q)
	if err != nil {
		fail(c, err, "count failed")
		return
	}
	items, err := h.Repo.ListBooks(c.Request.Context(), q)
	if err != nil {
		fail(c, err, "list failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) createBook(c *gin.Context) {
	if !allow(c, policy.ResourceBook, policy.ActionCreate) {
		return
	}
	var in BookInput
	if !bind(c, &in) {
		return
	}

	b, err := h.Repo.CreateBook(c.Request.Context(), in)
	if err != nil {
		fail(c, err, "create failed")
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) updateBook(c *gin.Context) {
	if !allow(c, policy.ResourceBook, policy.ActionUpdate) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in BookInput
	if !bind(c, &in) {
		return
	}

	b, err := h.Repo.UpdateBook(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) deleteBook(c *gin.Context) {
	if !allow(c, policy.ResourceBook, policy.ActionDelete) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteBook(c.Request.Context(), id); err != nil {
		fail(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAuthors(c *gin.Context) {
	items, err := h.Repo.ListAuthors(c.Request.Context())
	if err != nil {
		fail(c, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getAuthor(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := h.Repo.GetAuthor(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get failed")
		return
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": MsgAuthorNotFound})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) createAuthor(c *gin.Context) {
	if !allow(c, policy.ResourceAuthor, policy.ActionCreate) {
		return
	}
	var in AuthorInput
	if !bind(c, &in) {
		return
	}
	a, err := h.Repo.CreateAuthor(c.Request.Context(), in)
	if err != nil {
		fail(c, err, "create failed")
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) updateAuthor(c *gin.Context) {
	if !allow(c, policy.ResourceAuthor, policy.ActionUpdate) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in AuthorInput
	if !bind(c, &in) {
		return
	}
	a, err := h.Repo.UpdateAuthor(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) deleteAuthor(c *gin.Context) {
	if !allow(c, policy.ResourceAuthor, policy.ActionDelete) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteAuthor(c.Request.Context(), id); err != nil {
		fail(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listGenres(c *gin.Context) {
	items, err := h.Repo.ListGenres(c.Request.Context())
	if err != nil {
		fail(c, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getGenre(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	g, err := h.Repo.GetGenre(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get failed")
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": MsgGenreNotFound})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) createGenre(c *gin.Context) {
	if !allow(c, policy.ResourceGenre, policy.ActionCreate) {
		return
	}
	var in GenreInput
	if !bind(c, &in) {
		return
	}
	g, err := h.Repo.CreateGenre(c.Request.Context(), in)
	if err != nil {
		fail(c, err, "create failed")
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) updateGenre(c *gin.Context) {
	if !allow(c, policy.ResourceGenre, policy.ActionUpdate) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in GenreInput
	if !bind(c, &in) {
		return
	}
	g, err := h.Repo.UpdateGenre(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) deleteGenre(c *gin.Context) {
	if !allow(c, policy.ResourceGenre, policy.ActionDelete) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.Repo.DeleteGenre(c.Request.Context(), id); err != nil {
		fail(c, err, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return false
	}
	return true
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func fail(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[catalog] %s: %v", fallback, err)
	}
	c.JSON(status, gin.H{"detail": apperr.Message(err, fallback)})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
