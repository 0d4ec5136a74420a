package borrow

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bookhub/internal/apperr"
	"bookhub/internal/auth"
	"bookhub/internal/catalog"
	"bookhub/internal/lending"
	"bookhub/internal/policy"
)

const (
	MsgBorrowCreated = "Borrow request created."
	MsgBookCollected = "Book collected successfully."
)

type Handler struct {
	Repo    *Repo
	Books   *catalog.Repo
	Lending *lending.Service
	Auth    *auth.Authenticator
}

func NewHandler(repo *Repo, books *catalog.Repo, svc *lending.Service, authn *auth.Authenticator) *Handler {
	return &Handler{Repo: repo, Books: books, Lending: svc, Auth: authn}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	required := auth.TokenAuth(h.Auth, true)
	optional := auth.TokenAuth(h.Auth, false)

	rg.GET("/library-fund", required, h.fund)
	rg.POST("/library-fund", required, h.fundBorrow)

	rg.GET("/books/:id", optional, h.bookDetail)
	rg.POST("/books/:id", required, h.bookAction)

	rg.GET("/borrow-requests", required, h.list)
	rg.POST("/borrow-requests", required, h.create)
	rg.GET("/borrow-requests/:id", required, h.get)
	rg.PUT("/borrow-requests/:id", required, h.transition)
}

func (h *Handler) fund(c *gin.Context) {
	books, err := h.Books.ListBooks(c.Request.Context(), catalog.ListQuery{})
	if err != nil {
		fail(c, err, "list failed")
		return
	}

	out := make([]catalog.FundEntry, 0, len(books))
	for _, b := range books {
		out = append(out, catalog.NewFundEntry(b))
	}
	c.JSON(http.StatusOK, out)
}

type fundBorrowReq struct {
	BookID int64 `json:"book_id"`
}

func (h *Handler) fundBorrow(c *gin.Context) {
	var req fundBorrowReq
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "book_id required"})
		return
	}

	d, err := h.Lending.Borrow(c.Request.Context(), auth.IdentityFrom(c), req.BookID)
	if err != nil {
		fail(c, err, "borrow failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"borrow_request_id": d.Request.ID})
}

func (h *Handler) bookDetail(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	book, err := h.Books.GetBook(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get failed")
		return
	}
	if book == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": catalog.MsgBookNotFound})
		return
	}

	resp := gin.H{"book": book, "borrow_request": nil}
	if caller := auth.IdentityFrom(c); caller.Authenticated() {
		br, err := h.Repo.LatestForBorrower(c.Request.Context(), id, caller.UserID)
		if err != nil {
			fail(c, err, "get failed")
			return
		}
		if br != nil {
			resp["borrow_request"] = br
		}
	}
	c.JSON(http.StatusOK, resp)
}

type bookActionReq struct {
	Action string `json:"action"`
}

func (h *Handler) bookAction(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req bookActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	caller := auth.IdentityFrom(c)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case string(lending.ActionBorrow):
		d, err := h.Lending.Borrow(c.Request.Context(), caller, id)
		if err != nil {
			fail(c, err, "borrow failed")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"detail": MsgBorrowCreated, "request_id": d.Request.ID})
	case string(lending.ActionCollect):
		if _, err := h.Lending.CollectForBook(c.Request.Context(), caller, id); err != nil {
			fail(c, err, "collect failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"detail": MsgBookCollected})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": lending.MsgInvalidAction})
	}
}

func (h *Handler) list(c *gin.Context) {
	caller := auth.IdentityFrom(c)
	borrower := caller.UserID
	if policy.SeesAllBorrowRequests(caller) {
		borrower = strings.TrimSpace(c.Query("borrower"))
	}

	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.Repo.List(c.Request.Context(), borrower, limit, offset)
	if err != nil {
		fail(c, err, "list failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

type createReq struct {
	Book int64 `json:"book"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Book <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "book required"})
		return
	}

	d, err := h.Lending.Borrow(c.Request.Context(), auth.IdentityFrom(c), req.Book)
	if err != nil {
		fail(c, err, "create failed")
		return
	}
	c.JSON(http.StatusCreated, d.Request)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	br, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "get failed")
		return
	}
	if br == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": lending.MsgRequestNotFound})
		return
	}
	if err := policy.CanReadBorrowRequest(auth.IdentityFrom(c), br.BorrowerID); err != nil {
		fail(c, err, "forbidden")
		return
	}
	c.JSON(http.StatusOK, br)
}

type transitionReq struct {
	Action  string `json:"action"`
	DueDate string `json:"due_date"`
}

func (h *Handler) transition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	action, err := lending.ParseAction(req.Action)
	if err != nil {
		fail(c, err, "invalid action")
		return
	}
	due, err := lending.ParseDueDate(req.DueDate)
	if err != nil {
		fail(c, err, "invalid due_date")
		return
	}

	d, err := h.Lending.Transition(c.Request.Context(), auth.IdentityFrom(c), id, action, lending.Params{DueDate: due})
	if err != nil {
		fail(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, d.Request)
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
		log.Printf("[borrow] %s: %v", fallback, err)
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
