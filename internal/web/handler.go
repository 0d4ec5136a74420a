// Package web is the session-authenticated form surface. Every POST ends in a
// redirect and reports its outcome through a one-shot flash cookie.
package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookhub/internal/apperr"
	"bookhub/internal/auth"
	"bookhub/internal/catalog"
	"bookhub/internal/lending"
)

const (
	pathLogin          = "/login"
	pathBooks          = "/books"
	pathBorrowRequests = "/borrow-requests"
)

type Handler struct {
	Users    *auth.Service
	Sessions auth.TokenService
	Auth     *auth.Authenticator
	Books    *catalog.Repo
	Lending  *lending.Service
}

func NewHandler(users *auth.Service, sessions auth.TokenService, books *catalog.Repo, svc *lending.Service) *Handler {
	return &Handler{
		Users:    users,
		Sessions: sessions,
		Auth:     auth.NewAuthenticator(sessions, users.Repo),
		Books:    books,
		Lending:  svc,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("", auth.SessionAuth(h.Auth))

	g.POST("/login", h.login)
	g.POST("/register", h.register)
	g.POST("/logout", h.logout)
	g.GET("/flash", h.flash)

	g.POST("/books/:id", h.bookDetail)
	g.POST("/books/:id/borrow", h.borrow)
	g.POST("/borrow-requests/:id/:action", h.transition)
}

func redirect(c *gin.Context, to string) {
	c.Redirect(http.StatusFound, to)
}

// requireLogin redirects anonymous callers to the login page.
func requireLogin(c *gin.Context) bool {
	if auth.IdentityFrom(c).Authenticated() {
		return true
	}
	setFlash(c, LevelError, auth.MsgNoCredentials)
	redirect(c, pathLogin)
	return false
}

func (h *Handler) login(c *gin.Context) {
	var in auth.LoginInput
	_ = c.ShouldBind(&in)

	u, err := h.Users.Login(c.Request.Context(), in)
	if err != nil {
		flashErr(c, err)
		redirect(c, pathLogin)
		return
	}

	token, err := h.Sessions.Sign(u)
	if err != nil {
		flashErr(c, err)
		redirect(c, pathLogin)
		return
	}
	auth.SetSession(c, token, int(h.Sessions.TTL.Seconds()))
	setFlash(c, LevelSuccess, fmt.Sprintf("Welcome, %s.", u.Username))
	redirect(c, pathBooks)
}

func (h *Handler) register(c *gin.Context) {
	var in auth.RegisterInput
	_ = c.ShouldBind(&in)

	if _, err := h.Users.Register(c.Request.Context(), in); err != nil {
		flashErr(c, err)
		redirect(c, "/register")
		return
	}
	setFlash(c, LevelSuccess, "Registration successful!")
	redirect(c, pathLogin)
}

func (h *Handler) logout(c *gin.Context) {
	if id := auth.IdentityFrom(c); id.Authenticated() {
		if err := h.Users.Logout(c.Request.Context(), id.UserID); err != nil {
			log.Printf("[web] logout %s: %v", id.UserID, err)
		}
	}
	auth.ClearSession(c)
	redirect(c, pathLogin)
}

func (h *Handler) flash(c *gin.Context) {
	f, ok := popFlash(c)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, f)
}

// bookDetail handles the borrow and collect buttons of the book page.
func (h *Handler) bookDetail(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	back := pathBooks + "/" + strconv.FormatInt(id, 10)
	if !requireLogin(c) {
		return
	}

	caller := auth.IdentityFrom(c)
	switch {
	case hasField(c, "borrow"):
		_, err := h.Lending.Borrow(c.Request.Context(), caller, id)
		switch {
		case err == nil:
			setFlash(c, LevelSuccess, "Your borrow request has been submitted.")
		case apperr.Message(err, "") == lending.MsgAlreadyRequested:
			setFlash(c, LevelError, "You already have a borrow request for this book.")
		default:
			flashErr(c, err)
		}
	case hasField(c, "collect"):
		if _, err := h.Lending.CollectForBook(c.Request.Context(), caller, id); err != nil {
			flashErr(c, err)
		} else {
			setFlash(c, LevelSuccess, "The book has been collected.")
		}
	default:
		setFlash(c, LevelError, lending.MsgInvalidAction)
	}
	redirect(c, back)
}

func (h *Handler) borrow(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if !requireLogin(c) {
		return
	}

	book, err := h.Books.GetBook(c.Request.Context(), id)
	if err != nil || book == nil {
		if err == nil {
			err = apperr.NotFound(catalog.MsgBookNotFound)
		}
		flashErr(c, err)
		redirect(c, pathBooks)
		return
	}

	_, err = h.Lending.Borrow(c.Request.Context(), auth.IdentityFrom(c), id)
	switch {
	case err == nil:
		setFlash(c, LevelSuccess, fmt.Sprintf("You have successfully requested to borrow '%s'.", book.Title))
	case apperr.Message(err, "") == lending.MsgAlreadyRequested:
		setFlash(c, LevelWarning, fmt.Sprintf("You have already requested to borrow '%s'.", book.Title))
	default:
		flashErr(c, err)
	}
	redirect(c, pathBooks)
}

var transitionDone = map[lending.Action]string{
	lending.ActionApprove:  "The borrow request has been approved.",
	lending.ActionCollect:  "The borrow request has been collected.",
	lending.ActionComplete: "The borrow request has been completed.",
	lending.ActionDecline:  "The borrow request has been declined.",
}

func (h *Handler) transition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if !requireLogin(c) {
		return
	}

	err := func() error {
		action, err := lending.ParseAction(c.Param("action"))
		if err != nil {
			return err
		}
		due, err := lending.ParseDueDate(c.PostForm("due_date"))
		if err != nil {
			return err
		}
		_, err = h.Lending.Transition(c.Request.Context(), auth.IdentityFrom(c), id, action, lending.Params{DueDate: due})
		if err != nil {
			return err
		}
		setFlash(c, LevelSuccess, transitionDone[action])
		return nil
	}()
	if err != nil {
		flashErr(c, err)
	}
	redirect(c, pathBorrowRequests)
}

// hasField reports whether a form field was submitted, even empty.
func hasField(c *gin.Context, name string) bool {
	if err := c.Request.ParseForm(); err != nil {
		return false
	}
	_, ok := c.Request.PostForm[name]
	return ok
}

func flashErr(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Printf("[web] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	setFlash(c, LevelError, apperr.Message(err, "Something went wrong."))
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.String(http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}
