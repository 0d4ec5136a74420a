package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"bookhub/internal/apperr"
	"bookhub/internal/policy"
)

// Purger removes a user together with everything that references them.
type Purger interface {
	PurgeBorrower(ctx context.Context, id policy.Identity, userID string, deleteUser func(context.Context, sqlx.ExtContext) error) error
}

type Handler struct {
	Service *Service
	Tokens  TokenService
	Auth    *Authenticator
	Purger  Purger
}

func NewHandler(svc *Service, tokens TokenService, purger Purger) *Handler {
	return &Handler{
		Service: svc,
		Tokens:  tokens,
		Auth:    NewAuthenticator(tokens, svc.Repo),
		Purger:  purger,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/logout", TokenAuth(h.Auth, true), h.logout)
	rg.GET("/users/me", TokenAuth(h.Auth, true), h.me)
	rg.DELETE("/users/:id", TokenAuth(h.Auth, true), h.deleteUser)
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	u, err := h.Service.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err, "register failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    u,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	u, err := h.Service.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err, "login failed")
		return
	}

	token, err := h.Tokens.Sign(u)
	if err != nil {
		fail(c, err, "token failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) logout(c *gin.Context) {
	id := IdentityFrom(c)
	if err := h.Service.Logout(c.Request.Context(), id.UserID); err != nil {
		fail(c, err, "logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.Service.Repo.GetByID(c.Request.Context(), IdentityFrom(c).UserID)
	if err != nil || u == nil {
		fail(c, err, "get user failed")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	userID := c.Param("id")
	err := h.Purger.PurgeBorrower(c.Request.Context(), IdentityFrom(c), userID,
		func(ctx context.Context, q sqlx.ExtContext) error {
			return h.Service.Repo.DeleteUser(ctx, q, userID)
		})
	if err != nil {
		fail(c, err, "delete user failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func fail(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[auth] %s: %v", fallback, err)
	}
	c.JSON(status, gin.H{"detail": apperr.Message(err, fallback)})
}
