package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/auth"
	"bloodlink/backend/internal/models"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterUser creates an account and returns a token for it.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument.New("name, a valid email and a password of at least 6 characters required"))
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.Users.GetUserByEmail(ctx, email); err == nil {
		h.fail(c, apperr.InvalidArgument.New("email already registered"))
		return
	} else if !apperr.NotFound.Has(err) {
		h.fail(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Roles:        pq.StringArray{models.RoleUser},
	}
	if err := h.Users.CreateUser(ctx, user); err != nil {
		h.fail(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login exchanges email and password for a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument.New("email and password required"))
		return
	}

	user, err := h.Users.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	switch {
	case apperr.NotFound.Has(err):
		h.fail(c, apperr.Unauthorized.New("invalid credentials"))
		return
	case err != nil:
		h.fail(c, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.fail(c, apperr.Unauthorized.New("invalid credentials"))
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.Tokens.Issue(user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"token":   token,
		"user":    user.Profile(),
		"role":    user.PrimaryRole(),
	})
}
