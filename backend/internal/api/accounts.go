package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/auth"
)

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Account *account.Account `json:"account"`
	Token   string           `json:"token"`
}

func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.Accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, acc)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, acc)
}

func (h *handler) startSession(c *gin.Context, status int, acc *account.Account) {
	token, err := h.Auth.GenerateToken(acc.ID, acc.Name)
	if err != nil {
		h.respondError(c, fmt.Errorf("failed to issue token: %w", err))
		return
	}
	h.Auth.SetCookie(c, token)
	c.JSON(status, sessionResponse{Account: acc, Token: token})
}

func (h *handler) logout(c *gin.Context) {
	auth.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *handler) me(c *gin.Context) {
	acc, err := h.Accounts.Get(c.Request.Context(), auth.AccountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *handler) getAccount(c *gin.Context) {
	acc, err := h.Accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}
