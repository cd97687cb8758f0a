package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/auth"
	"social-backend/backend/internal/social"
	apperrors "social-backend/backend/pkg/errors"
)

type respondRequest struct {
	Status social.Status `json:"status" binding:"required"`
}

type suggestionResponse struct {
	Account       account.Summary `json:"account"`
	MutualFriends int             `json:"mutualFriends"`
}

func (h *handler) listFriends(c *gin.Context) {
	edges, err := h.Social.ListEdges(c.Request.Context(), auth.AccountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

func (h *handler) incomingRequests(c *gin.Context) {
	edges, err := h.Social.IncomingRequests(c.Request.Context(), auth.AccountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edges)
}

func (h *handler) sendRequest(c *gin.Context) {
	edge, err := h.Social.SendRequest(c.Request.Context(), auth.AccountID(c), c.Param("peerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (h *handler) respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edge, err := h.Social.Respond(c.Request.Context(), auth.AccountID(c), c.Param("peerId"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

func (h *handler) removeFriend(c *gin.Context) {
	if err := h.Social.Remove(c.Request.Context(), auth.AccountID(c), c.Param("peerId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *handler) suggestions(c *gin.Context) {
	if h.Suggester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sugestões de amizade indisponíveis"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondError(c, apperrors.NewInvalidInput("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	ranked, err := h.Suggester.SuggestFriends(ctx, auth.AccountID(c), limit)
	if err != nil {
		h.log.Warn("Friend suggestions failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sugestões de amizade indisponíveis"})
		return
	}

	ids := make([]string, 0, len(ranked))
	for _, s := range ranked {
		ids = append(ids, s.AccountID)
	}
	summaries, err := h.Accounts.Summaries(ctx, ids)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]suggestionResponse, 0, len(ranked))
	for _, s := range ranked {
		summary, ok := summaries[s.AccountID]
		if !ok {
			continue
		}
		out = append(out, suggestionResponse{Account: summary, MutualFriends: s.MutualFriends})
	}
	c.JSON(http.StatusOK, out)
}
