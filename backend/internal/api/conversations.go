package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-backend/backend/internal/auth"
	apperrors "social-backend/backend/pkg/errors"
)

type openConversationRequest struct {
	PeerID string `json:"peerId" binding:"required"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *handler) listConversations(c *gin.Context) {
	convs, err := h.Ledger.ListConversations(c.Request.Context(), auth.AccountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *handler) openConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.Ledger.GetOrCreateConversation(c.Request.Context(), auth.AccountID(c), req.PeerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if thread.Created {
		status = http.StatusCreated
	}
	c.JSON(status, thread)
}

func (h *handler) getConversation(c *gin.Context) {
	thread, err := h.Ledger.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !thread.Conversation.HasParticipant(auth.AccountID(c)) {
		h.respondError(c, apperrors.NewNotFound("conversation", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *handler) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Ledger.PostMessage(c.Request.Context(), c.Param("id"), auth.AccountID(c), req.Content)
	if err != nil {
		if isPartialWrite(err) && msg != nil {
			// the message is durable; hand it back so the client does not resend it
			h.log.Error("Message stored but conversation not updated",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage, "message": msg})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handler) rebuildConversation(c *gin.Context) {
	ctx := c.Request.Context()
	conv, err := h.Ledger.GetConversation(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !conv.HasParticipant(auth.AccountID(c)) {
		h.respondError(c, apperrors.NewNotFound("conversation", conv.ID))
		return
	}

	conv, err = h.Ledger.RebuildLastMessage(ctx, conv.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
