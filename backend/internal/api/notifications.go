package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-backend/backend/internal/auth"
)

func (h *handler) listNotifications(c *gin.Context) {
	list, err := h.Notifications.List(c.Request.Context(), auth.AccountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) markNotificationRead(c *gin.Context) {
	if err := h.Notifications.MarkRead(c.Request.Context(), auth.AccountID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
