package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-backend/backend/internal/auth"
)

type createPublicationRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Image       string `json:"image"`
}

type commentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func (h *handler) createPublication(c *gin.Context) {
	var req createPublicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pub, err := h.Publications.Create(c.Request.Context(), auth.AccountID(c), req.Title, req.Description, req.Image)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pub)
}

func (h *handler) getPublication(c *gin.Context) {
	pub, err := h.Publications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

func (h *handler) listPublications(c *gin.Context) {
	pubs, err := h.Publications.ListByOwner(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pubs)
}

func (h *handler) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.Publications.AddComment(c.Request.Context(), c.Param("id"), auth.AccountID(c), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
