package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type feedAngleRequest struct {
	FeedAngle *float64 `json:"feed_angle" binding:"required"`
}

// GetFeedAngle handles GET /api/settings/feed_angle.
func (h *Handler) GetFeedAngle(c *gin.Context) {
	angle, err := h.feeder.FeedAngle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed_angle": angle})
}

// PutFeedAngle handles PUT /api/settings/feed_angle.
func (h *Handler) PutFeedAngle(c *gin.Context) {
	var req feedAngleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.FeedAngle <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed_angle must be positive"})
		return
	}

	if err := h.feeder.SetFeedAngle(c.Request.Context(), *req.FeedAngle); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed_angle": *req.FeedAngle})
}
