package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/model"
)

// feedingResponse is a feeding plus its derived display strings. The
// message is computed from the fed timestamp's presence, never stored.
type feedingResponse struct {
	model.Feeding
	Date    string `json:"date"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

func toFeedingResponse(f model.Feeding) feedingResponse {
	return feedingResponse{
		Feeding: f,
		Date:    f.DateDisplay(),
		Time:    f.TimeDisplay(),
		Message: f.MessageDisplay(),
	}
}

// PostFeeding handles POST /api/feedings: feed the fish now. The ledger
// entry is created before the response goes out; the actuation itself runs
// in the background, so a 202 does not mean the fish have eaten yet.
func (h *Handler) PostFeeding(c *gin.Context) {
	feeding, err := h.feeder.Feed(c.Request.Context(), feeder.AsyncRunner{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, toFeedingResponse(feeding))
}

// GetFeedings handles GET /api/feedings?limit=&since=: the bounded recent
// feeding log, newest first.
func (h *Handler) GetFeedings(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'since' timestamp, use RFC3339"})
			return
		}
		since = &parsed
	}

	feedings, err := h.feeder.ListFeedings(c.Request.Context(), limit, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]feedingResponse, len(feedings))
	for i, f := range feedings {
		resp[i] = toFeedingResponse(f)
	}
	c.JSON(http.StatusOK, resp)
}
