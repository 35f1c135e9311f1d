package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/model"
)

// scheduleResponse is a schedule joined with its live trigger's next fire
// time. NextFeeding is null when the schedule has no live trigger.
type scheduleResponse struct {
	model.Schedule
	Display     string     `json:"display"`
	NextFeeding *time.Time `json:"next_feeding"`
}

func toScheduleResponse(rt feeder.ScheduleRuntime) scheduleResponse {
	return scheduleResponse{
		Schedule:    rt.Schedule,
		Display:     rt.Schedule.String(),
		NextFeeding: rt.NextFire,
	}
}

type schedulePayload struct {
	Time *model.TimeOfDay `json:"time" binding:"required"`
}

// GetScheduledFeedings handles GET /api/scheduled_feedings: the upcoming
// feeding times across all schedules, ascending.
func (h *Handler) GetScheduledFeedings(c *gin.Context) {
	times := h.feeder.NextFeedingTimes()
	resp := make([]gin.H, len(times))
	for i, t := range times {
		resp[i] = gin.H{"scheduled_time": t}
	}
	c.JSON(http.StatusOK, resp)
}

// GetSchedules handles GET /api/schedules: persisted schedules with next
// run times, ordered by time of day.
func (h *Handler) GetSchedules(c *gin.Context) {
	runtimes, err := h.feeder.ListSchedulesWithRuntimes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]scheduleResponse, len(runtimes))
	for i, rt := range runtimes {
		resp[i] = toScheduleResponse(rt)
	}
	c.JSON(http.StatusOK, resp)
}

// PostSchedule handles POST /api/schedules: add a daily feeding schedule.
func (h *Handler) PostSchedule(c *gin.Context) {
	var req schedulePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt, err := h.feeder.AddScheduledFeeding(c.Request.Context(), *req.Time)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toScheduleResponse(rt))
}

// PutSchedule handles PUT /api/schedules/:id: change a schedule's time.
func (h *Handler) PutSchedule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	var req schedulePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt, err := h.feeder.UpdateScheduledFeeding(c.Request.Context(), id, *req.Time)
	if errors.Is(err, feeder.ErrScheduleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(rt))
}

// DeleteSchedule handles DELETE /api/schedules/:id. The response carries
// the removed schedule and its last known next-run time.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	rt, err := h.feeder.RemoveScheduledFeeding(c.Request.Context(), id)
	if errors.Is(err, feeder.ErrScheduleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toScheduleResponse(rt))
}
