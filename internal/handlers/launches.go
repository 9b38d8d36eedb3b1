package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/motheroflaunch/backend/internal/errors"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/util"
)

// GetTodayLaunches returns today's leaderboard. Authenticated callers also
// get the tools they already voted for.
// GET /api/v1/launches/today
func (h *Handlers) GetTodayLaunches(c *gin.Context) {
	ctx := c.Request.Context()
	results, err := h.launches.TodayResults(ctx)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	voted := []string{}
	if user, ok := util.CurrentUser(c); ok {
		ids, err := h.launches.VotedTools(ctx, user.ID, results.Date)
		if err != nil {
			util.RespondWithError(c, err)
			return
		}
		voted = nonNil(ids)
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "voted": voted})
}

// GetLaunchSlots returns the booking calendar
// GET /api/v1/launches/slots?from=YYYY-MM-DD&days=14
func (h *Handlers) GetLaunchSlots(c *gin.Context) {
	days := util.ParseInt(c.Query("days"), 14)
	slots, err := h.launches.ListSlots(c.Request.Context(), c.Query("from"), days)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// GetLaunchResults returns the leaderboard of any day
// GET /api/v1/launches/:date/results
func (h *Handlers) GetLaunchResults(c *gin.Context) {
	results, err := h.launches.Results(c.Request.Context(), c.Param("date"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// StreamLaunches upgrades to the live leaderboard websocket
// GET /api/v1/launches/live
func (h *Handlers) StreamLaunches(c *gin.Context) {
	if date := c.Query("date"); date != "" {
		if _, err := launch.ParseDate(date); err != nil {
			util.RespondValidationError(c, "date", "must be YYYY-MM-DD")
			return
		}
	}
	if h.live == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("live updates"))
		return
	}
	h.live.Stream(c)
}

type bookLaunchRequest struct {
	Date string `json:"date" binding:"required"`
}

// BookLaunch reserves a launch day for a tool
// POST /api/v1/tools/:id/launch
func (h *Handlers) BookLaunch(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req bookLaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "date", "is required")
		return
	}

	booking, err := h.launches.Book(c.Request.Context(), user, c.Param("id"), req.Date)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// CancelLaunch releases a tool's booking before its day starts
// DELETE /api/v1/tools/:id/launch
func (h *Handlers) CancelLaunch(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if err := h.launches.CancelBooking(c.Request.Context(), user, c.Param("id")); err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "launch canceled"})
}

// CastVote upvotes a tool launching today
// POST /api/v1/tools/:id/vote
func (h *Handlers) CastVote(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	result, err := h.launches.CastVote(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetractVote removes the caller's vote
// DELETE /api/v1/tools/:id/vote
func (h *Handlers) RetractVote(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	result, err := h.launches.RetractVote(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
