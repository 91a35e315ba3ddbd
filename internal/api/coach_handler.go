package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/reconcile"
	"forgeai/fitness-agent/internal/service"
)

// CoachHandler serves the coaching loop of the authenticated user on the
// calling device.
type CoachHandler struct {
	coachService   service.CoachService
	profileService service.ProfileService
}

func NewCoachHandler(coachService service.CoachService, profileService service.ProfileService) *CoachHandler {
	return &CoachHandler{
		coachService:   coachService,
		profileService: profileService,
	}
}

// caller returns the device and identity set by the middleware.
func caller(c *gin.Context) (deviceID, userID string, ok bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Failed to get user ID from token")
		return "", "", false
	}
	deviceID, err = getDeviceIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return deviceID, userID, true
}

func (h *CoachHandler) State(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	st, err := h.coachService.State(c.Request.Context(), deviceID, userID)
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

func (h *CoachHandler) Onboard(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	res, err := h.coachService.Onboard(c.Request.Context(), deviceID, userID, req.toProfile())
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusCreated, PlanResponse{
		State:   MapStateToResponse(res.State),
		RawText: res.RawText,
	})
}

func (h *CoachHandler) NextWorkout(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	// the body is optional
	var req NextWorkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}

	res, err := h.coachService.NextWorkout(c.Request.Context(), deviceID, userID, req.Context)
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusOK, PlanResponse{
		State:   MapStateToResponse(res.State),
		RawText: res.RawText,
	})
}

func (h *CoachHandler) Finish(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	var req FinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	res, err := h.coachService.Finish(c.Request.Context(), deviceID, userID, req.Status, req.Feedback, req.Difficulty)
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusOK, FinishResponse{
		State:        MapStateToResponse(res.State),
		Entry:        res.Entry,
		HistorySaved: res.HistorySaved,
	})
}

func (h *CoachHandler) UpdateWeight(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	var req WeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	st, err := h.coachService.UpdateWeight(c.Request.Context(), deviceID, userID, req.Weight)
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapStateToResponse(st))
}

func (h *CoachHandler) History(c *gin.Context) {
	deviceID, userID, ok := caller(c)
	if !ok {
		return
	}

	rows, err := h.coachService.History(c.Request.Context(), deviceID, userID)
	if err != nil {
		abortWithCoachError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *CoachHandler) Profile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Failed to get user ID from token")
		return
	}

	p, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		log.Errorf("get profile %s: %s", userID, err)
		abortWithError(c, http.StatusInternalServerError, "Could not load profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// abortWithCoachError maps coaching errors to HTTP responses.
func abortWithCoachError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, reconcile.ErrInvalidStatus),
		errors.Is(err, reconcile.ErrInvalidDifficulty),
		errors.Is(err, reconcile.ErrInvalidWeight):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOnboardingRequired),
		errors.Is(err, reconcile.ErrNoActiveWorkout),
		errors.Is(err, reconcile.ErrStalePlan),
		errors.Is(err, reconcile.ErrNotOwner):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, agent.ErrRateLimited):
		abortWithError(c, http.StatusTooManyRequests, "The AI service is rate limited, try again shortly")
	case errors.Is(err, agent.ErrParseWorkout):
		log.Errorf("coach: %s", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to parse workout",
			"details": err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusGatewayTimeout, "Agent request timed out")
	case errors.Is(err, agent.ErrUpstreamAuth),
		errors.Is(err, agent.ErrTransport),
		errors.Is(err, agent.ErrEmptyReply):
		log.Errorf("coach: %s", err)
		abortWithError(c, http.StatusBadGateway, "Agent request failed")
	case errors.Is(err, service.ErrWeightNotSaved):
		log.Errorf("coach: %s", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to save weight")
	default:
		log.Errorf("coach: %s", err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
