package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/agent"
)

const rateLimitedDetails = "The AI service is currently busy (Rate Limit). Please wait a moment and try again."

// AgentHandler forwards raw prompts to the language model for clients that
// run the coaching loop themselves.
type AgentHandler struct {
	completer agent.Completer
}

func NewAgentHandler(completer agent.Completer) *AgentHandler {
	return &AgentHandler{completer: completer}
}

func (h *AgentHandler) Ask(c *gin.Context) {
	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		abortWithError(c, http.StatusBadRequest, "Prompt is required")
		return
	}

	text, err := h.completer.Complete(c.Request.Context(), req.Prompt)
	if err != nil {
		log.Errorf("agent proxy: %s", err)
		switch {
		case errors.Is(err, agent.ErrUpstreamAuth):
			abortWithError(c, http.StatusBadRequest, "Invalid API Key. Please check your configuration.")
		case errors.Is(err, agent.ErrRateLimited):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Usage Limit Exceeded",
				"details": rateLimitedDetails,
			})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Agent Request Failed",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}
