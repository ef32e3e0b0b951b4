package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type AgentHandler struct {
	runner    *services.AgentRunner
	reference services.ReferenceService
}

func NewAgentHandler(runner *services.AgentRunner, reference services.ReferenceService) *AgentHandler {
	return &AgentHandler{runner: runner, reference: reference}
}

// POST /api/users/:user_id/agents/visa-check
func (h *AgentHandler) VisaCheck(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	res, err := h.runner.Run(c.Request.Context(), userID, services.VisaCheckTask(h.reference))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"run": res})
}
