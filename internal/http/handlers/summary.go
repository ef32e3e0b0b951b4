package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type SummaryHandler struct {
	summaries services.SummaryService
}

func NewSummaryHandler(summaries services.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// GET /api/users/:user_id/summary
func (h *SummaryHandler) Get(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	sum, err := h.summaries.Get(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": sum})
}

// POST /api/users/:user_id/stage
// body: { "stage": "Application Preparation", "progress_score": 85.5, "stress_flags": {...}, "advice": "..." }
func (h *SummaryHandler) UpdateStage(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	var in services.StageUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	in.UserID = userID
	sum, err := h.summaries.UpdateStage(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": sum})
}

// GET /api/users/:user_id/next-steps
func (h *SummaryHandler) NextSteps(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	steps, err := h.summaries.NextSteps(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"next_steps": steps})
}
