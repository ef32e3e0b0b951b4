package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/agents"
	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/apierr"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/reports
// body: { "agent_name": "visa_requirements", "user_id": 1, "payload": {...}, "timestamp": "..." }
// An authenticated agent may omit agent_name but may not submit as another agent.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req struct {
		AgentName string          `json:"agent_name"`
		UserID    uint            `json:"user_id"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp *time.Time      `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	agentName, err := resolveAgent(c, req.AgentName)
	if err != nil {
		respondErr(c, err)
		return
	}
	in := services.SubmitReportInput{
		AgentName: agentName,
		UserID:    req.UserID,
		Payload:   datatypes.JSON(req.Payload),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	res, err := h.reports.Submit(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /api/reports/:id/verify
func (h *ReportHandler) Verify(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		respondErr(c, err)
		return
	}
	r, err := h.reports.MarkVerified(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": r})
}

// GET /api/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		respondErr(c, err)
		return
	}
	r, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": r})
}

// GET /api/users/:user_id/reports
func (h *ReportHandler) ListByUser(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	rows, err := h.reports.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reports": rows})
}

// GET /api/users/:user_id/conflicts
func (h *ReportHandler) Conflicts(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	rows, err := h.reports.Conflicts(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"conflicts": rows})
}

func resolveAgent(c *gin.Context, claimed string) (string, error) {
	authed := ctxutil.AgentFrom(c.Request.Context())
	if authed == "" {
		return claimed, nil
	}
	if claimed == "" {
		return authed, nil
	}
	if agents.NormalizeAgentName(claimed) != authed {
		return "", apierr.Forbidden("agent_mismatch", fmt.Errorf("token for %q cannot submit as %q", authed, claimed))
	}
	return authed, nil
}
