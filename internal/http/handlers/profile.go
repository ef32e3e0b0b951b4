package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/domain/user"
	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type ProfileHandler struct {
	profiles services.ProfileService
}

func NewProfileHandler(profiles services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GET /api/profiles/:user_id
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

// PATCH /api/profiles/:user_id
// body: any subset of { "gpa", "budget", "intended_major", "extracurriculars", "full_name", ... };
// explicit null clears a field.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	var patch user.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	res, err := h.profiles.Update(c.Request.Context(), userID, patch)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/profiles/:user_id/changes?field=gpa&since=2025-01-01T00:00:00Z&limit=20
func (h *ProfileHandler) Changes(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondErr(c, err)
		return
	}
	q := services.ChangeQuery{Field: strings.TrimSpace(c.Query("field")), Limit: limit}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondErr(c, invalidRequest(fmt.Errorf("since must be RFC3339: %w", err)))
			return
		}
		q.Since = since
	}
	rows, err := h.profiles.Changes(c.Request.Context(), userID, q)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"changes": rows})
}
