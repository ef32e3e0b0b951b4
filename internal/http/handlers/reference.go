package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type ReferenceHandler struct {
	reference services.ReferenceService
}

func NewReferenceHandler(reference services.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{reference: reference}
}

// GET /api/reference/requirements?university=MIT&program=EECS
func (h *ReferenceHandler) Requirements(c *gin.Context) {
	out, err := h.reference.GetRequirements(c.Request.Context(), c.Query("university"), c.Query("program"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/reference/visa?citizenship=India&destination=Germany
func (h *ReferenceHandler) Visa(c *gin.Context) {
	out, err := h.reference.GetVisa(c.Request.Context(), c.Query("citizenship"), c.Query("destination"))
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}
