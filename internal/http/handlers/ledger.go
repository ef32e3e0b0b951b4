package handlers

import (
	"github.com/gin-gonic/gin"

	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

type LedgerHandler struct {
	ledger services.LedgerService
}

func NewLedgerHandler(ledger services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// POST /api/ledger/open
// body: { "user_id": 1, "initial_grant": 10000 }; omit initial_grant for the default
func (h *LedgerHandler) Open(c *gin.Context) {
	var req struct {
		UserID       uint   `json:"user_id"`
		InitialGrant *int64 `json:"initial_grant"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	l, created, err := h.ledger.Open(c.Request.Context(), req.UserID, req.InitialGrant)
	if err != nil {
		respondErr(c, err)
		return
	}
	if created {
		response.RespondCreated(c, gin.H{"ledger": l, "created": true})
		return
	}
	response.RespondOK(c, gin.H{"ledger": l, "created": false})
}

// POST /api/ledger/settle
// body: { "user_id": 1, "endpoint": "/search", "provider": "openai", "tokens_used": 120 }
func (h *LedgerHandler) Settle(c *gin.Context) {
	var in services.SettleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	res, err := h.ledger.Settle(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /api/ledger/reserve
// body: { "user_id": 1, "endpoint": "/search", "estimated_cost": 500 }
// A denied reservation answers 402 and still carries the reservation.
func (h *LedgerHandler) Reserve(c *gin.Context) {
	var req struct {
		UserID        uint   `json:"user_id"`
		Endpoint      string `json:"endpoint"`
		EstimatedCost int64  `json:"estimated_cost"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	r, err := h.ledger.Reserve(c.Request.Context(), req.UserID, req.Endpoint, req.EstimatedCost)
	if err != nil {
		if r != nil && domainagg.IsCode(err, domainagg.CodeInsufficientBalance) {
			status, code := statusFor(err)
			c.AbortWithStatusJSON(status, gin.H{
				"error":       response.NewError(c, code, err),
				"reservation": r,
			})
			return
		}
		respondErr(c, err)
		return
	}
	response.RespondOK(c, r)
}

// POST /api/ledger/grant
// body: { "user_id": 1, "tokens": 5000, "reason": "monthly top-up" }
func (h *LedgerHandler) Grant(c *gin.Context) {
	var in services.GrantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, invalidRequest(err))
		return
	}
	res, err := h.ledger.Grant(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// GET /api/users/:user_id/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	bal, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user_id": userID, "balance": bal})
}

// GET /api/users/:user_id/statement?limit=10
func (h *LedgerHandler) Statement(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	limit, err := intQuery(c, "limit", services.DefaultStatementLimit)
	if err != nil {
		respondErr(c, err)
		return
	}
	st, err := h.ledger.Statement(c.Request.Context(), userID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/users/:user_id/ledger/verify
func (h *LedgerHandler) Verify(c *gin.Context) {
	userID, err := uintParam(c, "user_id")
	if err != nil {
		respondErr(c, err)
		return
	}
	v, err := h.ledger.Verify(c.Request.Context(), userID)
	if err != nil {
		if v != nil {
			status, code := statusFor(err)
			c.AbortWithStatusJSON(status, gin.H{
				"error":        response.NewError(c, code, err),
				"verification": v,
			})
			return
		}
		respondErr(c, err)
		return
	}
	response.RespondOK(c, v)
}
