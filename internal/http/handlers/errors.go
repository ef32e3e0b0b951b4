package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/saarzint/AI-Agents-Geoferry/internal/domain/aggregates"
	"github.com/saarzint/AI-Agents-Geoferry/internal/http/response"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/apierr"
)

// statusFor maps an error to the HTTP status and code the API answers with.
// Handler-level *apierr.Error values win over aggregate codes.
func statusFor(err error) (int, string) {
	if e, ok := apierr.As(err); ok {
		return e.Status, e.Code
	}
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		return http.StatusInternalServerError, string(domainagg.CodeInternal)
	}
	switch aggErr.Code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, string(aggErr.Code)
	case domainagg.CodeNotFound:
		return http.StatusNotFound, string(aggErr.Code)
	case domainagg.CodeInsufficientBalance:
		return http.StatusPaymentRequired, string(aggErr.Code)
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed:
		return http.StatusConflict, string(aggErr.Code)
	case domainagg.CodeStaleData, domainagg.CodeRetryable:
		return http.StatusServiceUnavailable, string(aggErr.Code)
	default:
		return http.StatusInternalServerError, string(aggErr.Code)
	}
}

func respondErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	if !domainagg.ErrorCode(code).Exposed() {
		// internal causes stay in the logs
		_ = c.Error(err)
		response.RespondError(c, status, code, errors.New("internal error"))
		return
	}
	if domainagg.IsTransient(err) {
		c.Header("Retry-After", "1")
	}
	response.RespondError(c, status, code, err)
}

func invalidRequest(err error) error {
	return apierr.BadRequest("invalid_request", err)
}

func uintParam(c *gin.Context, name string) (uint, error) {
	raw := strings.TrimSpace(c.Param(name))
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, invalidRequest(fmt.Errorf("%s must be a positive integer", name))
	}
	return uint(n), nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalidRequest(fmt.Errorf("%s must be a non-negative integer", name))
	}
	return n, nil
}
