package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewError builds the error body, tagged with the request id when one is in context.
// Handlers that answer with extra fields next to "error" embed it themselves.
func NewError(c *gin.Context, code string, err error) APIError {
	out := APIError{Message: "unknown error", Code: code}
	if err != nil {
		out.Message = err.Error()
	}
	if c != nil && c.Request != nil {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			out.RequestID = td.RequestID
		}
	}
	return out
}

// RespondError aborts the chain and records err on the context for the request logger.
func RespondError(c *gin.Context, status int, code string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: NewError(c, code, err)})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
