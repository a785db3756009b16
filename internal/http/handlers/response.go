// Package handlers provides HTTP handler implementations for the public API.
//
// Every failure leaves through fail() as an ErrorResponse with a stable
// code; successes go through ok() or noContent(). Clients can therefore
// branch on the code alone, and quote the request id when reporting a
// problem:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "profile_required",
//	  "message": "profile not found; complete onboarding first"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wellness-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint, and the payload of
// the "error" event on a message stream.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Safe to show to the user
	Message string `json:"message" example:"session not found"`
}

// fail aborts with the envelope. 5xx answers are logged at error; client
// errors only at debug since the access log already records the status.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	if status >= http.StatusInternalServerError {
		lg.Error().Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	} else {
		lg.Debug().Int("status", status).Str("code", code).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
