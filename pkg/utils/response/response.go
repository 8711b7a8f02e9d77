// Package response provides the unified JSON envelope written by every
// docqa endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/middleware/common"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success).
	Code int `json:"code"`

	// HTTPCode mirrors the HTTP status for client convenience.
	HTTPCode int `json:"http_code,omitempty"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Data contains the response payload (nil for errors).
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds).
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:     errors.OK.Code,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.MessageEN,
	}
}

// OK writes data with HTTP 200.
func OK(c *gin.Context, data any) {
	write(c, Success(data))
}

// Fail writes err as an error envelope. Errors outside the errno taxonomy
// are reported as ErrInternal.
func Fail(c *gin.Context, err error) {
	write(c, Err(errors.FromError(err)))
}

func write(c *gin.Context, r *Response) {
	r.RequestID = common.GetRequestID(c.Request.Context())
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPCode, r)
}
