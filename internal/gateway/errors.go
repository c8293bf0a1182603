package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentpoker/internal/engine"
)

// kind is the gateway-level error taxonomy, independent of any one
// handler.
type kind string

const (
	kindValidation    kind = "validation"
	kindUnauthed      kind = "unauthenticated"
	kindForbidden     kind = "forbidden"
	kindConflict      kind = "conflict"
	kindPrecondition  kind = "precondition"
	kindRateLimited   kind = "rate_limited"
	kindNotFound      kind = "not_found"
)

// gatewayError carries enough information for statusFor to pick an HTTP
// status without string-matching, keeping the concrete type and its
// consumer (statusFor) from drifting apart.
type gatewayError struct {
	kind       kind
	message    string
	retryAfter int // seconds, only meaningful for kindRateLimited
}

func (e *gatewayError) Error() string { return e.message }

func errValidation(msg string) *gatewayError   { return &gatewayError{kind: kindValidation, message: msg} }
func errUnauthenticated(msg string) *gatewayError { return &gatewayError{kind: kindUnauthed, message: msg} }
func errForbidden(msg string) *gatewayError    { return &gatewayError{kind: kindForbidden, message: msg} }
func errConflict(msg string) *gatewayError     { return &gatewayError{kind: kindConflict, message: msg} }
func errPrecondition(msg string) *gatewayError { return &gatewayError{kind: kindPrecondition, message: msg} }
func errNotFound(msg string) *gatewayError     { return &gatewayError{kind: kindNotFound, message: msg} }
func errRateLimited(msg string, retryAfter int) *gatewayError {
	return &gatewayError{kind: kindRateLimited, message: msg, retryAfter: retryAfter}
}

// fromEngineError converts an engine error into its gateway taxonomy slot.
// Every engine error code is a precondition failure mapping to 400, so
// this is a flat mapping.
func fromEngineError(err error) *gatewayError {
	code := engine.ErrorCode(err)
	if code == "" {
		return errValidation(err.Error())
	}
	return errPrecondition(err.Error())
}

// statusFor centralizes the error-to-HTTP-status mapping.
func statusFor(err error) int {
	ge, ok := err.(*gatewayError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ge.kind {
	case kindValidation, kindPrecondition:
		return http.StatusBadRequest
	case kindUnauthed:
		return http.StatusUnauthorized
	case kindForbidden:
		return http.StatusForbidden
	case kindConflict:
		return http.StatusConflict
	case kindRateLimited:
		return http.StatusTooManyRequests
	case kindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {error: string} body with the mapped status, and
// retryAfter on rate-limit rejections.
func respondError(c *gin.Context, err error) {
	ge, ok := err.(*gatewayError)
	if !ok {
		ge = &gatewayError{kind: kindValidation, message: err.Error()}
	}
	body := gin.H{"error": ge.message}
	if ge.kind == kindRateLimited {
		body["retryAfter"] = ge.retryAfter
	}
	c.JSON(statusFor(ge), body)
}
