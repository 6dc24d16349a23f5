package server

import (
	"errors"
	"net/http"

	"diggin-checkout/internal/api"
	"diggin-checkout/internal/domain"

	"github.com/gin-gonic/gin"
)

const verificationFailed = "Payment verification failed. Please contact support."

type httpError struct {
	status  int
	message string
}

var errorTable = []struct {
	err error
	httpError
}{
	{domain.ErrUnauthorized, httpError{http.StatusUnauthorized, "Please sign in to continue"}},
	{domain.ErrForbidden, httpError{http.StatusForbidden, "You do not have access to this resource"}},
	{domain.ErrRateLimited, httpError{http.StatusTooManyRequests, "Too many requests. Please slow down."}},
	{domain.ErrInvalidGuestCount, httpError{http.StatusBadRequest, "Invalid number of guests"}},
	{domain.ErrInvalidIntentType, httpError{http.StatusBadRequest, "Invalid order type"}},
	{domain.ErrInvalidOrder, httpError{http.StatusBadRequest, "Invalid order"}},
	{domain.ErrInvalidNotification, httpError{http.StatusBadRequest, "Invalid notification"}},
	{domain.ErrInvalidTransition, httpError{http.StatusConflict, "Status change not allowed"}},
	{domain.ErrGatewayUnavailable, httpError{http.StatusBadGateway, "Payment service unavailable. Please try again later."}},
	{domain.ErrSignatureInvalid, httpError{http.StatusBadRequest, verificationFailed}},
	{domain.ErrReferenceMismatch, httpError{http.StatusBadRequest, verificationFailed}},
	{domain.ErrAlreadySettled, httpError{http.StatusConflict, verificationFailed}},
	{domain.ErrNotPayable, httpError{http.StatusConflict, verificationFailed}},
	{domain.ErrNotFound, httpError{http.StatusNotFound, "Not found"}},
}

func classify(err error) httpError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.httpError
		}
	}
	return httpError{http.StatusInternalServerError, "Something went wrong. Please try again."}
}

func abortWithError(c *gin.Context, err error) {
	h := classify(err)
	c.AbortWithStatusJSON(h.status, api.ErrorResponse{Success: false, Error: h.message})
}

// abortVerification hides which check failed. Every verification failure
// other than authentication reads the same to the client.
func abortVerification(c *gin.Context, err error) {
	h := classify(err)
	switch h.status {
	case http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError:
	default:
		h.message = verificationFailed
		if h.status == http.StatusNotFound {
			h.status = http.StatusBadRequest
		}
	}
	c.AbortWithStatusJSON(h.status, api.ErrorResponse{Success: false, Error: h.message})
}
