package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/cryptox"
	"github.com/profolio/profolio/internal/server/services"
)

// statusFor maps a service error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrSecondFactorRequired):
		return http.StatusUnauthorized, "second_factor_required"
	case errors.Is(err, common.ErrInvalidSecondFactor):
		return http.StatusUnauthorized, "invalid_second_factor"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, common.ErrTwoFactorEnabled),
		errors.Is(err, common.ErrTwoFactorNotPending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too many attempts"
	case errors.Is(err, cryptox.ErrDecryptFailed):
		return http.StatusInternalServerError, cryptox.ErrDecryptFailed.Error()
	case errors.Is(err, cryptox.ErrEncryptFailed):
		return http.StatusInternalServerError, cryptox.ErrEncryptFailed.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)

	var lockout *services.LockoutError
	if errors.As(err, &lockout) {
		secs := retryAfterSeconds(lockout.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(status, gin.H{"error": msg, "retry_after": secs})
		return
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// retryAfterSeconds rounds up and never answers less than one second.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
