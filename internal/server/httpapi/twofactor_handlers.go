package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *handlers) beginTwoFactor(c *gin.Context) {
	id, _ := identityFrom(c)
	e, err := h.TwoFactor.Begin(c.Request.Context(), id.UserID, id.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"secret": e.Secret, "otpauth_url": e.URL})
}

func (h *handlers) confirmTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	id, _ := identityFrom(c)
	codes, err := h.TwoFactor.Confirm(c.Request.Context(), id.UserID, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"recovery_codes": codes})
}

func (h *handlers) disableTwoFactor(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	id, _ := identityFrom(c)
	if err := h.TwoFactor.Disable(c.Request.Context(), id.UserID, req.Code); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
